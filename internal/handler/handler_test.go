package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/edublog/internal/config"
	"github.com/edublog/internal/db"
	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSender struct {
	name string
	err  error
	sent []service.Message
}

func (f *fakeSender) Send(_ context.Context, msg service.Message) (service.SendReceipt, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return service.SendReceipt{}, f.err
	}
	return service.SendReceipt{ProviderMessageID: "prov-1", Provider: f.name}, nil
}

func (f *fakeSender) Name() string {
	return f.name
}

type testEnv struct {
	api      *API
	db       *gorm.DB
	resend   *fakeSender
	mailtrap *fakeSender
}

func setupTestDB(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, true)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	limits := config.MailConfig{
		Server1DailyLimit:   100,
		Server1MonthlyLimit: 3000,
		Server2DailyLimit:   1000,
		Server2MonthlyLimit: 4000,
	}
	if err := db.SeedMailServers(gdb, service.MailServerSeeds(limits), time.Now().UTC()); err != nil {
		t.Fatalf("failed to seed mail servers: %v", err)
	}

	env := &testEnv{
		db:       gdb,
		resend:   &fakeSender{name: "resend"},
		mailtrap: &fakeSender{name: "mailtrap"},
	}
	blogs := service.NewBlogService(gdb, logger.Discard())
	mail := service.NewMailService(gdb, logger.Discard(), "no-reply@example.com", map[string]service.Sender{
		"resend":   env.resend,
		"mailtrap": env.mailtrap,
	})
	env.api = NewAPI(blogs, mail, logger.Discard())
	return env
}

func newJSONContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		CurrentPage int   `json:"currentPage"`
		TotalPages  int   `json:"totalPages"`
		TotalCount  int64 `json:"totalCount"`
		Limit       int   `json:"limit"`
		HasNextPage bool  `json:"hasNextPage"`
		HasPrevPage bool  `json:"hasPrevPage"`
	} `json:"pagination"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrMissingField, http.StatusBadRequest},
		{service.ErrInvalidMailRequest, http.StatusBadRequest},
		{service.ErrDuplicateEntry, http.StatusConflict},
		{service.ErrBlogNotFound, http.StatusNotFound},
		{service.ErrTemplateNotFound, http.StatusNotFound},
		{service.ErrRecipientSuppressed, http.StatusUnprocessableEntity},
		{service.ErrServerLimitReached, http.StatusTooManyRequests},
		{service.ErrServerUnavailable, http.StatusServiceUnavailable},
		{service.ErrDeliveryFailed, http.StatusBadGateway},
		{service.ErrSlugExhausted, http.StatusInternalServerError},
		{service.ErrStorage, http.StatusInternalServerError},
		{service.ErrInsertIncomplete, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(fmt.Errorf("wrapped: %w", tc.err)); got != tc.want {
			t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRespondServiceErrorHidesUnclassifiedErrors(t *testing.T) {
	env := setupTestDB(t)
	c, w := newJSONContext(http.MethodGet, "/", nil)

	env.api.respondServiceError(c, fmt.Errorf("disk on fire"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	resp := decodeEnvelope(t, w)
	if resp.Success || resp.Error != "INTERNAL_SERVER_ERROR" || resp.Message != "An unexpected error occurred" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestQueryHelpers(t *testing.T) {
	c, _ := newJSONContext(http.MethodGet, "/?page=3&limit=-1&published=true&featured=no", nil)

	if got := parsePositiveQuery(c, "page", 1); got != 3 {
		t.Fatalf("page = %d", got)
	}
	if got := parsePositiveQuery(c, "limit", 10); got != 10 {
		t.Fatalf("negative limit should fall back, got %d", got)
	}
	if got := parseBoolQuery(c, "published"); got == nil || !*got {
		t.Fatalf("published should be true")
	}
	if got := parseBoolQuery(c, "featured"); got != nil {
		t.Fatalf("unrecognised flag should be ignored")
	}
}
