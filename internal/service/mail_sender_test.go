package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edublog/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSenderSend(t *testing.T) {
	var captured resendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re-123"}`))
	}))
	defer server.Close()

	sender := NewResendSender(server.URL+"/", "re_test", logger.Discard())
	receipt, err := sender.Send(context.Background(), Message{
		From:    "no-reply@example.com",
		To:      "reader@example.com",
		ToName:  "Reader",
		Subject: "Hi",
		HTML:    "<p>Hi</p>",
		Tags:    []string{"welcome"},
	})
	require.NoError(t, err)

	assert.Equal(t, "re-123", receipt.ProviderMessageID)
	assert.Equal(t, "resend", receipt.Provider)
	assert.Equal(t, []string{"Reader <reader@example.com>"}, captured.To)
	assert.Equal(t, "<p>Hi</p>", captured.HTML)
	assert.Empty(t, captured.Text)
	require.Len(t, captured.Tags, 1)
	assert.Equal(t, "welcome", captured.Tags[0].Value)
}

func TestResendSenderReportsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"message":"Invalid from field"}`))
	}))
	defer server.Close()

	sender := NewResendSender(server.URL, "re_test", logger.Discard())
	_, err := sender.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid from field")
}

func TestSenderRequiresCredentials(t *testing.T) {
	sender := NewMailtrapSender("", "", logger.Discard())
	_, err := sender.Send(context.Background(), Message{To: "b@example.com"})
	assert.True(t, errors.Is(err, ErrProviderCredentialsMissing))
}

func TestMailtrapSenderSend(t *testing.T) {
	var captured mailtrapSendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send", r.URL.Path)
		assert.Equal(t, "Bearer mt_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"success":true,"message_ids":["mt-1"]}`))
	}))
	defer server.Close()

	sender := NewMailtrapSender(server.URL, "mt_test", logger.Discard())
	receipt, err := sender.Send(context.Background(), Message{
		From:     "no-reply@example.com",
		To:       "reader@example.com",
		ToName:   "Reader",
		Subject:  "Hello",
		Text:     "plain",
		Category: "welcome",
	})
	require.NoError(t, err)

	assert.Equal(t, "mt-1", receipt.ProviderMessageID)
	assert.Equal(t, "mailtrap", sender.Name())
	assert.Equal(t, "no-reply@example.com", captured.From.Email)
	require.Len(t, captured.To, 1)
	assert.Equal(t, "Reader", captured.To[0].Name)
	assert.Equal(t, "welcome", captured.Category)
}

func TestMailtrapSenderReportsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"errors":["bad to","bad subject"]}`))
	}))
	defer server.Close()

	sender := NewMailtrapSender(server.URL, "mt_test", logger.Discard())
	_, err := sender.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad to; bad subject")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSenderSurfacesTransportErrors(t *testing.T) {
	sender := NewResendSender("https://resend.invalid", "re_test", logger.Discard())
	sender.SetHTTPClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := sender.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
