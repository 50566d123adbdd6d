package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edublog/internal/metrics"
	"github.com/edublog/internal/service"
)

// SendOnServerOne handles POST /mail/send-on-server-1.
func (a *API) SendOnServerOne(c *gin.Context) {
	a.sendMail(c, service.MailServerOne)
}

// SendOnServerTwo handles POST /mail/send-on-server-2.
func (a *API) SendOnServerTwo(c *gin.Context) {
	a.sendMail(c, service.MailServerTwo)
}

func (a *API) sendMail(c *gin.Context, server string) {
	started := time.Now()

	var input service.SendMailInput
	if err := json.NewDecoder(c.Request.Body).Decode(&input); err != nil {
		metrics.ObserveMailSend(server, "rejected", started)
		respondError(c, http.StatusBadRequest, "Invalid JSON in request body", "INVALID_JSON")
		return
	}

	result, err := a.mail.Send(c.Request.Context(), server, input)
	if err != nil {
		metrics.ObserveMailSend(server, mailOutcome(err), started)
		a.respondServiceError(c, err)
		return
	}

	metrics.ObserveMailSend(server, "sent", started)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Mail sent successfully",
		"data":    result,
	})
}

func mailOutcome(err error) string {
	switch {
	case service.IsValidationError(err), errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrRecipientSuppressed):
		return "rejected"
	case errors.Is(err, service.ErrServerLimitReached), errors.Is(err, service.ErrServerUnavailable):
		return "unavailable"
	case errors.Is(err, service.ErrDeliveryFailed):
		return "failed"
	default:
		return "error"
	}
}

// ListMailEvents handles GET /mail/events/:mailId.
func (a *API) ListMailEvents(c *gin.Context) {
	mailID := strings.TrimSpace(c.Param("mailId"))
	if mailID == "" {
		respondError(c, http.StatusBadRequest, "Mail ID parameter is required", "MISSING_MAIL_ID")
		return
	}

	events, err := a.mail.ListEvents(c.Request.Context(), mailID)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	if len(events) == 0 {
		respondError(c, http.StatusNotFound, fmt.Sprintf("Mail '%s' not found", mailID), "MAIL_NOT_FOUND")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Fetched %d mail events", len(events)),
		"data":    events,
	})
}
