package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edublog/internal/service"
)

const (
	internalErrorCode    = "INTERNAL_SERVER_ERROR"
	internalErrorMessage = "An unexpected error occurred"
)

func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   code,
	})
}

// respondServiceError 统一把服务层错误映射为 HTTP 状态码与错误体。
func (a *API) respondServiceError(c *gin.Context, err error) {
	status := statusForError(err)
	code := service.ErrorCode(err)
	message := service.ErrorMessage(err)
	if code == "" || message == "" {
		code, message = internalErrorCode, internalErrorMessage
	}

	if status >= http.StatusInternalServerError {
		a.requestLog(c).Error("request failed", "path", c.FullPath(), "code", code, "error", err)
		_ = c.Error(err)
	}
	respondError(c, status, message, code)
}

func statusForError(err error) int {
	switch {
	case service.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, service.ErrBlogNotFound), errors.Is(err, service.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRecipientSuppressed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrServerLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrServerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// parseBoolQuery 只认 true/false，其余值视为未设置。
func parseBoolQuery(c *gin.Context, key string) *bool {
	raw := strings.ToLower(strings.TrimSpace(c.Query(key)))
	switch raw {
	case "true", "1":
		value := true
		return &value
	case "false", "0":
		value := false
		return &value
	default:
		return nil
	}
}
