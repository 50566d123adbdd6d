package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/middleware"
	"github.com/edublog/internal/service"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	blogs *service.BlogService
	mail  *service.MailService
	log   *slog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(blogs *service.BlogService, mail *service.MailService, log *slog.Logger) *API {
	if log == nil {
		log = logger.Default()
	}
	return &API{
		blogs: blogs,
		mail:  mail,
		log:   log,
	}
}

// requestLog 返回带 request_id 的日志记录器。
func (a *API) requestLog(c *gin.Context) *slog.Logger {
	if id := middleware.GetRequestID(c); id != "" {
		return a.log.With("request_id", id)
	}
	return a.log
}
