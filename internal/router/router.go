package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/edublog/internal/handler"
	"github.com/edublog/internal/middleware"
)

// Dependencies 汇总路由层需要的依赖。
type Dependencies struct {
	API            *handler.API
	DB             *gorm.DB
	Limiter        middleware.Limiter
	AllowedOrigins []string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.CORS(deps.AllowedOrigins),
		middleware.SecurityHeaders(),
	)
	if deps.Limiter != nil {
		r.Use(middleware.RateLimit(deps.Limiter))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", healthCheck(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := deps.API
	blogs := r.Group("/blogs")
	{
		blogs.POST("/create-post", api.CreateBlogPost)
		blogs.GET("/get-all", api.ListBlogs)
		blogs.GET("/get/:slug", api.GetBlogBySlug)
		blogs.GET("/category/:category", api.ListBlogsByCategory)
		blogs.GET("/get-by-id/:blogId", api.GetBlogByID)
		blogs.GET("/get-by-author/:authorId", api.ListBlogsByAuthor)
		blogs.GET("/featured", api.ListFeaturedBlogs)
	}

	mail := r.Group("/mail")
	{
		mail.POST("/send-on-server-1", api.SendOnServerOne)
		mail.POST("/send-on-server-2", api.SendOnServerTwo)
		mail.GET("/events/:mailId", api.ListMailEvents)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Route not found",
			"error":   "NOT_FOUND",
		})
	})

	return r
}

func healthCheck(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gdb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "not configured"})
			return
		}
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
	}
}
