package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edublog/internal/db"
	"github.com/edublog/internal/metrics"
	"github.com/edublog/internal/service"
)

// blogView 在存储模型上把列表字段展开为数组。
type blogView struct {
	db.Blog
	Tags            []string `json:"tags"`
	RelatedBlogs    []string `json:"relatedBlogs"`
	TranslatedBlogs []string `json:"translatedBlogs"`
	ContentHTML     string   `json:"contentHtml,omitempty"`
	VideoEmbedURL   string   `json:"videoEmbedUrl,omitempty"`
}

func newBlogView(blog db.Blog) blogView {
	return blogView{
		Blog:            blog,
		Tags:            service.DecodeList(blog.Tags),
		RelatedBlogs:    service.DecodeList(blog.RelatedBlogs),
		TranslatedBlogs: service.DecodeList(blog.TranslatedBlogs),
	}
}

func newBlogViews(blogs []db.Blog) []blogView {
	views := make([]blogView, 0, len(blogs))
	for _, blog := range blogs {
		views = append(views, newBlogView(blog))
	}
	return views
}

func paginationView(result *service.BlogListResult) gin.H {
	return gin.H{
		"currentPage": result.Page,
		"totalPages":  result.TotalPages,
		"totalCount":  result.Total,
		"limit":       result.Limit,
		"hasNextPage": result.HasNextPage(),
		"hasPrevPage": result.HasPrevPage(),
	}
}

// CreateBlogPost handles POST /blogs/create-post.
func (a *API) CreateBlogPost(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		metrics.ObserveBlogCreation("rejected")
		respondError(c, http.StatusBadRequest, "Invalid JSON in request body", "INVALID_JSON")
		return
	}

	input, err := service.ParseBlogInput(body)
	if err != nil {
		metrics.ObserveBlogCreation("rejected")
		a.respondServiceError(c, err)
		return
	}

	result, err := a.blogs.Create(c.Request.Context(), input)
	if err != nil {
		metrics.ObserveBlogCreation(creationOutcome(err))
		if service.IsValidationError(err) {
			a.requestLog(c).Info("blog post rejected", "code", service.ErrorCode(err))
		}
		a.respondServiceError(c, err)
		return
	}

	metrics.ObserveBlogCreation("created")
	a.requestLog(c).Info("blog post created", "blog_id", result.BlogID, "slug", result.Slug)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Blog post created successfully",
		"data":    result,
	})
}

func creationOutcome(err error) string {
	switch {
	case service.IsValidationError(err):
		return "rejected"
	case errors.Is(err, service.ErrDuplicateEntry):
		return "conflict"
	default:
		return "error"
	}
}

// ListBlogs handles GET /blogs/get-all.
func (a *API) ListBlogs(c *gin.Context) {
	filter := a.listFilter(c)
	filter.Category = c.Query("category")
	filter.Featured = parseBoolQuery(c, "featured")
	filter.Search = c.Query("search")

	result, err := a.blogs.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	a.respondList(c, result, fmt.Sprintf("Fetched %d blog posts", len(result.Blogs)))
}

// ListBlogsByCategory handles GET /blogs/category/:category.
func (a *API) ListBlogsByCategory(c *gin.Context) {
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		respondError(c, http.StatusBadRequest, "Category parameter is required", "MISSING_CATEGORY")
		return
	}

	filter := a.listFilter(c)
	filter.Category = category

	result, err := a.blogs.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	a.respondList(c, result, fmt.Sprintf("Fetched %d blog posts for category '%s'", len(result.Blogs), category))
}

// ListBlogsByAuthor handles GET /blogs/get-by-author/:authorId.
func (a *API) ListBlogsByAuthor(c *gin.Context) {
	authorID := strings.TrimSpace(c.Param("authorId"))
	if authorID == "" {
		respondError(c, http.StatusBadRequest, "Author ID parameter is required", "MISSING_AUTHOR_ID")
		return
	}

	filter := a.listFilter(c)
	filter.AuthorID = authorID

	result, err := a.blogs.List(c.Request.Context(), filter)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}
	a.respondList(c, result, fmt.Sprintf("Fetched %d blog posts for author '%s'", len(result.Blogs), authorID))
}

func (a *API) listFilter(c *gin.Context) service.BlogFilter {
	return service.BlogFilter{
		Published: parseBoolQuery(c, "published"),
		Page:      parsePositiveQuery(c, "page", 1),
		Limit:     parsePositiveQuery(c, "limit", 0),
	}
}

func (a *API) respondList(c *gin.Context, result *service.BlogListResult, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    message,
		"data":       newBlogViews(result.Blogs),
		"pagination": paginationView(result),
	})
}

// GetBlogBySlug handles GET /blogs/get/:slug.
func (a *API) GetBlogBySlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		respondError(c, http.StatusBadRequest, "Slug parameter is required", "MISSING_SLUG")
		return
	}
	if !service.ValidSlug(slug) {
		respondError(c, http.StatusBadRequest, "Invalid slug format", "INVALID_SLUG_FORMAT")
		return
	}

	blog, err := a.blogs.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrBlogNotFound) {
			respondError(c, http.StatusNotFound, fmt.Sprintf("Blog post with slug '%s' not found", slug), "BLOG_NOT_FOUND")
			return
		}
		a.respondServiceError(c, err)
		return
	}

	view := newBlogView(*blog)
	rendered, err := renderMarkdown(blog.Content)
	if err != nil {
		// 渲染失败不影响原文返回
		a.requestLog(c).Warn("render blog content failed", "slug", slug, "error", err)
	} else {
		view.ContentHTML = rendered
	}
	if blog.PostType == service.PostTypeVideo && blog.ExternalURL != nil {
		if embed, ok := youtubeEmbedURL(*blog.ExternalURL); ok {
			view.VideoEmbedURL = embed
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Blog post fetched successfully",
		"data":    view,
	})
}

// GetBlogByID handles GET /blogs/get-by-id/:blogId.
func (a *API) GetBlogByID(c *gin.Context) {
	blogID := strings.TrimSpace(c.Param("blogId"))
	if blogID == "" {
		respondError(c, http.StatusBadRequest, "Blog ID parameter is required", "MISSING_BLOG_ID")
		return
	}

	blog, err := a.blogs.GetByBlogID(c.Request.Context(), blogID)
	if err != nil {
		if errors.Is(err, service.ErrBlogNotFound) {
			respondError(c, http.StatusNotFound, fmt.Sprintf("Blog post with ID '%s' not found", blogID), "BLOG_NOT_FOUND")
			return
		}
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Blog post fetched successfully",
		"data":    newBlogView(*blog),
	})
}

// ListFeaturedBlogs handles GET /blogs/featured.
func (a *API) ListFeaturedBlogs(c *gin.Context) {
	blogs, err := a.blogs.ListFeatured(c.Request.Context(), parsePositiveQuery(c, "limit", 0))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Fetched %d featured blog posts", len(blogs)),
		"data":    newBlogViews(blogs),
	})
}
