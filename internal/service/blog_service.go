package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/edublog/internal/db"
	"github.com/edublog/internal/logger"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	defaultLanguage = "en"
)

// BlogService wraps blog related database operations.
type BlogService struct {
	db        *gorm.DB
	log       *slog.Logger
	newBlogID func() (string, error)
	newSuffix func() (string, error)
	now       func() time.Time
}

// CreateResult is what a successful creation reports back to the caller.
type CreateResult struct {
	BlogID      string `json:"blogId"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	IsPublished bool   `json:"isPublished"`
	CreatedAt   string `json:"createdAt"`
}

// BlogFilter describes filters for listing blogs.
type BlogFilter struct {
	Category  string
	AuthorID  string
	Published *bool
	Featured  *bool
	Search    string
	Page      int
	Limit     int
}

// BlogListResult aggregates paginated list data and counters.
type BlogListResult struct {
	Blogs      []db.Blog
	Total      int64
	TotalPages int
	Page       int
	Limit      int
}

// HasNextPage reports whether another page follows.
func (r *BlogListResult) HasNextPage() bool {
	return r.Page < r.TotalPages
}

// HasPrevPage reports whether a page precedes this one.
func (r *BlogListResult) HasPrevPage() bool {
	return r.Page > 1
}

// NewBlogService creates a BlogService instance.
func NewBlogService(gdb *gorm.DB, log *slog.Logger) *BlogService {
	if log == nil {
		log = logger.Default()
	}
	return &BlogService{
		db:        gdb,
		log:       log,
		newBlogID: NewBlogID,
		newSuffix: NewSlugSuffix,
		now:       time.Now,
	}
}

// Create validates the submission, resolves a unique slug and inserts the
// post. Nothing is written unless every step succeeds.
func (s *BlogService) Create(ctx context.Context, input BlogInput) (*CreateResult, error) {
	now := s.now()

	validated, err := input.Validate(now)
	if err != nil {
		return nil, err
	}

	slug, err := s.resolveUniqueSlug(ctx, validated.Slug)
	if err != nil {
		return nil, err
	}

	blogID, err := s.newBlogID()
	if err != nil {
		return nil, err
	}

	timestamp := FormatTimestamp(now)
	blog := db.Blog{
		BlogID:               blogID,
		Title:                validated.Title,
		Slug:                 slug,
		Content:              validated.Content,
		Excerpt:              validated.Excerpt,
		Category:             validated.Category,
		Tags:                 validated.Tags,
		AuthorName:           validated.AuthorName,
		AuthorID:             validated.AuthorID,
		AuthorBio:            validated.AuthorBio,
		AuthorProfileImage:   validated.AuthorProfileImage,
		AuthorTwitter:        validated.AuthorTwitter,
		AuthorLinkedIn:       validated.AuthorLinkedIn,
		FeaturedImage:        validated.FeaturedImage,
		FeaturedImageAltText: validated.FeaturedImageAltText,
		FeaturedImageWidth:   validated.FeaturedImageWidth,
		FeaturedImageHeight:  validated.FeaturedImageHeight,
		IsFeatured:           validated.IsFeatured,
		IsPublished:          validated.IsPublished,
		IsApproved:           validated.IsApproved,
		SEOTitle:             validated.SEOTitle,
		SEODescription:       validated.SEODescription,
		PostType:             validated.PostType,
		RelatedBlogs:         validated.RelatedBlogs,
		Status:               validated.Status,
		ExternalURL:          validated.ExternalURL,
		Language:             defaultLanguage,
		TranslatedBlogs:      validated.TranslatedBlogs,
		PublishedAt:          validated.PublishedAt,
		CreatedAt:            timestamp,
		UpdatedAt:            timestamp,
	}

	res := s.db.WithContext(ctx).Create(&blog)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			s.log.Warn("blog insert hit unique constraint", "slug", slug, "blog_id", blogID, "error", res.Error)
			return nil, wrapCodedError(ErrDuplicateEntry, "DUPLICATE_ENTRY",
				"A blog with this slug or ID already exists", res.Error)
		}
		s.log.Error("blog insert failed", "slug", slug, "error", res.Error)
		return nil, wrapCodedError(ErrStorage, "DB_INSERT_ERROR", "Failed to save blog post", res.Error)
	}
	if res.RowsAffected == 0 || blog.ID == 0 {
		s.log.Error("blog insert returned no row", "slug", slug, "blog_id", blogID)
		return nil, newCodedError(ErrInsertIncomplete, "", "INSERT_FAILED", "Failed to create blog post")
	}

	s.log.Info("blog created", "blog_id", blog.BlogID, "slug", blog.Slug, "status", blog.Status)
	return &CreateResult{
		BlogID:      blog.BlogID,
		Slug:        blog.Slug,
		Title:       blog.Title,
		Status:      blog.Status,
		IsPublished: blog.IsPublished,
		CreatedAt:   blog.CreatedAt,
	}, nil
}

// resolveUniqueSlug 检查 slug 是否已被占用，冲突时在原始 slug 后追加随机后缀重试。
func (s *BlogService) resolveUniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	attempts := 0
	state := slugChecking

	for {
		switch state {
		case slugChecking:
			taken, err := s.slugTaken(ctx, candidate)
			if err != nil {
				s.log.Error("slug lookup failed", "slug", candidate, "attempt", attempts, "error", err)
				return "", wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to check slug availability", err)
			}
			if !taken {
				state = slugResolved
			} else {
				state = slugColliding
			}

		case slugColliding:
			if attempts >= maxSlugRetries {
				state = slugExhausted
				continue
			}
			attempts++
			suffix, err := s.newSuffix()
			if err != nil {
				return "", err
			}
			candidate = base + "-" + suffix
			s.log.Debug("slug collision", "base", base, "candidate", candidate, "attempt", attempts)
			state = slugChecking

		case slugResolved:
			return candidate, nil

		case slugExhausted:
			s.log.Warn("slug retries exhausted", "base", base, "attempts", attempts+1)
			return "", newCodedError(ErrSlugExhausted, "slug", "SLUG_GENERATION_EXHAUSTED",
				"Failed to generate unique slug after multiple attempts")
		}
	}
}

func (s *BlogService) slugTaken(ctx context.Context, slug string) (bool, error) {
	var existing db.Blog
	err := s.db.WithContext(ctx).Select("id").Where("slug = ?", slug).Take(&existing).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// List returns a page of blogs matching filter, newest first.
func (s *BlogService) List(ctx context.Context, filter BlogFilter) (*BlogListResult, error) {
	result := &BlogListResult{Page: filter.Page, Limit: normalizeLimit(filter.Limit)}
	if result.Page <= 0 {
		result.Page = 1
	}

	countQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Blog{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to fetch blogs", err)
	}

	offset := (result.Page - 1) * result.Limit
	var blogs []db.Blog
	dataQuery := s.applyFilters(s.db.WithContext(ctx).Model(&db.Blog{}), filter)
	if err := dataQuery.Order("created_at desc, id desc").Limit(result.Limit).Offset(offset).Find(&blogs).Error; err != nil {
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to fetch blogs", err)
	}

	result.TotalPages = int((result.Total + int64(result.Limit) - 1) / int64(result.Limit))
	result.Blogs = blogs
	return result, nil
}

func (s *BlogService) applyFilters(query *gorm.DB, filter BlogFilter) *gorm.DB {
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if authorID := strings.TrimSpace(filter.AuthorID); authorID != "" {
		query = query.Where("author_id = ?", authorID)
	}
	if filter.Published != nil {
		query = query.Where("is_published = ?", *filter.Published)
	}
	if filter.Featured != nil {
		query = query.Where("is_featured = ?", *filter.Featured)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}
	return query
}

// GetBySlug fetches a blog by its slug.
func (s *BlogService) GetBySlug(ctx context.Context, slug string) (*db.Blog, error) {
	return s.getOne(ctx, "slug = ?", slug)
}

// GetByBlogID fetches a blog by its public identifier.
func (s *BlogService) GetByBlogID(ctx context.Context, blogID string) (*db.Blog, error) {
	return s.getOne(ctx, "blog_id = ?", blogID)
}

func (s *BlogService) getOne(ctx context.Context, where string, value string) (*db.Blog, error) {
	var blog db.Blog
	if err := s.db.WithContext(ctx).Where(where, value).Take(&blog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogNotFound
		}
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to fetch blog", err)
	}
	return &blog, nil
}

// ListFeatured returns published featured blogs, most recently published first.
func (s *BlogService) ListFeatured(ctx context.Context, limit int) ([]db.Blog, error) {
	var blogs []db.Blog
	err := s.db.WithContext(ctx).
		Where("is_featured = ? AND status = ?", true, StatusPublished).
		Order("published_at desc, id desc").
		Limit(normalizeLimit(limit)).
		Find(&blogs).Error
	if err != nil {
		return nil, wrapCodedError(ErrStorage, "DB_QUERY_ERROR", "Failed to fetch featured blogs", err)
	}
	return blogs, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
