package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gorm.io/datatypes"
)

const (
	maxTitleLength   = 500
	maxExcerptLength = 1000
	minImageSide     = 1
	maxImageSide     = 10000

	// TimestampLayout is the canonical UTC timestamp format stored for posts.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

// Post statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
	StatusScheduled = "scheduled"
)

// Post types.
const (
	PostTypeRegular = "regular"
	PostTypeVideo   = "video"
	PostTypeGallery = "gallery"
	PostTypeQuote   = "quote"
	PostTypeLink    = "link"
)

var (
	validStatuses  = []interface{}{StatusDraft, StatusPublished, StatusArchived, StatusScheduled}
	validPostTypes = []interface{}{PostTypeRegular, PostTypeVideo, PostTypeGallery, PostTypeQuote, PostTypeLink}

	authorEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	allDigits          = regexp.MustCompile(`^[0-9]+$`)
)

// BlogInput represents fields accepted when creating a blog post.
type BlogInput struct {
	Title                string       `json:"title"`
	Slug                 string       `json:"slug"`
	Content              string       `json:"content"`
	Excerpt              string       `json:"excerpt"`
	Category             string       `json:"category"`
	Tags                 ListValue    `json:"tags"`
	AuthorName           string       `json:"authorName"`
	AuthorID             string       `json:"authorId"`
	AuthorBio            string       `json:"authorBio"`
	AuthorProfileImage   string       `json:"authorProfileImage"`
	AuthorTwitter        string       `json:"authorTwitter"`
	AuthorLinkedIn       string       `json:"authorLinkedIn"`
	FeaturedImage        string       `json:"featuredImage"`
	FeaturedImageAltText string       `json:"featuredImageAltText"`
	FeaturedImageWidth   *json.Number `json:"featuredImageWidth"`
	FeaturedImageHeight  *json.Number `json:"featuredImageHeight"`
	IsFeatured           *bool        `json:"isFeatured"`
	IsPublished          *bool        `json:"isPublished"`
	IsApproved           *bool        `json:"isApproved"`
	SEOTitle             string       `json:"seoTitle"`
	SEODescription       string       `json:"seoDescription"`
	PostType             string       `json:"postType"`
	RelatedBlogs         ListValue    `json:"relatedBlogs"`
	Status               string       `json:"status"`
	ExternalURL          string       `json:"externalUrl"`
	TranslatedBlogs      ListValue    `json:"translatedBlogs"`
	PublishedAt          string       `json:"publishedAt"`
}

// ValidatedBlog is a submission that passed every check, with all fields in
// their stored form. Slug is the resolved base slug before uniqueness checks.
type ValidatedBlog struct {
	Title    string
	Slug     string
	Content  string
	Excerpt  *string
	Category string
	Tags     datatypes.JSON

	AuthorName         string
	AuthorID           *string
	AuthorBio          *string
	AuthorProfileImage *string
	AuthorTwitter      *string
	AuthorLinkedIn     *string

	FeaturedImage        *string
	FeaturedImageAltText *string
	FeaturedImageWidth   *int
	FeaturedImageHeight  *int

	IsFeatured  bool
	IsPublished bool
	IsApproved  bool

	SEOTitle        *string
	SEODescription  *string
	PostType        string
	RelatedBlogs    datatypes.JSON
	Status          string
	ExternalURL     *string
	TranslatedBlogs datatypes.JSON
	PublishedAt     string
}

// ParseBlogInput decodes a request body. Anything other than a single JSON
// object whose fields have the expected types is rejected as ErrInvalidPayload.
func ParseBlogInput(body []byte) (BlogInput, error) {
	var input BlogInput

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return input, invalidPayload()
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return BlogInput{}, invalidPayload()
	}
	if _, err := dec.Token(); err != io.EOF {
		return BlogInput{}, invalidPayload()
	}
	return input, nil
}

func invalidPayload() error {
	return newCodedError(ErrInvalidPayload, "", "INVALID_JSON", "Invalid JSON in request body")
}

// Validate runs the fail-fast validation chain; the first violation wins.
// It only depends on the input and now, which is the default publish time.
func (in BlogInput) Validate(now time.Time) (*ValidatedBlog, error) {
	out := &ValidatedBlog{
		Title:      strings.TrimSpace(in.Title),
		Content:    strings.TrimSpace(in.Content),
		Category:   strings.TrimSpace(in.Category),
		AuthorName: strings.TrimSpace(in.AuthorName),
	}

	required := []struct {
		field, value, code, label string
	}{
		{"title", out.Title, "MISSING_TITLE", "Title"},
		{"content", out.Content, "MISSING_CONTENT", "Content"},
		{"category", out.Category, "MISSING_CATEGORY", "Category"},
		{"authorName", out.AuthorName, "MISSING_AUTHOR_NAME", "Author name"},
	}
	for _, r := range required {
		if err := validation.Validate(r.value, validation.Required); err != nil {
			return nil, newCodedError(ErrMissingField, r.field, r.code, r.label+" is required")
		}
	}

	if err := validation.Validate(out.Title, validation.RuneLength(0, maxTitleLength)); err != nil {
		return nil, newCodedError(ErrFieldTooLong, "title", "TITLE_TOO_LONG",
			fmt.Sprintf("Title must be %d characters or less", maxTitleLength))
	}

	out.Excerpt = optionalText(in.Excerpt)
	if out.Excerpt != nil {
		if err := validation.Validate(*out.Excerpt, validation.RuneLength(0, maxExcerptLength)); err != nil {
			return nil, newCodedError(ErrFieldTooLong, "excerpt", "EXCERPT_TOO_LONG",
				fmt.Sprintf("Excerpt must be %d characters or less", maxExcerptLength))
		}
	}

	slug, err := resolveBaseSlug(in.Slug, out.Title)
	if err != nil {
		return nil, err
	}
	out.Slug = slug

	lists := []struct {
		field, code string
		value       ListValue
		dst         *datatypes.JSON
	}{
		{"tags", "INVALID_TAGS", in.Tags, &out.Tags},
		{"relatedBlogs", "INVALID_RELATED_BLOGS", in.RelatedBlogs, &out.RelatedBlogs},
		{"translatedBlogs", "INVALID_TRANSLATED_BLOGS", in.TranslatedBlogs, &out.TranslatedBlogs},
	}
	for _, l := range lists {
		normalized, ok := NormalizeList(l.value)
		if !ok {
			return nil, newCodedError(ErrInvalidFieldFormat, l.field, l.code,
				fmt.Sprintf("Failed to parse %s: Invalid %s format", l.field, l.field))
		}
		*l.dst = normalized
	}

	if strings.Contains(in.AuthorID, "@") {
		if err := validation.Validate(in.AuthorID, validation.Match(authorEmailPattern)); err != nil {
			return nil, newCodedError(ErrInvalidAuthorEmail, "authorId", "INVALID_AUTHOR_EMAIL",
				"Invalid email format for authorId")
		}
	}
	out.AuthorID = optionalText(in.AuthorID)

	urls := []struct {
		field, code, label string
		value              string
		dst                **string
	}{
		{"featuredImage", "INVALID_FEATURED_IMAGE_URL", "featured image URL", in.FeaturedImage, &out.FeaturedImage},
		{"authorProfileImage", "INVALID_AUTHOR_PROFILE_IMAGE_URL", "author profile image URL", in.AuthorProfileImage, &out.AuthorProfileImage},
		{"externalUrl", "INVALID_EXTERNAL_URL", "external URL", in.ExternalURL, &out.ExternalURL},
	}
	for _, u := range urls {
		value := optionalText(u.value)
		if value != nil {
			if err := validation.Validate(*value, is.RequestURL, validation.By(absoluteURL)); err != nil {
				return nil, newCodedError(ErrInvalidURL, u.field, u.code, "Invalid "+u.label)
			}
		}
		*u.dst = value
	}

	dimensions := []struct {
		field, code, label string
		value              *json.Number
		dst                **int
	}{
		{"featuredImageWidth", "INVALID_IMAGE_WIDTH", "width", in.FeaturedImageWidth, &out.FeaturedImageWidth},
		{"featuredImageHeight", "INVALID_IMAGE_HEIGHT", "height", in.FeaturedImageHeight, &out.FeaturedImageHeight},
	}
	for _, d := range dimensions {
		if d.value == nil {
			continue
		}
		side, err := imageSide(*d.value)
		if err != nil {
			return nil, newCodedError(ErrInvalidImageDimension, d.field, d.code,
				fmt.Sprintf("Featured image %s must be between %d and %d pixels", d.label, minImageSide, maxImageSide))
		}
		*d.dst = &side
	}

	out.Status = strings.ToLower(in.Status)
	if out.Status == "" {
		out.Status = StatusDraft
	}
	if err := validation.Validate(out.Status, validation.In(validStatuses...)); err != nil {
		return nil, newCodedError(ErrInvalidStatus, "status", "INVALID_STATUS",
			"Invalid status. Must be one of: "+joinChoices(validStatuses))
	}

	out.PostType = strings.ToLower(in.PostType)
	if out.PostType == "" {
		out.PostType = PostTypeRegular
	}
	if err := validation.Validate(out.PostType, validation.In(validPostTypes...)); err != nil {
		return nil, newCodedError(ErrInvalidPostType, "postType", "INVALID_POST_TYPE",
			"Invalid post type. Must be one of: "+joinChoices(validPostTypes))
	}

	out.PublishedAt = FormatTimestamp(now)
	if in.PublishedAt != "" {
		published, err := parsePublishedAt(in.PublishedAt)
		if err != nil {
			return nil, newCodedError(ErrInvalidPublishedDate, "publishedAt", "INVALID_PUBLISHED_DATE",
				"Invalid publishedAt date format. Use ISO 8601 format")
		}
		out.PublishedAt = FormatTimestamp(published)
	}

	out.AuthorBio = optionalText(in.AuthorBio)
	out.AuthorTwitter = optionalText(in.AuthorTwitter)
	out.AuthorLinkedIn = optionalText(in.AuthorLinkedIn)
	out.FeaturedImageAltText = optionalText(in.FeaturedImageAltText)
	out.SEOTitle = optionalText(in.SEOTitle)
	out.SEODescription = optionalText(in.SEODescription)
	out.IsFeatured = boolOrFalse(in.IsFeatured)
	out.IsPublished = boolOrFalse(in.IsPublished)
	out.IsApproved = boolOrFalse(in.IsApproved)

	return out, nil
}

// FormatTimestamp renders t in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func resolveBaseSlug(supplied, title string) (string, error) {
	if supplied != "" {
		err := validation.Validate(supplied,
			validation.Length(0, MaxSlugLength),
			validation.Match(slugPattern),
		)
		if err != nil {
			return "", newCodedError(ErrInvalidSlugFormat, "slug", "INVALID_SLUG_FORMAT",
				fmt.Sprintf("Invalid slug format. Use lowercase letters, numbers, and hyphens only (max %d characters)", MaxSlugLength))
		}
		return supplied, nil
	}

	derived := DeriveSlug(title)
	if derived == "" {
		return "", newCodedError(ErrSlugDerivationFailed, "slug", "SLUG_GENERATION_FAILED",
			"Unable to generate slug from title. Please provide a valid slug")
	}
	return derived, nil
}

func imageSide(raw json.Number) (int, error) {
	value, err := raw.Int64()
	if err != nil {
		return 0, err
	}
	if err := validation.Validate(value,
		validation.Required,
		validation.Min(int64(minImageSide)),
		validation.Max(int64(maxImageSide)),
	); err != nil {
		return 0, err
	}
	return int(value), nil
}

// absoluteURL requires a scheme plus a host or an opaque part; http(s) always
// needs a host.
func absoluteURL(value interface{}) error {
	u, err := url.Parse(value.(string))
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return errors.New("missing scheme")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return errors.New("missing host")
		}
	default:
		if u.Host == "" && u.Opaque == "" {
			return errors.New("missing host")
		}
	}
	return nil
}

func parsePublishedAt(raw string) (time.Time, error) {
	var parsed time.Time
	err := validation.Validate(raw, validation.By(func(value interface{}) error {
		text := strings.TrimSpace(value.(string))
		// dateparse reads bare digits as a unix timestamp
		if allDigits.MatchString(text) {
			return errors.New("bare number is not a date")
		}
		t, err := dateparse.ParseIn(text, time.UTC)
		if err != nil {
			return err
		}
		parsed = t
		return nil
	}))
	return parsed, err
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func boolOrFalse(value *bool) bool {
	return value != nil && *value
}

func joinChoices(choices []interface{}) string {
	parts := make([]string, len(choices))
	for i, choice := range choices {
		parts[i] = fmt.Sprint(choice)
	}
	return strings.Join(parts, ", ")
}
