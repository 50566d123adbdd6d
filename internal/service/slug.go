package service

import (
	"regexp"
	"strings"
)

const (
	MaxSlugLength = 200
	// maxSlugRetries bounds the suffix retries after the first check, so a
	// slug is checked at most maxSlugRetries+1 times.
	maxSlugRetries = 10
)

var (
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugStripPattern = regexp.MustCompile(`[^a-z0-9\s\v\p{Z}\x{FEFF}-]`)
	slugSpacePattern = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	slugDashPattern  = regexp.MustCompile(`-+`)
)

// ValidSlug reports whether slug is lowercase alphanumeric segments joined by
// single hyphens and at most MaxSlugLength characters long.
func ValidSlug(slug string) bool {
	return len(slug) <= MaxSlugLength && slugPattern.MatchString(slug)
}

// DeriveSlug builds a slug from a title. It returns "" when the title has no
// usable characters.
func DeriveSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = slugSpacePattern.ReplaceAllString(slug, "-")
	slug = slugDashPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

type slugState int

const (
	slugChecking slugState = iota
	slugColliding
	slugResolved
	slugExhausted
)

func (s slugState) String() string {
	switch s {
	case slugChecking:
		return "checking"
	case slugColliding:
		return "colliding"
	case slugResolved:
		return "resolved"
	case slugExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
