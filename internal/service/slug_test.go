package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSlug(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World!", "hello-world"},
		{"  Go   1.22 --- 发布说明  ", "go-122"},
		{"Multiple---Dashes and\tTabs", "multiple-dashes-and-tabs"},
		{"--Leading and trailing--", "leading-and-trailing"},
		{"!!!", ""},
		{"中文标题", ""},
		{"Non breaking space", "non-breaking-space"},
		{"Hello\u2028World", "hello-world"},
		{"Para\u2029graph\ufeffmark", "para-graph-mark"},
		{"Vertical\vtab", "vertical-tab"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveSlug(tc.title), "title %q", tc.title)
	}
}

func TestDeriveSlugTruncatesWithoutTrailingHyphen(t *testing.T) {
	title := strings.Repeat("a", 199) + " " + strings.Repeat("b", 50)
	slug := DeriveSlug(title)

	assert.Equal(t, strings.Repeat("a", 199), slug)
	assert.True(t, ValidSlug(slug))
}

func TestDerivedSlugsAreValid(t *testing.T) {
	titles := []string{
		"Hello World!",
		"A  B  C",
		"Ünïcödé Title 2024",
		strings.Repeat("word ", 80),
		"C++ & Go: a comparison",
	}
	for _, title := range titles {
		slug := DeriveSlug(title)
		if slug == "" {
			continue
		}
		assert.True(t, ValidSlug(slug), "derived %q from %q", slug, title)
		assert.LessOrEqual(t, len(slug), MaxSlugLength)
	}
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("hello-world"))
	assert.True(t, ValidSlug("a1-b2-c3"))
	assert.True(t, ValidSlug(strings.Repeat("x", MaxSlugLength)))

	assert.False(t, ValidSlug(""))
	assert.False(t, ValidSlug("Hello World"))
	assert.False(t, ValidSlug("-leading"))
	assert.False(t, ValidSlug("trailing-"))
	assert.False(t, ValidSlug("double--hyphen"))
	assert.False(t, ValidSlug(strings.Repeat("x", MaxSlugLength+1)))
}

func TestSlugStateString(t *testing.T) {
	assert.Equal(t, "checking", slugChecking.String())
	assert.Equal(t, "colliding", slugColliding.String())
	assert.Equal(t, "resolved", slugResolved.String())
	assert.Equal(t, "exhausted", slugExhausted.String())
}
