package db

import "gorm.io/datatypes"

// Blog 定义了博客文章模型。
// 时间字段保存为 UTC ISO-8601 字符串（毫秒精度），列表字段保存为 JSON 数组文本。
type Blog struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	BlogID string `gorm:"column:blog_id;size:32;not null;uniqueIndex" json:"blogId"`

	Title    string         `gorm:"size:500;not null" json:"title"`
	Slug     string         `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Content  string         `gorm:"type:text;not null" json:"content"`
	Excerpt  *string        `gorm:"size:1000" json:"excerpt"`
	Category string         `gorm:"size:255;not null;index" json:"category"`
	Tags     datatypes.JSON `json:"tags"`

	AuthorName         string  `gorm:"size:255;not null" json:"authorName"`
	AuthorID           *string `gorm:"column:author_id;size:255;index" json:"authorId"`
	AuthorBio          *string `gorm:"type:text" json:"authorBio"`
	AuthorProfileImage *string `json:"authorProfileImage"`
	AuthorTwitter      *string `json:"authorTwitter"`
	AuthorLinkedIn     *string `gorm:"column:author_linkedin" json:"authorLinkedIn"`

	FeaturedImage        *string `json:"featuredImage"`
	FeaturedImageAltText *string `json:"featuredImageAltText"`
	FeaturedImageWidth   *int    `json:"featuredImageWidth"`
	FeaturedImageHeight  *int    `json:"featuredImageHeight"`

	IsFeatured  bool `gorm:"not null;default:false;index" json:"isFeatured"`
	IsPublished bool `gorm:"not null;default:false;index" json:"isPublished"`
	IsApproved  bool `gorm:"not null;default:false" json:"isApproved"`

	// 计数器由浏览、评论等外部模块维护，创建时一律为 0。
	Views     int `gorm:"not null;default:0" json:"views"`
	Comments  int `gorm:"not null;default:0" json:"comments"`
	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`
	Shares    int `gorm:"not null;default:0" json:"shares"`

	SEOTitle       *string `gorm:"column:seo_title" json:"seoTitle"`
	SEODescription *string `gorm:"column:seo_description" json:"seoDescription"`

	PostType        string         `gorm:"size:20;not null;default:regular" json:"postType"`
	RelatedBlogs    datatypes.JSON `json:"relatedBlogs"`
	Status          string         `gorm:"size:20;not null;default:draft;index" json:"status"`
	ExternalURL     *string        `gorm:"column:external_url" json:"externalUrl"`
	Language        string         `gorm:"size:8;not null;default:en" json:"language"`
	TranslatedBlogs datatypes.JSON `json:"translatedBlogs"`

	PublishedAt string `gorm:"size:32;index" json:"publishedAt"`
	CreatedAt   string `gorm:"size:32;not null;index" json:"createdAt"`
	UpdatedAt   string `gorm:"size:32;not null" json:"updatedAt"`
}

// TableName 指定自定义表名。
func (Blog) TableName() string {
	return "blogs"
}
