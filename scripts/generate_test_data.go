package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edublog/internal/config"
	"github.com/edublog/internal/db"
	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/service"
)

// 测试数据生成器
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	if err := db.SeedMailServers(db.DB, service.MailServerSeeds(cfg.Mail), time.Now().UTC()); err != nil {
		log.Fatal("发信服务器初始化失败:", err)
	}
	fmt.Println("✅ 发信服务器已就绪")

	templates, err := createMailTemplates(db.DB)
	if err != nil {
		log.Fatal("创建邮件模板失败:", err)
	}
	fmt.Printf("✅ 新建邮件模板 %d 个\n", templates)

	svc := service.NewBlogService(db.DB, logger.Default())
	created, err := createTestPosts(context.Background(), svc, samplePosts())
	if err != nil {
		log.Fatal("创建测试文章失败:", err)
	}
	fmt.Printf("✅ 新建测试文章 %d 篇\n", created)

	fmt.Println("测试数据生成完成！")
}

type samplePost struct {
	title       string
	content     string
	excerpt     string
	category    string
	tags        []string
	authorName  string
	authorID    string
	coverURL    string
	coverWidth  int
	coverHeight int
	featured    bool
	published   bool
	postType    string
	externalURL string
}

func samplePosts() []samplePost {
	return []samplePost{
		{
			title:       "Getting Started with Outdoor Learning",
			content:     "## Why outdoors?\n\nChildren learn best when they can **touch, move and explore**. This guide covers the first week of an outdoor programme.",
			excerpt:     "A practical first week plan for outdoor learning.",
			category:    "education",
			tags:        []string{"outdoor", "early-years"},
			authorName:  "Maya Chen",
			authorID:    "maya@edventurepark.com",
			coverURL:    "https://images.unsplash.com/photo-1503676260728-1c00da094a0b?auto=format&fit=crop&w=1600&q=80",
			coverWidth:  1600,
			coverHeight: 1067,
			featured:    true,
			published:   true,
		},
		{
			title:      "Ten Rainy Day Activities",
			content:    "1. Puddle science\n2. Leaf printing\n3. Cloud diaries\n\n| Activity | Age |\n|---|---|\n| Puddle science | 4+ |",
			category:   "activities",
			tags:       []string{"weather", "activities"},
			authorName: "Sam Okafor",
			published:  true,
		},
		{
			title:       "Park Tour: The Treetop Trail",
			content:     "A walk through the new treetop trail, filmed on opening day.",
			category:    "park",
			authorName:  "Sam Okafor",
			postType:    service.PostTypeVideo,
			externalURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			featured:    true,
			published:   true,
		},
		{
			title:      "Planning a School Visit",
			content:    "Draft checklist for teachers booking a group visit.",
			category:   "visits",
			tags:       []string{"schools"},
			authorName: "Maya Chen",
			authorID:   "maya@edventurepark.com",
		},
	}
}

// createTestPosts 通过 BlogService 创建示例文章，已存在同名 slug 的跳过。
func createTestPosts(ctx context.Context, svc *service.BlogService, posts []samplePost) (int, error) {
	created := 0
	for _, post := range posts {
		if _, err := svc.GetBySlug(ctx, service.DeriveSlug(post.title)); err == nil {
			fmt.Printf("文章 %q 已存在，跳过创建\n", post.title)
			continue
		} else if !errors.Is(err, service.ErrBlogNotFound) {
			return created, err
		}

		if _, err := svc.Create(ctx, post.input()); err != nil {
			return created, fmt.Errorf("%s: %w", post.title, err)
		}
		created++
	}
	return created, nil
}

func (p samplePost) input() service.BlogInput {
	items := make([]interface{}, 0, len(p.tags))
	for _, tag := range p.tags {
		items = append(items, tag)
	}

	input := service.BlogInput{
		Title:         p.title,
		Content:       p.content,
		Excerpt:       p.excerpt,
		Category:      p.category,
		AuthorName:    p.authorName,
		AuthorID:      p.authorID,
		FeaturedImage: p.coverURL,
		PostType:      p.postType,
		ExternalURL:   p.externalURL,
		IsFeatured:    &p.featured,
		IsPublished:   &p.published,
	}
	if len(items) > 0 {
		input.Tags = service.ItemList(items...)
	}
	if p.coverWidth > 0 && p.coverHeight > 0 {
		width := json.Number(fmt.Sprint(p.coverWidth))
		height := json.Number(fmt.Sprint(p.coverHeight))
		input.FeaturedImageWidth = &width
		input.FeaturedImageHeight = &height
	}
	if p.published {
		input.Status = service.StatusPublished
	}
	return input
}

// createMailTemplates 写入发信接口可直接引用的模板。
func createMailTemplates(gdb *gorm.DB) (int, error) {
	welcomeHTML := "<p>Hi {{name}},</p><p>Welcome to Edventure Park!</p>"
	welcomeText := "Hi {{name}}, welcome to Edventure Park!"
	postHTML := "<p>New on the blog: <a href=\"{{url}}\">{{title}}</a></p>"
	category := "transactional"
	newsletter := "newsletter"

	templates := []db.MailTemplate{
		{
			TemplateID: "TPL-WELCOME",
			Name:       "Welcome",
			Subject:    "Welcome, {{name}}",
			BodyHTML:   &welcomeHTML,
			BodyText:   &welcomeText,
			Variables:  datatypes.JSON(`["name"]`),
			Category:   &category,
			IsActive:   true,
			CreatedBy:  "seed",
		},
		{
			TemplateID: "TPL-NEW-POST",
			Name:       "New blog post",
			Subject:    "New post: {{title}}",
			BodyHTML:   &postHTML,
			Variables:  datatypes.JSON(`["title","url"]`),
			Category:   &newsletter,
			IsActive:   true,
			CreatedBy:  "seed",
		},
	}

	created := 0
	for i := range templates {
		var count int64
		if err := gdb.Model(&db.MailTemplate{}).Where("template_id = ?", templates[i].TemplateID).Count(&count).Error; err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		if err := gdb.Create(&templates[i]).Error; err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
