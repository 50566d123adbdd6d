package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/edublog/internal/db"
	"github.com/edublog/internal/logger"
	"github.com/edublog/internal/service"
	"gorm.io/gorm"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(fmt.Sprintf("file:seed-%d?mode=memory&cache=shared", time.Now().UnixNano()), true)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestCreateTestPostsIsIdempotent(t *testing.T) {
	gdb := setupSeedTestDB(t)
	svc := service.NewBlogService(gdb, logger.Discard())
	posts := samplePosts()

	created, err := createTestPosts(context.Background(), svc, posts)
	if err != nil {
		t.Fatalf("seed posts: %v", err)
	}
	if created != len(posts) {
		t.Fatalf("expected %d posts, got %d", len(posts), created)
	}

	again, err := createTestPosts(context.Background(), svc, posts)
	if err != nil {
		t.Fatalf("reseed posts: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected reseed to skip existing posts, created %d", again)
	}

	var featuredPublished int64
	gdb.Model(&db.Blog{}).Where("is_featured = ? AND status = ?", true, service.StatusPublished).Count(&featuredPublished)
	if featuredPublished < 2 {
		t.Fatalf("expected at least two featured published posts, got %d", featuredPublished)
	}

	video, err := svc.GetBySlug(context.Background(), "park-tour-the-treetop-trail")
	if err != nil {
		t.Fatalf("video post missing: %v", err)
	}
	if video.PostType != service.PostTypeVideo || video.ExternalURL == nil {
		t.Fatalf("unexpected video post: %+v", video)
	}
}

func TestCreateMailTemplates(t *testing.T) {
	gdb := setupSeedTestDB(t)

	created, err := createMailTemplates(gdb)
	if err != nil {
		t.Fatalf("seed templates: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 templates, got %d", created)
	}

	again, err := createMailTemplates(gdb)
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent seeding, got %d, %v", again, err)
	}
}
