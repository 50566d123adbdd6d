package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Models 列出需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&Blog{},
		&MailServer{},
		&MailCampaign{},
		&Mail{},
		&MailQueueEntry{},
		&MailRetry{},
		&MailEvent{},
		&MailServerMetric{},
		&MailTemplate{},
		&MailBounce{},
		&MailSuppression{},
	}
}

// Open 打开 sqlite 数据库并开启错误翻译，使唯一约束冲突以 gorm.ErrDuplicatedKey 返回。
func Open(dsn string, silent bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 data/blog.db。
func Init(databasePath string) error {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "data/blog.db"
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	gdb, err := Open(path, false)
	if err != nil {
		return err
	}

	if err := Migrate(gdb); err != nil {
		return err
	}

	DB = gdb
	return nil
}

// Migrate 为所有模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

// MailServerSeed 描述一台需要预置的发信服务器。
type MailServerSeed struct {
	ServerID     string
	Name         string
	Hostname     string
	DailyLimit   int
	MonthlyLimit int
	Priority     int
}

// SeedMailServers 按名称写入发信服务器；已存在时只更新额度与主机，不重置计数。
func SeedMailServers(gdb *gorm.DB, seeds []MailServerSeed, now time.Time) error {
	for _, seed := range seeds {
		server := MailServer{
			ServerID:         seed.ServerID,
			Name:             seed.Name,
			Hostname:         seed.Hostname,
			DailyLimit:       seed.DailyLimit,
			MonthlyLimit:     seed.MonthlyLimit,
			Priority:         seed.Priority,
			Status:           MailServerActive,
			LastDailyReset:   now.UTC(),
			LastMonthlyReset: now.UTC(),
		}
		if err := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "server_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "hostname", "daily_limit", "monthly_limit", "priority", "updated_at"}),
		}).Create(&server).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
