package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr   string
	Port         string
	DatabasePath string
	GinMode      string
	LogLevel     string
	LogFormat    string

	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Mail MailConfig
}

// MailConfig groups the settings of the two outbound mail servers.
type MailConfig struct {
	FromAddress string

	ResendAPIKey  string
	ResendBaseURL string

	MailtrapAPIToken string
	MailtrapBaseURL  string

	Server1DailyLimit   int
	Server1MonthlyLimit int
	Server2DailyLimit   int
	Server2MonthlyLimit int
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 当前目录存在 .env 时会先加载它，已设置的环境变量优先。
func Load() AppConfig {
	_ = godotenv.Load()

	port := envString("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:   listenAddr,
		Port:         port,
		DatabasePath: envString("DATABASE_PATH", "data/blog.db"),
		GinMode:      envString("GIN_MODE", "release"),
		LogLevel:     strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(envString("LOG_FORMAT", "json")),

		AllowedOrigins:    envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "https://blogs.edventurepark.com"}),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		Mail: MailConfig{
			FromAddress:         envString("MAIL_FROM_ADDRESS", "no-reply@edventurepark.com"),
			ResendAPIKey:        envString("RESEND_API_KEY", ""),
			ResendBaseURL:       envString("RESEND_BASE_URL", "https://api.resend.com"),
			MailtrapAPIToken:    envString("MAILTRAP_API_TOKEN", ""),
			MailtrapBaseURL:     envString("MAILTRAP_BASE_URL", "https://send.api.mailtrap.io"),
			Server1DailyLimit:   envInt("MAIL_SERVER_1_DAILY_LIMIT", 100),
			Server1MonthlyLimit: envInt("MAIL_SERVER_1_MONTHLY_LIMIT", 3000),
			Server2DailyLimit:   envInt("MAIL_SERVER_2_DAILY_LIMIT", 1000),
			Server2MonthlyLimit: envInt("MAIL_SERVER_2_MONTHLY_LIMIT", 4000),
		},
	}
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
