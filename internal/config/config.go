package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Env            string
	AppSecret      string
	TokenExpiry    time.Duration
	Port           string
	DataDir        string
	MediaDir       string
	ThumbnailDir   string
	MaxUploadBytes int64
	// CORS 策略：精确匹配列表、正则模式列表、是否放行内网来源
	AllowedOrigins      []string
	AllowedOriginExprs  []string
	AllowPrivateNetwork bool
}

// Load 加载配置
func Load() *Config {
	expiryHours, _ := strconv.Atoi(getEnv("TOKEN_EXPIRY_HOURS", "168"))
	maxUploadMB, _ := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "5120"), 10, 64)

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:            getEnv("APP_ENV", "development"),
		AppSecret:      appSecret,
		TokenExpiry:    time.Duration(expiryHours) * time.Hour,
		Port:           getEnv("PORT", "3001"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		MediaDir:       getEnv("MEDIA_DIR", "./videos"),
		ThumbnailDir:   getEnv("THUMBNAIL_DIR", "./thumbnails"),
		MaxUploadBytes: maxUploadMB << 20,
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS",
			"http://localhost:5173,http://127.0.0.1:5173"),
		AllowedOriginExprs: splitEnv("ALLOWED_ORIGIN_PATTERNS",
			`^https?://localhost:5173$`),
		AllowPrivateNetwork: getEnv("ALLOW_PRIVATE_NETWORK", "true") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitEnv 读取逗号分隔的环境变量并去除空项
func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
