// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 服务端配置（全部来自环境变量，可选 .env 文件）
type Config struct {
	DatabaseURL string
	JWTSecret   string
	Port        string

	AdminUsername string
	AdminPassword string

	StorageDir    string
	PublicBaseURL string

	SubmissionTimeout time.Duration
	StoreTimeout      time.Duration
	PollInterval      time.Duration

	CORSOrigins []string
}

// ConfigError 配置错误
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Load 加载 .env（若存在）并读取环境变量
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[Config] 已加载 .env 文件")
	}

	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		Port:              getEnv("SERVER_PORT", "8080"),
		AdminUsername:     getEnv("ADMIN_USERNAME", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		StorageDir:        getEnv("STORAGE_DIR", "./uploads"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		SubmissionTimeout: getEnvDuration("SUBMISSION_TIMEOUT", 60*time.Second),
		StoreTimeout:      getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		PollInterval:      getEnvDuration("POLL_INTERVAL", 10*time.Second),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return &ConfigError{Field: "DATABASE_URL", Message: "not set"}
	}
	if c.JWTSecret == "" {
		return &ConfigError{Field: "JWT_SECRET", Message: "not set"}
	}
	if c.SubmissionTimeout <= 0 {
		return &ConfigError{Field: "SUBMISSION_TIMEOUT", Message: "must be positive"}
	}
	if c.StoreTimeout <= 0 {
		return &ConfigError{Field: "STORE_TIMEOUT", Message: "must be positive"}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Field: "POLL_INTERVAL", Message: "must be positive"}
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return &ConfigError{Field: "ADMIN_USERNAME", Message: "ADMIN_USERNAME and ADMIN_PASSWORD must be set together"}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] %s=%q 无法解析，使用默认值 %s", key, v, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
