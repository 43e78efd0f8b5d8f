package platform

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is every setting the server reads from the environment.
type Config struct {
	Port       string
	CORSOrigin string
	LogPath    string

	SQL SQLConfig
	LLM LLMConfig

	AccessSecret     string
	SystemPromptFile string
	GuestPlanID      string

	PurgeSchedule  string
	PurgeRetention time.Duration
}

// SQLConfig 数据库连接配置
type SQLConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Path     string
}

type LLMConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LoadConfig loads .env if present and reads the environment.
func LoadConfig(envFile string) *Config {
	if err := godotenv.Load(envFile); err != nil {
		Logger.Warnf("failed to load the env file %s, %s", envFile, err)
	}

	return &Config{
		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost"),
		LogPath:    getEnv("LOG_PATH", "./log"),
		SQL: SQLConfig{
			Driver:   strings.ToLower(getEnv("SQL_DRIVER", DriverMySQL)),
			Host:     getEnv("SQL_HOST", "127.0.0.1"),
			Port:     getEnv("SQL_PORT", "3306"),
			User:     getEnv("SQL_USER", "root"),
			Password: os.Getenv("SQL_PASSWORD"),
			DBName:   getEnv("SQL_DBNAME", "branchchat"),
			Path:     getEnv("SQL_PATH", "branchchat.db"),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    getEnv("LLM_MODEL", "gemini-2.0-flash"),
			Timeout:  getDuration("LLM_TIMEOUT", 60*time.Second),
		},
		AccessSecret:     os.Getenv("ACCESS_SECRET"),
		SystemPromptFile: os.Getenv("SYSTEM_PROMPT_FILE"),
		GuestPlanID:      getEnv("GUEST_PLAN_ID", "guest"),
		PurgeSchedule:    getEnv("PURGE_SCHEDULE", "30 3 * * *"),
		PurgeRetention:   getDuration("PURGE_RETENTION", 30*24*time.Hour),
	}
}

// SystemPrompt returns the trimmed contents of the system prompt file, or ""
// when none is configured or it cannot be read.
func (c *Config) SystemPrompt() string {
	if c.SystemPromptFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		Logger.Warnf("failed to read system prompt %s, %s", c.SystemPromptFile, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func getEnv(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		Logger.Warnf("invalid %s %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
