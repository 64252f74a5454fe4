package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Summarizer backends.
const (
	BackendExtractive = "extractive"
	BackendGenerative = "generative"
)

// Inference providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config holds all application configuration. It is built once by Load and
// passed to constructors; nothing re-reads it mid-operation.
type Config struct {
	App        App        `mapstructure:"app"`
	Database   Database   `mapstructure:"database"`
	Summarizer Summarizer `mapstructure:"summarizer"`
	AI         AI         `mapstructure:"ai"`
	Feeds      Feeds      `mapstructure:"feeds"`
	Extract    Extract    `mapstructure:"extract"`
	Redis      Redis      `mapstructure:"redis"`
	Email      Email      `mapstructure:"email"`
	Server     Server     `mapstructure:"server"`
	Logging    Logging    `mapstructure:"logging"`
	Seed       Seed       `mapstructure:"seed"`
	Planner    Planner    `mapstructure:"planner"`
}

// App holds general application configuration
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, defaulting to local time.
func (a App) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Database holds the storage connection settings
type Database struct {
	Driver string `mapstructure:"driver"` // sqlite3 or postgres
	DSN    string `mapstructure:"dsn"`
}

// Summarizer selects the summarization backend and bullet bounds
type Summarizer struct {
	Backend    string        `mapstructure:"backend"`
	MinBullets int           `mapstructure:"min_bullets"`
	MaxBullets int           `mapstructure:"max_bullets"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AI holds inference collaborator configuration
type AI struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OpenAIConfig holds configuration for OpenAI-compatible endpoints
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Feeds holds news source configuration
type Feeds struct {
	Sources         []string      `mapstructure:"sources"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxItemsPerFeed int           `mapstructure:"max_items_per_feed"`
}

// Extract holds article extraction settings
type Extract struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Redis holds the optional capsule cache settings. Empty Addr disables it.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Email holds notification settings
type Email struct {
	SMTP        SMTPConfig `mapstructure:"smtp"`
	FromAddress string     `mapstructure:"from_address"`
	Subscribers []string   `mapstructure:"subscribers"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Seed points at syllabus and question archive seed files
type Seed struct {
	SyllabusPath string `mapstructure:"syllabus_path"`
	PyqPath      string `mapstructure:"pyq_path"`
}

// Planner holds study plan defaults
type Planner struct {
	TargetYear int `mapstructure:"target_year"`
}

// Load reads configuration from defaults, an optional config file, .env and the environment.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".civicbriefs")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcessConfig(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	postProcessConfig(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".civicbriefs")
	v.SetDefault("app.timezone", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")

	v.SetDefault("summarizer.backend", BackendExtractive)
	v.SetDefault("summarizer.min_bullets", 4)
	v.SetDefault("summarizer.max_bullets", 8)
	v.SetDefault("summarizer.timeout", "30s")

	v.SetDefault("ai.provider", ProviderNone)
	v.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")

	v.SetDefault("feeds.sources", []string{})
	v.SetDefault("feeds.user_agent", "CivicBriefs/1.0")
	v.SetDefault("feeds.timeout", "30s")
	v.SetDefault("feeds.max_items_per_feed", 20)

	v.SetDefault("extract.user_agent", "Mozilla/5.0 (CivicBriefs)")
	v.SetDefault("extract.timeout", "10s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.subscribers", []string{})

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:8000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("seed.syllabus_path", "data/seed/syllabus.yaml")
	v.SetDefault("seed.pyq_path", "data/seed/pyq.yaml")

	v.SetDefault("planner.target_year", 0)
}

// bindEnvironmentVariables maps conventional environment names onto config keys
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "database.dsn", []string{"DATABASE_URL"})
	bindEnvKeys(v, "summarizer.backend", []string{"SUMMARIZER_BACKEND"})
	bindEnvKeys(v, "ai.provider", []string{"AI_PROVIDER", "INFERENCE_PROVIDER"})
	bindEnvKeys(v, "ai.gemini.api_key", []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"})
	bindEnvKeys(v, "ai.openai.api_key", []string{"OPENAI_API_KEY", "HF_TOKEN"})
	bindEnvKeys(v, "ai.openai.model", []string{"OPENAI_MODEL"})
	bindEnvKeys(v, "ai.openai.base_url", []string{"OPENAI_BASE_URL", "INFERENCE_ENDPOINT"})
	bindEnvKeys(v, "feeds.sources", []string{"NEWS_FEEDS"})
	bindEnvKeys(v, "redis.addr", []string{"REDIS_ADDR", "REDIS_URL"})
	bindEnvKeys(v, "email.smtp.host", []string{"SMTP_HOST", "SMTP_SERVER"})
	bindEnvKeys(v, "email.smtp.username", []string{"SMTP_USERNAME"})
	bindEnvKeys(v, "email.smtp.password", []string{"SMTP_PASSWORD"})
	bindEnvKeys(v, "logging.level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, key string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(key, value)
			return
		}
	}
}

// postProcessConfig normalises values that may arrive as comma-joined strings or relative paths
func postProcessConfig(cfg *Config) {
	cfg.Feeds.Sources = splitList(cfg.Feeds.Sources)
	cfg.Email.Subscribers = splitList(cfg.Email.Subscribers)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	cfg.Summarizer.Backend = strings.ToLower(strings.TrimSpace(cfg.Summarizer.Backend))
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.App.DataDir != "" {
		cfg.App.DataDir = expandPath(cfg.App.DataDir)
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite3" {
		cfg.Database.DSN = filepath.Join(cfg.App.DataDir, "civicbriefs.db")
	}
	if cfg.Summarizer.MinBullets <= 0 {
		cfg.Summarizer.MinBullets = 4
	}
	if cfg.Summarizer.MaxBullets < cfg.Summarizer.MinBullets {
		cfg.Summarizer.MaxBullets = cfg.Summarizer.MinBullets
	}
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the selected backends are usable
func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.Summarizer.Backend {
	case BackendExtractive, BackendGenerative:
	default:
		errors = append(errors, fmt.Sprintf("unknown summarizer backend %q (supported: extractive, generative)", cfg.Summarizer.Backend))
	}

	switch cfg.AI.Provider {
	case ProviderNone:
	case ProviderGemini:
		if cfg.AI.Gemini.APIKey == "" {
			errors = append(errors, "Gemini provider requires an API key. Set GEMINI_API_KEY or ai.gemini.api_key")
		}
	case ProviderOpenAI:
		if cfg.AI.OpenAI.APIKey == "" {
			errors = append(errors, "OpenAI provider requires an API key. Set OPENAI_API_KEY or ai.openai.api_key")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown ai provider %q (supported: gemini, openai, none)", cfg.AI.Provider))
	}

	switch cfg.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("unknown database driver %q (supported: sqlite3, postgres)", cfg.Database.Driver))
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		errors = append(errors, "postgres requires a connection string. Set DATABASE_URL or database.dsn")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
