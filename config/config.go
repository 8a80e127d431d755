package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration loaded from environment
// variables, plus the per-source scraper settings loaded from YAML.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RequestTimeout time.Duration

	MailerAPIURL    string
	MailerAPIKey    string
	MailerFromName  string
	MailerFromEmail string

	HTTPAddr      string
	RawExportPath string
	Debug         bool

	// Retention policies, in days.
	ArchiveAfterDays      int
	InactiveAfterDays     int
	RejectedRetentionDays int
	MatchingWindowDays    int

	Scrapers ScrapersConfig
}

// ScrapersConfig carries per-source settings and the category → scraper
// grouping, loaded from an optional YAML file.
type ScrapersConfig struct {
	Sources    map[string]SourceConfig `yaml:"sources"`
	Categories map[string][]string     `yaml:"categories"`
}

// SourceConfig is one scraper's tunables.
type SourceConfig struct {
	BaseURL     string `yaml:"base_url"`
	UserAgent   string `yaml:"user_agent"`
	MaxPages    int    `yaml:"max_pages"`
	RateLimitMs int    `yaml:"rate_limit_ms"`
	APIKey      string `yaml:"api_key"`
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the .env file, falls back to system env vars, and merges the
// optional scrapers YAML file on top of built-in source defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "immo"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "immo123"),
		PostgresDB:       getEnv("POSTGRES_DB", "immo_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		MailerAPIURL:    getEnv("MAILER_API_URL", "https://api.brevo.com/v3/smtp/email"),
		MailerAPIKey:    getEnv("MAILER_API_KEY", ""),
		MailerFromName:  getEnv("MAILER_FROM_NAME", "ImmoProspect"),
		MailerFromEmail: getEnv("MAILER_FROM_EMAIL", "alertes@immoprospect.fr"),

		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		RawExportPath: getEnv("RAW_EXPORT_PATH", "./output/raw_items.csv"),
		Debug:         getEnv("DEBUG", "") == "1",

		ArchiveAfterDays:      getEnvInt("ARCHIVE_AFTER_DAYS", 90),
		InactiveAfterDays:     getEnvInt("INACTIVE_AFTER_DAYS", 180),
		RejectedRetentionDays: getEnvInt("REJECTED_RETENTION_DAYS", 30),
		MatchingWindowDays:    getEnvInt("MATCHING_WINDOW_DAYS", 30),

		Scrapers: defaultScrapers(),
	}

	if path := getEnv("SCRAPERS_FILE", "configs/scrapers.yaml"); path != "" {
		if err := cfg.loadScrapersFile(path); err != nil {
			log.Printf("[config] scrapers file %s not loaded: %v (using defaults)", path, err)
		}
	}

	return cfg
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Source returns the settings for one scraper, falling back to the defaults
// when the source is not declared in the YAML file.
func (c *Config) Source(name string) SourceConfig {
	if sc, ok := c.Scrapers.Sources[name]; ok {
		if sc.UserAgent == "" {
			sc.UserAgent = defaultUserAgent
		}
		return sc
	}
	return SourceConfig{UserAgent: defaultUserAgent, MaxPages: 3, RateLimitMs: c.RateLimitMs}
}

func (c *Config) loadScrapersFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file ScrapersConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}

	for name, sc := range file.Sources {
		base := c.Scrapers.Sources[name]
		if sc.BaseURL != "" {
			base.BaseURL = sc.BaseURL
		}
		if sc.UserAgent != "" {
			base.UserAgent = sc.UserAgent
		}
		if sc.MaxPages > 0 {
			base.MaxPages = sc.MaxPages
		}
		if sc.RateLimitMs > 0 {
			base.RateLimitMs = sc.RateLimitMs
		}
		if sc.APIKey != "" {
			base.APIKey = sc.APIKey
		}
		c.Scrapers.Sources[name] = base
	}
	for name, ids := range file.Categories {
		c.Scrapers.Categories[name] = ids
	}
	return nil
}

func defaultScrapers() ScrapersConfig {
	return ScrapersConfig{
		Sources: map[string]SourceConfig{
			"leboncoin": {
				BaseURL:     "https://www.leboncoin.fr",
				UserAgent:   defaultUserAgent,
				MaxPages:    3,
				RateLimitMs: 2000,
			},
			"seloger": {
				BaseURL:     "https://www.seloger.com",
				UserAgent:   defaultUserAgent,
				MaxPages:    2,
				RateLimitMs: 2500,
			},
			"moteurimmo": {
				BaseURL:     "https://api.moteurimmo.fr/v2",
				UserAgent:   defaultUserAgent,
				MaxPages:    1,
				RateLimitMs: 0,
				APIKey:      os.Getenv("MOTEURIMMO_API_KEY"),
			},
		},
		Categories: map[string][]string{
			"portails":    {"leboncoin", "seloger"},
			"partenaires": {"moteurimmo"},
			"tous":        {"leboncoin", "seloger", "moteurimmo"},
		},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
