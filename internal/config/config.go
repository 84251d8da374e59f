package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Scraper   ScraperConfig
	Analysis  AnalysisConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds Postgres connection parameters.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	MigrationsDir      string
}

// OpenAIConfig holds model invocation parameters.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// ScraperConfig holds extraction and scheduling knobs. MinWordCount and
// LockTTL are deliberately configuration rather than constants; the observed
// defaults are 80 words and 10 minutes.
type ScraperConfig struct {
	MinWordCount         int
	LockTTL              time.Duration
	Concurrency          int
	ScrapeDelay          time.Duration
	MaxProjectsPerRun    int
	MaxSourcesPerProject int
	RequestTimeout       time.Duration
	SelectorTimeout      time.Duration
	ScrollCount          int
	ScrollDelay          time.Duration
	BrowserBinPath       string
	Hosted               bool // container/hosted runtime; launches Chrome without a sandbox
}

// AnalysisConfig holds lookback windows for the two analysis stages. The
// momentum window is intentionally wider than detection's for trend context.
type AnalysisConfig struct {
	DetectionWindow  time.Duration
	MomentumWindow   time.Duration
	MinSignalAge     time.Duration
	MaxIngestions    int
	MaxContentLength int
}

// SchedulerConfig drives the cron trigger.
type SchedulerConfig struct {
	Enabled  bool
	CronSpec string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 4000
	defaultAITimeout   = 120 * time.Second

	defaultMinWordCount         = 80
	defaultLockTTL              = 10 * time.Minute
	defaultConcurrency          = 3
	defaultScrapeDelay          = 2 * time.Second
	defaultMaxProjectsPerRun    = 5
	defaultMaxSourcesPerProject = 20
	defaultRequestTimeout       = 30 * time.Second
	defaultSelectorTimeout      = 8 * time.Second
	defaultScrollCount          = 3
	defaultScrollDelay          = 1500 * time.Millisecond

	defaultDetectionWindow  = 24 * time.Hour
	defaultMomentumWindow   = 48 * time.Hour
	defaultMinSignalAge     = 24 * time.Hour
	defaultMaxIngestions    = 50
	defaultMaxContentLength = 4000

	defaultCronSpec = "*/15 * * * *"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. A .env file in the working directory is merged in
// first when present.
func Load() (Config, error) {
	// Missing .env is the normal case in hosted environments.
	_ = godotenv.Load()

	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
			MigrationsDir:      getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultModel),
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
			Timeout:     defaultAITimeout,
		},
		Scraper: ScraperConfig{
			MinWordCount:         defaultMinWordCount,
			LockTTL:              defaultLockTTL,
			Concurrency:          defaultConcurrency,
			ScrapeDelay:          defaultScrapeDelay,
			MaxProjectsPerRun:    defaultMaxProjectsPerRun,
			MaxSourcesPerProject: defaultMaxSourcesPerProject,
			RequestTimeout:       defaultRequestTimeout,
			SelectorTimeout:      defaultSelectorTimeout,
			ScrollCount:          defaultScrollCount,
			ScrollDelay:          defaultScrollDelay,
			BrowserBinPath:       os.Getenv("BROWSER_BIN_PATH"),
			Hosted:               os.Getenv("HOSTED") == "true" || os.Getenv("K_SERVICE") != "",
		},
		Analysis: AnalysisConfig{
			DetectionWindow:  defaultDetectionWindow,
			MomentumWindow:   defaultMomentumWindow,
			MinSignalAge:     defaultMinSignalAge,
			MaxIngestions:    defaultMaxIngestions,
			MaxContentLength: defaultMaxContentLength,
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnv("SCHEDULER_ENABLED", "true") == "true",
			CronSpec: getEnv("SCHEDULER_CRON", defaultCronSpec),
		},
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
		}
		cfg.OpenAI.Temperature = float32(temp)
	}

	if v := os.Getenv("SCRAPER_MIN_WORD_COUNT"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_MIN_WORD_COUNT: %w", err)
		}
		cfg.Scraper.MinWordCount = n
	}

	if v := os.Getenv("SCRAPER_LOCK_TTL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_LOCK_TTL_SECONDS: %w", err)
		}
		cfg.Scraper.LockTTL = d
	}

	if v := os.Getenv("SCRAPER_CONCURRENCY"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_CONCURRENCY: %w", err)
		}
		cfg.Scraper.Concurrency = n
	}

	if v := os.Getenv("SCRAPER_DELAY_MS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_DELAY_MS: %w", err)
		}
		cfg.Scraper.ScrapeDelay = time.Duration(n) * time.Millisecond
	}

	if v := os.Getenv("SCRAPER_MAX_PROJECTS_PER_RUN"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_MAX_PROJECTS_PER_RUN: %w", err)
		}
		cfg.Scraper.MaxProjectsPerRun = n
	}

	if v := os.Getenv("SCRAPER_MAX_SOURCES_PER_PROJECT"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCRAPER_MAX_SOURCES_PER_PROJECT: %w", err)
		}
		cfg.Scraper.MaxSourcesPerProject = n
	}

	if v := os.Getenv("ANALYSIS_DETECTION_HOURS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANALYSIS_DETECTION_HOURS: %w", err)
		}
		cfg.Analysis.DetectionWindow = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("ANALYSIS_MOMENTUM_HOURS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ANALYSIS_MOMENTUM_HOURS: %w", err)
		}
		cfg.Analysis.MomentumWindow = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
