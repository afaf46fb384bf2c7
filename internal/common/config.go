package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Portal      PortalConfig   `toml:"portal"`      // authenticated industry-category portal
	ETF         ETFConfig      `toml:"etf"`
	News        NewsConfig     `toml:"news"`
	HTTP        HTTPConfig     `toml:"http"`
	Enrich      EnrichConfig   `toml:"enrich"`
	Charts      ChartsConfig   `toml:"charts"`
	Matcher     MatcherConfig  `toml:"matcher"`
	Output      OutputConfig   `toml:"output"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Logging     LoggingConfig  `toml:"logging"`
}

// PortalConfig contains settings for the industry-category portal,
// which requires a browser login before the category API can be called.
type PortalConfig struct {
	BaseURL            string `toml:"base_url" validate:"required,url"`
	LoginPath          string `toml:"login_path"`
	Username           string `toml:"username" validate:"required"`
	Password           string `toml:"password" validate:"required"`
	Headless           bool   `toml:"headless"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"` // portal serves an incomplete TLS chain
}

type ETFConfig struct {
	BaseURL    string `toml:"base_url" validate:"required,url"`
	FinderPath string `toml:"finder_path"`
}

type NewsConfig struct {
	BaseURL  string `toml:"base_url" validate:"required,url"`
	ListPath string `toml:"list_path"`
	Sections []int  `toml:"sections" validate:"min=1"`
}

// HTTPConfig controls the retrying fetcher shared by all collectors.
type HTTPConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxRetries     int           `toml:"max_retries" validate:"min=1"`
	RateLimit      int           `toml:"rate_limit"` // requests per second per client, 0 = unlimited
}

// EnrichConfig controls the bounded worker pools for secondary lookups.
type EnrichConfig struct {
	IndustryWorkers int           `toml:"industry_workers" validate:"min=1,max=32"`
	HoldingsWorkers int           `toml:"holdings_workers" validate:"min=1,max=32"`
	ContentsWorkers int           `toml:"contents_workers" validate:"min=1,max=32"`
	PageWorkers     int           `toml:"page_workers" validate:"min=1,max=32"`
	MinDelay        time.Duration `toml:"min_delay"`
	MaxDelay        time.Duration `toml:"max_delay"`
}

type ChartsConfig struct {
	Enabled bool `toml:"enabled"`
}

type MatcherConfig struct {
	RecentWindowDays int `toml:"recent_window_days" validate:"min=1"`
}

type OutputConfig struct {
	Root     string `toml:"root" validate:"required"`
	LogsDir  string `toml:"logs_dir"`
	HTMLDump string `toml:"html_dump"`
	KeepTemp bool   `toml:"keep_temp"` // preserve intermediate CSVs after a run
}

type ScheduleConfig struct {
	Cron string `toml:"cron"` // cron spec for -serve mode
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings belong in bigrise.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Portal: PortalConfig{
			BaseURL:            "https://bigfinance.co.kr",
			LoginPath:          "/login",
			Headless:           true,
			InsecureSkipVerify: true,
		},
		ETF: ETFConfig{
			BaseURL:    "https://riseetf.co.kr",
			FinderPath: "/prod/finder",
		},
		News: NewsConfig{
			BaseURL:  "https://finance.naver.com",
			ListPath: "/news/news_list.naver",
			Sections: []int{401, 402, 403, 404, 406, 429},
		},
		HTTP: HTTPConfig{
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			RateLimit:      0,
		},
		Enrich: EnrichConfig{
			IndustryWorkers: 4,
			HoldingsWorkers: 10,
			ContentsWorkers: 6,
			PageWorkers:     4,
			MinDelay:        300 * time.Millisecond,
			MaxDelay:        time.Second,
		},
		Charts: ChartsConfig{
			Enabled: false,
		},
		Matcher: MatcherConfig{
			RecentWindowDays: 7,
		},
		Output: OutputConfig{
			Root:     "./out",
			LogsDir:  "./logs",
			HTMLDump: "./html_dump",
			KeepTemp: false,
		},
		Schedule: ScheduleConfig{
			Cron: "30 7 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks the resolved configuration. Portal credentials are only
// required when the portal collector will actually run, so callers gate on
// the job being executed.
func (c *Config) Validate(requirePortalAuth bool) error {
	validate := validator.New()

	if requirePortalAuth {
		if err := validate.Struct(c.Portal); err != nil {
			return fmt.Errorf("portal config invalid: %w", err)
		}
	}
	if err := validate.Struct(c.ETF); err != nil {
		return fmt.Errorf("etf config invalid: %w", err)
	}
	if err := validate.Struct(c.News); err != nil {
		return fmt.Errorf("news config invalid: %w", err)
	}
	if err := validate.Struct(c.HTTP); err != nil {
		return fmt.Errorf("http config invalid: %w", err)
	}
	if err := validate.Struct(c.Enrich); err != nil {
		return fmt.Errorf("enrich config invalid: %w", err)
	}
	if err := validate.Struct(c.Matcher); err != nil {
		return fmt.Errorf("matcher config invalid: %w", err)
	}
	if err := validate.Struct(c.Output); err != nil {
		return fmt.Errorf("output config invalid: %w", err)
	}
	if c.Enrich.MinDelay > c.Enrich.MaxDelay {
		return fmt.Errorf("config invalid: enrich min_delay %s exceeds max_delay %s", c.Enrich.MinDelay, c.Enrich.MaxDelay)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BIGRISE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Portal credentials are the usual env-supplied secrets
	if v := os.Getenv("BIGRISE_PORTAL_BASE_URL"); v != "" {
		config.Portal.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("BIGRISE_PORTAL_USERNAME"); v != "" {
		config.Portal.Username = v
	}
	if v := os.Getenv("BIGRISE_PORTAL_PASSWORD"); v != "" {
		config.Portal.Password = v
	}
	if v := os.Getenv("BIGRISE_PORTAL_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Portal.Headless = b
		}
	}

	if v := os.Getenv("BIGRISE_HTTP_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.RequestTimeout = d
		}
	}
	if v := os.Getenv("BIGRISE_HTTP_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.HTTP.MaxRetries = n
		}
	}

	if v := os.Getenv("BIGRISE_OUTPUT_ROOT"); v != "" {
		config.Output.Root = v
	}
	if v := os.Getenv("BIGRISE_KEEP_TEMP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Output.KeepTemp = b
		}
	}

	if v := os.Getenv("BIGRISE_CHARTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Charts.Enabled = b
		}
	}

	if v := os.Getenv("BIGRISE_SCHEDULE_CRON"); v != "" {
		config.Schedule.Cron = v
	}

	if v := os.Getenv("BIGRISE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("BIGRISE_LOG_OUTPUT"); v != "" {
		outputs := []string{}
		for _, o := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}
