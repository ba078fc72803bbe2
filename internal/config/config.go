package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full tracker configuration.
type Config struct {
	App      AppConfig      `json:"app"`
	Site     SiteConfig     `json:"site"`
	SQLite   SQLiteConfig   `json:"sqlite"`
	Redis    RedisConfig    `json:"redis"`
	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`
}

// AppConfig is the process-level configuration.
type AppConfig struct {
	Env             string        `json:"env"`              // local / prod
	LogLevel        string        `json:"log_level"`        // debug / info / warn / error
	HTTPAddr        string        `json:"http_addr"`        // status API listen addr; empty disables
	ScanInterval    time.Duration `json:"scan_interval"`    // delay between scan cycles in continuous mode
	RequestDelay    time.Duration `json:"request_delay"`    // minimum delay between requests to the site
	FailureCooldown time.Duration `json:"failure_cooldown"` // wait after a failed cycle before retrying
	FetchTimeout    time.Duration `json:"fetch_timeout"`    // per-request HTTP timeout
	RevalidateKnown bool          `json:"revalidate_known"` // re-check known products missing from discovery
	RateLimit       float64       `json:"rate_limit"`       // shared site budget (req/s), needs Redis
	RateBurst       float64       `json:"rate_burst"`       // shared site budget burst, needs Redis
}

// SiteConfig describes the monitored site and its discovery surfaces.
type SiteConfig struct {
	BaseURL   string            `json:"base_url"`
	Brand     string            `json:"brand"`
	UserAgent string            `json:"user_agent"`
	Surfaces  map[string]string `json:"surfaces"` // surface name -> relative path
}

// SQLiteConfig locates the state database.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// RedisConfig is optional; an empty Addr disables all Redis-backed features
// (shared rate budget, cross-instance alert guard).
type RedisConfig struct {
	Addr          string        `json:"addr"`
	Password      string        `json:"password"`
	AlertGuardTTL time.Duration `json:"alert_guard_ttl"`
}

// TelegramConfig carries the messaging-channel credentials. Both values are
// required at startup.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// EmailConfig is the optional secondary alert channel.
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"`
}

// ErrMissingCredentials is returned by Validate when the Telegram secrets are
// not configured.
var ErrMissingCredentials = errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")

// Load reads configs/config.json (or the given path), applies defaults for
// unset fields and lets environment variables override everything.
//
// A missing config file is not an error; defaults plus environment are used.
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the startup requirements. The messaging credentials are the
// only hard requirement; everything else has a workable default.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return ErrMissingCredentials
	}
	if c.Site.BaseURL == "" {
		return errors.New("site base_url must not be empty")
	}
	if len(c.Site.Surfaces) == 0 {
		return errors.New("at least one discovery surface is required")
	}
	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:             "local",
			LogLevel:        "info",
			HTTPAddr:        "",
			ScanInterval:    120 * time.Second,
			RequestDelay:    500 * time.Millisecond,
			FailureCooldown: 60 * time.Second,
			FetchTimeout:    10 * time.Second,
			RevalidateKnown: true,
		},
		Site: SiteConfig{
			BaseURL:   "https://www.firstcry.com",
			Brand:     "hot wheels",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Surfaces: map[string]string{
				"brand_listing":     "/hot-wheels/0/0/113",
				"search_results":    "/search?searchstring=hot%20wheels",
				"toy_cars_category": "/hot-wheels/toy-cars,-trains-and-vehicles/5/94/113",
			},
		},
		SQLite: SQLiteConfig{
			Path: "hotwheels_products.db",
		},
		Redis: RedisConfig{
			Addr:          "",
			Password:      "",
			AlertGuardTTL: 5 * time.Minute,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.ScanInterval == 0 {
		cfg.App.ScanInterval = defaults.App.ScanInterval
	}
	if cfg.App.RequestDelay == 0 {
		cfg.App.RequestDelay = defaults.App.RequestDelay
	}
	if cfg.App.FailureCooldown == 0 {
		cfg.App.FailureCooldown = defaults.App.FailureCooldown
	}
	if cfg.App.FetchTimeout == 0 {
		cfg.App.FetchTimeout = defaults.App.FetchTimeout
	}
	if cfg.Site.BaseURL == "" {
		cfg.Site.BaseURL = defaults.Site.BaseURL
	}
	if cfg.Site.Brand == "" {
		cfg.Site.Brand = defaults.Site.Brand
	}
	if cfg.Site.UserAgent == "" {
		cfg.Site.UserAgent = defaults.Site.UserAgent
	}
	if len(cfg.Site.Surfaces) == 0 {
		cfg.Site.Surfaces = defaults.Site.Surfaces
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = defaults.SQLite.Path
	}
	if cfg.Redis.AlertGuardTTL == 0 {
		cfg.Redis.AlertGuardTTL = defaults.Redis.AlertGuardTTL
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	// Secrets go through viper so they can also arrive via bound aliases.
	_ = viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.ScanInterval = d
		}
	}
	if v := os.Getenv("APP_REQUEST_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RequestDelay = d
		}
	}
	if v := os.Getenv("APP_FAILURE_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FailureCooldown = d
		}
	}
	if v := os.Getenv("APP_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FetchTimeout = d
		}
	}
	if v := os.Getenv("APP_REVALIDATE_KNOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.App.RevalidateKnown = b
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}

	if v := os.Getenv("SITE_BASE_URL"); v != "" {
		cfg.Site.BaseURL = v
	}
	if v := os.Getenv("SITE_BRAND"); v != "" {
		cfg.Site.Brand = v
	}
	if v := os.Getenv("SITE_USER_AGENT"); v != "" {
		cfg.Site.UserAgent = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_ALERT_GUARD_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.AlertGuardTTL = d
		}
	}

	if v := viper.GetString("telegram_bot_token"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := viper.GetString("telegram_chat_id"); v != "" {
		cfg.Telegram.ChatID = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		cfg.Email.ToEmail = v
	}
}

// UnmarshalJSON accepts duration strings ("120s") for the interval fields.
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		ScanInterval    string `json:"scan_interval"`
		RequestDelay    string `json:"request_delay"`
		FailureCooldown string `json:"failure_cooldown"`
		FetchTimeout    string `json:"fetch_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.ScanInterval != "" {
		d, err := time.ParseDuration(aux.ScanInterval)
		if err != nil {
			return fmt.Errorf("invalid scan_interval format: %w", err)
		}
		a.ScanInterval = d
	}
	if aux.RequestDelay != "" {
		d, err := time.ParseDuration(aux.RequestDelay)
		if err != nil {
			return fmt.Errorf("invalid request_delay format: %w", err)
		}
		a.RequestDelay = d
	}
	if aux.FailureCooldown != "" {
		d, err := time.ParseDuration(aux.FailureCooldown)
		if err != nil {
			return fmt.Errorf("invalid failure_cooldown format: %w", err)
		}
		a.FailureCooldown = d
	}
	if aux.FetchTimeout != "" {
		d, err := time.ParseDuration(aux.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout format: %w", err)
		}
		a.FetchTimeout = d
	}

	return nil
}

// MarshalJSON writes the duration fields back as strings.
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		ScanInterval    string `json:"scan_interval"`
		RequestDelay    string `json:"request_delay"`
		FailureCooldown string `json:"failure_cooldown"`
		FetchTimeout    string `json:"fetch_timeout"`
		*Alias
	}{
		ScanInterval:    a.ScanInterval.String(),
		RequestDelay:    a.RequestDelay.String(),
		FailureCooldown: a.FailureCooldown.String(),
		FetchTimeout:    a.FetchTimeout.String(),
		Alias:           (*Alias)(&a),
	})
}
