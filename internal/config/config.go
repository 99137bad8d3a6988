package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration values. It is built once by
// Load and handed to collaborators by value; nothing re-reads the
// environment after startup.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Captcha  CaptchaConfig  `toml:"captcha"`
	Store    StoreConfig    `toml:"store"`
	LLM      LLMConfig      `toml:"llm"`
	Renderer RendererConfig `toml:"renderer"`
	SMTP     SMTPConfig     `toml:"smtp"`
}

type ServerConfig struct {
	Port           string        `toml:"port"`
	AllowedOrigins string        `toml:"allowed_origins"` // comma separated, "*" for any
	RateLimitMax   int           `toml:"rate_limit_max"`  // requests per client per window
	RateLimitWin   time.Duration `toml:"rate_limit_window"`
	ThrottleWindow time.Duration `toml:"throttle_window"` // per verification token regeneration window
	PublicBaseURL  string        `toml:"public_base_url"`
	SchedulingURL  string        `toml:"scheduling_url"`
}

type LogConfig struct {
	Mode     string `toml:"mode"`
	Level    string `toml:"level"`
	Redact   bool   `toml:"redact"` // redact secrets and hash e-mail/IP values
	HashSalt string `toml:"hash_salt"`
}

type CaptchaConfig struct {
	Secret    string `toml:"secret"`
	VerifyURL string `toml:"verify_url"`
}

type StoreConfig struct {
	Driver      string `toml:"driver"` // postgres | badger
	DatabaseURL string `toml:"database_url"`
	BadgerPath  string `toml:"badger_path"`
}

type LLMConfig struct {
	Provider     string        `toml:"provider"` // anthropic | gemini | service
	APIKey       string        `toml:"api_key"`
	ServiceURL   string        `toml:"service_url"`
	Model        string        `toml:"model"`
	Temperature  float64       `toml:"temperature"`
	MaxTokens    int           `toml:"max_tokens"`
	Timeout      time.Duration `toml:"timeout"`
	LeadMagnet   string        `toml:"lead_magnet"`
	Organisation string        `toml:"organisation"`
}

type RendererConfig struct {
	Driver          string        `toml:"driver"` // service | local
	ServiceURL      string        `toml:"service_url"`
	APIKey          string        `toml:"api_key"`
	TemplateID      string        `toml:"template_id"`
	PollInitial     time.Duration `toml:"poll_initial"`
	PollMaxInterval time.Duration `toml:"poll_max_interval"`
	Timeout         time.Duration `toml:"timeout"`
	LocalDir        string        `toml:"local_dir"`
	LinkTTL         time.Duration `toml:"link_ttl"`
	ChromePath      string        `toml:"chrome_path"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

// NewDefaultConfig returns the configuration used when neither a file nor
// the environment says otherwise.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: "*",
			RateLimitMax:   5,
			RateLimitWin:   time.Hour,
			ThrottleWindow: 48 * time.Hour,
			PublicBaseURL:  "http://localhost:8080",
		},
		Log: LogConfig{Mode: "dev", Level: "info", Redact: true},
		Captcha: CaptchaConfig{
			VerifyURL: "https://www.google.com/recaptcha/api/siteverify",
		},
		Store: StoreConfig{Driver: "postgres", BadgerPath: "./data/subscribers"},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.2,
			MaxTokens:   4000,
			Timeout:     90 * time.Second,
			LeadMagnet:  "IT Assessment",
		},
		Renderer: RendererConfig{
			Driver:          "service",
			ServiceURL:      "https://api.pdfmonkey.io/api/v1",
			PollInitial:     2 * time.Second,
			PollMaxInterval: 10 * time.Second,
			Timeout:         90 * time.Second,
			LocalDir:        "./data/assessments",
			LinkTTL:         24 * time.Hour,
		},
		SMTP: SMTPConfig{Port: 587, UseTLS: true, FromName: "IT Assessment"},
	}
}

// Load builds the configuration: defaults, then the optional TOML file at
// path, then a .env file if present, then process environment overrides.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(c *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Server.Port)
	str("ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	num("RATE_LIMIT_MAX", &c.Server.RateLimitMax)
	dur("RATE_LIMIT_WINDOW", &c.Server.RateLimitWin)
	dur("THROTTLE_WINDOW", &c.Server.ThrottleWindow)
	str("PUBLIC_BASE_URL", &c.Server.PublicBaseURL)
	str("SCHEDULING_URL", &c.Server.SchedulingURL)

	str("LOG_MODE", &c.Log.Mode)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_HASH_SALT", &c.Log.HashSalt)
	if v := strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED")); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "no", "off":
			c.Log.Redact = false
		default:
			c.Log.Redact = true
		}
	}

	str("RECAPTCHA_SECRET_KEY", &c.Captcha.Secret)
	str("RECAPTCHA_VERIFY_URL", &c.Captcha.VerifyURL)

	str("STORE_DRIVER", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("BADGER_PATH", &c.Store.BadgerPath)

	str("LLM_PROVIDER", &c.LLM.Provider)
	switch c.LLM.Provider {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.LLM.APIKey)
	case "gemini":
		str("GEMINI_API_KEY", &c.LLM.APIKey)
	}
	str("AI_SERVICE_URL", &c.LLM.ServiceURL)
	str("LLM_MODEL", &c.LLM.Model)
	num("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	dur("LLM_TIMEOUT", &c.LLM.Timeout)
	if v := strings.TrimSpace(os.Getenv("LLM_TEMPERATURE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %w", err))
		} else {
			c.LLM.Temperature = f
		}
	}

	str("RENDER_DRIVER", &c.Renderer.Driver)
	str("PDF_SERVICE_URL", &c.Renderer.ServiceURL)
	str("PDF_SERVICE_API_KEY", &c.Renderer.APIKey)
	str("PDF_TEMPLATE_ID", &c.Renderer.TemplateID)
	dur("RENDER_POLL_INITIAL", &c.Renderer.PollInitial)
	dur("RENDER_POLL_MAX_INTERVAL", &c.Renderer.PollMaxInterval)
	dur("RENDER_TIMEOUT", &c.Renderer.Timeout)
	str("LOCAL_RENDER_DIR", &c.Renderer.LocalDir)
	str("CHROME_PATH", &c.Renderer.ChromePath)

	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USER", &c.SMTP.Username)
	str("SMTP_PASS", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)
	str("SMTP_FROM_NAME", &c.SMTP.FromName)
	if v := strings.TrimSpace(os.Getenv("SMTP_USE_TLS")); v != "" {
		c.SMTP.UseTLS = strings.EqualFold(v, "true") || v == "1"
	}

	return errors.Join(errs...)
}

// Validate reports every credential or endpoint missing for the selected
// drivers.
func (c *Config) Validate() error {
	var missing []string
	need := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	need(c.Captcha.Secret, "RECAPTCHA_SECRET_KEY")

	switch c.Store.Driver {
	case "postgres":
		need(c.Store.DatabaseURL, "DATABASE_URL")
	case "badger":
		need(c.Store.BadgerPath, "BADGER_PATH")
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.LLM.Provider {
	case "anthropic":
		need(c.LLM.APIKey, "ANTHROPIC_API_KEY")
	case "gemini":
		need(c.LLM.APIKey, "GEMINI_API_KEY")
	case "service":
		need(c.LLM.ServiceURL, "AI_SERVICE_URL")
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Renderer.Driver {
	case "service":
		need(c.Renderer.ServiceURL, "PDF_SERVICE_URL")
		need(c.Renderer.APIKey, "PDF_SERVICE_API_KEY")
		need(c.Renderer.TemplateID, "PDF_TEMPLATE_ID")
		if c.Renderer.Timeout <= 0 {
			return fmt.Errorf("render timeout must be positive, got %s", c.Renderer.Timeout)
		}
		if c.Renderer.PollInitial <= 0 || c.Renderer.PollMaxInterval <= 0 {
			return fmt.Errorf("render poll intervals must be positive, got %s and %s", c.Renderer.PollInitial, c.Renderer.PollMaxInterval)
		}
	case "local":
		need(c.Renderer.LocalDir, "LOCAL_RENDER_DIR")
		need(c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	default:
		return fmt.Errorf("unknown renderer driver %q", c.Renderer.Driver)
	}

	need(c.SMTP.Host, "SMTP_HOST")
	need(c.SMTP.Username, "SMTP_USER")
	need(c.SMTP.Password, "SMTP_PASS")
	need(c.SMTP.From, "SMTP_FROM")

	if c.Server.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit max must be positive, got %d", c.Server.RateLimitMax)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Origins splits AllowedOrigins into the list form the CORS middleware wants.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
