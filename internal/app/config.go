package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SOUQ_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SOUQ_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	PublicBaseURL string `default:"http://localhost:8080" usage:"Externally reachable base URL of this service" flag:"public-base-url"`
	FrontendURL   string `default:"http://localhost:3000" usage:"Storefront URL for payment result redirects" flag:"frontend-url"`
	Currency      string `default:"SAR" usage:"Store currency (ISO 4217)"`
	APIKeyPepper  string `usage:"HMAC pepper for admin API key hashing (SOUQ_API_KEY_PEPPER)" flag:"api-key-pepper"`

	Moyasar   MoyasarConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// MoyasarConfig holds payment gateway credentials.
type MoyasarConfig struct {
	BaseURL string `default:"" usage:"Gateway API base URL, empty for production" flag:"moyasar-base-url"`
	// SecretKey authenticates API calls (sk_...).
	SecretKey string `usage:"Gateway secret key (SOUQ_MOYASAR_SECRET_KEY)" flag:"moyasar-secret-key"`
	// WebhookSecret signs webhook deliveries.
	WebhookSecret string `usage:"Webhook signing secret" flag:"moyasar-webhook-secret"`
	// SkipWebhookVerify disables signature checks. Development only.
	SkipWebhookVerify bool `default:"false" usage:"Skip webhook signature verification (dev only)" flag:"moyasar-skip-webhook-verify"`
}

// NotifyConfig controls the RabbitMQ event publisher. An empty URL disables
// notifications entirely.
type NotifyConfig struct {
	AMQPURL string `default:"" usage:"RabbitMQ URL; empty disables event publishing" flag:"amqp-url"`
	Queue   string `default:"order-events" usage:"Queue for order events" flag:"amqp-queue"`
	Buffer  int    `default:"256" usage:"Pending event buffer size" flag:"notify-buffer"`
	Workers int    `default:"4" usage:"Concurrent publisher goroutines" flag:"notify-workers"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SOUQ",
		Files:     []string{"config.yaml", "/etc/souq/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SOUQ_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Moyasar.SecretKey == "" {
		return nil, errors.New("gateway secret key is required: set SOUQ_MOYASAR_SECRET_KEY")
	}
	if cfg.Moyasar.WebhookSecret == "" && !cfg.Moyasar.SkipWebhookVerify {
		return nil, errors.New("webhook secret is required unless SOUQ_MOYASAR_SKIP_WEBHOOK_VERIFY is set")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// onto the SOUQ_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
