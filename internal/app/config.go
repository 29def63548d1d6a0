package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDER_ prefix), flags, or YAML config files.
type Config struct {
	Addr              string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL       string `usage:"PostgreSQL connection URL (ORDER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ProductServiceURL string `usage:"Base URL of the external product service" flag:"product-service-url"`

	// FulfillmentAgentID is assigned to orders transitioning to Shipped.
	FulfillmentAgentID string `usage:"User ID of the fulfillment agent assigned to shipped orders" flag:"fulfillment-agent-id"`

	Kafka     KafkaConfig
	Query     QueryConfig
	RateLimit RateLimitConfig
	Graceful  GracefulConfig
}

// KafkaConfig controls the notification emitter.
type KafkaConfig struct {
	Brokers   []string `usage:"Kafka broker addresses; empty disables notifications"`
	Topic     string   `default:"order-notifications" usage:"Topic for order status notifications"`
	FromEmail string   `default:"no-reply@retailhub.io" usage:"Sender address stamped on notifications" flag:"from-email"`
}

// QueryConfig controls the order query engine.
type QueryConfig struct {
	// NameFilterPrePage applies the name-substring filters before pagination
	// instead of over the already paginated window.
	NameFilterPrePage bool `usage:"Apply name filters before pagination" flag:"name-filter-pre-page"`
}

// RateLimitConfig controls the per-client request limiter. Max <= 0 disables
// it.
type RateLimitConfig struct {
	Max    int           `default:"0"  usage:"Requests allowed per client per window; 0 disables limiting"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
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
		EnvPrefix: "ORDER",
		Files:     []string{"config.yaml", "/etc/order-service/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDER_DATABASE_URL or DATABASE_URL")
	}
	if cfg.ProductServiceURL == "" {
		return nil, errors.New("product service URL is required: set ORDER_PRODUCT_SERVICE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's
// ORDER_-prefixed configuration.
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
