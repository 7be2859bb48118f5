package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret           string   `mapstructure:"JWT_SECRET"`
	AuthIssuer          string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL         string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience        string   `mapstructure:"AUTH_AUDIENCE"`
	StripeWebhookSecret string   `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	MeetAPIURL          string   `mapstructure:"MEET_API_URL"`
	MeetAPIKey          string   `mapstructure:"MEET_API_KEY"`
	JoinAuthTimeoutMS   int      `mapstructure:"JOIN_AUTH_TIMEOUT_MS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("JOIN_AUTH_TIMEOUT_MS", 3000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("STRIPE_WEBHOOK_SECRET")
	v.BindEnv("MEET_API_URL")
	v.BindEnv("MEET_API_KEY")
	v.BindEnv("JOIN_AUTH_TIMEOUT_MS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Dev auth is active; all requests are treated as authenticated.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET or AUTH_ISSUER before deploying.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// JoinAuthTimeout returns the bounded deadline applied to a signaling join
// authorization check. A join that cannot be decided within this window is
// denied rather than left hanging.
func (c *Config) JoinAuthTimeout() time.Duration {
	if c.JoinAuthTimeoutMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.JoinAuthTimeoutMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without a webhook signing secret and some JWT verification
// material, since both guard state-mutating entry points.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
		if c.JWTSecret == "" && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("one of JWT_SECRET, AUTH_ISSUER, or AUTH_JWKS_URL is required in production")
		}
	}
	if c.MeetAPIURL != "" && c.MeetAPIKey == "" {
		return fmt.Errorf("MEET_API_KEY is required when MEET_API_URL is set")
	}
	return nil
}
