package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jekabolt/delivery-analytics/internal/analytics"
	httpapi "github.com/jekabolt/delivery-analytics/internal/api/http"
	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/bucket"
	"github.com/jekabolt/delivery-analytics/internal/fixture"
	"github.com/jekabolt/delivery-analytics/internal/mail"
	"github.com/jekabolt/delivery-analytics/internal/ratelimit"
	"github.com/jekabolt/delivery-analytics/internal/store"
	"github.com/jekabolt/delivery-analytics/log"
	"github.com/spf13/viper"
)

// Config represents the global configuration for the service.
type Config struct {
	DB        store.Config     `mapstructure:"db"`
	Logger    log.Config       `mapstructure:"logger"`
	HTTP      httpapi.Config   `mapstructure:"http"`
	Auth      auth.Config      `mapstructure:"auth"`
	Analytics analytics.Config `mapstructure:"analytics"`
	Fixture   fixture.Config   `mapstructure:"fixture"`
	Bucket    bucket.Config    `mapstructure:"bucket"`
	Mailer    mail.Config      `mapstructure:"mailer"`
	RateLimit ratelimit.Config `mapstructure:"ratelimit"`
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Nested config keys use double underscore, e.g., DB__DSN for db.dsn
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	// Bind common environment variables to config keys
	bindEnvVars(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/config/delivery-analytics")
		v.AddConfigPath("/etc/delivery-analytics")
		// Try to read config, but don't fail if it doesn't exist
		_ = v.ReadInConfig()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	// Supabase and most managed Postgres providers hand out the pieces separately.
	if config.DB.DSN == "" {
		if host := os.Getenv("PGHOST"); host != "" {
			port := os.Getenv("PGPORT")
			if port == "" {
				port = "5432"
			}
			sslmode := os.Getenv("PGSSLMODE")
			if sslmode == "" {
				sslmode = "require"
			}
			config.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				os.Getenv("PGUSER"), os.Getenv("PGPASSWORD"), host, port, os.Getenv("PGDATABASE"), sslmode)
		}
	}

	return &config, nil
}

// bindEnvVars binds environment variables to config keys
// This allows using both nested keys (DB__DSN) and flat keys (DB_DSN)
func bindEnvVars(v *viper.Viper) {
	// DB
	v.BindEnv("db.dsn", "DB_DSN", "DATABASE_URL")
	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.automigrate", "DB_AUTOMIGRATE")
	v.BindEnv("db.max_open_connections", "DB_MAX_OPEN_CONNECTIONS")
	v.BindEnv("db.max_idle_connections", "DB_MAX_IDLE_CONNECTIONS")
	v.BindEnv("db.page_size", "DB_PAGE_SIZE")
	v.BindEnv("db.connect_retries", "DB_CONNECT_RETRIES")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT", "PORT")
	v.BindEnv("http.address", "HTTP_ADDRESS")
	v.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	v.BindEnv("http.request_timeout", "HTTP_REQUEST_TIMEOUT")

	// Auth
	v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	v.BindEnv("auth.jwt_ttl", "AUTH_JWT_TTL")
	v.BindEnv("auth.bcrypt_cost", "AUTH_BCRYPT_COST")

	// Analytics
	v.BindEnv("analytics.timezone", "ANALYTICS_TIMEZONE")
	v.BindEnv("analytics.churn_limit", "ANALYTICS_CHURN_LIMIT")

	// Fixture
	v.BindEnv("fixture.path", "FIXTURE_PATH")

	// Bucket
	v.BindEnv("bucket.s3_access_key", "BUCKET_S3_ACCESS_KEY")
	v.BindEnv("bucket.s3_secret_access_key", "BUCKET_S3_SECRET_ACCESS_KEY")
	v.BindEnv("bucket.s3_endpoint", "BUCKET_S3_ENDPOINT")
	v.BindEnv("bucket.s3_bucket_name", "BUCKET_S3_BUCKET_NAME")
	v.BindEnv("bucket.s3_bucket_location", "BUCKET_S3_BUCKET_LOCATION")
	v.BindEnv("bucket.base_folder", "BUCKET_BASE_FOLDER")
	v.BindEnv("bucket.subdomain_endpoint", "BUCKET_SUBDOMAIN_ENDPOINT")

	// Mailer
	v.BindEnv("mailer.sendgrid_api_key", "MAILER_SENDGRID_API_KEY")
	v.BindEnv("mailer.from_email", "MAILER_FROM_EMAIL")
	v.BindEnv("mailer.from_email_name", "MAILER_FROM_EMAIL_NAME")
	v.BindEnv("mailer.reply_to", "MAILER_REPLY_TO")
	v.BindEnv("mailer.worker_interval", "MAILER_WORKER_INTERVAL")

	// Rate limit
	v.BindEnv("ratelimit.login_per_ip", "RATELIMIT_LOGIN_PER_IP")
	v.BindEnv("ratelimit.login_per_email", "RATELIMIT_LOGIN_PER_EMAIL")
	v.BindEnv("ratelimit.window", "RATELIMIT_WINDOW")
}
