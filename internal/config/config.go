package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Firebase    FirebaseConfig    `yaml:"firebase"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	Storage     StorageConfig     `yaml:"storage"`
	Mail        MailConfig        `yaml:"mail"`
	Log         LogConfig         `yaml:"log"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" validate:"required,min=1,max=65535"`
	Env            string   `yaml:"env" validate:"oneof=development staging production test"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host          string `yaml:"host" validate:"required"`
	Port          int    `yaml:"port" validate:"required"`
	User          string `yaml:"user" validate:"required"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name" validate:"required"`
	SSLMode       string `yaml:"sslmode" validate:"oneof=disable require verify-ca verify-full prefer allow"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
	MaxConns      int32  `yaml:"max_conns" validate:"min=1"`
	MinConns      int32  `yaml:"min_conns" validate:"min=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

// FirebaseConfig selects how bearer tokens are verified. With a ProjectID the
// Firebase securetoken keys are used; DevSecret enables HS256 tokens for local
// development and is rejected in production.
type FirebaseConfig struct {
	ProjectID string `yaml:"project_id"`
	CertsURL  string `yaml:"certs_url" validate:"omitempty,url"`
	DevSecret string `yaml:"dev_secret"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange" validate:"required"`
	Queue    string `yaml:"queue" validate:"required"`
}

type StorageConfig struct {
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	Endpoint       string        `yaml:"endpoint"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	DownloadURLTTL time.Duration `yaml:"download_url_ttl" validate:"min=0"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"min=0"`
}

type MailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	From      string `yaml:"from" validate:"omitempty,email"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Dev        bool   `yaml:"dev"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0,max=1024"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0,max=100"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0,max=365"`
}

// MarketplaceConfig carries the money and scheduling knobs. Rates are basis
// points (1/100 of a percent).
type MarketplaceConfig struct {
	PlatformFeeBps     int64         `yaml:"platform_fee_bps" validate:"min=0,max=10000"`
	TaxRateBps         int64         `yaml:"tax_rate_bps" validate:"min=0,max=10000"`
	SlotMinutes        int           `yaml:"slot_minutes" validate:"required,oneof=5 10 15 20 30 60"`
	CancellationCutoff time.Duration `yaml:"cancellation_cutoff" validate:"min=0"`
	MaxBookingDays     int           `yaml:"max_booking_days" validate:"required,min=1,max=365"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			Env:            "development",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "lumen",
			Name:     "lumen",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Firebase: FirebaseConfig{
			CertsURL: "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com",
		},
		RabbitMQ: RabbitMQConfig{
			Exchange: "lumen.events",
			Queue:    "lumen.email",
		},
		Storage: StorageConfig{
			Region:         "us-east-1",
			DownloadURLTTL: 15 * time.Minute,
			MaxUploadBytes: 200 << 20,
		},
		Mail: MailConfig{
			Region: "us-east-1",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Marketplace: MarketplaceConfig{
			PlatformFeeBps:     2000,
			TaxRateBps:         0,
			SlotMinutes:        15,
			CancellationCutoff: 24 * time.Hour,
			MaxBookingDays:     60,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally environment variables (.env is honoured).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Firebase.ProjectID == "" && c.Firebase.DevSecret == "" {
		return fmt.Errorf("invalid configuration: FIREBASE_PROJECT_ID or AUTH_DEV_SECRET is required")
	}
	if c.Server.Env == "production" && c.Firebase.DevSecret != "" {
		return fmt.Errorf("invalid configuration: AUTH_DEV_SECRET must not be set in production")
	}
	if c.Mail.Enabled && c.Mail.From == "" {
		return fmt.Errorf("invalid configuration: MAIL_FROM is required when mail is enabled")
	}
	if c.Log.FilePath != "" && c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("invalid configuration: LOG_MAX_SIZE_MB must be positive when LOG_FILE is set")
	}
	return nil
}

// DSN returns the postgres:// connection URL for the application user.
func (d DatabaseConfig) DSN() string {
	return buildDSN(d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// AdminDSN points at the maintenance "postgres" database using the admin
// credentials, falling back to the application user.
func (d DatabaseConfig) AdminDSN() string {
	user, password := d.AdminUser, d.AdminPassword
	if user == "" {
		user, password = d.User, d.Password
	}
	return buildDSN(user, password, d.Host, d.Port, "postgres", d.SSLMode)
}

func applyEnv(cfg *Config) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	int64Val := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	integer("PORT", &cfg.Server.Port)
	str("APP_ENV", &cfg.Server.Env)
	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	str("DB_HOST", &cfg.Database.Host)
	integer("DB_PORT", &cfg.Database.Port)
	str("DB_USERNAME", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_DATABASE", &cfg.Database.Name)
	str("DB_SSLMODE", &cfg.Database.SSLMode)
	str("DB_ADMIN_USER", &cfg.Database.AdminUser)
	str("DB_ADMIN_PASSWORD", &cfg.Database.AdminPassword)
	if v, ok := os.LookupEnv("DB_MAX_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS: %v", err))
		} else {
			cfg.Database.MaxConns = int32(n)
		}
	}

	if host, ok := os.LookupEnv("REDIS_HOST"); ok {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.Redis.Addr = host + ":" + port
	}
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)

	str("FIREBASE_PROJECT_ID", &cfg.Firebase.ProjectID)
	str("FIREBASE_CERTS_URL", &cfg.Firebase.CertsURL)
	str("AUTH_DEV_SECRET", &cfg.Firebase.DevSecret)

	str("RABBITMQ_URL", &cfg.RabbitMQ.URL)
	str("RABBITMQ_EXCHANGE", &cfg.RabbitMQ.Exchange)
	str("RABBITMQ_QUEUE", &cfg.RabbitMQ.Queue)

	str("S3_BUCKET", &cfg.Storage.Bucket)
	str("S3_REGION", &cfg.Storage.Region)
	str("S3_ENDPOINT", &cfg.Storage.Endpoint)
	str("S3_ACCESS_KEY", &cfg.Storage.AccessKey)
	str("S3_SECRET_KEY", &cfg.Storage.SecretKey)
	duration("DOWNLOAD_URL_TTL", &cfg.Storage.DownloadURLTTL)
	int64Val("MAX_UPLOAD_BYTES", &cfg.Storage.MaxUploadBytes)

	boolean("MAIL_ENABLED", &cfg.Mail.Enabled)
	str("SES_REGION", &cfg.Mail.Region)
	str("SES_ACCESS_KEY", &cfg.Mail.AccessKey)
	str("SES_SECRET_KEY", &cfg.Mail.SecretKey)
	str("MAIL_FROM", &cfg.Mail.From)

	str("LOG_LEVEL", &cfg.Log.Level)
	boolean("LOG_DEV", &cfg.Log.Dev)
	str("LOG_FILE", &cfg.Log.FilePath)
	integer("LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB)
	integer("LOG_MAX_BACKUPS", &cfg.Log.MaxBackups)
	integer("LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays)

	int64Val("PLATFORM_FEE_BPS", &cfg.Marketplace.PlatformFeeBps)
	int64Val("TAX_RATE_BPS", &cfg.Marketplace.TaxRateBps)
	integer("SLOT_MINUTES", &cfg.Marketplace.SlotMinutes)
	duration("CANCELLATION_CUTOFF", &cfg.Marketplace.CancellationCutoff)
	integer("MAX_BOOKING_DAYS", &cfg.Marketplace.MaxBookingDays)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
