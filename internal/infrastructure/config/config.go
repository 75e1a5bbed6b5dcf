package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (CONN_DATABASE_PASSWORD)
const EnvPrefix = "CONN"

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Scheduler  SchedulerConfig
	BankSync   BankSyncConfig
	FeedImport FeedImportConfig
	Webhook    WebhookConfig
	Storage    StorageConfig
	Telemetry  TelemetryConfig
	Secrets    SecretsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development testing staging production"`
	Port string `validate:"required,numeric"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"min=1,max=65535"`
	User            string `validate:"required"`
	Password        string
	DBName          string `validate:"required"`
	SSLMode         string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime int    // in minutes
	ConnMaxIdleTime int    // in minutes
	AutoMigrate     bool   // apply the embedded migrations on server start
}

// RedisConfig holds Redis connection settings for the webhook idempotency store
type RedisConfig struct {
	Enabled     bool
	Required    bool // refuse to start when Redis is unreachable instead of falling back to memory
	Host        string
	Port        int `validate:"min=0,max=65535"`
	Password    string
	DB          int `validate:"min=0"`
	KeyPrefix   string
	DialTimeout time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64 // upload endpoints
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled           bool
	BankSyncCron      string
	FeedImportCron    string
	MaxConcurrentJobs int `validate:"min=1"`
	QueueSize         int `validate:"min=1"`
	JobTimeout        time.Duration
	RetryAttempts     int `validate:"min=0"`
	RetryDelay        time.Duration
}

// BankSyncConfig holds outbound bank API settings
type BankSyncConfig struct {
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	MaxRetries        int           `validate:"min=0,max=10"`
	BackoffFactor     time.Duration // first retry delay, doubled per attempt
	TokenSafetyWindow time.Duration
	DefaultWindowDays int `validate:"min=1"`

	// Base URL overrides, empty means the published endpoint
	GarantiURL string
	ZiraatURL  string
	QNBURL     string
}

// FeedImportConfig holds XML feed import settings
type FeedImportConfig struct {
	MaxDocumentSize int64 `validate:"min=1"`
	PreviewLimit    int   `validate:"min=1"`
	FetchTimeout    time.Duration
}

// WebhookConfig holds quick-commerce webhook settings
type WebhookConfig struct {
	IdempotencyTTL time.Duration
	MaxBodySize    int64 `validate:"min=1"`
}

// StorageConfig holds S3-compatible object storage settings for uploaded feed documents
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	KeyPrefix         string
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling
	ProfilingEnabled bool
	PyroscopeAddress string
}

// SecretsConfig holds the at-rest encryption key for stored credentials
type SecretsConfig struct {
	// Key is a base64 encoded 32 byte key. Empty stores credentials in plaintext.
	Key string
}

// Load loads configuration from an optional .env file, a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CONN_ prefix (e.g., CONN_DATABASE_PASSWORD)
// 2. .env in the working directory (never overrides the real environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:     v.GetBool("redis.enabled"),
			Required:    v.GetBool("redis.required"),
			Host:        v.GetString("redis.host"),
			Port:        v.GetInt("redis.port"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			KeyPrefix:   v.GetString("redis.key_prefix"),
			DialTimeout: v.GetDuration("redis.dial_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			BankSyncCron:      v.GetString("scheduler.bank_sync_cron"),
			FeedImportCron:    v.GetString("scheduler.feed_import_cron"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
		},
		BankSync: BankSyncConfig{
			ConnectTimeout:    v.GetDuration("bank_sync.connect_timeout"),
			ReadTimeout:       v.GetDuration("bank_sync.read_timeout"),
			MaxRetries:        v.GetInt("bank_sync.max_retries"),
			BackoffFactor:     v.GetDuration("bank_sync.backoff_factor"),
			TokenSafetyWindow: v.GetDuration("bank_sync.token_safety_window"),
			DefaultWindowDays: v.GetInt("bank_sync.default_window_days"),
			GarantiURL:        v.GetString("bank_sync.garanti_url"),
			ZiraatURL:         v.GetString("bank_sync.ziraat_url"),
			QNBURL:            v.GetString("bank_sync.qnb_url"),
		},
		FeedImport: FeedImportConfig{
			MaxDocumentSize: v.GetInt64("feed_import.max_document_size"),
			PreviewLimit:    v.GetInt("feed_import.preview_limit"),
			FetchTimeout:    v.GetDuration("feed_import.fetch_timeout"),
		},
		Webhook: WebhookConfig{
			IdempotencyTTL: v.GetDuration("webhook.idempotency_ttl"),
			MaxBodySize:    v.GetInt64("webhook.max_body_size"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			KeyPrefix:         v.GetString("storage.key_prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
		Secrets: SecretsConfig{
			Key: v.GetString("secrets.key"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "connectors"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "connectors"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "connectors:webhook:"
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 3 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 50 << 20 // 50MB feed uploads
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty CORS origin list allows no cross-origin requests
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Scheduler.BankSyncCron == "" {
		cfg.Scheduler.BankSyncCron = "*/15 * * * *"
	}
	if cfg.Scheduler.FeedImportCron == "" {
		cfg.Scheduler.FeedImportCron = "*/30 * * * *"
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 3
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 100
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.BankSync.ConnectTimeout == 0 {
		cfg.BankSync.ConnectTimeout = 5 * time.Second
	}
	if cfg.BankSync.ReadTimeout == 0 {
		cfg.BankSync.ReadTimeout = 30 * time.Second
	}
	if cfg.BankSync.MaxRetries == 0 {
		cfg.BankSync.MaxRetries = 5
	}
	if cfg.BankSync.BackoffFactor == 0 {
		cfg.BankSync.BackoffFactor = 100 * time.Millisecond
	}
	if cfg.BankSync.TokenSafetyWindow == 0 {
		cfg.BankSync.TokenSafetyWindow = 5 * time.Minute
	}
	if cfg.BankSync.DefaultWindowDays == 0 {
		cfg.BankSync.DefaultWindowDays = 30
	}
	if cfg.FeedImport.MaxDocumentSize == 0 {
		cfg.FeedImport.MaxDocumentSize = 200 << 20 // 200MB
	}
	if cfg.FeedImport.PreviewLimit == 0 {
		cfg.FeedImport.PreviewLimit = 10
	}
	if cfg.FeedImport.FetchTimeout == 0 {
		cfg.FeedImport.FetchTimeout = 2 * time.Minute
	}
	if cfg.Webhook.IdempotencyTTL == 0 {
		cfg.Webhook.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Webhook.MaxBodySize == 0 {
		cfg.Webhook.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "xml-feeds/"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "connectors"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.PyroscopeAddress == "" {
		cfg.Telemetry.PyroscopeAddress = "http://localhost:4040"
	}
}

var validate = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.bucket, storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	for name, raw := range map[string]string{
		"bank_sync.garanti_url": c.BankSync.GarantiURL,
		"bank_sync.ziraat_url":  c.BankSync.ZiraatURL,
		"bank_sync.qnb_url":     c.BankSync.QNBURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Secrets.Key == "" {
			return fmt.Errorf("secrets.key is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
