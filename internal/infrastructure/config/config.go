package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CATALOGSYNC_DATABASE_PASSWORD
const EnvPrefix = "CATALOGSYNC"

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Sync       SyncConfig
	Platforms  PlatformsConfig
	Stores     []StoreConfig
	ImageProxy ImageProxyConfig
	Taxonomy   TaxonomyConfig
	Storage    StorageConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds ledger and catalog database settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path, ":memory:" for tests
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis settings for distributed sync locks
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxBodySize    int64
	RequestTimeout time.Duration // deadline for single-product requests
	AllowOrigins   []string      // CORS origins; empty rejects cross-origin calls
	RateLimit      RateLimitConfig
}

// RateLimitConfig bounds API calls per client
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled               bool
	CollectorEndpoint     string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio         float64 // 0.0-1.0
	ServiceName           string
	Insecure              bool
	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool
	LogsLevel             string // minimum level exported over OTLP
	Profiling             ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string
	SpanProfiles      bool // link CPU profiles to trace spans
}

// SyncConfig tunes the push engine
type SyncConfig struct {
	Concurrency       int           // bulk worker pool size
	CallTimeout       time.Duration // deadline for each remote call
	MaxRetries        int           // attempts after the first for retryable errors
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	MediaPollInterval time.Duration
	MediaPollAttempts int
	LockTimeout       time.Duration // how long a push waits for the per-product lock
	Resync            ResyncConfig
}

// ResyncConfig controls the background re-push of failed records
type ResyncConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	MaxRecords int // records collected per platform and sweep
	Workers    int
	JobTimeout time.Duration
}

// PlatformConfig holds per-platform client settings shared by all stores
type PlatformConfig struct {
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
	WeightUnit        string
	WeightPrecision   int32
}

// PlatformsConfig groups the three platform configurations
type PlatformsConfig struct {
	WooCommerce PlatformConfig
	Shopify     PlatformConfig
	Storefront  PlatformConfig
}

// StoreConfig describes one store connection. Secrets are never stored in the
// file; the *Env fields name environment variables read at request time.
type StoreConfig struct {
	ID             string `mapstructure:"id"`
	Platform       string `mapstructure:"platform"`
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	PasswordEnv    string `mapstructure:"password_env"`
	AccessTokenEnv string `mapstructure:"access_token_env"`
	Repository     string `mapstructure:"repository"`
	Branch         string `mapstructure:"branch"`
}

// ImageProxyConfig configures the image rewrite collaborator
type ImageProxyConfig struct {
	Enabled bool
	BaseURL string
}

// TaxonomyEntryConfig is one product type mapping
type TaxonomyEntryConfig struct {
	Name     string   `mapstructure:"name"`
	Category string   `mapstructure:"category"`
	Keywords []string `mapstructure:"keywords"`
}

// TaxonomyConfig holds the product type table. An empty table uses the built-in one.
type TaxonomyConfig struct {
	DefaultCategory string
	Entries         []TaxonomyEntryConfig
}

// StorageConfig selects the storefront content backend
type StorageConfig struct {
	Backend    string // contents_api, s3 or memory
	ContentDir string // directory of product documents
	S3         S3Config
}

// S3Config holds S3 compatible object storage settings
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CATALOGSYNC_ prefix (e.g., CATALOGSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/catalogsync")
	return load(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
			AllowOrigins:   v.GetStringSlice("http.allow_origins"),
			RateLimit: RateLimitConfig{
				Enabled:           v.GetBool("http.rate_limit.enabled"),
				RequestsPerSecond: v.GetFloat64("http.rate_limit.requests_per_second"),
				Burst:             v.GetInt("http.rate_limit.burst"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
			LogsLevel:             v.GetString("telemetry.logs_level"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling.enabled"),
				ServerAddress:     v.GetString("telemetry.profiling.server_address"),
				BasicAuthUser:     v.GetString("telemetry.profiling.basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling.basic_auth_password"),
				ProfileTypes:      v.GetStringSlice("telemetry.profiling.profile_types"),
				SpanProfiles:      v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
		Sync: SyncConfig{
			Concurrency:       v.GetInt("sync.concurrency"),
			CallTimeout:       v.GetDuration("sync.call_timeout"),
			MaxRetries:        v.GetInt("sync.max_retries"),
			InitialBackoff:    v.GetDuration("sync.initial_backoff"),
			MaxBackoff:        v.GetDuration("sync.max_backoff"),
			MediaPollInterval: v.GetDuration("sync.media_poll_interval"),
			MediaPollAttempts: v.GetInt("sync.media_poll_attempts"),
			LockTimeout:       v.GetDuration("sync.lock_timeout"),
			Resync: ResyncConfig{
				Enabled:    v.GetBool("sync.resync.enabled"),
				Interval:   v.GetDuration("sync.resync.interval"),
				BatchSize:  v.GetInt("sync.resync.batch_size"),
				MaxRecords: v.GetInt("sync.resync.max_records"),
				Workers:    v.GetInt("sync.resync.workers"),
				JobTimeout: v.GetDuration("sync.resync.job_timeout"),
			},
		},
		Platforms: PlatformsConfig{
			WooCommerce: platformConfig(v, "platforms.woocommerce"),
			Shopify:     platformConfig(v, "platforms.shopify"),
			Storefront:  platformConfig(v, "platforms.storefront"),
		},
		ImageProxy: ImageProxyConfig{
			Enabled: v.GetBool("image_proxy.enabled"),
			BaseURL: v.GetString("image_proxy.base_url"),
		},
		Taxonomy: TaxonomyConfig{
			DefaultCategory: v.GetString("taxonomy.default_category"),
		},
		Storage: StorageConfig{
			Backend:    v.GetString("storage.backend"),
			ContentDir: v.GetString("storage.content_dir"),
			S3: S3Config{
				Endpoint:        v.GetString("storage.s3.endpoint"),
				Region:          v.GetString("storage.s3.region"),
				Bucket:          v.GetString("storage.s3.bucket"),
				AccessKeyID:     v.GetString("storage.s3.access_key_id"),
				SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
				UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
				Prefix:          v.GetString("storage.s3.prefix"),
			},
		},
	}

	if err := v.UnmarshalKey("stores", &cfg.Stores); err != nil {
		return nil, fmt.Errorf("error reading stores: %w", err)
	}
	if err := v.UnmarshalKey("taxonomy.entries", &cfg.Taxonomy.Entries); err != nil {
		return nil, fmt.Errorf("error reading taxonomy entries: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func platformConfig(v *viper.Viper, prefix string) PlatformConfig {
	return PlatformConfig{
		APIVersion:        v.GetString(prefix + ".api_version"),
		RequestsPerSecond: v.GetFloat64(prefix + ".requests_per_second"),
		Burst:             v.GetInt(prefix + ".burst"),
		WeightUnit:        v.GetString(prefix + ".weight_unit"),
		WeightPrecision:   v.GetInt32(prefix + ".weight_precision"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "catalogsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "catalogsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 5 * time.Minute
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
		// bulk pushes answer after the whole batch
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 2 * time.Minute
	}
	if cfg.HTTP.RateLimit.RequestsPerSecond == 0 {
		cfg.HTTP.RateLimit.RequestsPerSecond = 20
	}
	if cfg.HTTP.RateLimit.Burst == 0 {
		cfg.HTTP.RateLimit.Burst = 40
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalogsync"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}

	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 4
	}
	if cfg.Sync.CallTimeout == 0 {
		cfg.Sync.CallTimeout = 30 * time.Second
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 5
	}
	if cfg.Sync.InitialBackoff == 0 {
		cfg.Sync.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Sync.MaxBackoff == 0 {
		cfg.Sync.MaxBackoff = 30 * time.Second
	}
	if cfg.Sync.MediaPollInterval == 0 {
		cfg.Sync.MediaPollInterval = 2 * time.Second
	}
	if cfg.Sync.MediaPollAttempts == 0 {
		cfg.Sync.MediaPollAttempts = 15
	}
	if cfg.Sync.LockTimeout == 0 {
		cfg.Sync.LockTimeout = 2 * time.Minute
	}
	if cfg.Sync.Resync.Interval == 0 {
		cfg.Sync.Resync.Interval = 15 * time.Minute
	}
	if cfg.Sync.Resync.BatchSize == 0 {
		cfg.Sync.Resync.BatchSize = 50
	}
	if cfg.Sync.Resync.MaxRecords == 0 {
		cfg.Sync.Resync.MaxRecords = 1000
	}
	if cfg.Sync.Resync.Workers == 0 {
		cfg.Sync.Resync.Workers = 2
	}
	if cfg.Sync.Resync.JobTimeout == 0 {
		cfg.Sync.Resync.JobTimeout = 10 * time.Minute
	}

	defaultPlatform(&cfg.Platforms.WooCommerce, "wc/v3", 5, "lbs", 3)
	defaultPlatform(&cfg.Platforms.Shopify, "2024-10", 2, "POUNDS", 3)
	defaultPlatform(&cfg.Platforms.Storefront, "2022-11-28", 5, "g", 0)

	if cfg.Taxonomy.DefaultCategory == "" {
		cfg.Taxonomy.DefaultCategory = "Uncategorized"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "contents_api"
	}
	if cfg.Storage.ContentDir == "" {
		cfg.Storage.ContentDir = "content/products"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	for i := range cfg.Stores {
		if cfg.Stores[i].Branch == "" && cfg.Stores[i].Platform == "STOREFRONT" {
			cfg.Stores[i].Branch = "main"
		}
	}
}

func defaultPlatform(p *PlatformConfig, version string, rps float64, unit string, precision int32) {
	if p.APIVersion == "" {
		p.APIVersion = version
	}
	if p.RequestsPerSecond == 0 {
		p.RequestsPerSecond = rps
	}
	if p.Burst == 0 {
		p.Burst = int(rps)
	}
	if p.WeightUnit == "" {
		p.WeightUnit = unit
	}
	if p.WeightPrecision == 0 {
		p.WeightPrecision = precision
	}
}

var supportedPlatforms = []string{"WOOCOMMERCE", "SHOPIFY", "STOREFRONT"}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Sync.Resync.Enabled && c.Sync.Resync.Interval < time.Minute {
		return fmt.Errorf("sync.resync.interval must be at least 1m")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries cannot be negative")
	}
	if c.Sync.MaxBackoff < c.Sync.InitialBackoff {
		return fmt.Errorf("sync.max_backoff (%s) cannot be below sync.initial_backoff (%s)",
			c.Sync.MaxBackoff, c.Sync.InitialBackoff)
	}
	if c.Telemetry.Profiling.Enabled && c.Telemetry.Profiling.ServerAddress == "" {
		return fmt.Errorf("telemetry.profiling.server_address is required when profiling is enabled")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.HTTP.RateLimit.RequestsPerSecond < 0 || c.HTTP.RateLimit.Burst < 0 {
		return fmt.Errorf("http.rate_limit values cannot be negative")
	}
	if !slices.Contains([]string{"contents_api", "s3", "memory"}, c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be contents_api, s3 or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
	}
	if c.ImageProxy.Enabled {
		if _, err := url.ParseRequestURI(c.ImageProxy.BaseURL); err != nil {
			return fmt.Errorf("image_proxy.base_url is invalid: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Stores))
	for _, s := range c.Stores {
		if s.ID == "" {
			return fmt.Errorf("stores: id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("stores: duplicate id %q", s.ID)
		}
		seen[s.ID] = true
		if !slices.Contains(supportedPlatforms, s.Platform) {
			return fmt.Errorf("stores.%s: unsupported platform %q", s.ID, s.Platform)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("stores.%s: base_url is required", s.ID)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
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

// Store returns the store configuration with the given id
func (c *Config) Store(id string) (StoreConfig, bool) {
	for _, s := range c.Stores {
		if s.ID == id {
			return s, true
		}
	}
	return StoreConfig{}, false
}
