// Package config loads the server configuration from greenctf.yaml, GREENCTF_*
// environment variables and flag overrides through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"greenctf/internal/platform/database"
)

// EnvPrefix namespaces environment overrides: auth.lockout_threshold is
// GREENCTF_AUTH_LOCKOUT_THRESHOLD.
const EnvPrefix = "GREENCTF"

// MaxSessionTouchInterval bounds auth.session_touch_interval. A skipped touch
// can bring expiry forward by at most this much.
const MaxSessionTouchInterval = 5 * time.Second

// Config is the full runtime configuration.
type Config struct {
	Server   Server         `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup" yaml:"cleanup"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	Environment        string        `mapstructure:"environment" yaml:"environment"`
	TrustedProxies     []string      `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// IPRequestsPerMinute is the coarse edge throttle applied to every
	// route. Zero disables it.
	IPRequestsPerMinute int `mapstructure:"ip_requests_per_minute" yaml:"ip_requests_per_minute"`
}

// DatabaseConfig selects the relational store shared by all processes.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RedisConfig is optional. With a URL set, rate-limit counters live in Redis
// instead of the database.
type RedisConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

type AuthConfig struct {
	SessionIdleTimeout   time.Duration `mapstructure:"session_idle_timeout" yaml:"session_idle_timeout"`
	SessionTouchInterval time.Duration `mapstructure:"session_touch_interval" yaml:"session_touch_interval"`
	LockoutThreshold     int           `mapstructure:"lockout_threshold" yaml:"lockout_threshold"`
	LockoutDuration      time.Duration `mapstructure:"lockout_duration" yaml:"lockout_duration"`
	LoginMaxAttempts     int           `mapstructure:"login_max_attempts" yaml:"login_max_attempts"`
	LoginWindow          time.Duration `mapstructure:"login_window" yaml:"login_window"`
	CookieName           string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure         bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	BcryptCost           int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig turns on OpenTelemetry spans around gateway operations. The
// exporter is whatever global TracerProvider the binary installs.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SetDefaults registers every key with its default so AutomaticEnv can
// resolve environment overrides for keys absent from the file.
func SetDefaults(v *viper.Viper) {
	db := database.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.ip_requests_per_minute", 300)

	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.dsn", db.DSN)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("auth.session_idle_timeout", time.Hour)
	v.SetDefault("auth.session_touch_interval", time.Duration(0))
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_duration", 30*time.Minute)
	v.SetDefault("auth.login_max_attempts", 10)
	v.SetDefault("auth.login_window", 5*time.Minute)
	v.SetDefault("auth.cookie_name", "greenctf_admin_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.flush_interval", 50*time.Millisecond)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.max_retries", 3)

	v.SetDefault("cleanup.interval", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
}

// BindEnv wires GREENCTF_* environment variables to nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New returns a viper instance with defaults and environment binding. When
// file is empty, greenctf.yaml is searched in the working directory and
// /etc/greenctf; a missing file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("greenctf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/greenctf")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would weaken the lockout and session
// policies or cannot work at all.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", database.DriverSQLite, database.DriverPostgres, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Auth.SessionIdleTimeout <= 0 {
		errs = append(errs, errors.New("auth.session_idle_timeout must be positive"))
	}
	if c.Auth.SessionTouchInterval < 0 || c.Auth.SessionTouchInterval > MaxSessionTouchInterval ||
		c.Auth.SessionTouchInterval >= c.Auth.SessionIdleTimeout {
		errs = append(errs, fmt.Errorf("auth.session_touch_interval must be in [0, %s] and below session_idle_timeout", MaxSessionTouchInterval))
	}
	if c.Auth.LockoutThreshold <= 0 {
		errs = append(errs, errors.New("auth.lockout_threshold must be positive"))
	}
	if c.Auth.LockoutDuration <= 0 {
		errs = append(errs, errors.New("auth.lockout_duration must be positive"))
	}
	if c.Auth.LoginMaxAttempts <= 0 || c.Auth.LoginWindow <= 0 {
		errs = append(errs, errors.New("auth.login_max_attempts and auth.login_window must be positive"))
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, errors.New("auth.cookie_name is required"))
	}
	if c.Audit.BufferSize <= 0 || c.Audit.BatchSize <= 0 || c.Audit.FlushInterval <= 0 {
		errs = append(errs, errors.New("audit.buffer_size, audit.batch_size and audit.flush_interval must be positive"))
	}
	if c.Cleanup.Interval <= 0 {
		errs = append(errs, errors.New("cleanup.interval must be positive"))
	}
	return errors.Join(errs...)
}

// DatabaseSettings converts to the pool configuration.
func (c *Config) DatabaseSettings() database.Config {
	return database.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// IsProduction reports whether the server runs with production hardening.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
