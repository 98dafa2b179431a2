// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/admin-bff/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	RedisURL    string `kong:"help='Redis URL for the response cache (overrides config).',env='REDIS_URL'"`
	AMQPURL     string `kong:"name='amqp-url',help='AMQP URL for cache invalidation events (overrides config).',env='AMQP_URL'"`
	DatabaseURL string `kong:"help='PostgreSQL DSN for the audit trail (overrides config).',env='AUDIT_DATABASE_URL'"`
	CSRFSecret  string `kong:"name='csrf-secret',help='HMAC secret for CSRF tokens (overrides config).',env='CSRF_SECRET'"`
	JWTSecret   string `kong:"name='jwt-secret',help='Shared secret for jwt auth mode (overrides config).',env='JWT_SECRET'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig      `toml:"server"`
	Upstream UpstreamConfig    `toml:"upstream"`
	Services map[string]string `toml:"services"`
	Auth     AuthConfig        `toml:"auth"`
	CSRF     CSRFConfig        `toml:"csrf"`
	Cache    CacheConfig       `toml:"cache"`
	Events   EventsConfig      `toml:"events"`
	Audit    AuditConfig       `toml:"audit"`
	Health   HealthConfig      `toml:"health"`
	Tracing  TracingConfig     `toml:"tracing"`
	Log      LogConfig         `toml:"log"`
	Metrics  MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds settings shared by all backend calls.
type UpstreamConfig struct {
	TimeoutSeconds         int `toml:"timeout_seconds"`
	IdleConnections        int `toml:"idle_connections"`
	BreakerFailures        int `toml:"breaker_failures"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

// AuthConfig controls how tenant and user identity is derived.
type AuthConfig struct {
	// Mode is "headers" (trust claim headers set by the identity proxy) or
	// "jwt" (verify the bearer token locally).
	Mode             string   `toml:"mode"`
	TenantHeaders    []string `toml:"tenant_headers"`
	UserHeaders      []string `toml:"user_headers"`
	JWTSecret        string   `toml:"jwt_secret"`
	JWTAlgorithm     string   `toml:"jwt_algorithm"`
	JWTIssuer        string   `toml:"jwt_issuer"`
	JWTAudience      string   `toml:"jwt_audience"`
	ClockSkewSeconds int      `toml:"clock_skew_seconds"`
}

// CSRFConfig holds double-submit CSRF token settings.
type CSRFConfig struct {
	Disabled       bool   `toml:"disabled"`
	Secret         string `toml:"secret"`
	CookieName     string `toml:"cookie_name"`
	HeaderName     string `toml:"header_name"`
	TTLSeconds     int    `toml:"ttl_seconds"`
	InsecureCookie bool   `toml:"insecure_cookie"`
}

// CacheConfig holds response cache settings. An empty RedisURL keeps the
// cache process-local.
type CacheConfig struct {
	RedisURL          string `toml:"redis_url"`
	KeyPrefix         string `toml:"key_prefix"`
	PoolSize          int    `toml:"pool_size"`
	DefaultTTLSeconds int    `toml:"default_ttl_seconds"`
	MaxLocalEntries   int    `toml:"max_local_entries"`
}

// EventsConfig holds the AMQP settings for cross-replica cache invalidation.
type EventsConfig struct {
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

// AuditConfig holds the audit trail database settings.
type AuditConfig struct {
	DatabaseURL string `toml:"database_url"`
	MaxConns    int32  `toml:"max_conns"`
}

// HealthConfig controls the backend readiness poller.
type HealthConfig struct {
	Schedule       string   `toml:"schedule"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Path           string   `toml:"path"`
	Required       []string `toml:"required"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled      bool    `toml:"enabled"`
	Endpoint     string  `toml:"endpoint"`
	SamplingRate float64 `toml:"sampling_rate"` // 0 means "use default" (1.0)
	Environment  string  `toml:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file, applies per-service environment
// overrides and CLI overrides. When no explicit path is given (via --config
// or CONFIG_PATH), it searches /etc/admin-bff/config.toml then
// configs/config.toml. A missing file is not an error: the BFF can run on
// defaults and environment variables alone.
func Load(cli *CLI) (*Config, error) {
	return LoadWithEnv(cli, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup function.
func LoadWithEnv(cli *CLI, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyServiceEnv(lookup)
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyServiceEnv overrides [services] entries with <NAME>_SERVICE_URL
// variables.
func (c *Config) applyServiceEnv(lookup func(string) (string, bool)) {
	for name, def := range knownServices {
		v, ok := lookup(def.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if c.Services == nil {
			c.Services = make(map[string]string)
		}
		c.Services[name] = strings.TrimSpace(v)
	}
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.RedisURL != "" {
		c.Cache.RedisURL = cli.RedisURL
	}
	if cli.AMQPURL != "" {
		c.Events.AMQPURL = cli.AMQPURL
	}
	if cli.DatabaseURL != "" {
		c.Audit.DatabaseURL = cli.DatabaseURL
	}
	if cli.CSRFSecret != "" {
		c.CSRF.Secret = cli.CSRFSecret
	}
	if cli.JWTSecret != "" {
		c.Auth.JWTSecret = cli.JWTSecret
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Backend URLs: known names only, absolute http(s).
	for name, raw := range c.Services {
		if _, ok := knownServices[name]; !ok {
			return fmt.Errorf("services.%s is not a known backend service", name)
		}
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("services.%s: %w", name, err)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.BreakerFailures < 0 || c.Upstream.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("upstream breaker settings must be non-negative")
	}
	if c.Cache.DefaultTTLSeconds < 0 || c.Cache.PoolSize < 0 || c.Cache.MaxLocalEntries < 0 {
		return fmt.Errorf("cache settings must be non-negative")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be within 0-1; got %v", c.Tracing.SamplingRate)
	}

	// Auth mode.
	switch strings.ToLower(c.Auth.Mode) {
	case "", "headers":
	case "jwt":
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return fmt.Errorf("auth.jwt_secret is required when auth.mode is jwt")
		}
	default:
		return fmt.Errorf("auth.mode must be one of: headers, jwt; got %q", c.Auth.Mode)
	}

	// CSRF secret is mandatory unless CSRF protection is explicitly off.
	if !c.CSRF.Disabled && len(c.CSRF.Secret) < 32 {
		return fmt.Errorf("csrf.secret must be at least 32 characters (set CSRF_SECRET) or csrf.disabled = true")
	}

	for _, name := range c.Health.Required {
		if _, ok := knownServices[name]; !ok {
			return fmt.Errorf("health.required lists unknown service %q", name)
		}
	}

	if c.Cache.RedisURL != "" {
		u, err := url.Parse(c.Cache.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("cache.redis_url must be a redis:// or rediss:// URL")
		}
	}
	if c.Events.AMQPURL != "" {
		u, err := url.Parse(c.Events.AMQPURL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			return fmt.Errorf("events.amqp_url must be an amqp:// or amqps:// URL")
		}
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/api", "/auth"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 2 * 1024 * 1024 // 2 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 15
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.BreakerFailures == 0 {
		c.Upstream.BreakerFailures = 5
	}
	if c.Upstream.BreakerCooldownSeconds == 0 {
		c.Upstream.BreakerCooldownSeconds = 30
	}

	if c.Services == nil {
		c.Services = make(map[string]string)
	}
	for name, def := range knownServices {
		if c.Services[name] == "" {
			c.Services[name] = def.defaultURL()
		}
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "headers"
	}
	c.Auth.Mode = strings.ToLower(c.Auth.Mode)
	if len(c.Auth.TenantHeaders) == 0 {
		c.Auth.TenantHeaders = []string{"X-Jwt-Claim-Tenant-Id", "X-Tenant-ID"}
	}
	if len(c.Auth.UserHeaders) == 0 {
		c.Auth.UserHeaders = []string{"X-Jwt-Claim-Sub", "X-User-ID"}
	}
	if c.Auth.JWTAlgorithm == "" {
		c.Auth.JWTAlgorithm = "HS256"
	}

	if c.CSRF.CookieName == "" {
		c.CSRF.CookieName = "bff_csrf"
	}
	if c.CSRF.HeaderName == "" {
		c.CSRF.HeaderName = "X-CSRF-Token"
	}
	if c.CSRF.TTLSeconds == 0 {
		c.CSRF.TTLSeconds = 2 * 60 * 60
	}

	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "bff"
	}
	if c.Cache.PoolSize == 0 {
		c.Cache.PoolSize = 10
	}
	if c.Cache.DefaultTTLSeconds == 0 {
		c.Cache.DefaultTTLSeconds = 60
	}
	if c.Cache.MaxLocalEntries == 0 {
		c.Cache.MaxLocalEntries = 10000
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = "admin-bff.cache-invalidation"
	}
	if c.Audit.MaxConns == 0 {
		c.Audit.MaxConns = 4
	}

	if c.Health.Schedule == "" {
		c.Health.Schedule = "@every 30s"
	}
	if c.Health.TimeoutSeconds == 0 {
		c.Health.TimeoutSeconds = 3
	}
	if c.Health.Path == "" {
		c.Health.Path = "/health"
	}

	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "otel-collector.observability.svc.cluster.local:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "dev"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the default upstream call timeout.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServiceURL returns the base URL configured for a backend service.
func (c *Config) ServiceURL(name string) (string, bool) {
	u, ok := c.Services[name]
	return u, ok && u != ""
}

// ServiceNames returns the configured backend names in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether readiness depends on the named service.
func (c *HealthConfig) IsRequired(name string) bool {
	return slices.Contains(c.Required, name)
}

// WarnPermissions logs a warning if the config file is readable by group or
// others. The file may carry the CSRF and JWT secrets.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
