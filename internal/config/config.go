// Package config provides configuration management for the PocketBase MCP server.
// Values come from command-line flags, environment variables and an optional
// config file, resolved through viper in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Transport names accepted by the transport key.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Viper keys.
const (
	KeyTransport          = "transport"
	KeyServerAddr         = "server.addr"
	KeyServerReadTimeout  = "server.read_timeout"
	KeyServerWriteTimeout = "server.write_timeout"
	KeyServerIdleTimeout  = "server.idle_timeout"
	KeyPocketBaseURL      = "pocketbase.url"
	KeyPocketBaseEmail    = "pocketbase.admin_email"
	KeyPocketBasePassword = "pocketbase.admin_password"
	KeyPocketBaseTimeout  = "pocketbase.timeout"
	KeySchemaPath         = "schema.path"
	KeyUsersCollection    = "identity.users_collection"
	KeyLookupField        = "identity.lookup_field"
	KeyOwnerField         = "identity.owner_field"
	KeyIdentityCacheSize  = "identity.cache_size"
	KeyIdentityCacheTTL   = "identity.cache_ttl"
	KeyAuthJWTSecret      = "auth.jwt_secret"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
)

// binding ties a viper key to its environment variable, command-line flag and default.
type binding struct {
	key   string
	env   string
	flag  string
	def   interface{}
	usage string
}

var bindings = []binding{
	{KeyTransport, "MCP_TRANSPORT", "transport", TransportStdio, "transport to serve: stdio or sse"},
	{KeyServerAddr, "SERVER_ADDR", "addr", ":3000", "listen address for the sse transport"},
	{KeyServerReadTimeout, "SERVER_READ_TIMEOUT", "read-timeout", 30 * time.Second, "HTTP read timeout"},
	{KeyServerWriteTimeout, "SERVER_WRITE_TIMEOUT", "write-timeout", time.Duration(0), "HTTP write timeout (0 keeps SSE streams open)"},
	{KeyServerIdleTimeout, "SERVER_IDLE_TIMEOUT", "idle-timeout", 120 * time.Second, "HTTP idle timeout"},
	{KeyPocketBaseURL, "POCKETBASE_URL", "pocketbase-url", "http://127.0.0.1:8090", "PocketBase base URL"},
	{KeyPocketBaseEmail, "POCKETBASE_ADMIN_EMAIL", "admin-email", "", "PocketBase superuser email"},
	{KeyPocketBasePassword, "POCKETBASE_ADMIN_PASSWORD", "admin-password", "", "PocketBase superuser password"},
	{KeyPocketBaseTimeout, "POCKETBASE_TIMEOUT", "pocketbase-timeout", time.Duration(0), "per-request backend timeout (0 = none)"},
	{KeySchemaPath, "SCHEMA_PATH", "schema", "./pb_schema.json", "path to the schema document"},
	{KeyUsersCollection, "USERS_COLLECTION", "users-collection", "users", "collection holding internal users"},
	{KeyLookupField, "USER_LOOKUP_FIELD", "lookup-field", "external_id", "users field holding the caller identity"},
	{KeyOwnerField, "OWNER_FIELD", "owner-field", "user", "record field holding the owning user id"},
	{KeyIdentityCacheSize, "IDENTITY_CACHE_SIZE", "identity-cache-size", 1024, "resolved identity cache entries (0 disables)"},
	{KeyIdentityCacheTTL, "IDENTITY_CACHE_TTL", "identity-cache-ttl", 5 * time.Minute, "resolved identity cache TTL"},
	{KeyAuthJWTSecret, "AUTH_JWT_SECRET", "jwt-secret", "", "HS256 secret enabling bearer auth on the sse transport"},
	{KeyLogLevel, "LOG_LEVEL", "log-level", "info", "log level: debug, info, warn, error"},
	{KeyLogFormat, "LOG_FORMAT", "log-format", "json", "log format: json or console"},
}

// Config holds the complete server configuration in a flat structure.
type Config struct {
	// Transport selects stdio or sse.
	Transport string

	// Server settings
	// Addr is the address to bind the HTTP server (e.g., ":3000").
	Addr string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Zero disables it, which SSE streams require.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration

	// PocketBase settings
	PocketBaseURL  string
	AdminEmail     string
	AdminPassword  string
	BackendTimeout time.Duration

	// SchemaPath is the schema document applied by apply_schema and served as a resource.
	SchemaPath string

	// Identity settings
	UsersCollection   string
	LookupField       string
	OwnerField        string
	IdentityCacheSize int
	IdentityCacheTTL  time.Duration

	// JWTSecret enables bearer authentication on the HTTP transport when non-empty.
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string
}

// NewViper returns a viper instance with every key's default and
// environment variable registered.
func NewViper() *viper.Viper {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		mustBindEnv(v, b.key, b.env)
	}
	return v
}

// RegisterFlags defines one flag per configuration key on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, b := range bindings {
		switch def := b.def.(type) {
		case string:
			fs.String(b.flag, def, b.usage)
		case int:
			fs.Int(b.flag, def, b.usage)
		case time.Duration:
			fs.Duration(b.flag, def, b.usage)
		}
	}
}

// BindFlags binds the flags registered by RegisterFlags to v.
// Explicitly set flags take precedence over environment and file values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for _, b := range bindings {
		mustBindFlag(v, b.key, fs.Lookup(b.flag))
	}
}

// ReadFile merges a YAML, TOML or JSON config file into v.
// An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Transport:    strings.ToLower(strings.TrimSpace(v.GetString(KeyTransport))),
		Addr:         strings.TrimSpace(v.GetString(KeyServerAddr)),
		ReadTimeout:  v.GetDuration(KeyServerReadTimeout),
		WriteTimeout: v.GetDuration(KeyServerWriteTimeout),
		IdleTimeout:  v.GetDuration(KeyServerIdleTimeout),

		PocketBaseURL:  strings.TrimRight(strings.TrimSpace(v.GetString(KeyPocketBaseURL)), "/"),
		AdminEmail:     strings.TrimSpace(v.GetString(KeyPocketBaseEmail)),
		AdminPassword:  v.GetString(KeyPocketBasePassword),
		BackendTimeout: v.GetDuration(KeyPocketBaseTimeout),

		SchemaPath: strings.TrimSpace(v.GetString(KeySchemaPath)),

		UsersCollection:   strings.TrimSpace(v.GetString(KeyUsersCollection)),
		LookupField:       strings.TrimSpace(v.GetString(KeyLookupField)),
		OwnerField:        strings.TrimSpace(v.GetString(KeyOwnerField)),
		IdentityCacheSize: v.GetInt(KeyIdentityCacheSize),
		IdentityCacheTTL:  v.GetDuration(KeyIdentityCacheTTL),

		JWTSecret: v.GetString(KeyAuthJWTSecret),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AdminAuthEnabled reports whether superuser credentials were supplied.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// String returns a string representation of the configuration (for debugging).
// Sensitive values are redacted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Transport: %s, Addr: %s, ReadTimeout: %v, WriteTimeout: %v, IdleTimeout: %v, PocketBaseURL: %s, AdminEmail: %s, AdminPassword: %s, SchemaPath: %s, UsersCollection: %s, LookupField: %s, OwnerField: %s, JWTSecret: %s, LogLevel: %s}",
		c.Transport, c.Addr, c.ReadTimeout, c.WriteTimeout, c.IdleTimeout,
		c.PocketBaseURL, c.AdminEmail, redact(c.AdminPassword), c.SchemaPath,
		c.UsersCollection, c.LookupField, c.OwnerField, redact(c.JWTSecret), c.LogLevel)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func mustBindEnv(v *viper.Viper, key, env string) {
	if err := v.BindEnv(key, env); err != nil {
		panic(err)
	}
}

func mustBindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
