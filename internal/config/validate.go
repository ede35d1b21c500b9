package config

import (
	"fmt"
	"net/url"

	"go.uber.org/zap/zapcore"
)

// Validate checks that the configuration is valid and complete.
// It returns an error if required fields are missing or values are invalid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := validatePocketBase(cfg); err != nil {
		return fmt.Errorf("invalid pocketbase config: %w", err)
	}

	if err := validateIdentity(cfg); err != nil {
		return fmt.Errorf("invalid identity config: %w", err)
	}

	if err := validateLog(cfg); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}

// validateServer validates the transport and HTTP server fields.
func validateServer(cfg *Config) error {
	switch cfg.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("MCP_TRANSPORT must be %q or %q, got %q", TransportStdio, TransportSSE, cfg.Transport)
	}

	if cfg.Transport == TransportSSE && cfg.Addr == "" {
		return fmt.Errorf("SERVER_ADDR is required for the sse transport")
	}

	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be non-negative")
	}

	// 0 means no timeout
	if cfg.WriteTimeout < 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be non-negative")
	}

	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("SERVER_IDLE_TIMEOUT must be non-negative")
	}

	return nil
}

// validatePocketBase validates the backend connection fields.
func validatePocketBase(cfg *Config) error {
	if cfg.PocketBaseURL == "" {
		return fmt.Errorf("POCKETBASE_URL is required")
	}

	parsedURL, err := url.Parse(cfg.PocketBaseURL)
	if err != nil {
		return fmt.Errorf("invalid POCKETBASE_URL: %w", err)
	}

	if !parsedURL.IsAbs() || parsedURL.Host == "" {
		return fmt.Errorf("POCKETBASE_URL must be an absolute URL")
	}

	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return fmt.Errorf("POCKETBASE_URL must use http or https scheme")
	}

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return fmt.Errorf("POCKETBASE_ADMIN_EMAIL and POCKETBASE_ADMIN_PASSWORD must be set together")
	}

	if cfg.BackendTimeout < 0 {
		return fmt.Errorf("POCKETBASE_TIMEOUT must be non-negative")
	}

	if cfg.SchemaPath == "" {
		return fmt.Errorf("SCHEMA_PATH is required")
	}

	return nil
}

// validateIdentity validates the identity resolution fields.
func validateIdentity(cfg *Config) error {
	if cfg.UsersCollection == "" {
		return fmt.Errorf("USERS_COLLECTION is required")
	}

	if cfg.LookupField == "" {
		return fmt.Errorf("USER_LOOKUP_FIELD is required")
	}

	if cfg.OwnerField == "" {
		return fmt.Errorf("OWNER_FIELD is required")
	}

	if cfg.IdentityCacheSize < 0 {
		return fmt.Errorf("IDENTITY_CACHE_SIZE must be non-negative")
	}

	if cfg.IdentityCacheSize > 0 && cfg.IdentityCacheTTL <= 0 {
		return fmt.Errorf("IDENTITY_CACHE_TTL must be positive when the cache is enabled")
	}

	return nil
}

// validateLog validates the logging fields.
func validateLog(cfg *Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	return nil
}
