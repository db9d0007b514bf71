package config

import (
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv so tests can supply a fake environment.
type LookupFunc func(key string) (string, bool)

// Environment variables recognized by ApplyEnv.
const (
	EnvZuperAPIKey    = "ZUPER_API_KEY"
	EnvZuperOrgUID    = "ZUPER_ORG_UID"
	EnvZuperBaseURL   = "ZUPER_BASE_URL"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvDatabaseDriver = "DATABASE_DRIVER"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvLogLevel       = "LOG_LEVEL"
	EnvServerPort     = "PORT"
)

// ApplyEnv overrides configuration values with any environment variables that are set.
// Empty values are ignored so an exported-but-blank variable does not wipe the file value.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(EnvZuperAPIKey, &c.Zuper.APIKey)
	set(EnvZuperOrgUID, &c.Zuper.OrgUID)
	set(EnvZuperBaseURL, &c.Zuper.BaseURL)
	set(EnvDatabaseURL, &c.Database.DSN)
	set(EnvDatabaseDriver, &c.Database.Driver)
	set(EnvGeminiAPIKey, &c.LLM.APIKey)
	set(EnvLogLevel, &c.Logging.Level)

	if v, ok := lookup(EnvServerPort); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	// A postgres URL implies the postgres driver unless the driver was set explicitly.
	if _, explicit := lookup(EnvDatabaseDriver); !explicit {
		if dsn, ok := lookup(EnvDatabaseURL); ok && IsPostgresURL(dsn) {
			c.Database.Driver = "postgres"
		}
	}
}

// IsPostgresURL reports whether dsn is a Postgres connection URL.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
