// Package config declares the CLI configuration, loaded from environment
// variables via koanf.
package config

// Default file locations under the working directory.
const (
	// DefaultTokenFile is where the OAuth token is persisted after setup.
	DefaultTokenFile = "data/token.json"
	// DefaultStateFile is where the last server timestamp is persisted
	// between incremental syncs.
	DefaultStateFile = "data/sync_state.json"
)

// Config holds the zenmoney CLI configuration.
type Config struct {
	// ClientID is the OAuth2 client id issued by ZenMoney.
	// Environment variable: ZENMONEY_CLIENT_ID
	ClientID string `koanf:"ZENMONEY_CLIENT_ID"`

	// ClientSecret is the OAuth2 client secret.
	// Environment variable: ZENMONEY_CLIENT_SECRET
	ClientSecret string `koanf:"ZENMONEY_CLIENT_SECRET"`

	// RedirectURI must match the redirect URI registered with ZenMoney.
	// Environment variable: ZENMONEY_REDIRECT_URI
	RedirectURI string `koanf:"ZENMONEY_REDIRECT_URI"`

	// TokenFile is the token persistence path.
	// Environment variable: ZENMONEY_TOKEN_FILE
	TokenFile string `koanf:"ZENMONEY_TOKEN_FILE"`

	// StateFile is the sync-state persistence path.
	// Environment variable: ZENMONEY_STATE_FILE
	StateFile string `koanf:"ZENMONEY_STATE_FILE"`

	// ExportFormat selects where synced transactions go: json, csv or
	// postgres. Environment variable: EXPORT_FORMAT
	ExportFormat string `koanf:"EXPORT_FORMAT"`

	// ExportPath is the output file for the json and csv formats.
	// Environment variable: EXPORT_PATH
	ExportPath string `koanf:"EXPORT_PATH"`

	// Postgres connection settings, used when ExportFormat is postgres.
	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDatabase string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}
	if c.ExportFormat == "" {
		c.ExportFormat = "json"
	}
	if c.ExportPath == "" {
		c.ExportPath = "data/transactions." + c.ExportFormat
	}
}
