package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Vault    VaultConfig    `yaml:"vault"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// VaultConfig holds the process-wide master secret for token encryption.
type VaultConfig struct {
	MasterKey string `yaml:"master_key" env:"ENCRYPTION_KEY" env-required:"true"`
}

// OAuthConfig holds per-platform OAuth application credentials plus the
// secrets used for state-token signing.
type OAuthConfig struct {
	CallbackBaseURL string        `yaml:"callback_base_url" env:"OAUTH_CALLBACK_BASE_URL" env-required:"true"`
	StateSecret     string        `yaml:"state_secret"      env:"OAUTH_STATE_SECRET"      env-required:"true"`
	StateTTL        time.Duration `yaml:"state_ttl"         env:"OAUTH_STATE_TTL"         env-default:"10m"`

	LinkedInClientID     string `yaml:"linkedin_client_id"     env:"LINKEDIN_CLIENT_ID"`
	LinkedInClientSecret string `yaml:"linkedin_client_secret" env:"LINKEDIN_CLIENT_SECRET"`
	TwitterClientID      string `yaml:"twitter_client_id"      env:"TWITTER_CLIENT_ID"`
	TwitterClientSecret  string `yaml:"twitter_client_secret"  env:"TWITTER_CLIENT_SECRET"`
}

// LLMConfig holds dispatcher-level settings. Vendor API keys are
// per-user data, not configuration.
type LLMConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"30s"`
	MaxTokens      int           `yaml:"max_tokens"      env:"LLM_MAX_TOKENS"      env-default:"1000"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// HasLinkedIn reports whether LinkedIn OAuth is configured.
func (c OAuthConfig) HasLinkedIn() bool {
	return c.LinkedInClientID != "" && c.LinkedInClientSecret != ""
}

// HasTwitter reports whether Twitter OAuth is configured.
func (c OAuthConfig) HasTwitter() bool {
	return c.TwitterClientID != "" && c.TwitterClientSecret != ""
}
