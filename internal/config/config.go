// Package config handles application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	OPA      OPAConfig      `mapstructure:"opa"`
	Database DatabaseConfig `mapstructure:"database"`
	OTEL     OTELConfig     `mapstructure:"otel"`
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// PolicyConfig locates the policy document and how decisions are sourced.
type PolicyConfig struct {
	Path      string `mapstructure:"path"`       // AGENTSAFE_POLICY
	Backend   string `mapstructure:"backend"`    // AGENTSAFE_POLICY_BACKEND: "local" or "remote"
	Workspace string `mapstructure:"workspace"`  // AGENTSAFE_WORKSPACE
}

// ProxyConfig configures the reverse-proxy decision pipeline.
type ProxyConfig struct {
	UpstreamURL   string   `mapstructure:"upstream_url"`    // AGENTSAFE_UPSTREAM_URL
	ToolPathRegex []string `mapstructure:"tool_path_regex"` // AGENTSAFE_PROXY_TOOL_PATH_REGEX (CSV)
	Adapter       string   `mapstructure:"adapter"`         // AGENTSAFE_PROXY_ADAPTER
	ActorHeader   string   `mapstructure:"actor_header"`    // AGENTSAFE_ACTOR_HEADER
}

// OPAConfig points at the remote decision backend (spec §4.9).
type OPAConfig struct {
	URL          string `mapstructure:"url"`           // AGENTSAFE_OPA_URL
	DecisionPath string `mapstructure:"decision_path"` // AGENTSAFE_OPA_DECISION_PATH
}

// DatabaseConfig holds the optional Postgres audit mirror configuration.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"` // AGENTSAFE_DATABASE_URL
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Endpoint       string  `mapstructure:"endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Load reads configuration from an optional file, then overlays the
// flat AGENTSAFE_* environment variables from spec §6. These variables
// don't nest under Viper's automatic dot-to-underscore prefixing, so
// each is bound individually with BindEnv rather than relying on
// AutomaticEnv + SetEnvKeyReplacer.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/agentsafe")
		v.AddConfigPath("$HOME/.agentsafe")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if raw := v.GetString("proxy.tool_path_regex_csv"); raw != "" {
		cfg.Proxy.ToolPathRegex = splitCSV(raw)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 30)

	v.SetDefault("policy.path", "./policy.yaml")
	v.SetDefault("policy.backend", "local")
	v.SetDefault("policy.workspace", ".")

	v.SetDefault("proxy.adapter", "auto")
	v.SetDefault("proxy.actor_header", "X-Agent-Actor")
	v.SetDefault("proxy.tool_path_regex", []string{
		`^/v1/tools/execute$`,
		`^/gateway/tools/execute$`,
		`^/api/tools/.+`,
	})

	v.SetDefault("opa.decision_path", "agentsafe/decision")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "agentsafe")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "agentsafe")
	v.SetDefault("otel.sampling_rate", 1.0)
}

// bindEnvVars binds the flat AGENTSAFE_* variable names from spec §6,
// each explicit because they don't share viper's nested key shape.
func bindEnvVars(v *viper.Viper) error {
	binds := map[string]string{
		"proxy.upstream_url":        "AGENTSAFE_UPSTREAM_URL",
		"policy.path":               "AGENTSAFE_POLICY",
		"policy.backend":            "AGENTSAFE_POLICY_BACKEND",
		"policy.workspace":          "AGENTSAFE_WORKSPACE",
		"proxy.tool_path_regex_csv": "AGENTSAFE_PROXY_TOOL_PATH_REGEX",
		"proxy.adapter":             "AGENTSAFE_PROXY_ADAPTER",
		"proxy.actor_header":        "AGENTSAFE_ACTOR_HEADER",
		"opa.url":                   "AGENTSAFE_OPA_URL",
		"opa.decision_path":         "AGENTSAFE_OPA_DECISION_PATH",
		"database.url":              "AGENTSAFE_DATABASE_URL",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DSN returns the PostgreSQL connection string: URL when set, otherwise a
// key/value string built from the discrete fields. The audit mirror does
// not call it; pgaudit.New builds its own connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
