package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderDuyue  = "duyue"
	ProviderOpenAI = "openai"

	DefaultUpstreamBaseURL = "https://www.duyueai.com"
)

// ServerConfig configures `preface serve`.
type ServerConfig struct {
	Server   HTTPConfig     `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// UpstreamConfig selects the generation provider. BaseURL is the
// generation service that also hosts the history and favorites endpoints;
// OpenAIBaseURL only applies to the openai provider and defaults to the
// public API when empty.
type UpstreamConfig struct {
	Provider      string        `mapstructure:"provider"`
	BaseURL       string        `mapstructure:"base_url"`
	OpenAIBaseURL string        `mapstructure:"openai_base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Streams stay open for as long as upstream keeps generating.
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("upstream.provider", ProviderDuyue)
	v.SetDefault("upstream.base_url", DefaultUpstreamBaseURL)
	v.SetDefault("upstream.openai_base_url", "")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.model", "gpt-4o-mini")
	v.SetDefault("upstream.timeout", 5*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadServer reads an optional YAML file and PREFACE_* environment variables
// over built-in defaults, e.g. PREFACE_UPSTREAM_API_KEY or PREFACE_SERVER_PORT.
func LoadServer(path string) (*ServerConfig, error) {
	v := viper.New()
	setServerDefaults(v)

	v.SetEnvPrefix("PREFACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading server config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	switch c.Upstream.Provider {
	case ProviderDuyue:
	case ProviderOpenAI:
		if c.Upstream.APIKey == "" {
			return fmt.Errorf("upstream.api_key is required for the %s provider (or set PREFACE_UPSTREAM_API_KEY)", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("unknown upstream.provider %q (valid: %s, %s)", c.Upstream.Provider, ProviderDuyue, ProviderOpenAI)
	}
	return nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
