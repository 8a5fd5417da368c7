package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Agent   AgentConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

// AuthConfig controls how bearer tokens are verified. In production mode
// tokens are Firebase ID tokens checked against Google's signing certs;
// setting DevToken switches the server to a single static identity for
// local development.
type AuthConfig struct {
	Audience  string
	Issuer    string
	CertsURL  string
	DevToken  string
	DevUserID string
}

type AgentConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

type StorageConfig struct {
	DataDir     string
	CatalogPath string
	PromptsPath string
}

type LogConfig struct {
	Level string
}

const googleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8036,
		},
		Auth: AuthConfig{
			CertsURL:  googleCertsURL,
			DevUserID: "dev-user",
		},
		Storage: StorageConfig{
			DataDir:     defaultDataDir(),
			CatalogPath: "data/36questions.json",
			PromptsPath: "data/prompts.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file, environment variables,
// and the local secrets store.
//
// The config file lives at $XDG_CONFIG_HOME/thirtysix/config.json.
// Environment variables (THIRTYSIX_*) override file values, and secrets
// (API keys, the dev token) are only ever read from the environment or
// the secrets store, never from the config file.
func Load() (Config, error) {
	return loadWith(newFileBackend(), secretsReader{})
}

// secrets abstracts the secret store for testing.
type secrets interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, sec secrets) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Fall back to the secrets store for keys still empty after env.
	if cfg.Agent.GeminiAPIKey == "" {
		if key, err := sec.Get("thirtysix", "gemini_api_key"); err == nil && key != "" {
			cfg.Agent.GeminiAPIKey = key
		}
	}
	if cfg.Agent.OpenAIAPIKey == "" {
		if key, err := sec.Get("thirtysix", "openai_api_key"); err == nil && key != "" {
			cfg.Agent.OpenAIAPIKey = key
		}
	}

	if cfg.Auth.DevToken == "" && cfg.Auth.Audience == "" {
		msg := "missing required config: Firebase project ID for token verification. " +
			"Set auth.audience (or THIRTYSIX_AUTH_AUDIENCE), or set THIRTYSIX_AUTH_DEV_TOKEN " +
			"to run with a static development identity"
		return Config{}, fmt.Errorf("%s", msg)
	}
	if cfg.Auth.Issuer == "" && cfg.Auth.Audience != "" {
		cfg.Auth.Issuer = "https://securetoken.google.com/" + cfg.Auth.Audience
	}

	switch cfg.Agent.Provider {
	case "gemini":
		if cfg.Agent.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("agent.provider is %q but no API key is set; set THIRTYSIX_AGENT_GEMINI_API_KEY", cfg.Agent.Provider)
		}
	case "openai":
		if cfg.Agent.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("agent.provider is %q but no API key is set; set THIRTYSIX_AGENT_OPENAI_API_KEY", cfg.Agent.Provider)
		}
	}

	return cfg, nil
}

// secretsReader reads from the local secrets file.
type secretsReader struct{}

func (secretsReader) Get(service, account string) (string, error) {
	out, err := secretsGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
