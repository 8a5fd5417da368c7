package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "THIRTYSIX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "auth.audience", typ: kString, env: "THIRTYSIX_AUTH_AUDIENCE",
		apply:   func(cfg *Config, v any) { cfg.Auth.Audience = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Audience },
	},
	{
		key: "auth.issuer", typ: kString, env: "THIRTYSIX_AUTH_ISSUER",
		apply:   func(cfg *Config, v any) { cfg.Auth.Issuer = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Issuer },
	},
	{
		key: "auth.certs_url", typ: kString, env: "THIRTYSIX_AUTH_CERTS_URL",
		apply:   func(cfg *Config, v any) { cfg.Auth.CertsURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.CertsURL },
	},
	{
		key: "auth.dev_token", typ: kString, env: "THIRTYSIX_AUTH_DEV_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.DevToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.DevToken },
	},
	{
		key: "auth.dev_user", typ: kString, env: "THIRTYSIX_AUTH_DEV_USER",
		apply:   func(cfg *Config, v any) { cfg.Auth.DevUserID = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.DevUserID },
	},
	{
		key: "agent.provider", typ: kString, env: "THIRTYSIX_AGENT_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Agent.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.Provider },
	},
	{
		key: "agent.gemini_api_key", typ: kString, env: "THIRTYSIX_AGENT_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Agent.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.GeminiAPIKey },
	},
	{
		key: "agent.gemini_model", typ: kString, env: "THIRTYSIX_AGENT_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Agent.GeminiModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.GeminiModel },
	},
	{
		key: "agent.openai_api_key", typ: kString, env: "THIRTYSIX_AGENT_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Agent.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.OpenAIAPIKey },
	},
	{
		key: "agent.openai_model", typ: kString, env: "THIRTYSIX_AGENT_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Agent.OpenAIModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.OpenAIModel },
	},
	{
		key: "agent.openai_base_url", typ: kString, env: "THIRTYSIX_AGENT_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Agent.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.OpenAIBaseURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "THIRTYSIX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.catalog_path", typ: kString, env: "THIRTYSIX_STORAGE_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.CatalogPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.CatalogPath },
	},
	{
		key: "storage.prompts_path", typ: kString, env: "THIRTYSIX_STORAGE_PROMPTS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.PromptsPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PromptsPath },
	},
	{
		key: "log.level", typ: kString, env: "THIRTYSIX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
