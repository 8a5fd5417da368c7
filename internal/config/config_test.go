package config

import (
	"strings"
	"testing"
)

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	data map[string]any
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

// mockSecrets is a test double for the secrets store.
type mockSecrets struct {
	values map[string]string
	err    error
}

func (m mockSecrets) Get(service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[service+"/"+account], nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := &memBackend{data: map[string]any{"auth.audience": "demo-project"}}

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8036 {
		t.Errorf("Server.Port = %d, want 8036", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Auth.CertsURL != googleCertsURL {
		t.Errorf("Auth.CertsURL = %q, want default Google certs URL", cfg.Auth.CertsURL)
	}
	if cfg.Storage.CatalogPath != "data/36questions.json" {
		t.Errorf("Storage.CatalogPath = %q, want %q", cfg.Storage.CatalogPath, "data/36questions.json")
	}
	if cfg.Storage.PromptsPath != "data/prompts.json" {
		t.Errorf("Storage.PromptsPath = %q, want %q", cfg.Storage.PromptsPath, "data/prompts.json")
	}
}

func TestIssuerDerivedFromAudience(t *testing.T) {
	clearEnv(t)
	b := &memBackend{data: map[string]any{"auth.audience": "demo-project"}}

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://securetoken.google.com/demo-project"
	if cfg.Auth.Issuer != want {
		t.Errorf("Auth.Issuer = %q, want %q", cfg.Auth.Issuer, want)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := &memBackend{data: map[string]any{
		"auth.audience": "demo-project",
		"server.port":   9000,
	}}
	t.Setenv("THIRTYSIX_SERVER_PORT", "9100")
	t.Setenv("THIRTYSIX_LOG_LEVEL", "debug")

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestDevTokenAllowsMissingAudience(t *testing.T) {
	clearEnv(t)
	t.Setenv("THIRTYSIX_AUTH_DEV_TOKEN", "local-secret")

	cfg, err := loadWith(&memBackend{data: map[string]any{}}, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.DevToken != "local-secret" {
		t.Errorf("Auth.DevToken = %q, want %q", cfg.Auth.DevToken, "local-secret")
	}
	if cfg.Auth.DevUserID != "dev-user" {
		t.Errorf("Auth.DevUserID = %q, want %q", cfg.Auth.DevUserID, "dev-user")
	}
}

func TestMissingAudienceAndDevTokenFails(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(&memBackend{data: map[string]any{}}, mockSecrets{})
	if err == nil {
		t.Fatal("expected error for missing audience and dev token")
	}
	if !strings.Contains(err.Error(), "Firebase project ID") {
		t.Errorf("error = %q, want mention of the missing project ID", err)
	}
}

func TestSecretsFallbackForAPIKeys(t *testing.T) {
	clearEnv(t)
	b := &memBackend{data: map[string]any{
		"auth.audience":  "demo-project",
		"agent.provider": "gemini",
	}}
	sec := mockSecrets{values: map[string]string{"thirtysix/gemini_api_key": "stored-key"}}

	cfg, err := loadWith(b, sec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.GeminiAPIKey != "stored-key" {
		t.Errorf("Agent.GeminiAPIKey = %q, want %q", cfg.Agent.GeminiAPIKey, "stored-key")
	}
}

func TestProviderWithoutKeyFails(t *testing.T) {
	clearEnv(t)
	b := &memBackend{data: map[string]any{
		"auth.audience":  "demo-project",
		"agent.provider": "openai",
	}}

	_, err := loadWith(b, mockSecrets{})
	if err == nil {
		t.Fatal("expected error for provider without API key")
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Agent.GeminiAPIKey = "should-not-appear"

	for _, info := range ShowAll(cfg) {
		if info.Key == "agent.gemini_api_key" || info.Key == "agent.openai_api_key" || info.Key == "auth.dev_token" {
			t.Errorf("secret key %q exposed by ShowAll", info.Key)
		}
		if info.Value == "should-not-appear" {
			t.Errorf("secret value leaked through key %q", info.Key)
		}
	}
}
