package config

import (
	"errors"
	"testing"
)

// mapBackend is a test double for ConfigBackend.
type mapBackend struct {
	strings map[string]string
	ints    map[string]int
}

func (b mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.strings[key]
	return v, ok, nil
}

func (b mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b mapBackend) SetString(key, val string) error  { return nil }
func (b mapBackend) SetInt(key string, val int) error { return nil }
func (b mapBackend) Delete(key string) error          { return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWith(mapBackend{}, mockKeychain{err: errors.New("no key")})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}

	if cfg.Server.Port != 4080 {
		t.Errorf("Server.Port = %d, want 4080", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.SyncURL != "http://localhost:5010" {
		t.Errorf("Backend.SyncURL = %q", cfg.Backend.SyncURL)
	}
	if cfg.OpenRouter.Model != "google/gemini-3-flash-preview" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if cfg.Convert.PollIntervalMS != 1000 {
		t.Errorf("Convert.PollIntervalMS = %d, want 1000", cfg.Convert.PollIntervalMS)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoadMissingAPIKeyIsNotAnError(t *testing.T) {
	cfg, err := loadWith(mapBackend{}, mockKeychain{err: errors.New("not found")})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.OpenRouter.APIKey != "" {
		t.Errorf("OpenRouter.APIKey = %q, want empty", cfg.OpenRouter.APIKey)
	}
}

func TestLoadFromBackend(t *testing.T) {
	b := mapBackend{
		strings: map[string]string{
			"backend.base_url": "http://tts.example.com",
			"openrouter.model": "anthropic/claude-sonnet",
		},
		ints: map[string]int{
			"server.port":              9090,
			"convert.poll_interval_ms": 250,
		},
	}

	cfg, err := loadWith(b, mockKeychain{err: errors.New("no key")})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}

	if cfg.Backend.BaseURL != "http://tts.example.com" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.OpenRouter.Model != "anthropic/claude-sonnet" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Convert.PollIntervalMS != 250 {
		t.Errorf("Convert.PollIntervalMS = %d, want 250", cfg.Convert.PollIntervalMS)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	b := mapBackend{
		strings: map[string]string{"backend.base_url": "http://from-backend"},
		ints:    map[string]int{"server.port": 9090},
	}

	t.Setenv("VAANI_BACKEND_BASE_URL", "http://from-env")
	t.Setenv("VAANI_SERVER_PORT", "7070")

	cfg, err := loadWith(b, mockKeychain{err: errors.New("no key")})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}

	if cfg.Backend.BaseURL != "http://from-env" {
		t.Errorf("Backend.BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestInvalidIntEnvFallsBack(t *testing.T) {
	t.Setenv("VAANI_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(mapBackend{}, mockKeychain{err: errors.New("no key")})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.Server.Port != 4080 {
		t.Errorf("Server.Port = %d, want default 4080", cfg.Server.Port)
	}
}

func TestAPIKeyFromKeychain(t *testing.T) {
	kc := mockKeychain{value: "keychain-secret"}

	cfg, err := loadWith(mapBackend{}, kc)
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.OpenRouter.APIKey != "keychain-secret" {
		t.Errorf("OpenRouter.APIKey = %q, want %q", cfg.OpenRouter.APIKey, "keychain-secret")
	}
}

func TestEnvAPIKeyPreemptsKeychain(t *testing.T) {
	t.Setenv("VAANI_OPENROUTER_API_KEY", "env-secret")

	cfg, err := loadWith(mapBackend{}, mockKeychain{value: "keychain-secret"})
	if err != nil {
		t.Fatalf("loadWith() error = %v", err)
	}
	if cfg.OpenRouter.APIKey != "env-secret" {
		t.Errorf("OpenRouter.APIKey = %q, want env value", cfg.OpenRouter.APIKey)
	}
}

func TestShowAllOmitsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenRouter.APIKey = "sk-or-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "openrouter.api_key" {
			t.Fatalf("ShowAll exposed secret key %q", info.Key)
		}
		if info.Value == "sk-or-secret" {
			t.Fatalf("ShowAll exposed secret value under key %q", info.Key)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	want := map[string]bool{
		"server.port":              false,
		"backend.base_url":         false,
		"backend.sync_url":         false,
		"openrouter.model":         false,
		"convert.poll_interval_ms": false,
		"log.level":                false,
	}
	for _, k := range keys {
		if k == "openrouter.api_key" {
			t.Fatalf("ValidKeys included secret key")
		}
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("ValidKeys missing %q", k)
		}
	}
}
