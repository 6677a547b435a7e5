package provider

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != "openai" {
		t.Errorf("expected Provider='openai', got %q", cfg.Provider)
	}
	if cfg.Model != "gpt-3.5-turbo" {
		t.Errorf("expected Model='gpt-3.5-turbo', got %q", cfg.Model)
	}
	if cfg.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("expected APIKeyEnv='OPENAI_API_KEY', got %q", cfg.APIKeyEnv)
	}
	if cfg.APIKeyFile != "openaiapi.key" {
		t.Errorf("expected APIKeyFile='openaiapi.key', got %q", cfg.APIKeyFile)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("expected Timeout=2m, got %v", cfg.Timeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Provider: "test"},
			wantErr: false,
		},
		{
			name:    "missing provider",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Provider: "test", Timeout: -1 * time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("PROOFREAD_PROVIDER", "mock")
	t.Setenv("PROOFREAD_MODEL", "gpt-4o")
	t.Setenv("PROOFREAD_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("PROOFREAD_TIMEOUT", "90s")

	cfg := Config{}
	cfg.LoadFromEnv()

	if cfg.Provider != "mock" {
		t.Errorf("expected Provider='mock', got %q", cfg.Provider)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("expected Model='gpt-4o', got %q", cfg.Model)
	}
	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("expected BaseURL override, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("expected Timeout=90s, got %v", cfg.Timeout)
	}
}

func TestConfig_ResolveAPIKey(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "openaiapi.key")
	if err := os.WriteFile(keyFile, []byte("  sk-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_PROOFREAD_KEY", "sk-env")

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr error
	}{
		{
			name: "explicit key wins",
			cfg:  Config{APIKey: "sk-explicit", APIKeyEnv: "TEST_PROOFREAD_KEY", APIKeyFile: keyFile},
			want: "sk-explicit",
		},
		{
			name: "environment before file",
			cfg:  Config{APIKeyEnv: "TEST_PROOFREAD_KEY", APIKeyFile: keyFile},
			want: "sk-env",
		},
		{
			name: "file is trimmed",
			cfg:  Config{APIKeyEnv: "TEST_PROOFREAD_UNSET", APIKeyFile: keyFile},
			want: "sk-file",
		},
		{
			name:    "nothing found",
			cfg:     Config{APIKeyEnv: "TEST_PROOFREAD_UNSET", APIKeyFile: filepath.Join(dir, "missing.key")},
			wantErr: ErrCredentialsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveAPIKey()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConfig_WithMethods(t *testing.T) {
	cfg := Config{}

	cfg = cfg.WithProvider("mock")
	if cfg.Provider != "mock" {
		t.Errorf("WithProvider failed: expected 'mock', got %q", cfg.Provider)
	}

	cfg = cfg.WithModel("gpt-4")
	if cfg.Model != "gpt-4" {
		t.Errorf("WithModel failed: expected 'gpt-4', got %q", cfg.Model)
	}

	cfg = cfg.WithBaseURL("http://127.0.0.1/v1")
	if cfg.BaseURL != "http://127.0.0.1/v1" {
		t.Errorf("WithBaseURL failed: got %q", cfg.BaseURL)
	}

	cfg = cfg.WithAPIKey("sk-test")
	if cfg.APIKey != "sk-test" {
		t.Errorf("WithAPIKey failed: got %q", cfg.APIKey)
	}

	base := cfg.WithOption("key", "value")
	derived := base.WithOption("key", "other")
	if base.GetStringOption("key", "") != "value" {
		t.Errorf("WithOption modified the original: got %q", base.GetStringOption("key", ""))
	}
	if derived.GetStringOption("key", "") != "other" {
		t.Errorf("WithOption failed: expected 'other', got %q", derived.GetStringOption("key", ""))
	}
	if got := derived.GetStringOption("missing", "default"); got != "default" {
		t.Errorf("GetStringOption: expected 'default', got %q", got)
	}
}
