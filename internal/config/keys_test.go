package config

import "testing"

func TestGetAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("gemini reads its own variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")
		t.Setenv("GOOGLE_API_KEY", "google-key-123456789")

		cfg := &Config{LLM: LLMConfig{Provider: "gemini"}}
		key, err := GetAPIKey(cfg)
		if err != nil || key != "google-key-123456789" {
			t.Errorf("GetAPIKey() = %q, %v", key, err)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{Provider: "anthropic", APIKey: "sk-ant-config-key"}}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("expected 'sk-ant-config-key', got %q", key)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := GetAPIKey(&Config{LLM: LLMConfig{Provider: "anthropic"}})
		if err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
		if _, err := GetAPIKey(nil); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey for nil config, got %v", err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"valid anthropic key", "anthropic", "sk-ant-REDACTED", false},
		{"empty key", "anthropic", "", true},
		{"wrong anthropic prefix", "anthropic", "sk-openai-abcdefghijklmnop", true},
		{"too short", "anthropic", "sk-ant-short", true},
		{"gemini has no prefix", "gemini", "AIzaSyabcdefghijklmnop", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}

	if got := GetAPIKeySource(cfg); got != KeySourceNone {
		t.Errorf("expected none, got %q", got)
	}

	cfg.LLM.APIKey = "sk-ant-config-key"
	if got := GetAPIKeySource(cfg); got != KeySourceConfig {
		t.Errorf("expected config_file, got %q", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	if got := GetAPIKeySource(cfg); got != KeySourceEnv {
		t.Errorf("expected environment, got %q", got)
	}
}
