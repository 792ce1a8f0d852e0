package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Executor.MaxConcurrency != 3 {
		t.Errorf("expected max_concurrency 3, got %d", cfg.Executor.MaxConcurrency)
	}

	if cfg.Executor.TaskTimeout != 30*time.Second {
		t.Errorf("expected task_timeout 30s, got %v", cfg.Executor.TaskTimeout)
	}

	if cfg.Executor.MaxRetries != 2 {
		t.Errorf("expected max_retries 2, got %d", cfg.Executor.MaxRetries)
	}

	if cfg.Decompose.DefaultGranularity != "MEDIUM" {
		t.Errorf("expected default granularity MEDIUM, got %q", cfg.Decompose.DefaultGranularity)
	}

	if cfg.Decompose.PatternLearning {
		t.Error("expected pattern learning to be off")
	}

	if cfg.Slots.MaxAnswerLength != 50 {
		t.Errorf("expected max_answer_length 50, got %d", cfg.Slots.MaxAnswerLength)
	}

	if !cfg.ToolMask.DefaultAvailable {
		t.Error("expected tools available by default")
	}

	if cfg.LLM.Provider != "none" {
		t.Errorf("expected provider none, got %q", cfg.LLM.Provider)
	}

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected driver sqlite, got %q", cfg.Storage.Driver)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
executor:
  max_concurrency: 8
  task_timeout: 2m
recognizer:
  enrich: true
decompose:
  enabled: true
  default_granularity: FINE
toolmask:
  default_available: false
  state_machine: ${TEST_SM_DIR}/phases.yaml
llm:
  provider: gemini
  api_key: test-key
storage:
  driver: sqlite3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("TEST_SM_DIR", "/etc/flow")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Executor.MaxConcurrency != 8 {
		t.Errorf("expected max_concurrency 8, got %d", cfg.Executor.MaxConcurrency)
	}

	if cfg.Executor.TaskTimeout != 2*time.Minute {
		t.Errorf("expected task_timeout 2m, got %v", cfg.Executor.TaskTimeout)
	}

	// Unset keys keep their defaults.
	if cfg.Executor.MaxRetries != 2 {
		t.Errorf("expected default max_retries 2, got %d", cfg.Executor.MaxRetries)
	}

	if !cfg.Recognizer.Enrich || !cfg.Recognizer.UseLLM {
		t.Errorf("unexpected recognizer config: %+v", cfg.Recognizer)
	}

	if !cfg.Decompose.Enabled || cfg.Decompose.DefaultGranularity != "FINE" {
		t.Errorf("unexpected decompose config: %+v", cfg.Decompose)
	}

	if cfg.ToolMask.DefaultAvailable {
		t.Error("expected default_available false")
	}

	if cfg.ToolMask.StateMachine != "/etc/flow/phases.yaml" {
		t.Errorf("expected expanded state machine path, got %q", cfg.ToolMask.StateMachine)
	}

	if cfg.LLM.Provider != "gemini" || cfg.LLM.APIKey != "test-key" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}

	if cfg.Storage.Driver != "sqlite3" || !cfg.Storage.Enabled {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Executor.MaxConcurrency = 5
	cfg.Executor.TaskTimeout = 45 * time.Second
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "sk-ant-secret"
	cfg.Log.Level = "debug"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if loaded.Executor.MaxConcurrency != 5 || loaded.Executor.TaskTimeout != 45*time.Second {
		t.Errorf("executor not round-tripped: %+v", loaded.Executor)
	}
	if loaded.LLM.Provider != "anthropic" || loaded.Log.Level != "debug" {
		t.Errorf("unexpected loaded config: %+v %+v", loaded.LLM, loaded.Log)
	}
	if loaded.LLM.APIKey != "" {
		t.Error("API key should not be written to disk")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if result := expandEnv("${TEST_VAR}"); result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	if result := expandEnv("prefix-${TEST_VAR}-suffix"); result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/intentflow" {
		t.Errorf("expected /custom/config/intentflow, got %q", dir)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ".intentflow.yaml")
	if err := os.WriteFile(want, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	got := GetProjectConfigPath()
	// Resolve symlinked temp dirs before comparing.
	gotReal, _ := filepath.EvalSymlinks(got)
	wantReal, _ := filepath.EvalSymlinks(want)
	if gotReal != wantReal {
		t.Errorf("GetProjectConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "intentflow"), 0755); err != nil {
		t.Fatal(err)
	}
	user := "executor:\n  max_concurrency: 4\nlog:\n  level: info\n"
	if err := os.WriteFile(filepath.Join(xdg, "intentflow", "config.yaml"), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ".intentflow.yaml"), []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(project)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.MaxConcurrency != 4 {
		t.Errorf("expected user max_concurrency 4, got %d", cfg.Executor.MaxConcurrency)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected project log level debug, got %q", cfg.Log.Level)
	}
}
