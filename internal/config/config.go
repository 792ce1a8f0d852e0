// Package config handles configuration loading and management for intentflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for intentflow.
type Config struct {
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Decompose  DecomposeConfig  `mapstructure:"decompose"`
	Slots      SlotsConfig      `mapstructure:"slots"`
	ToolMask   ToolMaskConfig   `mapstructure:"toolmask"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

// ExecutorConfig holds task scheduling limits.
type ExecutorConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// RecognizerConfig holds multi-intent recognition settings.
type RecognizerConfig struct {
	// UseLLM enables LLM splitting of composite requests.
	UseLLM            bool `mapstructure:"use_llm"`
	Enrich            bool `mapstructure:"enrich"`
	EnrichConcurrency int  `mapstructure:"enrich_concurrency"`
	MaxDepth          int  `mapstructure:"max_depth"`
}

// DecomposeConfig holds task decomposition settings.
type DecomposeConfig struct {
	// Enabled expands every intent into subtasks before execution.
	Enabled            bool   `mapstructure:"enabled"`
	DynamicGranularity bool   `mapstructure:"dynamic_granularity"`
	DefaultGranularity string `mapstructure:"default_granularity"`
	PatternLearning    bool   `mapstructure:"pattern_learning"`
	LLMAnalysis        bool   `mapstructure:"llm_analysis"`
	MaxSubtasks        int    `mapstructure:"max_subtasks"`
}

// SlotsConfig holds slot filling settings.
type SlotsConfig struct {
	// Interactive asks for missing slots when stdin is a terminal.
	Interactive     bool `mapstructure:"interactive"`
	InferOptional   bool `mapstructure:"infer_optional"`
	MaxAnswerLength int  `mapstructure:"max_answer_length"`
	HistoryLimit    int  `mapstructure:"history_limit"`
}

// ToolMaskConfig holds tool availability settings.
type ToolMaskConfig struct {
	DefaultAvailable bool `mapstructure:"default_available"`
	// StateMachine is a YAML file of phases and transitions.
	StateMachine string `mapstructure:"state_machine"`
	InitialState string `mapstructure:"initial_state"`
	// Watch reloads StateMachine when it changes.
	Watch bool `mapstructure:"watch"`
}

// LLMConfig selects and configures the LLM backend.
type LLMConfig struct {
	// Provider is none, anthropic, bedrock or gemini.
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Driver is "sqlite" (modernc) or "sqlite3" (mattn).
	Driver string `mapstructure:"driver"`
	// Path overrides the default database location.
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GOOGLE_API_KEY, INTENTFLOW_*)
// 2. Project config (.intentflow.yaml in current directory or parent)
// 3. User config (~/.config/intentflow/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	cfg.ToolMask.StateMachine = expandEnv(cfg.ToolMask.StateMachine)

	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("INTENTFLOW")
	v.AutomaticEnv()

	_ = v.BindEnv("llm.provider", "INTENTFLOW_LLM_PROVIDER")
	_ = v.BindEnv("llm.model", "INTENTFLOW_LLM_MODEL")
	_ = v.BindEnv("log.level", "INTENTFLOW_LOG_LEVEL")
	_ = v.BindEnv("storage.driver", "INTENTFLOW_STORAGE_DRIVER")
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes cfg as YAML to path. API keys are not written.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("executor.max_concurrency", cfg.Executor.MaxConcurrency)
	v.Set("executor.task_timeout", cfg.Executor.TaskTimeout.String())
	v.Set("executor.max_retries", cfg.Executor.MaxRetries)
	v.Set("recognizer.use_llm", cfg.Recognizer.UseLLM)
	v.Set("recognizer.enrich", cfg.Recognizer.Enrich)
	v.Set("recognizer.enrich_concurrency", cfg.Recognizer.EnrichConcurrency)
	v.Set("recognizer.max_depth", cfg.Recognizer.MaxDepth)
	v.Set("decompose.enabled", cfg.Decompose.Enabled)
	v.Set("decompose.dynamic_granularity", cfg.Decompose.DynamicGranularity)
	v.Set("decompose.default_granularity", cfg.Decompose.DefaultGranularity)
	v.Set("decompose.pattern_learning", cfg.Decompose.PatternLearning)
	v.Set("decompose.llm_analysis", cfg.Decompose.LLMAnalysis)
	v.Set("decompose.max_subtasks", cfg.Decompose.MaxSubtasks)
	v.Set("slots.interactive", cfg.Slots.Interactive)
	v.Set("slots.infer_optional", cfg.Slots.InferOptional)
	v.Set("slots.max_answer_length", cfg.Slots.MaxAnswerLength)
	v.Set("slots.history_limit", cfg.Slots.HistoryLimit)
	v.Set("toolmask.default_available", cfg.ToolMask.DefaultAvailable)
	v.Set("toolmask.state_machine", cfg.ToolMask.StateMachine)
	v.Set("toolmask.initial_state", cfg.ToolMask.InitialState)
	v.Set("toolmask.watch", cfg.ToolMask.Watch)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("storage.enabled", cfg.Storage.Enabled)
	v.Set("storage.driver", cfg.Storage.Driver)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.file", cfg.Log.File)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("executor.max_concurrency", d.Executor.MaxConcurrency)
	v.SetDefault("executor.task_timeout", d.Executor.TaskTimeout.String())
	v.SetDefault("executor.max_retries", d.Executor.MaxRetries)

	v.SetDefault("recognizer.use_llm", d.Recognizer.UseLLM)
	v.SetDefault("recognizer.enrich", d.Recognizer.Enrich)
	v.SetDefault("recognizer.enrich_concurrency", d.Recognizer.EnrichConcurrency)
	v.SetDefault("recognizer.max_depth", d.Recognizer.MaxDepth)

	v.SetDefault("decompose.enabled", d.Decompose.Enabled)
	v.SetDefault("decompose.dynamic_granularity", d.Decompose.DynamicGranularity)
	v.SetDefault("decompose.default_granularity", d.Decompose.DefaultGranularity)
	v.SetDefault("decompose.pattern_learning", d.Decompose.PatternLearning)
	v.SetDefault("decompose.llm_analysis", d.Decompose.LLMAnalysis)
	v.SetDefault("decompose.max_subtasks", d.Decompose.MaxSubtasks)

	v.SetDefault("slots.interactive", d.Slots.Interactive)
	v.SetDefault("slots.infer_optional", d.Slots.InferOptional)
	v.SetDefault("slots.max_answer_length", d.Slots.MaxAnswerLength)
	v.SetDefault("slots.history_limit", d.Slots.HistoryLimit)

	v.SetDefault("toolmask.default_available", d.ToolMask.DefaultAvailable)
	v.SetDefault("toolmask.state_machine", d.ToolMask.StateMachine)
	v.SetDefault("toolmask.initial_state", d.ToolMask.InitialState)
	v.SetDefault("toolmask.watch", d.ToolMask.Watch)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")

	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// getUserConfigDir returns the XDG config directory for intentflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "intentflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "intentflow")
	}
	return filepath.Join(home, ".config", "intentflow")
}

// findProjectConfig searches for .intentflow.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".intentflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxConcurrency: 3,
			TaskTimeout:    30 * time.Second,
			MaxRetries:     2,
		},
		Recognizer: RecognizerConfig{
			UseLLM:            true,
			EnrichConcurrency: 4,
			MaxDepth:          3,
		},
		Decompose: DecomposeConfig{
			DynamicGranularity: true,
			DefaultGranularity: "MEDIUM",
			MaxSubtasks:        8,
		},
		Slots: SlotsConfig{
			Interactive:     true,
			InferOptional:   true,
			MaxAnswerLength: 50,
			HistoryLimit:    20,
		},
		ToolMask: ToolMaskConfig{
			DefaultAvailable: true,
		},
		LLM: LLMConfig{
			Provider: "none",
		},
		Storage: StorageConfig{
			Enabled: true,
			Driver:  "sqlite",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
