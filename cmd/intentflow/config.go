package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify intentflow configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/intentflow/config.yaml
Project-specific overrides can be placed in .intentflow.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKey binds a dot-notation key to a field of config.Config.
type configKey struct {
	name string
	get  func(*config.Config) string
	set  func(*config.Config, string) error
}

func stringKey(name string, field func(*config.Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(*config.Config) *int) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(name string, field func(*config.Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(*config.Config) *time.Duration) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) string { return field(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %w", name, err)
			}
			*field(c) = d
			return nil
		},
	}
}

var configKeys = []configKey{
	intKey("executor.max_concurrency", func(c *config.Config) *int { return &c.Executor.MaxConcurrency }),
	durationKey("executor.task_timeout", func(c *config.Config) *time.Duration { return &c.Executor.TaskTimeout }),
	intKey("executor.max_retries", func(c *config.Config) *int { return &c.Executor.MaxRetries }),
	boolKey("recognizer.use_llm", func(c *config.Config) *bool { return &c.Recognizer.UseLLM }),
	boolKey("recognizer.enrich", func(c *config.Config) *bool { return &c.Recognizer.Enrich }),
	intKey("recognizer.enrich_concurrency", func(c *config.Config) *int { return &c.Recognizer.EnrichConcurrency }),
	intKey("recognizer.max_depth", func(c *config.Config) *int { return &c.Recognizer.MaxDepth }),
	boolKey("decompose.enabled", func(c *config.Config) *bool { return &c.Decompose.Enabled }),
	boolKey("decompose.dynamic_granularity", func(c *config.Config) *bool { return &c.Decompose.DynamicGranularity }),
	stringKey("decompose.default_granularity", func(c *config.Config) *string { return &c.Decompose.DefaultGranularity }),
	boolKey("decompose.pattern_learning", func(c *config.Config) *bool { return &c.Decompose.PatternLearning }),
	boolKey("decompose.llm_analysis", func(c *config.Config) *bool { return &c.Decompose.LLMAnalysis }),
	intKey("decompose.max_subtasks", func(c *config.Config) *int { return &c.Decompose.MaxSubtasks }),
	boolKey("slots.interactive", func(c *config.Config) *bool { return &c.Slots.Interactive }),
	boolKey("slots.infer_optional", func(c *config.Config) *bool { return &c.Slots.InferOptional }),
	intKey("slots.max_answer_length", func(c *config.Config) *int { return &c.Slots.MaxAnswerLength }),
	intKey("slots.history_limit", func(c *config.Config) *int { return &c.Slots.HistoryLimit }),
	boolKey("toolmask.default_available", func(c *config.Config) *bool { return &c.ToolMask.DefaultAvailable }),
	stringKey("toolmask.state_machine", func(c *config.Config) *string { return &c.ToolMask.StateMachine }),
	stringKey("toolmask.initial_state", func(c *config.Config) *string { return &c.ToolMask.InitialState }),
	boolKey("toolmask.watch", func(c *config.Config) *bool { return &c.ToolMask.Watch }),
	stringKey("llm.provider", func(c *config.Config) *string { return &c.LLM.Provider }),
	stringKey("llm.model", func(c *config.Config) *string { return &c.LLM.Model }),
	stringKey("llm.aws_region", func(c *config.Config) *string { return &c.LLM.AWSRegion }),
	stringKey("llm.aws_profile", func(c *config.Config) *string { return &c.LLM.AWSProfile }),
	boolKey("storage.enabled", func(c *config.Config) *bool { return &c.Storage.Enabled }),
	stringKey("storage.driver", func(c *config.Config) *string { return &c.Storage.Driver }),
	stringKey("storage.path", func(c *config.Config) *string { return &c.Storage.Path }),
	stringKey("log.level", func(c *config.Config) *string { return &c.Log.Level }),
	stringKey("log.format", func(c *config.Config) *string { return &c.Log.Format }),
	stringKey("log.file", func(c *config.Config) *string { return &c.Log.File }),
}

func lookupKey(name string) (configKey, bool) {
	name = strings.ToLower(name)
	for _, k := range configKeys {
		if k.name == name {
			return k, true
		}
	}
	return configKey{}, false
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("llm.api_key: %s (%s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
	for _, k := range configKeys {
		fmt.Printf("%s: %s\n", k.name, k.get(cfg))
	}
	fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	if strings.EqualFold(key, "llm.api_key") {
		k, _ := config.GetAPIKey(cfg)
		fmt.Println(config.MaskAPIKey(k))
		return
	}
	k, ok := lookupKey(key)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown configuration key: %s\n", key)
		os.Exit(1)
	}
	fmt.Println(k.get(cfg))
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if strings.EqualFold(key, "llm.api_key") {
		fmt.Fprintf(os.Stderr, "Error: API keys are not stored in the config file; set %s instead\n",
			config.APIKeyEnv(cfg.LLM.Provider))
		os.Exit(1)
	}
	k, ok := lookupKey(key)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown configuration key: %s\n", key)
		os.Exit(1)
	}
	if err := k.set(cfg, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", k.name, value)
}
