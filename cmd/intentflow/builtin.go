package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cmdexec "github.com/ShayCichocki/intentflow/internal/exec"
	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/slots"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
)

// builtinDescriptions name the tool registered for every known intent.
// Apart from test, the handlers only report what they would do; real
// integrations register their own handlers under the same names.
var builtinDescriptions = map[string]string{
	"create_file":    "Create a file of the given type",
	"edit_file":      "Apply a change to an existing file",
	"create_website": "Scaffold a website project",
	"deploy":         "Deploy the project to a hosting platform",
	"analyze_data":   "Analyze a data source",
	"search":         "Search the project or the web",
	"test":           "Run the project's tests",
}

// registerBuiltinTools registers one tool per intent. The test tool runs the
// suite of the project in workDir through runner.
func registerBuiltinTools(sys *toolmask.System, runner cmdexec.CommandRunner, workDir string) error {
	names := make([]string, 0, len(builtinDescriptions))
	for name := range builtinDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := sys.Register(toolmask.Tool{
			Name:        name,
			Description: builtinDescriptions[name],
			Parameters:  paramSchema(name),
			Handler:     handlerFor(name, runner, workDir),
		}); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// paramSchema derives a JSON-schema-like description from the slot tables.
func paramSchema(intentType string) map[string]any {
	def := slots.Lookup(intentType)
	props := make(map[string]any, len(def.Required)+len(def.Optional))
	for _, name := range append(append([]string(nil), def.Required...), def.Optional...) {
		prop := map[string]any{"type": "string", "description": slots.PromptFor(name)}
		if choices, ok := slots.Choices[name]; ok {
			prop["enum"] = choices
		}
		props[name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   def.Required,
	}
}

func handlerFor(name string, runner cmdexec.CommandRunner, workDir string) toolmask.Handler {
	if name == "test" && runner != nil {
		return testHandler(runner, workDir)
	}
	return reportHandler(name)
}

func testHandler(runner cmdexec.CommandRunner, workDir string) toolmask.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		target, _ := params["target"].(string)
		pt := orchestrator.DetectProjectType(workDir)
		return cmdexec.RunTests(ctx, runner, workDir, string(pt), target)
	}
}

func reportHandler(name string) toolmask.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, params[k])
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", ")), nil
	}
}
