package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/intentflow/internal/config"
	"github.com/ShayCichocki/intentflow/internal/logging"
	"github.com/ShayCichocki/intentflow/internal/orchestrator"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

func TestConfigKeys_GetSet(t *testing.T) {
	c := config.Default()

	tests := []struct {
		key   string
		value string
		check func(*config.Config) bool
	}{
		{"executor.max_concurrency", "5", func(c *config.Config) bool { return c.Executor.MaxConcurrency == 5 }},
		{"executor.task_timeout", "1m", func(c *config.Config) bool { return c.Executor.TaskTimeout == time.Minute }},
		{"decompose.enabled", "true", func(c *config.Config) bool { return c.Decompose.Enabled }},
		{"LLM.Provider", "gemini", func(c *config.Config) bool { return c.LLM.Provider == "gemini" }},
		{"storage.driver", "sqlite3", func(c *config.Config) bool { return c.Storage.Driver == "sqlite3" }},
	}
	for _, tt := range tests {
		k, ok := lookupKey(tt.key)
		if !ok {
			t.Fatalf("lookupKey(%q) not found", tt.key)
		}
		if err := k.set(c, tt.value); err != nil {
			t.Fatalf("set %s: %v", tt.key, err)
		}
		if !tt.check(c) {
			t.Errorf("%s not applied", tt.key)
		}
		if got := k.get(c); got != tt.value && !strings.EqualFold(got, tt.value) && tt.key != "executor.task_timeout" {
			t.Errorf("get %s = %q, want %q", tt.key, got, tt.value)
		}
	}
}

func TestConfigKeys_InvalidValues(t *testing.T) {
	c := config.Default()
	for key, value := range map[string]string{
		"executor.max_retries":  "many",
		"executor.task_timeout": "soon",
		"slots.interactive":     "maybe",
	} {
		k, _ := lookupKey(key)
		if err := k.set(c, value); err == nil {
			t.Errorf("expected error setting %s=%s", key, value)
		}
	}
	if _, ok := lookupKey("no.such.key"); ok {
		t.Error("unexpected key found")
	}
}

func TestRegisterBuiltinTools(t *testing.T) {
	sys := toolmask.New(toolmask.Config{DefaultAvailable: true})
	if err := registerBuiltinTools(sys, nil, t.TempDir()); err != nil {
		t.Fatalf("registerBuiltinTools: %v", err)
	}
	if got := len(sys.ToolNames()); got != len(builtinDescriptions) {
		t.Errorf("registered %d tools, want %d", got, len(builtinDescriptions))
	}

	tool, ok := sys.Tool("deploy")
	if !ok {
		t.Fatal("deploy not registered")
	}
	required, _ := tool.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "platform" {
		t.Errorf("deploy required = %v, want [platform]", required)
	}

	out, err := sys.ExecuteWithMask(context.Background(), "deploy", map[string]any{"platform": "vercel", "environment": "prod"})
	if err != nil {
		t.Fatalf("ExecuteWithMask: %v", err)
	}
	if out != "deploy(environment=prod, platform=vercel)" {
		t.Errorf("unexpected output %q", out)
	}
}

type fakeRunner struct{ argv []string }

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	f.argv = append([]string{name}, args...)
	return []byte("ok"), nil
}

func (f *fakeRunner) LookPath(string) bool { return true }

func TestTestToolRunsProjectSuite(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{}
	sys := toolmask.New(toolmask.Config{DefaultAvailable: true})
	if err := registerBuiltinTools(sys, runner, dir); err != nil {
		t.Fatal(err)
	}

	out, err := sys.ExecuteWithMask(context.Background(), "test", map[string]any{"target": "./pkg/..."})
	if err != nil {
		t.Fatalf("ExecuteWithMask: %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %v", out)
	}
	if strings.Join(runner.argv, " ") != "go test ./pkg/..." {
		t.Errorf("argv = %v", runner.argv)
	}
}

func TestNewApp_PlansWithoutStorage(t *testing.T) {
	c := config.Default()
	c.Storage.Enabled = false
	c.Decompose.Enabled = true

	a, err := newApp(context.Background(), c, logging.Nop(), appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.llm != nil || a.db != nil {
		t.Fatal("expected no llm and no store")
	}

	plan, err := a.orch.Plan(context.Background(), "创建网站并部署到云端", models.Context{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Complete() {
		t.Fatalf("expected a complete plan, missing %v", plan.Missing())
	}
	if plan.Steps[1].Decomposition == nil {
		t.Error("expected decomposition to be enabled")
	}

	res, err := a.orch.Execute(context.Background(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, errors: %v", res.Errors)
	}
}

func TestNewApp_StateWithoutMachine(t *testing.T) {
	c := config.Default()
	c.Storage.Enabled = false

	_, err := newApp(context.Background(), c, logging.Nop(), appOptions{maskState: "build"})
	if err == nil {
		t.Fatal("expected error entering a state without a state machine")
	}
}

func TestPlanJSONView(t *testing.T) {
	o := orchestrator.New()
	plan, err := o.Plan(context.Background(), "创建网站并部署到云端", models.Context{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	view, err := planJSONView(plan)
	if err != nil {
		t.Fatalf("planJSONView: %v", err)
	}
	if len(view.Steps) != 2 || len(view.Tasks) != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Tasks[1].Params["platform"] != "vercel" {
		t.Errorf("deploy params = %v", view.Tasks[1].Params)
	}
	if view.Source == "" {
		t.Error("expected recognition source")
	}
	if len(view.Order) != 2 || view.Order[0] != "t1" || view.Order[1] != "t2" {
		t.Errorf("order = %v, want [t1 t2]", view.Order)
	}
}
