package exec

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeRunner struct {
	onPath map[string]bool
	out    string
	err    error
	calls  [][]string
	dirs   []string
}

func (f *fakeRunner) Run(_ context.Context, workDir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	f.dirs = append(f.dirs, workDir)
	return []byte(f.out), f.err
}

func (f *fakeRunner) LookPath(name string) bool { return f.onPath[name] }

func TestTestCommand(t *testing.T) {
	tests := []struct {
		projectType string
		target      string
		want        []string
	}{
		{"go", "", []string{"go", "test", "./..."}},
		{"go", "./internal/...", []string{"go", "test", "./internal/..."}},
		{"typescript", "", []string{"npm", "test"}},
		{"node", "app.test.js", []string{"npm", "test", "--", "app.test.js"}},
		{"rust", "parser", []string{"cargo", "test", "parser"}},
		{"python", "tests/test_api.py", []string{"python", "-m", "pytest", "tests/test_api.py"}},
	}
	for _, tt := range tests {
		got, err := TestCommand(tt.projectType, tt.target)
		if err != nil {
			t.Fatalf("TestCommand(%q, %q): %v", tt.projectType, tt.target, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TestCommand(%q, %q) = %v, want %v", tt.projectType, tt.target, got, tt.want)
		}
	}
}

func TestTestCommand_DoesNotMutateTable(t *testing.T) {
	if _, err := TestCommand("go", "./pkg/..."); err != nil {
		t.Fatal(err)
	}
	got, _ := TestCommand("go", "")
	if got[2] != "./..." {
		t.Errorf("default pattern changed to %q", got[2])
	}
}

func TestTestCommand_Unknown(t *testing.T) {
	if _, err := TestCommand("web", ""); !errors.Is(err, ErrNoTestCommand) {
		t.Errorf("expected ErrNoTestCommand, got %v", err)
	}
}

func TestRunTests(t *testing.T) {
	r := &fakeRunner{onPath: map[string]bool{"go": true}, out: "ok  example.com/pkg 0.01s\n"}

	out, err := RunTests(context.Background(), r, "/repo", "go", "")
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if out != "ok  example.com/pkg 0.01s" {
		t.Errorf("output = %q", out)
	}
	if len(r.calls) != 1 || r.dirs[0] != "/repo" {
		t.Errorf("unexpected calls %v in %v", r.calls, r.dirs)
	}
}

func TestRunTests_Failure(t *testing.T) {
	r := &fakeRunner{onPath: map[string]bool{"cargo": true}, out: "test parser ... FAILED", err: errors.New("exit status 101")}

	_, err := RunTests(context.Background(), r, "", "rust", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "FAILED") || !strings.Contains(err.Error(), "cargo test") {
		t.Errorf("error lacks context: %v", err)
	}
}

func TestRunTests_NotOnPath(t *testing.T) {
	r := &fakeRunner{}
	if _, err := RunTests(context.Background(), r, "", "go", ""); err == nil {
		t.Fatal("expected error when go is missing")
	}
	if len(r.calls) != 0 {
		t.Error("runner should not be called")
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 10); got != "short" {
		t.Errorf("tail(short) = %q", got)
	}
	s := strings.Repeat("line\n", 10) + "last"
	got := tail(s, 12)
	if !strings.HasSuffix(got, "last") || !strings.HasPrefix(got, "...") {
		t.Errorf("tail = %q", got)
	}
}

func TestExecRunner_Run(t *testing.T) {
	r := NewRunner()
	if !r.LookPath("sh") {
		t.Skip("sh not available")
	}
	out, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q", out)
	}
}
