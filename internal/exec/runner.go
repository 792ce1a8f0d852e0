package exec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoTestCommand is returned when no test command is known for a project.
var ErrNoTestCommand = errors.New("no test command for project type")

// maxOutput bounds the output kept in results and errors.
const maxOutput = 4000

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// LookPath reports whether name is on PATH.
func (r *ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)

// testCommands maps project types to their test invocation.
var testCommands = map[string][]string{
	"go":         {"go", "test", "./..."},
	"node":       {"npm", "test"},
	"typescript": {"npm", "test"},
	"rust":       {"cargo", "test"},
	"python":     {"python", "-m", "pytest"},
}

// TestCommand returns the test invocation for projectType. A non-empty
// target replaces the default package pattern for Go and is appended for
// the other runners.
func TestCommand(projectType, target string) ([]string, error) {
	base, ok := testCommands[projectType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoTestCommand, projectType)
	}
	cmd := append([]string(nil), base...)
	if target == "" {
		return cmd, nil
	}
	if projectType == "go" {
		cmd[len(cmd)-1] = target
		return cmd, nil
	}
	if cmd[0] == "npm" {
		return append(cmd, "--", target), nil
	}
	return append(cmd, target), nil
}

// RunTests runs the project's tests in workDir and returns the trimmed
// output. A failing suite is an error that carries the output tail.
func RunTests(ctx context.Context, r CommandRunner, workDir, projectType, target string) (string, error) {
	argv, err := TestCommand(projectType, target)
	if err != nil {
		return "", err
	}
	if !r.LookPath(argv[0]) {
		return "", fmt.Errorf("%s not found in PATH", argv[0])
	}

	out, err := r.Run(ctx, workDir, argv[0], argv[1:]...)
	text := tail(strings.TrimSpace(string(out)), maxOutput)
	if err != nil {
		return "", fmt.Errorf("%s: %w\n%s", strings.Join(argv, " "), err, text)
	}
	return text, nil
}

// tail keeps the last n bytes of s, cut at a line boundary when possible.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return "..." + "\n" + s
}
