// Package exec runs external commands for tool handlers.
package exec

import (
	"context"
)

// CommandRunner runs external commands. Tool handlers take one so tests can
// substitute a fake.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// LookPath reports whether name resolves to an executable.
	LookPath(name string) bool
}
