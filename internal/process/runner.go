// Package process wraps the external ffmpeg tool used to probe segment
// metadata and render thumbnails.
package process

import (
	"context"
	"os/exec"
)

// CommandRunner executes an external command and returns its combined output.
// Tests substitute a fake to avoid depending on an installed ffmpeg.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
}

// Run starts name with args and waits for it to exit.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	return cmd.CombinedOutput()
}

// Available reports whether binary can be found.
func Available(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
