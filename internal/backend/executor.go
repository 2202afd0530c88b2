package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// CommandRunner is the interface for running commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
}

// ExecCommandRunner uses os/exec.
type ExecCommandRunner struct{}

// Run runs a command to completion and captures both output streams.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Executor runs a single binary with a per-call timeout.
type Executor struct {
	runner     CommandRunner
	binaryPath string
	timeout    time.Duration
}

// NewExecutor creates an executor after checking that the binary exists.
func NewExecutor(binaryPath string, timeout time.Duration) (*Executor, error) {
	info, err := os.Stat(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("binary not found: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("binary path %s is a directory", binaryPath)
	}

	return NewExecutorWithRunner(binaryPath, timeout, ExecCommandRunner{}), nil
}

// NewExecutorWithRunner creates an executor with a custom runner.
func NewExecutorWithRunner(binaryPath string, timeout time.Duration, runner CommandRunner) *Executor {
	return &Executor{
		binaryPath: binaryPath,
		timeout:    timeout,
		runner:     runner,
	}
}

// Execute runs the command and returns output. A deadline hit is reported
// explicitly so callers can tell a slow model from a crashing one.
func (e *Executor) Execute(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, err = e.runner.Run(ctx, e.binaryPath, args, stdin)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, fmt.Errorf("%s timed out after %v: %w", e.binaryPath, e.timeout, ctx.Err())
	}

	return stdout, stderr, err
}
