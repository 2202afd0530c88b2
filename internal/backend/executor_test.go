package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcRunner func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error)

func (f funcRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	return f(ctx, name, args, stdin)
}

func TestExecutor_Execute(t *testing.T) {
	e := NewExecutorWithRunner("/bin/sd", time.Second, funcRunner(func(ctx context.Context, name string, args []string, _ io.Reader) ([]byte, []byte, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		assert.Equal(t, "/bin/sd", name)
		assert.Equal(t, []string{"--help"}, args)
		return []byte("ok"), nil, nil
	}))

	stdout, _, err := e.Execute(context.Background(), []string{"--help"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(stdout))
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutorWithRunner("/bin/sd", 10*time.Millisecond, funcRunner(func(ctx context.Context, _ string, _ []string, _ io.Reader) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, errors.New("signal: killed")
	}))

	_, _, err := e.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewExecutor_MissingBinary(t *testing.T) {
	_, err := NewExecutor(filepath.Join(t.TempDir(), "missing"), time.Second)
	assert.ErrorContains(t, err, "binary not found")
}

func TestNewExecutor_Directory(t *testing.T) {
	_, err := NewExecutor(t.TempDir(), time.Second)
	assert.ErrorContains(t, err, "is a directory")
}

func TestNewExecutor_ExistingBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "sd")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	e, err := NewExecutor(bin, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
