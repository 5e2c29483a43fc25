package shell_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/internal/adapters/shell"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func newExecutor(t *testing.T, settings domain.BuildSettings) (*shell.Executor, *mocks.MockLogger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	if settings.Shell == "" {
		settings.Shell = "/bin/sh"
	}
	return shell.NewExecutor(mockLogger, settings), mockLogger
}

func phase(commands ...string) *domain.Phase {
	return &domain.Phase{Kind: domain.PhaseBuild, Commands: commands}
}

func TestExecutor_Execute_MultiLineOutput(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})

	// Expect Info to be called twice, once for each line
	gomock.InOrder(
		mockLogger.EXPECT().Info("line1").Times(1),
		mockLogger.EXPECT().Info("line2").Times(1),
	)

	err := executor.Execute(context.Background(), phase("echo line1", "echo line2"), t.TempDir(), nil, io.Discard, io.Discard)
	require.NoError(t, err)
}

func TestExecutor_Execute_FragmentedOutput(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})

	// The writer buffers until newline
	mockLogger.EXPECT().Info("part1part2").Times(1)

	err := executor.Execute(context.Background(), phase("printf part1; sleep 0.1; echo part2"), t.TempDir(), nil, io.Discard, io.Discard)
	require.NoError(t, err)
}

func TestExecutor_Execute_StreamsOutput(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})
	mockLogger.EXPECT().Info("to stdout")
	mockLogger.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.Equal(t, "to stderr", err.Error())
	})

	var stdout, stderr bytes.Buffer
	err := executor.Execute(context.Background(), phase("echo to stdout", "echo to stderr >&2"), t.TempDir(), nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "to stdout\n", stdout.String())
	assert.Equal(t, "to stderr\n", stderr.String())
}

func TestExecutor_Execute_EnvironmentVariables(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})
	t.Setenv("LPKG_TEST_SECRET", "leaked")

	// Only allow-listed system variables are inherited.
	mockLogger.EXPECT().Info("O3-").Times(1)

	env := []string{"CFLAGS=O3"}
	err := executor.Execute(context.Background(), phase(`echo "$CFLAGS-$LPKG_TEST_SECRET"`), t.TempDir(), env, io.Discard, io.Discard)
	require.NoError(t, err)
}

func TestExecutor_Execute_PrependsPath(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})

	toolsDir := t.TempDir()
	tool := filepath.Join(toolsDir, "lfs-tool")
	//nolint:gosec // Test requires executable file
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho from-tools\n"), 0o700))

	mockLogger.EXPECT().Info("from-tools").Times(1)

	err := executor.Execute(context.Background(), phase("lfs-tool"), t.TempDir(), []string{"PATH=" + toolsDir}, io.Discard, io.Discard)
	require.NoError(t, err)
}

func TestExecutor_Execute_WorkingDirectory(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "build"), 0o750))

	var got string
	mockLogger.EXPECT().Info(gomock.Any()).Do(func(msg string) { got = msg })

	p := phase("pwd")
	p.Cwd = "build"
	require.NoError(t, executor.Execute(context.Background(), p, dir, nil, io.Discard, io.Discard))

	resolved, err := filepath.EvalSymlinks(filepath.Join(dir, "build"))
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, resolved, gotResolved)
}

func TestExecutor_Execute_CommandFailure(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})
	mockLogger.EXPECT().Info("before").Times(1)

	// "-e" stops the script at the first failing command, so "after" is never printed.
	err := executor.Execute(context.Background(), phase("echo before", "exit 42", "echo after"), t.TempDir(), nil, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrPhaseExecution)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, 42, zErr.Metadata()["exit_code"])
	assert.Equal(t, "build", zErr.Metadata()["phase"])
}

func TestExecutor_Execute_InvalidShell(t *testing.T) {
	executor, _ := newExecutor(t, domain.BuildSettings{Shell: "/nonexistent/shell-xyz123"})

	err := executor.Execute(context.Background(), phase("true"), t.TempDir(), nil, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrPhaseExecution)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, -1, zErr.Metadata()["exit_code"])
}

func TestExecutor_Execute_EmptyPhase(t *testing.T) {
	executor, _ := newExecutor(t, domain.BuildSettings{})

	// Empty phases succeed without starting a process
	err := executor.Execute(context.Background(), phase(), "/nonexistent", nil, io.Discard, io.Discard)
	assert.NoError(t, err)
}

func TestExecutor_Execute_Timeout(t *testing.T) {
	executor, _ := newExecutor(t, domain.BuildSettings{
		PhaseTimeout: 200 * time.Millisecond,
		KillGrace:    time.Second,
	})

	start := time.Now()
	err := executor.Execute(context.Background(), phase("sleep 30"), t.TempDir(), nil, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrPhaseExecution)
	assert.Less(t, time.Since(start), 10*time.Second)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "200ms", zErr.Metadata()["timeout"])
}

func TestExecutor_Execute_CancelKillsProcessGroup(t *testing.T) {
	executor, _ := newExecutor(t, domain.BuildSettings{KillGrace: 500 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	// The background child is only reachable through the process group.
	start := time.Now()
	err := executor.Execute(ctx, phase("sleep 30 &", "sleep 30"), t.TempDir(), nil, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrPhaseExecution)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutor_Execute_RequiresRoot(t *testing.T) {
	executor, mockLogger := newExecutor(t, domain.BuildSettings{})

	p := phase("echo installed")
	p.Kind = domain.PhaseInstall
	p.RequiresRoot = true

	executor.SetEUID(func() int { return 1000 })
	err := executor.Execute(context.Background(), p, t.TempDir(), nil, io.Discard, io.Discard)
	require.ErrorIs(t, err, domain.ErrPhaseExecution)
	assert.ErrorContains(t, err, "root")

	executor.SetEUID(func() int { return 0 })
	mockLogger.EXPECT().Info("installed")
	assert.NoError(t, executor.Execute(context.Background(), p, t.TempDir(), nil, io.Discard, io.Discard))
}

func TestResolveEnvironment(t *testing.T) {
	sysEnv := []string{"PATH=/usr/bin:/bin", "HOME=/home/lfs", "SECRET=x", "TERM=xterm"}
	buildEnv := []string{"PATH=/tools/bin", "LFS=/mnt/lfs", "TERM=dumb"}

	env := shell.ResolveEnvironment(sysEnv, buildEnv)
	assert.Equal(t, []string{
		"HOME=/home/lfs",
		"LFS=/mnt/lfs",
		"PATH=/tools/bin:/usr/bin:/bin",
		"TERM=dumb",
	}, env)
	for _, e := range env {
		assert.False(t, strings.HasPrefix(e, "SECRET="))
	}
}
