// Package shell provides the shell executor adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

const (
	defaultShell     = "/bin/sh"
	defaultKillGrace = 10 * time.Second
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor by running the commands of a phase as one shell script.
type Executor struct {
	logger    ports.Logger
	shell     string
	timeout   time.Duration
	killGrace time.Duration
	euid      func() int
}

// NewExecutor creates a new shell Executor configured from the build settings.
func NewExecutor(logger ports.Logger, settings domain.BuildSettings) *Executor {
	e := &Executor{
		logger:    logger,
		shell:     settings.Shell,
		timeout:   settings.PhaseTimeout,
		killGrace: settings.KillGrace,
		euid:      os.Geteuid,
	}
	if e.shell == "" {
		e.shell = defaultShell
	}
	if e.killGrace <= 0 {
		e.killGrace = defaultKillGrace
	}
	return e
}

// Execute runs the phase's commands in dir with "-e", so the first failing command ends the phase.
// The env entries override the allow-listed system environment, except PATH which is prepended.
//
// On cancellation or timeout the whole process group receives SIGTERM, followed by SIGKILL
// once the kill grace period has elapsed.
func (e *Executor) Execute(
	ctx context.Context,
	phase *domain.Phase,
	dir string,
	env []string,
	stdout, stderr io.Writer,
) error {
	if len(phase.Commands) == 0 {
		return nil
	}
	if phase.RequiresRoot && e.euid() != 0 {
		err := zerr.Wrap(domain.ErrPhaseExecution, "phase requires root privileges")
		return zerr.With(err, "phase", string(phase.Kind))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	stdoutLog := &logWriter{logger: e.logger, level: "info"}
	stderrLog := &logWriter{logger: e.logger, level: "error"}

	script := strings.Join(phase.Commands, "\n")
	cmd := exec.CommandContext(ctx, e.shell, "-e", "-c", script) //nolint:gosec // commands come from build definitions
	cmd.Dir = workingDir(dir, phase.Cwd)
	cmd.Env = resolveEnvironment(os.Environ(), env)
	cmd.Stdout = io.MultiWriter(stdoutLog, orDiscard(stdout))
	cmd.Stderr = io.MultiWriter(stderrLog, orDiscard(stderr))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	done := make(chan struct{})
	cmd.Cancel = func() error {
		pgid := cmd.Process.Pid
		err := unix.Kill(-pgid, unix.SIGTERM)
		go func() {
			select {
			case <-time.After(e.killGrace):
				_ = unix.Kill(-pgid, unix.SIGKILL)
			case <-done:
			}
		}()
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	// Output pipes held open by orphaned children must not block Wait past the grace period.
	cmd.WaitDelay = e.killGrace + time.Second

	err := cmd.Run()
	close(done)
	_ = stdoutLog.Close()
	_ = stderrLog.Close()

	if err != nil {
		// Capture exit code if possible
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		failure := zerr.With(errors.Join(domain.ErrPhaseExecution, err), "phase", string(phase.Kind))
		failure = zerr.With(failure, "exit_code", exitCode)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			failure = zerr.With(failure, "timeout", e.timeout.String())
		}
		return failure
	}

	return nil
}

func workingDir(dir, cwd string) string {
	switch {
	case cwd == "":
		return dir
	case filepath.IsAbs(cwd) || dir == "":
		return cwd
	default:
		return filepath.Join(dir, cwd)
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

type logWriter struct {
	logger ports.Logger
	level  string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	// Scan for newlines
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}

		w.logLine(w.buf[:i])

		// Advance buffer
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")

	if w.level == "info" {
		w.logger.Info(msg)
	} else {
		w.logger.Error(zerr.New(msg))
	}
}

// allowListedEnvVars are the system environment variables that are allowed to be
// inherited by a phase. Everything else has to be passed explicitly.
var allowListedEnvVars = map[string]struct{}{
	"HOME": {},
	"TERM": {},
	"USER": {},
	"PATH": {},
}

// resolveEnvironment merges the allow-listed system environment with the build environment.
func resolveEnvironment(sysEnv, buildEnv []string) []string {
	envMap := filterSystemEnv(sysEnv)
	applyBuildEnv(envMap, buildEnv)

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

func filterSystemEnv(sysEnv []string) map[string]string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			if _, allowed := allowListedEnvVars[k]; allowed {
				envMap[k] = v
			}
		}
	}
	return envMap
}

func applyBuildEnv(envMap map[string]string, buildEnv []string) {
	for _, entry := range buildEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if sysPath, exists := envMap["PATH"]; exists && sysPath != "" {
				envMap[k] = v + string(os.PathListSeparator) + sysPath
				continue
			}
		}
		envMap[k] = v
	}
}
