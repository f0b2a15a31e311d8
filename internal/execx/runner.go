// Package execx is the only place the pipeline spawns external
// processes. It runs a program in an explicit working directory with a
// hard timeout and reports the outcome as a value; a non-zero exit is
// data for the calling stage, never an error.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// Spec describes one external invocation.
type Spec struct {
	Dir     string // working directory for the child, set explicitly
	Name    string // executable name or path
	Args    []string
	Timeout time.Duration // 0 means no budget beyond ctx
	Env     []string      // nil inherits the parent environment
}

// Result captures everything a stage needs to judge an invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	TimedOut bool
}

// Combined returns stdout followed by stderr, the way diagnostic text is
// surfaced to callers.
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// Runner executes external programs.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Local runs programs on the local host.
type Local struct{}

// NewLocal returns the host-process runner.
func NewLocal() *Local { return &Local{} }

// Run executes spec. The child is placed in its own process group and
// the whole group is killed when the timeout or the caller's context
// expires, so no grandchildren are orphaned. If the deadline has already
// passed before the process starts, Run reports a timed-out result
// without spawning anything. The returned error is reserved for spawn
// failures (missing executable, bad directory); process failures are in
// the Result.
func (l *Local) Run(ctx context.Context, spec Spec) (Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1, TimedOut: true}, nil
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// New process group so the kill reaches the whole child tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Elapsed:  time.Since(start),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}

	if err == nil {
		res.ExitCode = 0
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if res.TimedOut {
		res.ExitCode = -1
		return res, nil
	}

	// Spawn failure: executable missing, directory invalid, etc.
	res.ExitCode = -1
	return res, err
}
