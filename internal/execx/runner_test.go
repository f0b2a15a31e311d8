package execx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	res, err := NewLocal().Run(context.Background(), Spec{
		Name: "/bin/sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
	if res.TimedOut {
		t.Fatalf("unexpected timeout")
	}
	if res.Combined() != "out\nerr\n" {
		t.Fatalf("combined = %q", res.Combined())
	}
}

func TestRunUsesExplicitWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	res, err := NewLocal().Run(context.Background(), Spec{
		Dir:  dir,
		Name: "/bin/sh",
		Args: []string{"-c", "pwd"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(res.Stdout); got != dir {
		t.Fatalf("child ran in %q, want %q", got, dir)
	}
}

func TestRunTimeoutKillsProcessTree(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	start := time.Now()
	res, err := NewLocal().Run(context.Background(), Spec{
		Dir:     dir,
		Name:    "/bin/sh",
		Args:    []string{"-c", `sh -c "sleep 1; touch marker" & wait`},
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timed-out result")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("kill took too long: %v", elapsed)
	}

	// The grandchild was in the killed process group, so the marker never
	// appears even after its sleep would have finished.
	time.Sleep(1500 * time.Millisecond)
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Fatalf("grandchild survived the timeout")
	}
}

func TestRunExpiredContextDoesNotSpawn(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res, err := NewLocal().Run(ctx, Spec{
		Dir:  dir,
		Name: "/bin/sh",
		Args: []string{"-c", "touch marker"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timed-out result for expired context")
	}
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Fatalf("process was spawned despite expired deadline")
	}
}

func TestRunSpawnFailureReturnsError(t *testing.T) {
	_, err := NewLocal().Run(context.Background(), Spec{
		Name: "/nonexistent/definitely-not-a-binary",
	})
	if err == nil {
		t.Fatalf("expected spawn error for missing executable")
	}
}
