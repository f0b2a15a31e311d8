package transfer

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hairshop/internal/execx"
	"hairshop/internal/fsutil"
)

// ToolStatus represents the availability of one toolchain prerequisite.
type ToolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

const versionProbeTimeout = 10 * time.Second

// ToolchainStatus probes everything the model needs: the python
// interpreter, git (for auto-clone), and the two toolchain scripts.
func (b *Barbershop) ToolchainStatus(ctx context.Context) map[string]ToolStatus {
	status := map[string]ToolStatus{
		"python": b.checkCommand(ctx, b.cfg.Python, "--version"),
		"git":    b.checkCommand(ctx, "git", "--version"),
	}

	for name, script := range map[string]string{
		"align_script":    b.cfg.AlignScript,
		"transfer_script": b.cfg.TransferScript,
	} {
		path := filepath.Join(b.cfg.Root, script)
		if fsutil.FileExists(path) {
			status[name] = ToolStatus{Available: true, Path: path}
		} else {
			status[name] = ToolStatus{Error: "not found (run setup or enable auto-clone)"}
		}
	}

	return status
}

func (b *Barbershop) checkCommand(ctx context.Context, name string, versionArgs ...string) ToolStatus {
	path, err := exec.LookPath(name)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}

	res, err := b.runner.Run(ctx, execx.Spec{
		Name:    name,
		Args:    versionArgs,
		Timeout: versionProbeTimeout,
	})
	if err != nil || res.ExitCode != 0 {
		// Present but uncooperative; still usable.
		return ToolStatus{Available: true, Path: path}
	}
	return ToolStatus{Available: true, Path: path, Version: extractVersion(res.Combined())}
}

// extractVersion pulls a version line out of tool output.
func extractVersion(output string) string {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.Contains(strings.ToLower(line), "version") {
			return line
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0])
	}
	return "unknown"
}
