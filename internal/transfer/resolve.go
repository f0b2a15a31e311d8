package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// blendDirPrefix is the style-named subdirectory the compositing tool
// writes its results under.
const blendDirPrefix = "Blend_"

// ResolveOutput finds the produced artifact for a style under the run's
// output root. The tool's naming is not predictable, so among files with
// the expected extension the most recently modified one wins. Resolution
// is idempotent for an unchanged directory.
func ResolveOutput(outputRoot string, style Style) (string, error) {
	dir := filepath.Join(outputRoot, blendDirPrefix+string(style))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("output directory %s does not exist", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}

	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		mod := fi.ModTime().UnixNano()
		if best == "" || mod > bestMod {
			best = e.Name()
			bestMod = mod
		}
	}

	if best == "" {
		return "", fmt.Errorf("no output image found in %s", dir)
	}
	return filepath.Join(dir, best), nil
}
