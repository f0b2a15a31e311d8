// Package workspace owns the scratch directories a transfer run stages
// its files in. Every run gets its own uniquely named subtree, so
// concurrent runs never see each other's staged inputs or outputs.
package workspace

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"hairshop/internal/fsutil"
	"hairshop/internal/imaging"
)

const (
	// UnprocessedDir holds staged input images before alignment.
	UnprocessedDir = "unprocessed"
	// AlignedDir is where the alignment tool writes its outputs.
	AlignedDir = "input"
	// OutputDir is the root the compositing tool writes under.
	OutputDir = "output"

	// Fixed staging names; one staged image per role, overwritten on reuse.
	FaceImageName = "face.png"
	HairImageName = "hair.png"
)

// Manager allocates run-scoped workspaces under a common root.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at root, creating it if needed.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "runs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// Run is one run's isolated directory subtree.
type Run struct {
	ID   string
	Dir  string
	keep bool
}

// NewRun allocates a fresh run subtree with the three stage directories.
// An empty id gets a generated one.
func (m *Manager) NewRun(id string) (*Run, error) {
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(m.root, "runs", id)
	for _, sub := range []string{UnprocessedDir, AlignedDir, OutputDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	return &Run{ID: id, Dir: dir}, nil
}

// Keep marks the run to survive Remove, for post-mortem inspection.
func (r *Run) Keep() { r.keep = true }

// Unprocessed returns the staging directory for input images.
func (r *Run) Unprocessed() string { return filepath.Join(r.Dir, UnprocessedDir) }

// Aligned returns the directory the alignment tool writes into.
func (r *Run) Aligned() string { return filepath.Join(r.Dir, AlignedDir) }

// Output returns the root directory the compositing tool writes under.
func (r *Run) Output() string { return filepath.Join(r.Dir, OutputDir) }

// Reset deletes every image file directly inside the staging directory.
// Subdirectories and non-image files are left untouched. Reset is not
// atomic; a partial reset is repaired by the next invocation.
func (r *Run) Reset() error {
	entries, err := os.ReadDir(r.Unprocessed())
	if err != nil {
		return fmt.Errorf("failed to read staging directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !fsutil.IsImageFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(r.Unprocessed(), e.Name())); err != nil {
			return fmt.Errorf("failed to clear staged image %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Stage writes an in-memory image to its deterministic path inside the
// staging directory, overwriting any prior contents.
func (r *Run) Stage(img image.Image, name string) (string, error) {
	path := filepath.Join(r.Unprocessed(), name)
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes the run subtree unless it was marked kept.
func (r *Run) Remove() error {
	if r.keep {
		return nil
	}
	return os.RemoveAll(r.Dir)
}
