package transfer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"hairshop/internal/config"
	"hairshop/internal/execx"
	"hairshop/internal/fsutil"
	"hairshop/internal/imaging"
	"hairshop/internal/workspace"
)

// PairSelector picks the (face, hairstyle) pair out of the alignment
// tool's output filenames. The stock selector assumes lexicographic
// order matches the staging order; swap it if a toolchain names its
// outputs differently.
type PairSelector func(names []string) (face, hair string, err error)

// LexicographicPair sorts the names ascending and takes the first two.
// The alignment tool is assumed to embed ordering in its filenames; this
// is a documented assumption, not a guarantee from the tool.
func LexicographicPair(names []string) (string, string, error) {
	if len(names) < 2 {
		return "", "", fmt.Errorf("need at least 2 aligned images, have %d", len(names))
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted[0], sorted[1], nil
}

// Barbershop drives the Barbershop GAN toolchain: an alignment script
// that normalizes facial geometry and a compositing script that blends
// the reference hairstyle onto the target face. Both run as external
// processes with the run workspace as their working directory.
type Barbershop struct {
	cfg    config.Toolchain
	runner execx.Runner
	log    *slog.Logger

	// SelectPair chooses the aligned (face, hairstyle) pair. Defaults to
	// LexicographicPair.
	SelectPair PairSelector

	mu          sync.Mutex
	initialized bool
}

// NewBarbershop constructs the model. Setup is deferred until the first
// run (or an explicit call).
func NewBarbershop(cfg config.Toolchain, runner execx.Runner, log *slog.Logger) *Barbershop {
	return &Barbershop{
		cfg:        cfg,
		runner:     runner,
		log:        log,
		SelectPair: LexicographicPair,
	}
}

// Initialized reports whether setup has completed.
func (b *Barbershop) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Setup verifies the toolchain scripts exist, cloning the model
// repository first when auto-clone is enabled. Safe to call repeatedly;
// after the first success it returns immediately.
func (b *Barbershop) Setup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	if !b.scriptsPresent() {
		if !b.cfg.AutoClone {
			return fmt.Errorf("toolchain scripts not found under %s and auto-clone is disabled", b.cfg.Root)
		}
		b.log.Info("cloning model repository", "url", b.cfg.RepoURL, "dest", b.cfg.Root)
		res, err := b.runner.Run(ctx, execx.Spec{
			Name: "git",
			Args: []string{"clone", b.cfg.RepoURL, b.cfg.Root},
		})
		if err != nil {
			return fmt.Errorf("failed to clone model repository: %w", err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("git clone exited with code %d: %s", res.ExitCode, res.Combined())
		}
		if !b.scriptsPresent() {
			return fmt.Errorf("model repository cloned but scripts are missing under %s", b.cfg.Root)
		}
	}

	b.initialized = true
	b.log.Info("model setup complete", "root", b.cfg.Root)
	return nil
}

func (b *Barbershop) scriptsPresent() bool {
	return fsutil.FileExists(filepath.Join(b.cfg.Root, b.cfg.AlignScript)) &&
		fsutil.FileExists(filepath.Join(b.cfg.Root, b.cfg.TransferScript))
}

// ModelInfo returns Barbershop metadata.
func (b *Barbershop) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:            "Barbershop",
		Version:         "1.0",
		Architecture:    "StyleGAN2-based",
		Paper:           "https://arxiv.org/abs/2106.01505",
		Repository:      "https://github.com/ZPdesu/Barbershop",
		SupportedStyles: Styles(),
		SmoothnessRange: [2]int{MinSmoothness, MaxSmoothness},
		Initialized:     b.Initialized(),
	}
}

// Process runs alignment, pair selection, compositing, and output
// resolution for a run whose inputs are already staged. Both external
// invocations use the run directory as their working directory, so the
// toolchain's relative unprocessed/input/output paths resolve inside the
// isolated subtree.
func (b *Barbershop) Process(ctx context.Context, run *workspace.Run, req Request, report StageReporter) (image.Image, string, *StageError) {
	// Alignment: short budget, fixed seed for reproducibility.
	report(StageAligning, 0.20, "Aligning faces...")
	alignRes, err := b.runner.Run(ctx, execx.Spec{
		Dir:     run.Dir,
		Name:    b.cfg.Python,
		Args:    []string{filepath.Join(b.cfg.Root, b.cfg.AlignScript), "-seed", strconv.Itoa(b.cfg.AlignmentSeed)},
		Timeout: b.cfg.AlignTimeout(),
	})
	if err != nil {
		return nil, "", failf(KindAlignment, StageAligning, "failed to start alignment process: %v", err)
	}
	if alignRes.TimedOut {
		return nil, "", failf(KindTimeout, StageAligning, "face alignment timed out after %s", b.cfg.AlignTimeout())
	}
	alignLog := alignRes.Combined()
	if alignRes.ExitCode != 0 {
		return nil, "", failWithOutput(KindAlignment, StageAligning, alignLog,
			"face alignment failed with exit code %d", alignRes.ExitCode)
	}

	// Exit code zero is not trusted on its own: degenerate inputs (no
	// detectable face) can exit clean with no usable outputs.
	aligned, err := fsutil.ListImages(run.Aligned())
	if err != nil {
		return nil, "", failWithOutput(KindAlignment, StageAligning, alignLog,
			"failed to scan aligned images: %v", err)
	}
	if len(aligned) < 2 {
		return nil, "", failWithOutput(KindInsufficientAligned, StageSelectingAlignedPair, alignLog,
			"face alignment produced %d images, need at least 2", len(aligned))
	}

	report(StageSelectingAlignedPair, 0.50, "Selecting aligned pair...")
	faceAligned, hairAligned, err := b.SelectPair(aligned)
	if err != nil {
		return nil, "", failWithOutput(KindInsufficientAligned, StageSelectingAlignedPair, alignLog,
			"failed to select aligned pair: %v", err)
	}

	// Compositing: long budget. The hairstyle filename is passed twice,
	// once as the style source and once as the structure source the tool
	// requires as a third path.
	report(StageTransferring, 0.55, "Transferring hairstyle...")
	progress := 0.55
	stopWatch := watchOutputs(run.Output(), func(name string) {
		if progress < 0.85 {
			progress += 0.05
		}
		report(StageTransferring, progress, fmt.Sprintf("Compositing wrote %s", name))
	})
	transferRes, err := b.runner.Run(ctx, execx.Spec{
		Dir:  run.Dir,
		Name: b.cfg.Python,
		Args: []string{
			filepath.Join(b.cfg.Root, b.cfg.TransferScript),
			"--im_path1", faceAligned,
			"--im_path2", hairAligned,
			"--im_path3", hairAligned,
			"--sign", string(req.Style),
			"--smooth", strconv.Itoa(req.Smoothness),
		},
		Timeout: b.cfg.TransferTimeout(),
	})
	stopWatch()
	if err != nil {
		return nil, "", failf(KindTransfer, StageTransferring, "failed to start transfer process: %v", err)
	}
	if transferRes.TimedOut {
		return nil, "", failf(KindTimeout, StageTransferring, "transfer process timed out after %s", b.cfg.TransferTimeout())
	}

	report(StageResolvingOutput, 0.90, "Resolving output...")
	outPath, err := ResolveOutput(run.Output(), req.Style)
	if err != nil {
		return nil, "", failWithOutput(KindTransfer, StageResolvingOutput, transferRes.Combined(),
			"output image not found: %v", err)
	}

	result, err := imaging.Load(outPath)
	if err != nil {
		return nil, "", failWithOutput(KindTransfer, StageResolvingOutput, transferRes.Combined(),
			"failed to decode output image %s: %v", outPath, err)
	}

	log := fmt.Sprintf("Success!\n\nAligned images: %s, %s\n\nStyle: %s, Smoothness: %d\n\nProcess output:\n%s",
		faceAligned, hairAligned, req.Style, req.Smoothness, tail(transferRes.Stdout, 500))
	return result, log, nil
}

// tail returns the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
