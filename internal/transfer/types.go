package transfer

import (
	"context"
	"fmt"
	"image"

	"hairshop/internal/workspace"
)

// Style selects the compositing tool's blend behavior.
type Style string

const (
	StyleRealistic Style = "realistic"
	StyleFidelity  Style = "fidelity"
)

// Styles lists the supported transfer styles.
func Styles() []Style {
	return []Style{StyleRealistic, StyleFidelity}
}

// ParseStyle validates a style name.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleRealistic, StyleFidelity:
		return Style(s), nil
	}
	return "", fmt.Errorf("unsupported style %q, expected realistic or fidelity", s)
}

// Smoothness bounds for the blend transition knob.
const (
	MinSmoothness = 1
	MaxSmoothness = 5
)

// Request carries one transfer submission. Immutable once submitted.
type Request struct {
	Face       image.Image
	Hair       image.Image
	Style      Style
	Smoothness int
	Enhance    bool
}

// Stage enumerates orchestrator progress. Exactly one stage is active at
// a time per run; transitions are strictly forward except Failed, which
// is reachable from any non-terminal stage. Done and Failed are terminal.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StagePreprocessing
	StageInitializing
	StageStaging
	StageAligning
	StageSelectingAlignedPair
	StageTransferring
	StageResolvingOutput
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:                 "Idle",
	StageValidating:           "Validating",
	StagePreprocessing:        "Preprocessing",
	StageInitializing:         "Initializing",
	StageStaging:              "Staging",
	StageAligning:             "Aligning",
	StageSelectingAlignedPair: "SelectingAlignedPair",
	StageTransferring:         "Transferring",
	StageResolvingOutput:      "ResolvingOutput",
	StageDone:                 "Done",
	StageFailed:               "Failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ProgressFunc receives milestone updates during a run. fraction is in
// [0,1]; description is human-readable.
type ProgressFunc func(fraction float64, description string)

// StageReporter is the internal progress channel between the
// orchestrator and a model: stage transitions plus milestone fractions.
type StageReporter func(stage Stage, fraction float64, description string)

// Result is the terminal outcome of one run: either a decoded output
// image plus a log, or no image plus a classified failure. Never both
// absent: a failed run always carries its diagnostic in Err and Log.
type Result struct {
	Image image.Image
	Log   string
	Err   *StageError
}

// Failed reports whether the run terminated in the Failed state.
func (r Result) Failed() bool { return r.Err != nil }

// ModelInfo describes a transfer model implementation.
type ModelInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Architecture    string   `json:"architecture"`
	Paper           string   `json:"paper"`
	Repository      string   `json:"repository"`
	SupportedStyles []Style  `json:"supported_styles"`
	SmoothnessRange [2]int   `json:"smoothness_range"`
	Initialized     bool     `json:"is_initialized"`
}

// Model is the capability interface a transfer toolchain implements.
// Callers depend on this interface, not the concrete type, so the
// underlying toolchain can be swapped later.
type Model interface {
	// Setup performs one-time toolchain initialization. Idempotent: a
	// second call on an initialized model is a no-op.
	Setup(ctx context.Context) error

	// Process runs alignment, pair selection, compositing, and output
	// resolution inside the given run workspace. Inputs must already be
	// staged. Stage transitions are reported through report.
	Process(ctx context.Context, run *workspace.Run, req Request, report StageReporter) (image.Image, string, *StageError)

	// ModelInfo returns metadata about the toolchain.
	ModelInfo() ModelInfo
}
