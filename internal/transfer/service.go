package transfer

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hairshop/internal/config"
	"hairshop/internal/imaging"
	"hairshop/internal/logging"
	"hairshop/internal/workspace"
)

// Service is the pipeline orchestrator: it sequences validation,
// preprocessing, toolchain initialization, staging, and the model's
// external stages, reporting progress at fixed milestones and
// terminating with a result or a classified failure. No error escapes
// Transfer; callers always receive a Result.
type Service struct {
	cfg       *config.Config
	model     Model
	ws        *workspace.Manager
	validator *imaging.Validator
	log       *slog.Logger
}

// NewService wires the orchestrator.
func NewService(cfg *config.Config, model Model, ws *workspace.Manager, log *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		model:     model,
		ws:        ws,
		validator: imaging.NewValidator(imaging.ConstraintsFromConfig(cfg.Validation)),
		log:       log,
	}
}

// Model exposes the underlying transfer model.
func (s *Service) Model() Model { return s.model }

// Defaults returns the configured request defaults.
func (s *Service) Defaults() config.Defaults { return s.cfg.Defaults }

// ModelInfo returns metadata about the configured model.
func (s *Service) ModelInfo() ModelInfo { return s.model.ModelInfo() }

// Transfer runs the full pipeline for one request. progress may be nil.
func (s *Service) Transfer(ctx context.Context, req Request, progress ProgressFunc) Result {
	runID := uuid.NewString()
	start := time.Now()

	report := func(stage Stage, fraction float64, desc string) {
		logging.LogStage(s.log, runID, stage.String(), fraction)
		if progress != nil {
			progress(fraction, desc)
		}
	}
	fail := func(serr *StageError) Result {
		logging.LogRunError(s.log, runID, serr.Stage.String(), string(serr.Kind), time.Since(start), serr)
		report(StageFailed, 1.0, serr.Message)
		return Result{Log: serr.Error(), Err: serr}
	}

	logging.LogRunStart(s.log, runID, string(req.Style), req.Smoothness, req.Enhance)
	report(StageIdle, 0, "Setting up...")

	// Validation performs no disk or process work; a rejected request
	// leaves no trace anywhere.
	report(StageValidating, 0.05, "Validating inputs...")
	if serr := s.validate(req); serr != nil {
		return fail(serr)
	}

	if ctx.Err() != nil {
		return fail(failf(KindTimeout, StagePreprocessing, "deadline exceeded before preprocessing"))
	}
	report(StagePreprocessing, 0.10, "Preprocessing images...")
	face, hair := s.preprocess(req)

	if ctx.Err() != nil {
		return fail(failf(KindTimeout, StageInitializing, "deadline exceeded before initialization"))
	}
	report(StageInitializing, 0.15, "Initializing model...")
	if err := s.model.Setup(ctx); err != nil {
		return fail(failf(KindSetup, StageInitializing, "failed to initialize model: %v", err))
	}

	if ctx.Err() != nil {
		return fail(failf(KindTimeout, StageStaging, "deadline exceeded before staging"))
	}
	report(StageStaging, 0.18, "Staging images...")
	run, err := s.ws.NewRun(runID)
	if err != nil {
		return fail(failf(KindStaging, StageStaging, "failed to allocate workspace: %v", err))
	}
	if s.cfg.Workspace.KeepRuns {
		run.Keep()
	}
	defer run.Remove()

	if err := run.Reset(); err != nil {
		return fail(failf(KindStaging, StageStaging, "failed to reset staging directory: %v", err))
	}
	if _, err := run.Stage(face, workspace.FaceImageName); err != nil {
		return fail(failf(KindStaging, StageStaging, "could not save face image: %v", err))
	}
	if _, err := run.Stage(hair, workspace.HairImageName); err != nil {
		return fail(failf(KindStaging, StageStaging, "could not save hairstyle image: %v", err))
	}

	result, logMsg, serr := s.model.Process(ctx, run, req, report)
	if serr != nil {
		return fail(serr)
	}

	report(StageDone, 1.0, "Complete!")
	logging.LogRunComplete(s.log, runID, time.Since(start), logMsg)
	return Result{Image: result, Log: logMsg}
}

func (s *Service) validate(req Request) *StageError {
	if req.Face == nil {
		return failf(KindValidation, StageValidating, "face image is required")
	}
	if req.Hair == nil {
		return failf(KindValidation, StageValidating, "hairstyle image is required")
	}
	if _, err := ParseStyle(string(req.Style)); err != nil {
		return failf(KindValidation, StageValidating, "%v", err)
	}
	if req.Smoothness < MinSmoothness || req.Smoothness > MaxSmoothness {
		return failf(KindValidation, StageValidating, "smoothness must be between %d and %d, got %d",
			MinSmoothness, MaxSmoothness, req.Smoothness)
	}
	if err := s.validator.ValidateImage(req.Face); err != nil {
		return failf(KindValidation, StageValidating, "face image validation failed: %v", err)
	}
	if err := s.validator.ValidateImage(req.Hair); err != nil {
		return failf(KindValidation, StageValidating, "hairstyle image validation failed: %v", err)
	}
	return nil
}

// preprocess normalizes both images to 3-channel form, applies the
// configured enhancement when requested, and bounds their size before
// staging. Deterministic; cannot fail.
func (s *Service) preprocess(req Request) (image.Image, image.Image) {
	face := imaging.Normalize(req.Face)
	hair := imaging.Normalize(req.Hair)

	if req.Enhance {
		e := s.cfg.Enhancement
		face = imaging.Enhance(face, e.Brightness, e.Contrast, e.Sharpness, e.Color)
		hair = imaging.Enhance(hair, e.Brightness, e.Contrast, e.Sharpness, e.Color)
	}

	var faceOut, hairOut image.Image = face, hair
	if bound := s.cfg.Validation.StageBound; bound > 0 {
		faceOut = imaging.FitWithin(face, bound, bound)
		hairOut = imaging.FitWithin(hair, bound, bound)
	}
	return faceOut, hairOut
}
