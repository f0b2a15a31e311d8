package transfer

import "fmt"

// Kind classifies a run failure. Every Failed outcome carries exactly
// one kind.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindSetup               Kind = "SetupError"
	KindStaging             Kind = "StagingError"
	KindAlignment           Kind = "AlignmentError"
	KindInsufficientAligned Kind = "InsufficientAlignedOutputsError"
	KindTransfer            Kind = "TransferError"
	KindTimeout             Kind = "TimeoutError"
	KindInternal            Kind = "InternalError"
)

// StageError is a classified, terminal stage failure. Output preserves
// whatever the external process printed so callers can surface root
// cause instead of a generic failure.
type StageError struct {
	Kind    Kind
	Stage   Stage
	Message string
	Output  string // captured process output, possibly empty
}

func (e *StageError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s at %s: %s\n%s", e.Kind, e.Stage, e.Message, e.Output)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

func failf(kind Kind, stage Stage, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

func failWithOutput(kind Kind, stage Stage, output string, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...), Output: output}
}
