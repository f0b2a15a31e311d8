package transfer

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hairshop/internal/config"
	"hairshop/internal/execx"
	"hairshop/internal/imaging"
	"hairshop/internal/workspace"
)

// stubRunner simulates the Barbershop toolchain. The alignment call is
// recognized by its -seed flag and drops files into the run's aligned
// directory; the compositing call writes into Blend_<style>.
type stubRunner struct {
	t *testing.T

	alignExit     int
	alignStdout   string
	alignOutputs  []string
	alignTimedOut bool

	transferExit     int
	transferStdout   string
	transferTimedOut bool
	writeOutput      bool

	mu    sync.Mutex
	calls []execx.Spec
}

func (r *stubRunner) Run(_ context.Context, spec execx.Spec) (execx.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	r.mu.Unlock()

	if hasArg(spec.Args, "-seed") {
		if r.alignTimedOut {
			return execx.Result{ExitCode: -1, TimedOut: true}, nil
		}
		for _, name := range r.alignOutputs {
			r.writePNG(filepath.Join(spec.Dir, workspace.AlignedDir, name))
		}
		return execx.Result{ExitCode: r.alignExit, Stdout: r.alignStdout}, nil
	}

	if r.transferTimedOut {
		return execx.Result{ExitCode: -1, TimedOut: true}, nil
	}
	if r.writeOutput {
		style := argValue(spec.Args, "--sign")
		dir := filepath.Join(spec.Dir, workspace.OutputDir, "Blend_"+style)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.t.Fatal(err)
		}
		r.writePNG(filepath.Join(dir, "result_1.png"))
	}
	return execx.Result{ExitCode: r.transferExit, Stdout: r.transferStdout}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *stubRunner) call(i int) execx.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func (r *stubRunner) writePNG(path string) {
	r.t.Helper()
	if err := imaging.Save(image.NewNRGBA(image.Rect(0, 0, 16, 16)), path); err != nil {
		r.t.Fatal(err)
	}
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// progressRecorder collects progress callbacks. The compositing watcher
// reports from its own goroutine, so access is locked.
type progressRecorder struct {
	mu    sync.Mutex
	descs []string
	fracs []float64
}

func (p *progressRecorder) record(fraction float64, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fracs = append(p.fracs, fraction)
	p.descs = append(p.descs, description)
}

func (p *progressRecorder) snapshot() ([]float64, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.fracs...), append([]string(nil), p.descs...)
}

func newTestService(t *testing.T, stub *stubRunner) (*Service, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		Toolchain: toolchainConfig(writeToolchainScripts(t)),
		Workspace: config.Workspace{Root: t.TempDir()},
		Validation: config.Validation{
			MinWidth:         256,
			MinHeight:        256,
			MaxFileSizeBytes: 10 * 1024 * 1024,
			StageBound:       1024,
		},
		Enhancement: config.Enhancement{Brightness: 1.05, Contrast: 1.05, Sharpness: 1.1, Color: 1.0},
		Defaults:    config.Defaults{Style: "realistic", Smoothness: 5},
	}

	ws, err := workspace.NewManager(cfg.Workspace.Root)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	log := discardLogger()
	model := NewBarbershop(cfg.Toolchain, stub, log)
	return NewService(cfg, model, ws, log), cfg
}

func testInput(size int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	return img
}

func validRequest() Request {
	return Request{
		Face:       testInput(512),
		Hair:       testInput(512),
		Style:      StyleRealistic,
		Smoothness: 3,
	}
}

func TestTransferSuccess(t *testing.T) {
	stub := &stubRunner{
		t:              t,
		alignOutputs:   []string{"0.png", "1.png"},
		transferStdout: "blend complete",
		writeOutput:    true,
	}
	svc, _ := newTestService(t, stub)

	rec := &progressRecorder{}
	res := svc.Transfer(context.Background(), validRequest(), rec.record)

	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Image == nil {
		t.Fatalf("success result must carry an image")
	}
	for _, want := range []string{"0.png, 1.png", "Style: realistic, Smoothness: 3", "blend complete"} {
		if !strings.Contains(res.Log, want) {
			t.Fatalf("log missing %q:\n%s", want, res.Log)
		}
	}

	fracs, descs := rec.snapshot()
	checkMilestoneOrder(t, descs)
	for i := 1; i < len(fracs); i++ {
		if fracs[i] < fracs[i-1] {
			t.Fatalf("progress regressed: %v", fracs)
		}
	}
	if fracs[len(fracs)-1] != 1.0 {
		t.Fatalf("final fraction = %v, want 1.0", fracs[len(fracs)-1])
	}
}

// checkMilestoneOrder asserts the fixed milestones appear in order;
// watcher updates may be interleaved between them.
func checkMilestoneOrder(t *testing.T, descs []string) {
	t.Helper()
	want := []string{
		"Setting up...",
		"Validating inputs...",
		"Preprocessing images...",
		"Initializing model...",
		"Staging images...",
		"Aligning faces...",
		"Selecting aligned pair...",
		"Transferring hairstyle...",
		"Resolving output...",
		"Complete!",
	}
	i := 0
	for _, d := range descs {
		if i < len(want) && d == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("missing milestone %q in sequence %v", want[i], descs)
	}
}

func TestTransferPassesToolchainArguments(t *testing.T) {
	stub := &stubRunner{
		t:            t,
		alignOutputs: []string{"b.png", "a.png", "c.png"},
		writeOutput:  true,
	}
	svc, cfg := newTestService(t, stub)

	req := validRequest()
	req.Smoothness = 4
	res := svc.Transfer(context.Background(), req, nil)
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}

	if stub.callCount() != 2 {
		t.Fatalf("expected align + transfer calls, got %d", stub.callCount())
	}

	align := stub.call(0)
	if align.Name != cfg.Toolchain.Python {
		t.Fatalf("align interpreter = %q", align.Name)
	}
	if align.Args[0] != filepath.Join(cfg.Toolchain.Root, cfg.Toolchain.AlignScript) {
		t.Fatalf("align script path = %q", align.Args[0])
	}
	if !hasArg(align.Args, "-seed") || argValue(align.Args, "-seed") != "42" {
		t.Fatalf("align args = %v", align.Args)
	}
	if align.Dir == "" || align.Dir == cfg.Toolchain.Root {
		t.Fatalf("alignment must run inside the run workspace, got %q", align.Dir)
	}

	xfer := stub.call(1)
	if got := argValue(xfer.Args, "--im_path1"); got != "a.png" {
		t.Fatalf("--im_path1 = %q, want lexicographically first aligned image", got)
	}
	if got := argValue(xfer.Args, "--im_path2"); got != "b.png" {
		t.Fatalf("--im_path2 = %q", got)
	}
	if got := argValue(xfer.Args, "--im_path3"); got != "b.png" {
		t.Fatalf("--im_path3 must repeat the hairstyle image, got %q", got)
	}
	if got := argValue(xfer.Args, "--sign"); got != "realistic" {
		t.Fatalf("--sign = %q", got)
	}
	if got := argValue(xfer.Args, "--smooth"); got != "4" {
		t.Fatalf("--smooth = %q", got)
	}
	if xfer.Dir != align.Dir {
		t.Fatalf("both stages must share the run directory: %q vs %q", xfer.Dir, align.Dir)
	}
}

func TestTransferValidationFailureLeavesNoTrace(t *testing.T) {
	stub := &stubRunner{t: t}
	svc, cfg := newTestService(t, stub)

	req := validRequest()
	req.Face = testInput(100)
	res := svc.Transfer(context.Background(), req, nil)

	if !res.Failed() || res.Err.Kind != KindValidation {
		t.Fatalf("expected validation failure, got %+v", res.Err)
	}
	if res.Image != nil {
		t.Fatalf("failed result must not carry an image")
	}
	if stub.callCount() != 0 {
		t.Fatalf("validation failure must not spawn processes")
	}

	runs, err := os.ReadDir(filepath.Join(cfg.Workspace.Root, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("validation failure must not create run directories, found %d", len(runs))
	}
}

func TestTransferRejectsBadParameters(t *testing.T) {
	svc, _ := newTestService(t, &stubRunner{t: t})

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"nil face", func(r *Request) { r.Face = nil }},
		{"nil hair", func(r *Request) { r.Hair = nil }},
		{"unknown style", func(r *Request) { r.Style = "vivid" }},
		{"smoothness too low", func(r *Request) { r.Smoothness = 0 }},
		{"smoothness too high", func(r *Request) { r.Smoothness = 6 }},
	}
	for _, c := range cases {
		req := validRequest()
		c.mutate(&req)
		res := svc.Transfer(context.Background(), req, nil)
		if !res.Failed() || res.Err.Kind != KindValidation {
			t.Fatalf("%s: expected validation failure, got %+v", c.name, res.Err)
		}
		if res.Log == "" {
			t.Fatalf("%s: failed result must carry a log", c.name)
		}
	}
}

func TestTransferInsufficientAlignedOutputs(t *testing.T) {
	stub := &stubRunner{
		t:            t,
		alignOutputs: []string{"0.png"},
		alignStdout:  "aligned 1 of 2 faces",
	}
	svc, _ := newTestService(t, stub)

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if !res.Failed() {
		t.Fatalf("expected failure")
	}
	if res.Err.Kind != KindInsufficientAligned {
		t.Fatalf("kind = %s", res.Err.Kind)
	}
	if res.Err.Stage != StageSelectingAlignedPair {
		t.Fatalf("stage = %s", res.Err.Stage)
	}
	if !strings.Contains(res.Err.Output, "aligned 1 of 2 faces") {
		t.Fatalf("alignment output not preserved: %q", res.Err.Output)
	}
	if stub.callCount() != 1 {
		t.Fatalf("transfer must not run after a failed alignment, calls = %d", stub.callCount())
	}
}

func TestTransferAlignmentFailureSurfacesProcessOutput(t *testing.T) {
	stub := &stubRunner{
		t:           t,
		alignExit:   1,
		alignStdout: "RuntimeError: no face detected",
	}
	svc, _ := newTestService(t, stub)

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if !res.Failed() || res.Err.Kind != KindAlignment {
		t.Fatalf("expected alignment failure, got %+v", res.Err)
	}
	if !strings.Contains(res.Log, "no face detected") {
		t.Fatalf("process output missing from log:\n%s", res.Log)
	}
}

func TestTransferTimeoutDuringCompositing(t *testing.T) {
	stub := &stubRunner{
		t:                t,
		alignOutputs:     []string{"0.png", "1.png"},
		transferTimedOut: true,
	}
	svc, _ := newTestService(t, stub)

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if !res.Failed() || res.Err.Kind != KindTimeout {
		t.Fatalf("expected timeout failure, got %+v", res.Err)
	}
	if res.Err.Stage != StageTransferring {
		t.Fatalf("stage = %s", res.Err.Stage)
	}
}

func TestTransferTimeoutDuringAlignment(t *testing.T) {
	stub := &stubRunner{t: t, alignTimedOut: true}
	svc, _ := newTestService(t, stub)

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if !res.Failed() || res.Err.Kind != KindTimeout {
		t.Fatalf("expected timeout failure, got %+v", res.Err)
	}
	if res.Err.Stage != StageAligning {
		t.Fatalf("stage = %s", res.Err.Stage)
	}
}

func TestTransferCanceledContextFailsEarly(t *testing.T) {
	stub := &stubRunner{t: t}
	svc, _ := newTestService(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.Transfer(ctx, validRequest(), nil)
	if !res.Failed() || res.Err.Kind != KindTimeout {
		t.Fatalf("expected timeout failure, got %+v", res.Err)
	}
	if stub.callCount() != 0 {
		t.Fatalf("no processes should spawn under a dead context")
	}
}

func TestTransferSetupFailure(t *testing.T) {
	stub := &stubRunner{t: t}
	svc, cfg := newTestService(t, stub)

	// Remove the scripts after construction so Setup has nothing to find.
	for _, name := range []string{cfg.Toolchain.AlignScript, cfg.Toolchain.TransferScript} {
		if err := os.Remove(filepath.Join(cfg.Toolchain.Root, name)); err != nil {
			t.Fatal(err)
		}
	}

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if !res.Failed() || res.Err.Kind != KindSetup {
		t.Fatalf("expected setup failure, got %+v", res.Err)
	}
	if res.Err.Stage != StageInitializing {
		t.Fatalf("stage = %s", res.Err.Stage)
	}
}

func TestTransferCleansUpRunDirectory(t *testing.T) {
	stub := &stubRunner{
		t:            t,
		alignOutputs: []string{"0.png", "1.png"},
		writeOutput:  true,
	}
	svc, cfg := newTestService(t, stub)

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}

	runs, err := os.ReadDir(filepath.Join(cfg.Workspace.Root, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("run directory should be removed after completion, found %d", len(runs))
	}
}

func TestTransferKeepsRunDirectoryWhenConfigured(t *testing.T) {
	stub := &stubRunner{
		t:            t,
		alignOutputs: []string{"0.png", "1.png"},
		writeOutput:  true,
	}
	svc, cfg := newTestService(t, stub)
	cfg.Workspace.KeepRuns = true

	res := svc.Transfer(context.Background(), validRequest(), nil)
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}

	runs, err := os.ReadDir(filepath.Join(cfg.Workspace.Root, "runs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("kept run directory missing, found %d entries", len(runs))
	}
	staged := filepath.Join(cfg.Workspace.Root, "runs", runs[0].Name(),
		workspace.UnprocessedDir, workspace.FaceImageName)
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("staged face image missing from kept run: %v", err)
	}
}
