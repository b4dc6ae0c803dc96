package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/pageloader/internal/model"
)

// mockStep is a test implementation of Step.
type mockStep struct {
	name   string
	phase  model.Phase
	err    error
	called bool
}

func (m *mockStep) Do(_ context.Context, _ *Run) error {
	m.called = true
	return m.err
}

func (m *mockStep) Name() string {
	return m.name
}

func (m *mockStep) Phase() model.Phase {
	return m.phase
}

// cancellingStep cancels the load while it runs and returns the context error,
// like a step whose fetches are aborted midway.
type cancellingStep struct {
	cancel context.CancelFunc
}

func (c *cancellingStep) Do(ctx context.Context, _ *Run) error {
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func (c *cancellingStep) Name() string {
	return "fetch_assets"
}

func (c *cancellingStep) Phase() model.Phase {
	return model.PhaseFetchAssets
}

func newTestRun(t *testing.T) *Run {
	t.Helper()
	return &Run{Report: model.NewLoadReport("https://example.test/", t.TempDir())}
}

// TestPipeline_Execute tests sequential execution of steps.
func TestPipeline_Execute(t *testing.T) {
	t.Parallel()

	t.Run("executes steps in order", func(t *testing.T) {
		t.Parallel()

		p := New()
		step1 := &mockStep{name: "step1", phase: model.PhaseFetchPage}
		step2 := &mockStep{name: "step2", phase: model.PhaseRewritePage}
		p.AddSteps(step1, step2)

		run := newTestRun(t)
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !step1.called || !step2.called {
			t.Error("expected both steps to be called")
		}
		if len(run.Report.CompletedSteps) != 2 {
			t.Errorf("expected 2 completed steps, got %v", run.Report.CompletedSteps)
		}
		if !run.Report.Succeeded() {
			t.Error("expected report to succeed")
		}
	})

	t.Run("stops on first failure and tags the phase", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		p := New()
		step1 := &mockStep{name: "step1", phase: model.PhaseFetchAssets}
		step2 := &mockStep{name: "step2", phase: model.PhaseSaveAssets, err: cause}
		step3 := &mockStep{name: "step3", phase: model.PhaseSavePage}
		p.AddSteps(step1, step2, step3)

		run := newTestRun(t)
		err := p.Execute(context.Background(), run)
		if err == nil {
			t.Fatal("expected error")
		}
		if step3.called {
			t.Error("step after the failure should not run")
		}
		if !errors.Is(err, ErrAssetSave) {
			t.Errorf("expected ErrAssetSave, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
		if run.Report.FailedPhase != model.PhaseSaveAssets {
			t.Errorf("expected failed phase save_assets, got %s", run.Report.FailedPhase)
		}
		if run.Report.ErrorMessage != err.Error() {
			t.Errorf("expected report message %q, got %q", err.Error(), run.Report.ErrorMessage)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		p := New()
		step := &mockStep{name: "step1", phase: model.PhaseFetchPage}
		p.AddStep(step)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		run := newTestRun(t)
		err := p.Execute(ctx, run)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.called {
			t.Error("step should not run after cancellation")
		}
		if !run.Report.Cancelled {
			t.Error("expected report to be marked cancelled")
		}
	})

	t.Run("cancellation during a step marks the report cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := New()
		next := &mockStep{name: "save_assets", phase: model.PhaseSaveAssets}
		p.AddSteps(&cancellingStep{cancel: cancel}, next)

		run := newTestRun(t)
		err := p.Execute(ctx, run)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(err, ErrAssetFetch) {
			t.Errorf("expected ErrAssetFetch, got %v", err)
		}
		if next.called {
			t.Error("step after the cancelled one should not run")
		}
		if !run.Report.Cancelled {
			t.Error("expected report to be marked cancelled")
		}
		if run.Report.FailedPhase != model.PhaseFetchAssets {
			t.Errorf("expected failed phase fetch_assets, got %s", run.Report.FailedPhase)
		}
	})

	t.Run("deadline during a step marks the report cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		p := New()
		p.AddStep(&cancellingStep{cancel: func() {}})

		run := newTestRun(t)
		err := p.Execute(ctx, run)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if !run.Report.Cancelled {
			t.Error("expected report to be marked cancelled")
		}
	})

	t.Run("step failure with a live context is not a cancellation", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "fetch_assets", phase: model.PhaseFetchAssets, err: context.DeadlineExceeded})

		run := newTestRun(t)
		if err := p.Execute(context.Background(), run); err == nil {
			t.Fatal("expected error")
		}
		if run.Report.Cancelled {
			t.Error("a per-request timeout should not mark the load cancelled")
		}
	})
}

// TestPipeline_StepNames tests step introspection.
func TestPipeline_StepNames(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	p := l.NewPipeline()

	want := []string{"fetch_page", "rewrite_page", "ensure_assets_folder", "fetch_assets", "save_assets", "save_page"}
	got := p.StepNames()
	if p.StepCount() != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), p.StepCount())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestPhaseError tests phase matching and messages.
func TestPhaseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase    model.Phase
		sentinel error
		prefix   string
	}{
		{model.PhaseFetchPage, ErrPageFetch, "error during page downloading"},
		{model.PhaseRewritePage, ErrPageParse, "error during page parsing"},
		{model.PhaseEnsureAssetsFolder, ErrAssetsFolderCreation, "error during assets folder creation"},
		{model.PhaseFetchAssets, ErrAssetFetch, "error during assets downloading"},
		{model.PhaseSaveAssets, ErrAssetSave, "error during assets saving"},
		{model.PhaseSavePage, ErrPageSave, "error during page saving"},
	}

	cause := errors.New("boom")
	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			t.Parallel()

			var err error = &PhaseError{Phase: tt.phase, Err: cause}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v to match its sentinel", err)
			}
			if err.Error() != tt.prefix+": boom" {
				t.Errorf("unexpected message %q", err.Error())
			}
			if PhaseOf(err) != tt.phase {
				t.Errorf("PhaseOf = %s, want %s", PhaseOf(err), tt.phase)
			}
			for _, other := range tests {
				if other.phase != tt.phase && errors.Is(err, other.sentinel) {
					t.Errorf("%v should not match %v", err, other.sentinel)
				}
			}
		})
	}

	if PhaseOf(cause) != model.PhaseNone {
		t.Error("expected PhaseNone for untagged error")
	}
}
