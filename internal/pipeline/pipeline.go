package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/pageloader/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence and share the Run of the current load.
type Step interface {
	// Do executes the step. A returned error aborts the load.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string

	// Phase returns the phase failures of this step are attributed to.
	Phase() model.Phase
}

// Pipeline executes steps in order and stops at the first failure.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
//
// The context is checked before each step; steps are responsible for
// honoring it while they run. The first failure is wrapped in a PhaseError
// carrying the step's phase, recorded in the run's report and returned.
// The report is marked cancelled whenever ctx ended before or during the
// failing step.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", run.Report.PageURL,
				"reason", ctx.Err(),
			)
			run.Report.Cancelled = true
			pe := &PhaseError{Phase: step.Phase(), Err: ctx.Err()}
			run.Report.Fail(step.Phase(), pe)
			return pe
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"url", run.Report.PageURL,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", run.Report.PageURL,
				"error", err,
			)

			// A step aborted by the load's own context counts as cancelled.
			if ctx.Err() != nil {
				run.Report.Cancelled = true
			}
			pe := &PhaseError{Phase: step.Phase(), Err: err}
			run.Report.Fail(step.Phase(), pe)
			return pe
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", run.Report.PageURL,
		)
		run.Report.CompletedSteps = append(run.Report.CompletedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
