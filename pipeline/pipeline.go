package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"notion-post-bot/selector"
	"notion-post-bot/twitter"
	"notion-post-bot/workflow"
)

const defaultLookback = 365 * 24 * time.Hour

// Source lists candidate notes and exports their text.
type Source interface {
	Candidates(ctx context.Context, since time.Time) ([]selector.Candidate, error)
	Content(ctx context.Context, id string) (string, error)
}

// Selector picks one candidate.
type Selector interface {
	Select(candidates []selector.Candidate, now time.Time) (selector.Candidate, error)
	TierOf(created, now time.Time) selector.Tier
}

// Workflow turns note text into a validated post.
type Workflow interface {
	Execute(ctx context.Context, content string) (*workflow.State, error)
}

// Publisher publishes a post.
type Publisher interface {
	Publish(ctx context.Context, text string) (*twitter.Receipt, error)
}

// Notifier reports the outcome of a run.
type Notifier interface {
	Published(ctx context.Context, title, post, url string)
	Failed(ctx context.Context, runID string, err error)
}

// Report summarizes one run. Fields are filled as far as the run got.
type Report struct {
	RunID      string
	Candidates int
	Chosen     selector.Candidate
	Post       string
	// PostWidth is the width of the last draft, validated or not.
	PostWidth  int
	Trials     int
	Receipt    *twitter.Receipt
	Duration   time.Duration
}

// Runner orchestrates one note-to-post run.
type Runner struct {
	source    Source
	selector  Selector
	workflow  Workflow
	publisher Publisher
	notifier  Notifier
	metrics   *Metrics
	lookback  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets the outcome notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLookback limits candidates to notes created within d.
func WithLookback(d time.Duration) Option {
	return func(r *Runner) {
		r.lookback = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithTracer sets the tracer used for per-step spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a new runner.
func NewRunner(
	source Source,
	sel Selector,
	wf Workflow,
	publisher Publisher,
	opts ...Option,
) *Runner {
	r := &Runner{
		source:    source,
		selector:  sel,
		workflow:  wf,
		publisher: publisher,
		lookback:  defaultLookback,
		now:       time.Now,
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fetch, select, export, generate, publish and notify in order.
// Any step failure aborts the run. The report is returned in both cases.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := r.now()
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", report.RunID)

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
	))
	defer span.End()

	logger.Info("starting run")

	err := r.run(ctx, logger, report, start)
	report.Duration = r.now().Sub(start)

	if r.metrics != nil {
		r.metrics.observeRun(report, err, start)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", "error", err, "duration", report.Duration)
		if r.notifier != nil {
			// Report the failure even when it was a cancellation.
			r.notifier.Failed(context.WithoutCancel(ctx), report.RunID, err)
		}
		return report, err
	}

	if r.notifier != nil {
		r.notifier.Published(ctx, report.Chosen.Title, report.Post, report.Receipt.URL())
	}
	logger.Info("run complete",
		"note_id", report.Chosen.ID,
		"post_id", report.Receipt.ID,
		"trials", report.Trials,
		"duration", report.Duration)
	return report, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, report *Report, now time.Time) error {
	var candidates []selector.Candidate
	err := r.step(ctx, "fetch", func(ctx context.Context) error {
		var err error
		candidates, err = r.source.Candidates(ctx, now.Add(-r.lookback))
		if err != nil {
			return fmt.Errorf("fetch candidates: %w", err)
		}
		report.Candidates = len(candidates)
		logger.Info("fetched candidates", "count", len(candidates))
		return nil
	})
	if err != nil {
		return err
	}

	err = r.step(ctx, "select", func(ctx context.Context) error {
		chosen, err := r.selector.Select(candidates, now)
		if err != nil {
			return fmt.Errorf("select candidate: %w", err)
		}
		report.Chosen = chosen
		logger.Info("selected note",
			"note_id", chosen.ID,
			"title", chosen.Title,
			"tier", r.selector.TierOf(chosen.CreatedTime, now).String())
		return nil
	})
	if err != nil {
		return err
	}

	var content string
	err = r.step(ctx, "content", func(ctx context.Context) error {
		var err error
		content, err = r.source.Content(ctx, report.Chosen.ID)
		if err != nil {
			return fmt.Errorf("export note %s: %w", report.Chosen.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = r.step(ctx, "generate", func(ctx context.Context) error {
		state, err := r.workflow.Execute(ctx, content)
		if state != nil {
			report.Trials = state.TrialCount
			if post := state.LastPost(); post != "" {
				report.Post = post
				report.PostWidth = workflow.Width(post)
			}
		}
		if err != nil {
			return fmt.Errorf("generate post: %w", err)
		}
		return nil
	})
	if err != nil {
		// A draft that never validated is not a result.
		report.Post = ""
		return err
	}

	return r.step(ctx, "publish", func(ctx context.Context) error {
		receipt, err := r.publisher.Publish(ctx, report.Post)
		if err != nil {
			return fmt.Errorf("publish post: %w", err)
		}
		report.Receipt = receipt
		return nil
	})
}

// step runs fn in its own span and records its duration.
func (r *Runner) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	ctx, span := r.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if r.metrics != nil {
		r.metrics.observeStep(name, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
