package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-runewidth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Generator produces text from a prompt template and its variables.
type Generator interface {
	Complete(ctx context.Context, template string, vars map[string]any) (string, error)
}

// Config bounds block extraction, post length and the repair budget.
type Config struct {
	BlockMinChars int
	BlockMaxChars int
	PostMinChars  int
	PostMaxChars  int
	MaxTrials     int
}

// DefaultConfig returns the standard bounds: 300-600 character blocks,
// 110-140 character posts and three repair attempts.
func DefaultConfig() Config {
	return Config{
		BlockMinChars: 300,
		BlockMaxChars: 600,
		PostMinChars:  110,
		PostMaxChars:  140,
		MaxTrials:     3,
	}
}

// Node identifies a workflow step.
type Node int

const (
	BlockSelection Node = iota
	PostGeneration
	RuleCheck
	AdjustPost
	Done
)

func (n Node) String() string {
	switch n {
	case BlockSelection:
		return "block_selection"
	case PostGeneration:
		return "post_generation"
	case RuleCheck:
		return "rule_check"
	case AdjustPost:
		return "adjust_post"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("node(%d)", int(n))
	}
}

// State is threaded through every node of one run. Blocks and Posts only grow.
type State struct {
	Content         string
	Blocks          []string
	Posts           []string
	CurrentJudge    bool
	JudgementReason string
	TrialCount      int
}

// LastBlock returns the most recently extracted block.
func (s *State) LastBlock() string {
	if len(s.Blocks) == 0 {
		return ""
	}
	return s.Blocks[len(s.Blocks)-1]
}

// LastPost returns the most recent draft.
func (s *State) LastPost() string {
	if len(s.Posts) == 0 {
		return ""
	}
	return s.Posts[len(s.Posts)-1]
}

// Observer is called after every executed node.
type Observer func(node Node, state *State)

// Workflow turns document text into a post that satisfies the length rules.
type Workflow struct {
	gen      Generator
	cfg      Config
	prompts  Prompts
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// WithTracer sets the tracer used for per-node spans.
func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) {
		w.tracer = t
	}
}

// WithPrompts replaces the prompt templates.
func WithPrompts(p Prompts) Option {
	return func(w *Workflow) {
		w.prompts = p
	}
}

// WithObserver registers a hook that sees the state after each node.
func WithObserver(o Observer) Option {
	return func(w *Workflow) {
		w.observer = o
	}
}

// New creates a Workflow backed by the given generator.
func New(gen Generator, cfg Config, opts ...Option) *Workflow {
	w := &Workflow{
		gen:     gen,
		cfg:     cfg,
		prompts: DefaultPrompts(),
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the workflow and returns the validated post.
func (w *Workflow) Run(ctx context.Context, content string) (string, error) {
	state, err := w.Execute(ctx, content)
	if err != nil {
		return "", err
	}
	return state.LastPost(), nil
}

// Execute runs the state machine to completion and returns the final state.
// The state is returned alongside any error so callers can inspect history.
func (w *Workflow) Execute(ctx context.Context, content string) (*State, error) {
	state := &State{Content: content}

	ctx, span := w.tracer.Start(ctx, "workflow.run")
	defer span.End()

	w.logger.Info("starting workflow", "content_len", len(content), "max_trials", w.cfg.MaxTrials)

	for node := BlockSelection; node != Done; node = w.next(node, state) {
		if err := w.step(ctx, node, state); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			w.logger.Error("workflow failed", "node", node.String(), "error", err)
			return state, err
		}
		if w.observer != nil {
			w.observer(node, state)
		}
	}

	span.SetAttributes(attribute.Int("workflow.trials", state.TrialCount))

	if !state.CurrentJudge {
		err := &ValidationExhaustedError{Reason: state.JudgementReason, Trials: state.TrialCount}
		span.SetStatus(codes.Error, err.Error())
		w.logger.Error("post validation failed", "reason", state.JudgementReason, "trials", state.TrialCount)
		return state, err
	}

	w.logger.Info("post generated and validated", "trials", state.TrialCount, "width", Width(state.LastPost()))
	return state, nil
}

// next is the transition function of the state machine.
func (w *Workflow) next(node Node, state *State) Node {
	switch node {
	case BlockSelection:
		return PostGeneration
	case PostGeneration:
		return RuleCheck
	case RuleCheck:
		if state.CurrentJudge || state.TrialCount >= w.cfg.MaxTrials {
			return Done
		}
		return AdjustPost
	case AdjustPost:
		return RuleCheck
	default:
		return Done
	}
}

func (w *Workflow) step(ctx context.Context, node Node, state *State) error {
	ctx, span := w.tracer.Start(ctx, "workflow."+node.String(),
		trace.WithAttributes(attribute.Int("workflow.trial", state.TrialCount)))
	defer span.End()

	switch node {
	case BlockSelection:
		return w.selectBlock(ctx, state)
	case PostGeneration:
		return w.generatePost(ctx, state)
	case RuleCheck:
		j := w.cfg.Judge(state.LastPost())
		state.CurrentJudge = j.Pass
		state.JudgementReason = j.Reason
		span.SetAttributes(attribute.Int("post.width", j.Width), attribute.Bool("post.valid", j.Pass))
		w.logger.Info("rule check", "valid", j.Pass, "reason", j.Reason)
		return nil
	case AdjustPost:
		return w.adjustPost(ctx, state)
	default:
		return fmt.Errorf("unexpected node %s", node)
	}
}

func (w *Workflow) selectBlock(ctx context.Context, state *State) error {
	w.logger.Info("selecting block")
	if strings.TrimSpace(state.Content) == "" {
		return &GenerationError{Node: BlockSelection, Err: ErrEmptySource}
	}

	block, err := w.complete(ctx, BlockSelection, w.prompts.BlockSelection,
		state.Content, w.cfg.BlockMinChars, w.cfg.BlockMaxChars)
	if err != nil {
		return err
	}
	state.Blocks = append(state.Blocks, block)
	w.logger.Debug("selected block", "block", preview(block))
	return nil
}

func (w *Workflow) generatePost(ctx context.Context, state *State) error {
	w.logger.Info("generating post", "trial", state.TrialCount+1)
	post, err := w.complete(ctx, PostGeneration, w.prompts.PostGeneration,
		state.LastBlock(), w.cfg.PostMinChars, w.cfg.PostMaxChars)
	if err != nil {
		return err
	}
	state.Posts = append(state.Posts, post)
	w.logger.Debug("generated post", "post", post)
	return nil
}

func (w *Workflow) adjustPost(ctx context.Context, state *State) error {
	w.logger.Info("adjusting post length", "trial", state.TrialCount+1)
	post, err := w.complete(ctx, AdjustPost, w.prompts.AdjustPost,
		state.LastPost(), w.cfg.PostMinChars, w.cfg.PostMaxChars)
	if err != nil {
		return err
	}
	state.Posts = append(state.Posts, post)
	state.TrialCount++
	w.logger.Debug("adjusted post", "post", post)
	return nil
}

func (w *Workflow) complete(ctx context.Context, node Node, tmpl, content string, minChars, maxChars int) (string, error) {
	out, err := w.gen.Complete(ctx, tmpl, map[string]any{
		"content":   content,
		"min_chars": minChars,
		"max_chars": maxChars,
	})
	if err != nil {
		return "", &GenerationError{Node: node, Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &GenerationError{Node: node, Err: ErrEmptyOutput}
	}
	return out, nil
}

// IsGenerationError reports whether err came from a failed generator call.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func preview(s string) string {
	return runewidth.Truncate(s, 100, "...")
}
