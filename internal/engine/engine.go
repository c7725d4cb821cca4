// Package engine drives the recursive solve loop: statement, theory,
// criteria, draft, verify, decide, and from there acceptance, repair,
// continuation or decomposition into subtasks whose results are folded back
// into the parent.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rand/descent/internal/budget"
	"github.com/rand/descent/internal/conversation"
	"github.com/rand/descent/internal/observability"
	"github.com/rand/descent/internal/prompts"
	"github.com/rand/descent/internal/provider"
	"github.com/rand/descent/internal/trim"
)

// Config assembles an Engine.
type Config struct {
	// Client performs the provider calls. Required.
	Client provider.Client

	// Model handles the light phases: theory and the next-action decision.
	// Empty means the client's configured default.
	Model string

	// StrongModel handles the heavy phases: criteria, drafting,
	// verification, decomposition, integration and the final answer. Empty
	// means the client's configured default.
	StrongModel string

	// MaxCalls bounds the provider calls one solve run may spend before the
	// recovery path kicks in. Zero means the default; negative means
	// unlimited.
	MaxCalls int

	// MaxTotalTokens is the conversation ceiling enforced before each call.
	MaxTotalTokens int

	// PreserveUserMessage keeps the task and the final answer in the
	// engine's standing conversation after a solve.
	PreserveUserMessage bool

	Prompts *prompts.Store
	Trimmer *trim.Trimmer
	Sink    observability.Sink
	Logger  *slog.Logger
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		MaxCalls:            60,
		MaxTotalTokens:      DefaultMaxTotalTokens,
		PreserveUserMessage: true,
	}
}

// Engine owns a standing conversation and solves tasks against it. Each solve
// works on a deep copy, so a failed or abandoned run never corrupts the
// standing history.
type Engine struct {
	cfg     Config
	base    *Agent
	prompts *prompts.Store
	sink    observability.Sink
	logger  *slog.Logger
}

// New creates an engine over the given standing conversation.
func New(conv *conversation.Context, cfg Config) (*Engine, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("engine: provider client is required")
	}
	def := DefaultConfig()
	if cfg.MaxCalls == 0 {
		cfg.MaxCalls = def.MaxCalls
	}
	if cfg.MaxTotalTokens <= 0 {
		cfg.MaxTotalTokens = def.MaxTotalTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewStore(cfg.Logger)
	}
	if cfg.Trimmer == nil {
		cfg.Trimmer = trim.New(trim.WithLogger(cfg.Logger))
	}

	return &Engine{
		cfg:     cfg,
		base:    NewAgent(conv, cfg.Client, cfg.Trimmer, cfg.MaxTotalTokens, cfg.Logger),
		prompts: cfg.Prompts,
		sink:    observability.OrNop(cfg.Sink),
		logger:  cfg.Logger,
	}, nil
}

// Agent exposes the standing conversation for plain calls outside the solve
// loop.
func (e *Engine) Agent() *Agent {
	return e.base
}

// Solve works the task through the recursive loop and returns the final
// user-facing answer.
//
// The run happens on a deep copy of the standing conversation, switched to
// seed-once injection, with a fresh record store and a fresh call budget.
// When the budget runs out mid-tree, one uncounted recovery call closes out
// the work done so far; one uncounted formatting call then always produces
// the final answer.
func (e *Engine) Solve(ctx context.Context, task string, images ...string) (string, error) {
	working := e.base.Context.Clone()
	if err := working.SetMode(conversation.ModeSeedOnce); err != nil {
		return "", err
	}
	agent := NewAgent(working, e.cfg.Client, e.cfg.Trimmer, e.cfg.MaxTotalTokens, e.logger)
	r := &run{
		eng:    e,
		agent:  agent,
		budget: budget.New(e.cfg.MaxCalls, budget.WithLogger(e.logger)),
	}

	if err := agent.Context.AddUserMessage(e.prompts.Full(prompts.KeyInstruction)); err != nil {
		return "", err
	}
	if err := agent.Records.RecordLastMessage(conversation.DeltaNone, prompts.KeyInstruction, conversation.StatusInProgress); err != nil {
		return "", err
	}

	solveErr := r.enterNode(ctx, task, images, conversation.DeltaNone, 0)
	if solveErr != nil {
		if !budget.IsExceeded(solveErr) {
			return "", solveErr
		}
		e.logger.Warn("call budget exhausted, recovering", "used", r.budget.Used())
		ph := placeholdersFor(agent.Records.CurrentPath())
		prompt := fmt.Sprintf("%v\n\n%s", solveErr, localize(e.prompts.Full(prompts.KeyRecover), ph))
		if _, err := r.exchange(ctx, 0, prompts.KeyRecover, prompt, e.cfg.StrongModel, conversation.DeltaNone); err != nil {
			return "", err
		}
	}

	prompt := localize(e.prompts.Full(prompts.KeyFinal), finalPlaceholders())
	final, err := r.exchange(ctx, 0, prompts.KeyFinal, prompt, e.cfg.StrongModel, conversation.DeltaNone)
	if err != nil {
		return "", err
	}

	if e.cfg.PreserveUserMessage {
		if err := e.base.Context.AddUserMessage(task, images...); err != nil {
			return "", err
		}
		if err := e.base.Context.AddAssistantMessage(final); err != nil {
			return "", err
		}
	}
	return final, nil
}
