package engine

import (
	"context"

	"github.com/rand/descent/internal/budget"
	"github.com/rand/descent/internal/conversation"
	"github.com/rand/descent/internal/observability"
	"github.com/rand/descent/internal/prompts"
	"github.com/rand/descent/internal/taskpath"
)

// run is the state of one solve: the working agent, the call budget and the
// walk over the task tree. The tree position itself lives in the record
// store.
type run struct {
	eng    *Engine
	agent  *Agent
	budget *budget.Budget
}

// previewPath returns the path the store will point at after delta is
// applied, so prompts can address the node before its first message exists.
func (r *run) previewPath(delta conversation.PathDelta) taskpath.Path {
	p := r.agent.Records.CurrentPath()
	switch delta {
	case conversation.DeltaSibling:
		p.NextSibling()
	case conversation.DeltaDescend:
		p.Descend()
	case conversation.DeltaAscend:
		p.Ascend()
	}
	return p
}

// enterNode opens a node of the task tree: it records the task statement,
// builds the theory and the quality criteria, then runs the solve loop.
func (r *run) enterNode(ctx context.Context, task string, images []string, delta conversation.PathDelta, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := r.previewPath(delta)
	ph := placeholdersFor(target)
	ph["task_context"] = task
	statement := localize(r.eng.prompts.Full(prompts.KeyStatement), ph)

	r.agent.Records.RecomputeStatuses()
	if err := r.agent.Context.AddUserMessage(statement, images...); err != nil {
		return err
	}
	if err := r.agent.Records.RecordLastMessage(delta, prompts.KeyStatement, conversation.StatusInProgress); err != nil {
		return err
	}
	r.sink(observability.Event{
		Task:   target.String(),
		Depth:  depth,
		Phase:  observability.PhaseStatement,
		Prompt: statement,
	})

	if _, err := r.phaseCall(ctx, depth, prompts.KeyTheory, r.eng.cfg.Model, conversation.DeltaNone); err != nil {
		return err
	}
	if _, err := r.phaseCall(ctx, depth, prompts.KeyCriteria, r.eng.cfg.StrongModel, conversation.DeltaNone); err != nil {
		return err
	}
	return r.solveNode(ctx, depth, false)
}

// solveNode runs draft, verify and decide for the current node, then follows
// the chosen action. skipDraft is set when a freshly integrated subtask
// result already serves as the draft.
func (r *run) solveNode(ctx context.Context, depth int, skipDraft bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !skipDraft {
		if _, err := r.phaseCall(ctx, depth, prompts.KeyDraft, r.eng.cfg.StrongModel, conversation.DeltaNone); err != nil {
			return err
		}
	}
	if _, err := r.phaseCall(ctx, depth, prompts.KeyVerify, r.eng.cfg.StrongModel, conversation.DeltaNone); err != nil {
		return err
	}
	decision, err := r.phaseCall(ctx, depth, prompts.KeyDecide, r.eng.cfg.Model, conversation.DeltaNone)
	if err != nil {
		return err
	}

	action := ParseAction(decision)
	r.sink(observability.Event{
		Task:  r.agent.Records.CurrentPath().String(),
		Depth: depth,
		Phase: observability.PhaseDecide,
		Extra: map[string]any{"action": action.String()},
	})

	switch action {
	case ActionAccept:
		return r.agent.Records.RecordLastMessage(conversation.DeltaNone, "accepted", conversation.StatusInProgress)
	case ActionRepair:
		return r.redo(ctx, depth, prompts.KeyRepair)
	case ActionContinue:
		return r.redo(ctx, depth, prompts.KeyContinue)
	default:
		return r.decompose(ctx, depth)
	}
}

// redo appends a repair or continuation instruction and reruns the solve
// loop on the same node.
func (r *run) redo(ctx context.Context, depth int, key string) error {
	ph := placeholdersFor(r.agent.Records.CurrentPath())
	prompt := localize(r.eng.prompts.Full(key), ph)

	r.agent.Records.RecomputeStatuses()
	if err := r.agent.Context.AddUserMessage(prompt); err != nil {
		return err
	}
	if err := r.agent.Records.RecordLastMessage(conversation.DeltaNone, key, conversation.StatusInProgress); err != nil {
		return err
	}
	r.agent.Records.Compact(key, localize(r.eng.prompts.Short(key), ph), conversation.CompactAll)
	r.sink(observability.Event{
		Task:   r.agent.Records.CurrentPath().String(),
		Depth:  depth,
		Phase:  key,
		Prompt: prompt,
	})
	return r.solveNode(ctx, depth+1, false)
}

// decompose splits the current node into subtasks, solves each one, folds
// the results back into the parent and re-verifies the folded draft.
func (r *run) decompose(ctx context.Context, depth int) error {
	answer, err := r.phaseCall(ctx, depth, prompts.KeyDecompose, r.eng.cfg.StrongModel, conversation.DeltaNone)
	if err != nil {
		return err
	}
	subtasks := ParseSubtasks(answer)
	if len(subtasks) == 0 {
		r.eng.logger.Warn("decomposition answer unparseable, using default split",
			"task", r.agent.Records.CurrentPath().String())
		subtasks = DefaultSubtasks()
	}
	r.sink(observability.Event{
		Task:  r.agent.Records.CurrentPath().String(),
		Depth: depth,
		Phase: observability.PhaseDecompose,
		Extra: map[string]any{"subtasks": len(subtasks)},
	})

	for i, sub := range subtasks {
		delta := conversation.DeltaDescend
		if i > 0 {
			delta = conversation.DeltaSibling
		}
		if err := r.enterNode(ctx, sub, nil, delta, depth+1); err != nil {
			return err
		}
	}

	// Fold the subtask results back into the parent; the reply serves as
	// the parent's draft.
	if _, err := r.phaseCall(ctx, depth, prompts.KeyIntegrate, r.eng.cfg.StrongModel, conversation.DeltaAscend); err != nil {
		return err
	}
	return r.solveNode(ctx, depth, true)
}

// phaseCall is one budgeted provider call: localize the phase prompt for the
// target node, charge the budget, run the exchange and compact the consumed
// prompt down to its short form.
func (r *run) phaseCall(ctx context.Context, depth int, key, model string, delta conversation.PathDelta) (string, error) {
	target := r.previewPath(delta)
	ph := placeholdersFor(target)
	prompt := localize(r.eng.prompts.Full(key), ph)

	if err := r.budget.Charge(1); err != nil {
		return "", err
	}
	text, err := r.exchange(ctx, depth, key, prompt, model, delta)
	if err != nil {
		return "", err
	}
	r.agent.Records.Compact(key, localize(r.eng.prompts.Short(key), ph), conversation.CompactAll)
	return text, nil
}

// exchange appends the prompt, calls the provider on the trimmed history and
// appends the reply. Both messages are recorded; the path delta applies to
// the prompt.
func (r *run) exchange(ctx context.Context, depth int, key, prompt, model string, delta conversation.PathDelta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.agent.Records.RecomputeStatuses()
	if err := r.agent.Context.AddUserMessage(prompt); err != nil {
		return "", err
	}
	if err := r.agent.Records.RecordLastMessage(delta, key, conversation.StatusInProgress); err != nil {
		return "", err
	}
	r.agent.Records.RecomputeStatuses()

	resp, err := r.agent.invoke(ctx, callSettings{model: model})
	if err != nil {
		r.sink(observability.Event{
			Task:   r.agent.Records.CurrentPath().String(),
			Depth:  depth,
			Phase:  key,
			Prompt: prompt,
			Error:  err.Error(),
		})
		return "", err
	}

	if err := r.agent.Context.AddAssistantMessage(resp.Text); err != nil {
		return "", err
	}
	if err := r.agent.Records.RecordLastMessage(conversation.DeltaNone, key+"_response", conversation.StatusInProgress); err != nil {
		return "", err
	}
	r.sink(observability.Event{
		Task:     r.agent.Records.CurrentPath().String(),
		Depth:    depth,
		Phase:    key,
		Prompt:   prompt,
		Response: resp.Text,
	})
	return resp.Text, nil
}

func (r *run) sink(ev observability.Event) {
	r.eng.sink.Record(ev)
}
