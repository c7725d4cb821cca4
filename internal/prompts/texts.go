package prompts

import "github.com/MakeNowJust/heredoc"

// Placeholders substituted into phase prompts before each call. The engine
// fills them per node.
const (
	PlaceholderTaskID      = "{task_id}"
	PlaceholderLevel       = "{level_indicator}"
	PlaceholderTaskContext = "{task_context}"
	PlaceholderSubtask     = "{subtask_indicator}"
	PlaceholderParent      = "{parent_reference}"
	PlaceholderHierarchy   = "{hierarchy_reminder}"
	PlaceholderContext     = "{context_reminder}"
)

var defaultFull = map[string]string{
	KeyInstruction: heredoc.Doc(`
		You are a problem solver that works on tasks recursively. A task may be
		solved directly, or split into subtasks whose results are later folded
		back into the parent. Every message in this conversation is annotated
		with the task it belongs to, its status, and its kind. Pay attention to
		those annotations: messages marked in_progress or parent_of_current are
		the ones that matter right now; resolved branches are history.

		Work strictly on the task indicated as current. Do not revisit tasks
		already marked resolved. Be precise, be explicit about assumptions, and
		prefer complete answers over fragments.
	`),

	KeyStatement: heredoc.Doc(`
		{hierarchy_reminder}

		Task {task_id}{level_indicator}{subtask_indicator}:

		{task_context}

		{parent_reference}Read the task carefully before anything else. Restate
		nothing; the statement above is authoritative. Subsequent messages will
		walk you through building a theory, fixing quality criteria, drafting a
		solution and verifying it for this task specifically.
	`),

	KeyTheory: heredoc.Doc(`
		Before solving task {task_id}, lay out the theory needed for it. List
		the concepts, definitions, formulas, methods or facts that bear on the
		task, and state briefly how each one applies. Do not solve the task
		yet. If the task needs no special theory, say so in one line and name
		the kind of reasoning you will use instead.
	`),

	KeyCriteria: heredoc.Doc(`
		Define the quality criteria a correct and complete solution of task
		{task_id} must satisfy. Produce a short numbered list. Each criterion
		must be concrete enough to check a candidate solution against, covering
		correctness, completeness and any constraints stated in the task. These
		criteria will drive the verification step, so avoid vague wording.
	`),

	KeyDraft: heredoc.Doc(`
		Produce a candidate solution for task {task_id} now. Use the theory and
		the quality criteria established above. Show the essential reasoning,
		not every micro-step. If parts of the task remain uncertain, solve what
		can be solved and state the uncertainty explicitly rather than papering
		over it. The solution will be verified next, so structure it clearly.
	`),

	KeyVerify: heredoc.Doc(`
		Verify the candidate solution for task {task_id} against the quality
		criteria defined earlier. Go criterion by criterion: state whether it
		is met, partially met or violated, with a one-line justification each.
		Then summarize the verdict: what is solid, what is wrong, what is
		missing. Do not fix anything here; this step only judges the draft.
	`),

	KeyDecide: heredoc.Doc(`
		Based on the verification above, choose the next action for task
		{task_id}. Reply with a JSON object of the form {"action": "X"} where
		X is exactly one letter:

		  a) the solution meets the criteria; accept it as final for this task
		  b) the solution is flawed but repairable; redo it within this task
		  c) the solution is on track but unfinished; continue it
		  d) the task is too large to solve directly; decompose into subtasks

		Output only the JSON object, nothing else.
	`),

	KeyRepair: heredoc.Doc(`
		The previous solution of task {task_id} did not pass verification.
		Produce a corrected solution from scratch, explicitly addressing every
		criterion the verification marked as violated or missing. Do not repeat
		the failed text; replace it. Keep what the verification confirmed as
		correct, fix what it rejected, and fill what it found absent.
	`),

	KeyContinue: heredoc.Doc(`
		The solution of task {task_id} is on the right track but incomplete.
		Continue it from where it stops. Do not restate the part already
		written; produce only the continuation, so that the previous text plus
		your answer together form one complete solution satisfying the quality
		criteria.
	`),

	KeyDecompose: heredoc.Doc(`
		Task {task_id} is too large to solve in one pass. Split it into a small
		ordered list of subtasks that together solve it, each one materially
		simpler than the whole. Reply with a JSON object of the form
		{"subtasks": [{"title": "...", "goal": "..."}, ...]} or, failing that,
		a plain numbered list with one subtask per line. Keep the list short;
		three to five subtasks is usually right. Every subtask must state what
		it produces for the parent task.
	`),

	KeyIntegrate: heredoc.Doc(`
		All subtasks of task {task_id} are resolved; their results appear above
		marked as subtask_resolved. Fold them into a single draft solution of
		the parent task. Use the subtask results as settled material; do not
		re-derive them. The folded draft will be verified against the parent
		task's quality criteria next, so make it a complete, standalone answer
		to the parent task.
	`),

	KeyRecover: heredoc.Doc(`
		{context_reminder}The work above was cut short before reaching a
		verified solution. Using everything established so far, produce the
		best complete answer to task {task_id} that the existing material
		supports. State plainly which parts are solid and which are a best
		effort. Do not start new subtasks; close out with what exists.
	`),

	KeyFinal: heredoc.Doc(`
		Produce the final user-facing answer for the original task. Everything
		above is working material; the user will see only your reply to this
		message. Present the answer cleanly and completely, without task
		annotations, internal statuses or references to the solving process.
		If the work above contains caveats that matter to the user, carry them
		into the answer briefly.
	`),
}

var defaultShort = map[string]string{
	KeyStatement: "Task {task_id}: see the statement recorded above.",
	KeyTheory:    "Theory for task {task_id} was requested here.",
	KeyCriteria:  "Quality criteria for task {task_id} were requested here.",
	KeyDraft:     "A candidate solution for task {task_id} was requested here.",
	KeyVerify:    "Verification of task {task_id} against its criteria was requested here.",
	KeyDecide:    `Next-action choice for task {task_id} was requested here ({"action": "a|b|c|d"}).`,
	KeyRepair:    "A corrected solution for task {task_id} was requested here.",
	KeyContinue:  "A continuation of the solution for task {task_id} was requested here.",
	KeyDecompose: "A subtask split of task {task_id} was requested here.",
	KeyIntegrate: "Folding resolved subtasks of task {task_id} into a draft was requested here.",
}
