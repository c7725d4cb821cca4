package engine

import (
	"strings"

	"github.com/rand/descent/internal/taskpath"
)

// placeholdersFor builds the substitution map for prompts addressed to the
// node at path. The statement phase additionally sets "task_context" to the
// task text; every other placeholder depends only on tree position.
func placeholdersFor(path taskpath.Path) map[string]string {
	id := path.String()
	ph := map[string]string{
		"task_id": id,
	}
	if path.IsRoot() {
		ph["level_indicator"] = ""
		ph["subtask_indicator"] = ""
		ph["parent_reference"] = ""
		ph["hierarchy_reminder"] = "This is the original task submitted by the user."
		ph["context_reminder"] = "Since this is the original task, the solution must be complete and satisfy every quality criterion. "
		return ph
	}

	parent := path.Clone()
	parent.Ascend()
	ph["level_indicator"] = " (subtask level)"
	ph["subtask_indicator"] = " [subtask]"
	ph["parent_reference"] = "Keep in mind that this task is part of task " +
		parent.String() + " and its solution must stay consistent with the parent's overall approach. "
	ph["hierarchy_reminder"] = "You are now working on subtask " + id +
		" within the decomposition hierarchy."
	ph["context_reminder"] = "Remember that this solution will be folded into task " +
		parent.String() + ", so keep the approach compatible with it. "
	return ph
}

// finalPlaceholders addresses the closing formatting call, which always
// speaks about the original task regardless of where the tree walk ended.
func finalPlaceholders() map[string]string {
	return map[string]string{
		"task_id":            taskpath.Root,
		"level_indicator":    "",
		"subtask_indicator":  "",
		"parent_reference":   "",
		"hierarchy_reminder": "This is the original task submitted by the user.",
		"context_reminder":   "The answer must be fully understandable to the user on its own. ",
	}
}

// localize substitutes every placeholder of the map into the prompt text.
func localize(prompt string, ph map[string]string) string {
	pairs := make([]string, 0, len(ph)*2)
	for key, value := range ph {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(prompt)
}
