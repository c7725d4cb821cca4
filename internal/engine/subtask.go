package engine

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var numberedItemPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)

// ParseSubtasks extracts an ordered subtask list from a decomposition answer.
// A fenced JSON object with a "subtasks" array wins; a plain numbered list is
// the fallback. An empty result means the answer was unusable.
func ParseSubtasks(answer string) []string {
	if m := fencedJSONPattern.FindStringSubmatch(answer); m != nil {
		if subs := subtasksFromJSON(m[1]); len(subs) > 0 {
			return subs
		}
	}

	var out []string
	for _, m := range numberedItemPattern.FindAllStringSubmatch(answer, -1) {
		if item := strings.TrimSpace(m[1]); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func subtasksFromJSON(raw string) []string {
	var out []string
	for _, item := range gjson.Get(raw, "subtasks").Array() {
		title := strings.TrimSpace(item.Get("title").String())
		goal := strings.TrimSpace(item.Get("goal").String())
		switch {
		case title != "" && goal != "":
			out = append(out, title+": "+goal)
		case title != "":
			out = append(out, title)
		case goal != "":
			out = append(out, goal)
		}
	}
	return out
}

// DefaultSubtasks is the generic three-step split used when the model's
// decomposition answer cannot be parsed.
func DefaultSubtasks() []string {
	return []string{
		"Analyze the task: study the conditions, identify the key elements and requirements, and determine what kind of problem this is and which methods apply",
		"Develop a strategy: choose the most effective approach, lay out the main solution steps, and anticipate likely difficulties",
		"Carry out the solution: apply the chosen strategy step by step, work through each stage carefully, and produce a concrete result",
	}
}
