package engine

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Action is the next transition chosen after verification.
type Action int

const (
	ActionAccept Action = iota
	ActionRepair
	ActionContinue
	ActionDecompose
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionRepair:
		return "repair"
	case ActionContinue:
		return "continue"
	default:
		return "decompose"
	}
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	inlineJSONPattern = regexp.MustCompile(`(?s)(\{[^{]*"action"[^}]*\})`)

	// Contextual patterns, tried in order. The letter group index follows
	// each pattern.
	contextualPatterns = []struct {
		re    *regexp.Regexp
		group int
	}{
		{regexp.MustCompile(`(?i)(action|decision|choice|option)[^a-zA-Zа-я]*([abcdабвг])\)`), 2},
		{regexp.MustCompile(`(?i)([abcdабвг])\s*\)`), 1},
		{regexp.MustCompile(`(?i)"action"\s*:\s*"([abcdабвг])"`), 1},
	}

	bareLetterPattern     = regexp.MustCompile(`(?i)[abcd]`)
	cyrillicLetterPattern = regexp.MustCompile(`(?i)[абвг]`)
)

// letterAction maps a single canonical or Cyrillic letter to its action.
func letterAction(s string) (Action, bool) {
	switch strings.ToLower(s) {
	case "a", "а":
		return ActionAccept, true
	case "b", "б":
		return ActionRepair, true
	case "c", "в":
		return ActionContinue, true
	case "d", "г":
		return ActionDecompose, true
	}
	return 0, false
}

// actionKeywords are checked in order; the first hit wins.
var actionKeywords = []struct {
	word   string
	action Action
}{
	{"satisfies", ActionAccept},
	{"complete", ActionAccept},
	{"meets the criteria", ActionAccept},
	{"accepted", ActionAccept},
	{"minor", ActionRepair},
	{"rebuild", ActionRepair},
	{"fixable", ActionRepair},
	{"redo", ActionRepair},
	{"unfinished", ActionContinue},
	{"incomplete", ActionContinue},
	{"continue", ActionContinue},
	{"serious", ActionDecompose},
	{"complex", ActionDecompose},
	{"decompos", ActionDecompose},
	{"split", ActionDecompose},
	{"subtask", ActionDecompose},
}

// ParseAction extracts the chosen action from free-form model text. The
// precedence is part of the contract: structured JSON field, contextual
// pattern, bare canonical letter, Cyrillic letter remap, keywords, and
// finally decompose as the conservative default.
func ParseAction(answer string) Action {
	// Structured JSON, fenced or inline.
	if m := fencedJSONPattern.FindStringSubmatch(answer); m != nil {
		if a, ok := letterAction(gjson.Get(m[1], "action").String()); ok {
			return a
		}
	} else if m := inlineJSONPattern.FindStringSubmatch(answer); m != nil {
		if a, ok := letterAction(gjson.Get(m[1], "action").String()); ok {
			return a
		}
	}

	// Letter next to "action"/"decision"/"choice" wording.
	for _, p := range contextualPatterns {
		if m := p.re.FindStringSubmatch(answer); m != nil {
			if a, ok := letterAction(m[p.group]); ok {
				return a
			}
		}
	}

	// Any bare canonical letter.
	if m := bareLetterPattern.FindString(answer); m != "" {
		if a, ok := letterAction(m); ok {
			return a
		}
	}

	// Cyrillic alternate alphabet.
	if m := cyrillicLetterPattern.FindString(answer); m != "" {
		if a, ok := letterAction(m); ok {
			return a
		}
	}

	lower := strings.ToLower(answer)
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw.word) {
			return kw.action
		}
	}

	return ActionDecompose
}
