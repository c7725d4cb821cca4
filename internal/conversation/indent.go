package conversation

import "strings"

// dedent strips the common leading-space margin from every line.
func dedent(text string) string {
	lines := strings.SplitAfter(text, "\n")
	min := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := len(line) - len(strings.TrimLeft(line, " "))
		if min < 0 || lead < min {
			min = lead
		}
	}
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString(strings.TrimLeft(line, " "))
			continue
		}
		if min > 0 {
			line = line[min:]
		}
		b.WriteString(line)
	}
	return b.String()
}

// indent prefixes every line with n spaces.
func indent(text string, n int) string {
	if n <= 0 {
		return text
	}
	pad := strings.Repeat(" ", n)
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line != "" {
			b.WriteString(pad)
		}
		b.WriteString(line)
	}
	return b.String()
}
