package render

import (
	"regexp"
	"strings"
)

var setupCommand = regexp.MustCompile(`(?i)\b(pip install|wget|unzip|tar)\b`)

// formatCode turns model-written code into display lines. Escaped newlines
// become real ones, comment blocks get a blank line before them, and shell
// setup commands get a blank line after them.
func formatCode(code string) string {
	code = strings.ReplaceAll(code, `\n`, "\n")
	raw := strings.Split(code, "\n")
	out := make([]string, 0, len(raw))
	prev := ""
	for i, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimSpace(line)
		isComment := strings.HasPrefix(trimmed, "#")
		if isComment && i > 0 && prev != "" && !strings.HasPrefix(prev, "#") {
			out = append(out, "")
		}
		out = append(out, line)
		if setupCommand.MatchString(line) {
			out = append(out, "")
		}
		prev = trimmed
	}
	return strings.Join(out, "\n")
}
