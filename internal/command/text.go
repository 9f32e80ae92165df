package command

import (
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern = regexp.MustCompile(`(?:^|[^*])\*([^*]+)\*`)
	codePattern   = regexp.MustCompile("`([^`]+)`")
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// StripMarkdown flattens the markdown the narration model tends to emit
// into plain chat text. Fenced blocks are left alone; the analysis parser
// needs them intact.
func StripMarkdown(s string) string {
	var out strings.Builder
	inFence := false
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out.WriteString(line + "\n")
			continue
		}
		if inFence {
			out.WriteString(line + "\n")
			continue
		}
		line = boldPattern.ReplaceAllString(line, "$1")
		line = italicPattern.ReplaceAllStringFunc(line, func(m string) string {
			sub := italicPattern.FindStringSubmatch(m)
			prefix := ""
			if !strings.HasPrefix(m, "*") {
				prefix = m[:1]
			}
			return prefix + sub[1]
		})
		line = codePattern.ReplaceAllString(line, "$1")
		line = headerPattern.ReplaceAllString(line, "")
		out.WriteString(line + "\n")
	}
	return strings.TrimRight(out.String(), "\n")
}
