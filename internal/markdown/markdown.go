// Package markdown converts standard Markdown into Slack mrkdwn. The
// conversion is a deterministic text pass: rendering already-converted text
// returns it unchanged, so a reply can safely be formatted more than once on
// its way to Slack.
package markdown

import (
	"regexp"
	"strings"
)

var (
	boldItalicRe = regexp.MustCompile(`\*\*\*([^*]+)\*\*\*`)
	boldStarsRe  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__([^_]+)__`)
	strikeRe     = regexp.MustCompile(`~~([^~]+)~~`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	headingRe    = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	bulletRe     = regexp.MustCompile(`^(\s*)[*+]\s+`)
	inlineCodeRe = regexp.MustCompile("`[^`]+`")
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z0-9_+-]*$")
)

// Render converts Markdown text to Slack mrkdwn. Fenced code blocks and
// inline code spans pass through untouched, except that a language tag on an
// opening fence is dropped because Slack does not render it.
func Render(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if fenceOpenRe.MatchString(trimmed) {
			if !inFence && trimmed != "```" {
				indent := line[:strings.Index(line, "```")]
				lines[i] = indent + "```"
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			lines[i] = boldLine(renderInline(m[1]))
			continue
		}

		line = bulletRe.ReplaceAllString(line, "${1}- ")
		lines[i] = renderInline(line)
	}

	return strings.Join(lines, "\n")
}

// renderInline applies span-level conversions outside inline code.
func renderInline(s string) string {
	var b strings.Builder
	last := 0
	for _, span := range inlineCodeRe.FindAllStringIndex(s, -1) {
		b.WriteString(renderSpans(s[last:span[0]]))
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(renderSpans(s[last:]))
	return b.String()
}

func renderSpans(s string) string {
	// triple delimiters first, or the bold pass leaves a stray asterisk pair
	s = boldItalicRe.ReplaceAllString(s, "*_$1_*")
	s = boldStarsRe.ReplaceAllString(s, "*$1*")
	s = boldUnderRe.ReplaceAllString(s, "*$1*")
	s = strikeRe.ReplaceAllString(s, "~$1~")
	s = linkRe.ReplaceAllString(s, "<$2|$1>")
	return s
}

// boldLine wraps a former heading in single asterisks unless the converted
// text is already bold, which keeps repeated rendering stable.
func boldLine(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "*") && strings.HasSuffix(s, "*") {
		return s
	}
	return "*" + s + "*"
}
