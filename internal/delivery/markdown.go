package delivery

import (
	"regexp"
	"strings"
)

var (
	codeFencePattern   = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")
	inlineCodePattern  = regexp.MustCompile("`([^`]*)`")
	residualLinkRegexp = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	boldPattern        = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicPattern      = regexp.MustCompile(`\*([^*\n]+)\*`)
	headerPattern      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	blockquotePattern  = regexp.MustCompile(`(?m)^>[ \t]?`)
	bulletPattern      = regexp.MustCompile(`(?m)^[ \t]*[*\-][ \t]+`)
)

// StripMarkdown removes formatting the chat channel cannot render.
// Emphasis and headers are unwrapped, code keeps its content, and link
// syntax collapses to the bare URL.
func StripMarkdown(text string) string {
	text = codeFencePattern.ReplaceAllString(text, "$1")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = residualLinkRegexp.ReplaceAllString(text, "$1")
	text = boldPattern.ReplaceAllString(text, "$1$2")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")
	text = blockquotePattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "- ")
	return strings.TrimSpace(text)
}
