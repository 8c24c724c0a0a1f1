package delivery

import (
	"strings"
	"unicode"
)

// defaultChunkSize is tuned for comfortable reading in a chat bubble.
const defaultChunkSize = 280

// Splitter divides reply text into chat-sized chunks, breaking at the
// most natural boundary available: paragraph break, then single line
// break, then sentence end, then the last space before the limit. A
// single word longer than the limit is sent whole.
type Splitter struct {
	MaxChars int
}

// NewSplitter creates a splitter with the given chunk size.
func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = defaultChunkSize
	}
	return &Splitter{MaxChars: maxChars}
}

// Split returns the chunks in send order. Empty input yields none.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.MaxChars {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > s.MaxChars {
		cut := s.breakPoint(remaining)
		chunk := strings.TrimRightFunc(remaining[:cut], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeftFunc(remaining[cut:], unicode.IsSpace)
	}
	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func (s *Splitter) breakPoint(text string) int {
	window := text[:s.MaxChars]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 1
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}
	for _, ending := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(window, ending); idx > 0 {
			return idx + 1
		}
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}

	// One unbroken word longer than the limit; take it whole rather
	// than cutting mid-word.
	if idx := strings.IndexFunc(text, unicode.IsSpace); idx > 0 {
		return idx
	}
	return len(text)
}
