package delivery

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(100)
	chunks := s.Split("Hola, ¿en qué te ayudo?")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s := NewSplitter(60)
	text := "Primer párrafo con algo de texto.\n\nSegundo párrafo que también tiene contenido."
	chunks := s.Split(text)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %q, want 2", chunks)
	}
	if chunks[0] != "Primer párrafo con algo de texto." {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestSplitFallsBackToSentence(t *testing.T) {
	s := NewSplitter(50)
	text := "Esta es una oración. Esta es otra oración que sigue a la primera."
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %q, want a sentence split", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk = %q, want sentence boundary", chunks[0])
	}
}

func TestSplitRespectsLimitExceptOversizeWord(t *testing.T) {
	s := NewSplitter(40)
	long := strings.Repeat("palabra ", 20)
	for _, chunk := range s.Split(long) {
		if len(chunk) > 40 {
			t.Errorf("chunk %q exceeds limit", chunk)
		}
	}

	// A single word longer than the limit goes out whole.
	word := strings.Repeat("a", 60)
	chunks := s.Split("corto " + word)
	found := false
	for _, chunk := range chunks {
		if chunk == word {
			found = true
		}
	}
	if !found {
		t.Errorf("oversize word was cut: %q", chunks)
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := NewSplitter(0).Split("   "); chunks != nil {
		t.Errorf("chunks = %q, want none", chunks)
	}
}

func TestSplitPreservesAllContent(t *testing.T) {
	s := NewSplitter(50)
	text := "Uno dos tres cuatro cinco seis siete ocho nueve diez once doce trece catorce quince."
	var rejoined []string
	rejoined = append(rejoined, s.Split(text)...)
	joined := strings.Join(rejoined, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost in split", word)
		}
	}
}
