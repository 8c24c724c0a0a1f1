package delivery

import (
	"strings"
	"testing"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "Tenemos **ofertas** hoy", "Tenemos ofertas hoy"},
		{"italic", "Es *muy* buena", "Es muy buena"},
		{"header", "## Promociones\nTodo al 50%", "Promociones\nTodo al 50%"},
		{"inline code", "Usa el código `DESC10`", "Usa el código DESC10"},
		{"link to bare url", "Paga en [este enlace](https://pay.example.com/x1)", "Paga en https://pay.example.com/x1"},
		{"blockquote", "> importante\nresto", "importante\nresto"},
		{"plain text untouched", "Hola, ¿cómo estás?", "Hola, ¿cómo estás?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdown(tt.in); got != tt.want {
				t.Errorf("StripMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripMarkdownCodeFenceKeepsContent(t *testing.T) {
	in := "Instrucciones:\n```\npaso uno\npaso dos\n```\nlisto"
	got := StripMarkdown(in)
	if strings.Contains(got, "```") {
		t.Errorf("fence markers remain: %q", got)
	}
	if !strings.Contains(got, "paso uno") || !strings.Contains(got, "paso dos") {
		t.Errorf("fence content lost: %q", got)
	}
}
