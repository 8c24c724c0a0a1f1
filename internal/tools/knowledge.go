package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// KnowledgeDoc is one knowledge-base document returned by a search.
type KnowledgeDoc struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// KnowledgeSearcher is the external knowledge-base collaborator.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, businessID, query string, limit int) ([]KnowledgeDoc, string, error)
}

const defaultKnowledgeResults = 3

// KnowledgeTool searches the business knowledge base (policies, FAQs,
// guides). Unlike catalog search it is registered unconditionally; any
// conversation stage may need a policy answer.
type KnowledgeTool struct {
	searcher KnowledgeSearcher
}

// NewKnowledgeTool creates the knowledge-base search tool.
func NewKnowledgeTool(searcher KnowledgeSearcher) *KnowledgeTool {
	return &KnowledgeTool{searcher: searcher}
}

func (t *KnowledgeTool) Name() string { return "search_knowledge" }

func (t *KnowledgeTool) Description() string {
	return "Busca en la base de conocimiento del negocio para encontrar información sobre políticas, FAQs, guías y documentación"
}

func (t *KnowledgeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Pregunta o tema a buscar en la base de conocimiento"},
			"max_results": {"type": "integer", "description": "Máximo de documentos a retornar", "default": 3}
		},
		"required": ["query"]
	}`)
}

type knowledgeArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (t *KnowledgeTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in knowledgeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid knowledge search arguments: %v", err), nil
	}
	if in.Query == "" {
		return Errorf("query is required"), nil
	}
	if in.MaxResults <= 0 {
		in.MaxResults = defaultKnowledgeResults
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	docs, contextText, err := t.searcher.SearchKnowledge(ctx, conv.Tenant.BusinessID, in.Query, in.MaxResults)
	if err != nil {
		return Errorf("Error al buscar en la base de conocimiento: %v", err), nil
	}
	if len(docs) == 0 {
		return &Result{Content: fmt.Sprintf("No se encontró información sobre %q", in.Query)}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"success": true,
		"results": docs,
		"context": contextText,
		"message": fmt.Sprintf("Se encontraron %d documentos relevantes", len(docs)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode knowledge result: %w", err)
	}
	return &Result{Content: string(payload)}, nil
}
