package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/efficore/agentcore/pkg/models"
)

// CatalogSearcher is the external product-search collaborator.
type CatalogSearcher interface {
	Search(ctx context.Context, businessID, query string, limit int) ([]models.Product, error)
}

const defaultSearchResults = 5

// SearchTool looks up catalog products by free-text query. It is only
// registered for catalogs too large to inline in the system prompt.
type SearchTool struct {
	searcher CatalogSearcher
}

// NewSearchTool creates the catalog search tool.
func NewSearchTool(searcher CatalogSearcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Name() string { return "search_product" }

func (t *SearchTool) Description() string {
	return "Busca productos en el catálogo del negocio por nombre, categoría o descripción"
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Qué busca el cliente, en sus propias palabras"},
			"max_results": {"type": "integer", "description": "Máximo de productos a devolver", "default": 5}
		},
		"required": ["query"]
	}`)
}

type searchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// searchHit is the per-product shape surfaced to the LLM. Commercial
// fields only; identifiers stay out of the conversation.
type searchHit struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Description string  `json:"description,omitempty"`
	InStock     *bool   `json:"in_stock,omitempty"`
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid search arguments: %v", err), nil
	}
	if in.Query == "" {
		return Errorf("query is required"), nil
	}
	if in.MaxResults <= 0 {
		in.MaxResults = defaultSearchResults
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	products, err := t.searcher.Search(ctx, conv.Tenant.BusinessID, in.Query, in.MaxResults)
	if err != nil {
		return Errorf("Error al buscar productos: %v", err), nil
	}
	if len(products) == 0 {
		return &Result{Content: fmt.Sprintf("No se encontraron productos para %q", in.Query)}, nil
	}

	hits := make([]searchHit, 0, len(products))
	for _, p := range products {
		hit := searchHit{
			Name:        p.Name,
			Price:       p.Price,
			Currency:    p.Currency,
			Description: p.Description,
		}
		if p.Stock != nil {
			inStock := *p.Stock > 0
			hit.InStock = &inStock
		}
		hits = append(hits, hit)
	}

	payload, err := json.Marshal(map[string]any{
		"success":  true,
		"products": hits,
		"message":  fmt.Sprintf("Se encontraron %d productos", len(hits)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search result: %w", err)
	}
	return &Result{Content: string(payload)}, nil
}
