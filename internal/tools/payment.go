package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/efficore/agentcore/pkg/models"
)

// PaymentLinkRequest asks the payments collaborator for a checkout link.
type PaymentLinkRequest struct {
	BusinessID string `json:"businessId"`
	LeadID     string `json:"leadId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

// PaymentLink is the collaborator's answer.
type PaymentLink struct {
	URL       string `json:"paymentUrl"`
	ShortCode string `json:"shortCode"`
}

// PaymentLinker is the external payment-link collaborator.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error)
}

// PaymentTool creates a payment link for a catalog product.
type PaymentTool struct {
	linker PaymentLinker
}

// NewPaymentTool creates the payment-link tool.
func NewPaymentTool(linker PaymentLinker) *PaymentTool {
	return &PaymentTool{linker: linker}
}

func (t *PaymentTool) Name() string { return "create_payment_link" }

func (t *PaymentTool) Description() string {
	return "Genera un link de pago para un producto cuando el cliente confirma la compra"
}

func (t *PaymentTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"product": {"type": "string", "description": "Nombre o identificador del producto a cobrar"},
			"quantity": {"type": "integer", "description": "Cantidad de unidades", "default": 1}
		},
		"required": ["product"]
	}`)
}

type paymentArgs struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

func (t *PaymentTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in paymentArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid payment arguments: %v", err), nil
	}
	if in.Product == "" {
		return Errorf("product is required"), nil
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	productID, productName, found := resolveProduct(conv.Tenant.Products, in.Product)
	if !found {
		return Errorf("No se encontró el producto %q en el catálogo", in.Product), nil
	}

	link, err := t.linker.CreatePaymentLink(ctx, PaymentLinkRequest{
		BusinessID: conv.Tenant.BusinessID,
		LeadID:     conv.Key.ContactID,
		ProductID:  productID,
		Quantity:   in.Quantity,
	})
	if err != nil {
		return Errorf("Error al generar link de pago: %v", err), nil
	}

	payload, _ := json.Marshal(map[string]any{
		"success":     true,
		"payment_url": link.URL,
		"short_code":  link.ShortCode,
		"message":     "Link de pago generado exitosamente para " + productName,
	})
	return &Result{Content: string(payload)}, nil
}

// resolveProduct accepts either a catalog identifier or a human-readable
// product name. The LLM frequently hands back the name it showed the
// user instead of the id it was given.
func resolveProduct(products []models.Product, ref string) (id, name string, found bool) {
	if _, err := uuid.Parse(ref); err == nil {
		for _, p := range products {
			if p.ID == ref {
				return p.ID, p.Name, true
			}
		}
		return ref, ref, true
	}

	needle := strings.ToLower(strings.TrimSpace(ref))
	for _, p := range products {
		if strings.ToLower(p.Name) == needle {
			return p.ID, p.Name, true
		}
	}
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p.ID, p.Name, true
		}
	}
	return "", "", false
}
