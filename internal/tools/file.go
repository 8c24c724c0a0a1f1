package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/efficore/agentcore/pkg/models"
)

// FileTool resolves a product image or a named media resource from the
// tenant's file library and attaches it to the reply.
type FileTool struct{}

// NewFileTool creates the file delivery tool.
func NewFileTool() *FileTool {
	return &FileTool{}
}

func (t *FileTool) Name() string { return "send_file" }

func (t *FileTool) Description() string {
	return "Envía al cliente una imagen de producto o un archivo del negocio (catálogo, lista de precios, PDF)"
}

func (t *FileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"product": {"type": "string", "description": "Nombre del producto cuya imagen se quiere enviar"},
			"resource": {"type": "string", "description": "Nombre del recurso del negocio a enviar"}
		}
	}`)
}

type fileArgs struct {
	Product  string `json:"product"`
	Resource string `json:"resource"`
}

func (t *FileTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in fileArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid file arguments: %v", err), nil
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	if in.Product != "" {
		_, name, found := resolveProduct(conv.Tenant.Products, in.Product)
		if !found {
			return Errorf("No se encontró el producto %q", in.Product), nil
		}
		for _, p := range conv.Tenant.Products {
			if p.Name != name {
				continue
			}
			if p.ImageURL == "" {
				return Errorf("El producto %q no tiene imagen disponible", name), nil
			}
			return &Result{
				Content: "Imagen del producto " + name + " adjuntada",
				Media: []models.MediaItem{{
					Type:     models.MediaImage,
					URL:      p.ImageURL,
					FileName: name + ".jpg",
					MimeType: "image/jpeg",
				}},
			}, nil
		}
		return Errorf("No se encontró el producto %q", in.Product), nil
	}

	if in.Resource != "" {
		url, ok := lookupResource(conv.Tenant.MediaResources, in.Resource)
		if !ok {
			return Errorf("No se encontró el recurso %q", in.Resource), nil
		}
		return &Result{
			Content: "Archivo " + in.Resource + " adjuntado",
			Media:   []models.MediaItem{mediaFromURL(url, in.Resource)},
		}, nil
	}

	return Errorf("Se requiere product o resource para enviar un archivo"), nil
}

func lookupResource(resources map[string]string, name string) (string, bool) {
	if url, ok := resources[name]; ok {
		return url, true
	}
	needle := strings.ToLower(name)
	for key, url := range resources {
		if strings.ToLower(key) == needle {
			return url, true
		}
	}
	return "", false
}

// mediaFromURL classifies a library URL by its extension.
func mediaFromURL(url, fileName string) models.MediaItem {
	item := models.MediaItem{Type: models.MediaFile, URL: url, FileName: fileName}
	lower := strings.ToLower(url)
	switch {
	case hasAnySuffix(lower, ".jpg", ".jpeg", ".png", ".gif", ".webp"):
		item.Type = models.MediaImage
		item.MimeType = "image/jpeg"
	case hasAnySuffix(lower, ".mp4", ".mov", ".webm"):
		item.Type = models.MediaVideo
		item.MimeType = "video/mp4"
	case strings.HasSuffix(lower, ".pdf"):
		item.MimeType = "application/pdf"
	}
	return item
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
