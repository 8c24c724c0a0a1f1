package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/efficore/agentcore/pkg/models"
)

// httpToolTimeout bounds one external call; a slow tenant endpoint must
// not hold the conversation hostage.
const httpToolTimeout = 30 * time.Second

// maxHTTPBodyEcho caps how much of a non-JSON response body is handed
// back to the LLM.
const maxHTTPBodyEcho = 1000

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// HTTPTool adapts one tenant-configured HTTP endpoint to the tool
// interface. {{variable}} placeholders in the URL, header values, and
// body template are interpolated with the LLM-supplied arguments.
type HTTPTool struct {
	cfg    models.HTTPToolConfig
	client *http.Client
	schema *jsonschema.Schema
}

// NewHTTPTool builds a tool from tenant configuration. When the config
// carries an argument schema it is compiled once and enforced on every
// call.
func NewHTTPTool(cfg models.HTTPToolConfig) (*HTTPTool, error) {
	t := &HTTPTool{
		cfg:    cfg,
		client: &http.Client{Timeout: httpToolTimeout},
	}
	if cfg.Schema != "" {
		schema, err := jsonschema.CompileString(cfg.Name+".schema.json", cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", cfg.Name, err)
		}
		t.schema = schema
	}
	return t, nil
}

func (t *HTTPTool) Name() string        { return t.cfg.Name }
func (t *HTTPTool) Description() string { return t.cfg.Description }

func (t *HTTPTool) Schema() json.RawMessage {
	if t.cfg.Schema != "" {
		return json.RawMessage(t.cfg.Schema)
	}
	return json.RawMessage(`{"type": "object"}`)
}

func (t *HTTPTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return Errorf("invalid arguments: %v", err), nil
		}
	}
	if params == nil {
		params = map[string]any{}
	}

	if t.schema != nil {
		if err := t.schema.Validate(params); err != nil {
			return Errorf("arguments do not match the tool schema: %v", err), nil
		}
	}

	method := strings.ToUpper(t.cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return Errorf("unsupported HTTP method: %s", method), nil
	}

	url := interpolate(t.cfg.URL, params)

	var body io.Reader
	if t.cfg.Body != "" && method != http.MethodGet && method != http.MethodDelete {
		body = strings.NewReader(interpolate(t.cfg.Body, params))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Errorf("Error al preparar la solicitud: %v", err), nil
	}
	for key, value := range t.cfg.Headers {
		req.Header.Set(key, interpolate(value, params))
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Errorf("Error al ejecutar la tool: %v", err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Errorf("Error al leer la respuesta: %v", err), nil
	}

	content := responseContent(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Errorf("Error HTTP %d: %s", resp.StatusCode, content), nil
	}
	return &Result{Content: content}, nil
}

// interpolate substitutes {{name}} placeholders with argument values.
// Unknown placeholders are left as-is.
func interpolate(template string, params map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		value, ok := params[key]
		if !ok || value == nil {
			return match
		}
		switch v := value.(type) {
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	})
}

// responseContent returns the body verbatim when it is valid JSON,
// otherwise a truncated text echo.
func responseContent(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if json.Valid(trimmed) {
		return string(trimmed)
	}
	text := string(trimmed)
	if len(text) > maxHTTPBodyEcho {
		text = text[:maxHTTPBodyEcho]
	}
	return text
}
