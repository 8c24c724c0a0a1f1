package tools

import (
	"encoding/json"
	"strings"
)

// blockedFields are object keys stripped from tool output before it
// reaches the LLM. Internal identifiers and credentials are kept in the
// tool-call log but never surfaced in the conversation.
var blockedFields = map[string]struct{}{
	"id": {}, "ids": {}, "_id": {}, "internal_id": {},
	"business_id": {}, "lead_id": {}, "user_id": {},
	"token": {}, "tokens": {}, "api_key": {}, "secret": {},
	"password": {}, "auth": {},
	"metadata": {}, "internal": {},
	"stack": {}, "stacktrace": {}, "traceback": {}, "error_details": {},
	"raw": {}, "raw_response": {}, "debug": {},
	"database_id": {}, "db_id": {}, "record_id": {},
}

// blockedPatterns mark string values that leak technical detail.
var blockedPatterns = []string{
	"traceback", "stacktrace", "at line",
	"internal server error", "database error",
	"api_key=", "token=", "secret=", "password=", "auth=",
	"record_id=", "document_id=",
}

// SanitizeContent filters tool output before it is shown to the LLM.
// JSON content has blocked keys and leaky string values removed
// recursively; non-JSON content is replaced outright when it matches a
// blocked pattern.
func SanitizeContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) == 0 {
		return content
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			cleaned, err := json.Marshal(sanitizeValue(parsed))
			if err == nil {
				return string(cleaned)
			}
		}
	}

	if containsBlockedInfo(trimmed) {
		return "Ocurrió un error al procesar la solicitud"
	}
	return content
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			if _, blocked := blockedFields[strings.ToLower(k)]; blocked {
				continue
			}
			if strings.HasPrefix(k, "_") {
				continue
			}
			if s, ok := v.(string); ok && containsBlockedInfo(s) {
				continue
			}
			out[k] = sanitizeValue(v)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return v
	}
}

func containsBlockedInfo(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
