package tools

import (
	"context"
	"encoding/json"
)

// CRMUpdate is one mutation of a lead's CRM record.
type CRMUpdate struct {
	BusinessID string `json:"businessId"`
	LeadID     string `json:"leadId"`
	Action     string `json:"action"`
	TagName    string `json:"tagName,omitempty"`
	StageName  string `json:"stageName,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Note       string `json:"note,omitempty"`
}

// CRM actions the tool accepts.
const (
	CRMSetTag         = "set_tag"
	CRMUpdateStage    = "update_stage"
	CRMRegisterIntent = "register_intent"
	CRMAddNote        = "add_note"
)

// CRMUpdater is the external CRM collaborator.
type CRMUpdater interface {
	ApplyCRMUpdate(ctx context.Context, update CRMUpdate) error
}

// CRMTool records commercial signals (tags, stage changes, intents,
// notes) against the lead as the conversation progresses.
type CRMTool struct {
	updater CRMUpdater
}

// NewCRMTool creates the CRM tool.
func NewCRMTool(updater CRMUpdater) *CRMTool {
	return &CRMTool{updater: updater}
}

func (t *CRMTool) Name() string { return "update_crm" }

func (t *CRMTool) Description() string {
	return "Registra tags, etapas, intenciones o notas sobre el cliente en el CRM"
}

func (t *CRMTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["set_tag", "update_stage", "register_intent", "add_note"]},
			"tag_name": {"type": "string", "description": "Tag a asignar (para set_tag)"},
			"stage_name": {"type": "string", "description": "Nueva etapa del lead (para update_stage)"},
			"intent": {"type": "string", "description": "Intención detectada (para register_intent)"},
			"note": {"type": "string", "description": "Nota a registrar (para add_note)"}
		},
		"required": ["action"]
	}`)
}

type crmArgs struct {
	Action    string `json:"action"`
	TagName   string `json:"tag_name"`
	StageName string `json:"stage_name"`
	Intent    string `json:"intent"`
	Note      string `json:"note"`
}

func (t *CRMTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in crmArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid crm arguments: %v", err), nil
	}

	var detail string
	switch in.Action {
	case CRMSetTag:
		if in.TagName == "" {
			return Errorf("tag_name is required for set_tag"), nil
		}
		detail = "Tag '" + in.TagName + "' asignado correctamente"
	case CRMUpdateStage:
		if in.StageName == "" {
			return Errorf("stage_name is required for update_stage"), nil
		}
		detail = "Etapa actualizada a '" + in.StageName + "'"
	case CRMRegisterIntent:
		if in.Intent == "" {
			return Errorf("intent is required for register_intent"), nil
		}
		detail = "Intención registrada: " + in.Intent
	case CRMAddNote:
		if in.Note == "" {
			return Errorf("note is required for add_note"), nil
		}
		detail = "Nota agregada correctamente"
	default:
		return Errorf("unknown crm action: %s", in.Action), nil
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	if err := t.updater.ApplyCRMUpdate(ctx, CRMUpdate{
		BusinessID: conv.Tenant.BusinessID,
		LeadID:     conv.Key.ContactID,
		Action:     in.Action,
		TagName:    in.TagName,
		StageName:  in.StageName,
		Intent:     in.Intent,
		Note:       in.Note,
	}); err != nil {
		return Errorf("Error al actualizar el CRM: %v", err), nil
	}

	payload, _ := json.Marshal(map[string]any{
		"success":          true,
		"action_performed": in.Action,
		"message":          detail,
	})
	return &Result{Content: string(payload)}, nil
}
