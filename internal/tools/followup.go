package tools

import (
	"context"
	"encoding/json"
	"time"
)

// FollowupRequest schedules a delayed outbound message for a lead.
type FollowupRequest struct {
	BusinessID    string    `json:"businessId"`
	LeadID        string    `json:"leadId"`
	DelayMinutes  int       `json:"delayMinutes"`
	MessageType   string    `json:"messageType"`
	CustomMessage string    `json:"customMessage,omitempty"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

// FollowupScheduler is the external followup collaborator.
type FollowupScheduler interface {
	ScheduleFollowup(ctx context.Context, req FollowupRequest) (followupID string, err error)
}

// FollowupTool schedules a reminder message when the conversation goes
// quiet at a promising stage.
type FollowupTool struct {
	scheduler FollowupScheduler
	now       func() time.Time
}

// NewFollowupTool creates the followup tool.
func NewFollowupTool(scheduler FollowupScheduler) *FollowupTool {
	return &FollowupTool{scheduler: scheduler, now: time.Now}
}

func (t *FollowupTool) Name() string { return "schedule_followup" }

func (t *FollowupTool) Description() string {
	return "Programa un mensaje de seguimiento para el cliente después de un tiempo dado"
}

func (t *FollowupTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"delay_minutes": {"type": "integer", "description": "Minutos a esperar antes del seguimiento"},
			"message_type": {"type": "string", "description": "Tipo de seguimiento: reminder, offer o check_in"},
			"custom_message": {"type": "string", "description": "Mensaje personalizado a enviar"}
		},
		"required": ["delay_minutes", "message_type"]
	}`)
}

type followupArgs struct {
	DelayMinutes  int    `json:"delay_minutes"`
	MessageType   string `json:"message_type"`
	CustomMessage string `json:"custom_message"`
}

func (t *FollowupTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in followupArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid followup arguments: %v", err), nil
	}
	if in.DelayMinutes <= 0 {
		return Errorf("delay_minutes must be positive"), nil
	}
	if in.MessageType == "" {
		return Errorf("message_type is required"), nil
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	scheduledAt := t.now().Add(time.Duration(in.DelayMinutes) * time.Minute)
	if _, err := t.scheduler.ScheduleFollowup(ctx, FollowupRequest{
		BusinessID:    conv.Tenant.BusinessID,
		LeadID:        conv.Key.ContactID,
		DelayMinutes:  in.DelayMinutes,
		MessageType:   in.MessageType,
		CustomMessage: in.CustomMessage,
		ScheduledAt:   scheduledAt,
	}); err != nil {
		return Errorf("Error al programar seguimiento: %v", err), nil
	}

	payload, _ := json.Marshal(map[string]any{
		"success":      true,
		"scheduled":    true,
		"scheduled_at": scheduledAt.Format(time.RFC3339),
		"message":      "Seguimiento programado para las " + scheduledAt.Format("15:04"),
	})
	return &Result{Content: string(payload)}, nil
}
