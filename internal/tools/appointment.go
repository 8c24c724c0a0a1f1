package tools

import (
	"context"
	"encoding/json"
	"time"
)

// AppointmentRequest books one slot with the calendar collaborator.
type AppointmentRequest struct {
	BusinessID string `json:"businessId"`
	LeadID     string `json:"leadId"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes,omitempty"`
}

// Scheduler is the external appointment-calendar collaborator.
type Scheduler interface {
	CheckAvailability(ctx context.Context, businessID, date string) ([]string, error)
	CreateAppointment(ctx context.Context, req AppointmentRequest) (confirmationID string, err error)
}

// AvailabilityTool lists free slots for a date. Registered only when the
// tenant's objective is appointment booking.
type AvailabilityTool struct {
	scheduler Scheduler
}

// NewAvailabilityTool creates the availability tool.
func NewAvailabilityTool(scheduler Scheduler) *AvailabilityTool {
	return &AvailabilityTool{scheduler: scheduler}
}

func (t *AvailabilityTool) Name() string { return "check_availability" }

func (t *AvailabilityTool) Description() string {
	return "Consulta los horarios disponibles para agendar una cita en una fecha dada"
}

func (t *AvailabilityTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Fecha a consultar en formato YYYY-MM-DD"}
		},
		"required": ["date"]
	}`)
}

type availabilityArgs struct {
	Date string `json:"date"`
}

func (t *AvailabilityTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in availabilityArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid availability arguments: %v", err), nil
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return Errorf("La fecha debe tener el formato YYYY-MM-DD"), nil
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	slots, err := t.scheduler.CheckAvailability(ctx, conv.Tenant.BusinessID, in.Date)
	if err != nil {
		return Errorf("Error al consultar disponibilidad: %v", err), nil
	}
	if len(slots) == 0 {
		payload, _ := json.Marshal(map[string]any{
			"success": true,
			"slots":   []string{},
			"message": "No hay horarios disponibles para esa fecha",
		})
		return &Result{Content: string(payload)}, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"success": true,
		"slots":   slots,
		"message": "Horarios disponibles encontrados",
	})
	return &Result{Content: string(payload)}, nil
}

// AppointmentTool books a slot. Registered only when the tenant's
// objective is appointment booking.
type AppointmentTool struct {
	scheduler Scheduler
}

// NewAppointmentTool creates the booking tool.
func NewAppointmentTool(scheduler Scheduler) *AppointmentTool {
	return &AppointmentTool{scheduler: scheduler}
}

func (t *AppointmentTool) Name() string { return "create_appointment" }

func (t *AppointmentTool) Description() string {
	return "Agenda una cita una vez que el cliente confirmó fecha y horario"
}

func (t *AppointmentTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Fecha de la cita en formato YYYY-MM-DD"},
			"time": {"type": "string", "description": "Horario de la cita en formato HH:MM"},
			"notes": {"type": "string", "description": "Motivo o detalle de la cita"}
		},
		"required": ["date", "time"]
	}`)
}

type appointmentArgs struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Notes string `json:"notes"`
}

func (t *AppointmentTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in appointmentArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errorf("invalid appointment arguments: %v", err), nil
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return Errorf("La fecha debe tener el formato YYYY-MM-DD"), nil
	}
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return Errorf("El horario debe tener el formato HH:MM"), nil
	}

	conv, ok := ConversationFrom(ctx)
	if !ok {
		return Errorf("no conversation context"), nil
	}

	confirmation, err := t.scheduler.CreateAppointment(ctx, AppointmentRequest{
		BusinessID: conv.Tenant.BusinessID,
		LeadID:     conv.Key.ContactID,
		Date:       in.Date,
		Time:       in.Time,
		Notes:      in.Notes,
	})
	if err != nil {
		return Errorf("Error al agendar la cita: %v", err), nil
	}

	payload, _ := json.Marshal(map[string]any{
		"success":      true,
		"confirmation": confirmation,
		"message":      "Cita agendada para el " + in.Date + " a las " + in.Time,
	})
	return &Result{Content: string(payload)}, nil
}
