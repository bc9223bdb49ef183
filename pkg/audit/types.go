package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Context is the request-level audit information, captured once per request
// and shared by every mutation the request performs.
type Context struct {
	ActorID    string
	IP         string
	UserAgent  string
	RequestID  string
	TenantID   uuid.UUID
	CapturedAt time.Time
}

// Entry describes one mutation to record.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	CompanyID    uuid.UUID
	// Before and After are optional snapshots, marshalled to JSON when the
	// entry is recorded.
	Before any
	After  any
	Status Result
	Err    error
}

// Event is the persisted, append-only audit record.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	ActorID      string          `json:"actor_id,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Before       json.RawMessage `json:"before,omitempty"`
	After        json.RawMessage `json:"after,omitempty"`
	Status       Result          `json:"status"`
	Error        string          `json:"error,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	RequestedAt  time.Time       `json:"requested_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks that the event carries a consistent scope and an action.
func (e *Event) Validate() error {
	switch {
	case e.Action == "":
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	case e.TenantID == uuid.Nil:
		return fmt.Errorf("%w: tenant is required", ErrEventValidation)
	case e.CompanyID == uuid.Nil:
		return fmt.Errorf("%w: company is required", ErrEventValidation)
	}
	return nil
}

func newEvent(ac *Context, e Entry, now time.Time) (Event, error) {
	if ac == nil {
		return Event{}, fmt.Errorf("%w: missing audit context", ErrEventValidation)
	}

	status := e.Status
	if status == "" {
		status = ResultSuccess
		if e.Err != nil {
			status = ResultError
		}
	}

	ev := Event{
		ID:           uuid.New(),
		TenantID:     ac.TenantID,
		CompanyID:    e.CompanyID,
		ActorID:      ac.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Status:       status,
		RequestID:    ac.RequestID,
		IP:           ac.IP,
		UserAgent:    ac.UserAgent,
		RequestedAt:  ac.CapturedAt,
		CreatedAt:    now,
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}

	var err error
	if ev.Before, err = snapshot(e.Before); err != nil {
		return ev, fmt.Errorf("%w: before snapshot: %w", ErrEventValidation, err)
	}
	if ev.After, err = snapshot(e.After); err != nil {
		return ev, fmt.Errorf("%w: after snapshot: %w", ErrEventValidation, err)
	}
	return ev, ev.Validate()
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
