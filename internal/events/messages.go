package events

import (
	"encoding/json"
	"time"

	"pft/internal/core"
)

// Outcomes of a settled mutation.
const (
	OutcomeSuccess  = "success"
	OutcomeRollback = "rollback"
)

// MutationEvent announces that an optimistic mutation settled. It carries ids
// only; consumers fetch the record if they need it.
type MutationEvent struct {
	Resource  string    `json:"resource"`
	Op        string    `json:"op"`
	ID        core.ID   `json:"id,omitempty"`
	TempID    core.ID   `json:"tempId,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationEvent stamps an event with the current time. A nil err means
// the mutation succeeded.
func NewMutationEvent(resource, op string, id core.ID, err error) *MutationEvent {
	ev := &MutationEvent{
		Resource:  resource,
		Op:        op,
		ID:        id,
		Outcome:   OutcomeSuccess,
		Timestamp: time.Now(),
	}
	if err != nil {
		ev.Outcome = OutcomeRollback
		ev.Error = err.Error()
	}
	return ev
}

// RoutingKey is "<resource>.<op>", e.g. "budgets.create".
func (m *MutationEvent) RoutingKey() string {
	return m.Resource + "." + m.Op
}

func (m *MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationEventFromJSON(data []byte) (*MutationEvent, error) {
	var msg MutationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
