package events

import (
	"encoding/json"
	"time"
)

// EventType identifies what happened
type EventType string

const (
	PollCycleStarted   EventType = "POLL_CYCLE_STARTED"
	PollCycleCompleted EventType = "POLL_CYCLE_COMPLETED"
	PollCycleFailed    EventType = "POLL_CYCLE_FAILED"
	DocumentProcessed  EventType = "DOCUMENT_PROCESSED"
	DocumentFailed     EventType = "DOCUMENT_FAILED"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CycleStartedData contains data for PollCycleStarted events
type CycleStartedData struct {
	CycleID     string    `json:"cycle_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// EventType returns the event type for CycleStartedData
func (d *CycleStartedData) EventType() EventType {
	return PollCycleStarted
}

// CycleCompletedData contains data for PollCycleCompleted events
type CycleCompletedData struct {
	CycleID   string  `json:"cycle_id"`
	Listed    int     `json:"listed"`
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
	Duration  float64 `json:"duration"` // seconds
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return PollCycleCompleted
}

// CycleFailedData contains data for PollCycleFailed events
type CycleFailedData struct {
	CycleID string `json:"cycle_id"`
	Reason  string `json:"reason"`
	Outcome string `json:"outcome,omitempty"`
}

// EventType returns the event type for CycleFailedData
func (d *CycleFailedData) EventType() EventType {
	return PollCycleFailed
}

// DocumentData contains data for DocumentProcessed and DocumentFailed events
type DocumentData struct {
	CycleID     string   `json:"cycle_id"`
	DocumentID  int      `json:"document_id"`
	Filename    string   `json:"filename,omitempty"`
	Status      string   `json:"status"`
	FlatResults int      `json:"flat_results"`
	TreeResults int      `json:"tree_results"`
	Matches     []string `json:"matches,omitempty"`
	Stage       string   `json:"stage,omitempty"` // where a failed document stopped
	Outcome     string   `json:"outcome,omitempty"`
	Failed      bool     `json:"-"`
}

// EventType is DocumentFailed when the document could not be completed
func (d *DocumentData) EventType() EventType {
	if d.Failed {
		return DocumentFailed
	}
	return DocumentProcessed
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}

// Event is one emitted event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for Event
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case PollCycleStarted:
		eventData = &CycleStartedData{}
	case PollCycleCompleted:
		eventData = &CycleCompletedData{}
	case PollCycleFailed:
		eventData = &CycleFailedData{}
	case DocumentProcessed:
		eventData = &DocumentData{}
	case DocumentFailed:
		eventData = &DocumentData{Failed: true}
	default:
		eventData = &GenericEventData{Type: aux.Type}
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}
