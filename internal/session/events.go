package session

import (
	"encoding/json"
	"fmt"
)

// EventType identifies an analysis stream event.
type EventType string

// Recognized event types. Frames carrying any other type are ignored so
// the collaborator can add event kinds without breaking older clients.
const (
	EventSubjectFetchBegun EventType = "subject-fetch-begun"
	EventSubjectFetched    EventType = "subject-fetched"
	EventWorkerStarted     EventType = "worker-started"
	EventWorkerCompleted   EventType = "worker-completed"
	EventWorkerFailed      EventType = "worker-failed"
	EventReportReady       EventType = "report-ready"
	EventRefundIssued      EventType = "refund-issued"
	EventFatalError        EventType = "fatal-error"
)

// Known reports whether the type is part of the recognized set.
func (t EventType) Known() bool {
	switch t {
	case EventSubjectFetchBegun, EventSubjectFetched, EventWorkerStarted,
		EventWorkerCompleted, EventWorkerFailed, EventReportReady,
		EventRefundIssued, EventFatalError:
		return true
	}
	return false
}

// Event is one decoded frame from the analysis stream. Fields beyond Type
// are populated per the contract of each event type; consumers must not
// read fields a type does not define.
type Event struct {
	Type EventType `json:"type"`

	// subject-fetched
	Meta *SubjectMeta `json:"meta,omitempty"`

	// worker-started / worker-completed / worker-failed
	Agent      string  `json:"agent,omitempty"`
	Payment    float64 `json:"payment,omitempty"`
	Allocation float64 `json:"allocation,omitempty"`

	// worker-completed / refund-issued
	ReceiptID       string  `json:"receiptId,omitempty"`
	RemainingBudget float64 `json:"remainingBudget,omitempty"`

	// report-ready
	ShareID string `json:"shareId,omitempty"`

	// refund-issued
	Amount float64 `json:"amount,omitempty"`

	// fatal-error
	Message string `json:"message,omitempty"`
}

// ParseEvent decodes one transport frame. A frame that is not valid JSON
// or carries no type is a protocol violation; the subscription layer turns
// that into a fatal stream error.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, &ProtocolError{Frame: string(data), Err: err}
	}
	if ev.Type == "" {
		return Event{}, &ProtocolError{Frame: string(data), Err: fmt.Errorf("frame missing type")}
	}
	return ev, nil
}
