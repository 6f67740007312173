// Package session owns the root state aggregate for one analysis run and
// the controller that derives it from the collaborator's event stream.
package session

import (
	"time"

	"github.com/veldtlabs/crewdash/internal/roster"
)

// Phase represents the lifecycle phase of an analysis session.
type Phase string

const (
	// PhaseIdle indicates no session is running. It is the initial phase
	// and the phase a fatal error resets to.
	PhaseIdle Phase = "idle"
	// PhaseFetching indicates subject metadata has been requested.
	PhaseFetching Phase = "fetching"
	// PhaseAnalyzing indicates workers are active against the subject.
	PhaseAnalyzing Phase = "analyzing"
	// PhaseComplete indicates the run finished and the refund was issued.
	PhaseComplete Phase = "complete"
)

// SubjectMeta describes the unit of work under analysis. Set once when the
// collaborator reports it, never mutated afterward.
type SubjectMeta struct {
	Name      string   `json:"name"`
	UnitCount int      `json:"unitCount"`
	Tags      []string `json:"tags"`
}

// Refund is the terminal monetary adjustment for a session.
type Refund struct {
	Amount    float64 `json:"amount"`
	ReceiptID string  `json:"receiptId"`
}

// Session is the root aggregate for one workflow run, from submission to
// refund. It is a value type: each applied event derives a new Session,
// nothing mutates a published snapshot in place.
type Session struct {
	ID              string             `json:"id"`
	SubjectRef      string             `json:"subjectRef"`
	Phase           Phase              `json:"phase"`
	SubjectMeta     *SubjectMeta       `json:"subjectMeta,omitempty"`
	Agents          []roster.AgentTask `json:"agents"`
	InitialBudget   float64            `json:"initialBudget"`
	RemainingBudget float64            `json:"remainingBudget"`
	Refund          *Refund            `json:"refund,omitempty"`
	ShareID         string             `json:"shareId,omitempty"`
	ErrMessage      string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"startedAt"`
}

// Spent is the amount consumed so far, derived from the authoritative
// remaining budget rather than summed payments.
func (s Session) Spent() float64 {
	spent := s.InitialBudget - s.RemainingBudget
	if spent < 0 {
		return 0
	}
	return spent
}

// Agent returns the observed task for a roster slot, if any.
func (s Session) Agent(name string) (roster.AgentTask, bool) {
	for _, a := range s.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return roster.AgentTask{}, false
}
