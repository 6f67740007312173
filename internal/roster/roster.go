// Package roster tracks the fixed set of workers expected to report
// progress during an analysis run.
package roster

import (
	"sync"
	"time"
)

// Status represents the lifecycle status of one roster slot.
type Status string

const (
	// StatusWorking indicates the worker has started and holds a
	// provisional payment estimate.
	StatusWorking Status = "working"
	// StatusComplete indicates the worker finished and its payment is final.
	StatusComplete Status = "complete"
	// StatusError indicates the worker failed.
	StatusError Status = "error"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// AgentTask is the observed state of one roster slot. A slot that has not
// reported yet has no AgentTask and is implicitly pending.
type AgentTask struct {
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	Payment         float64   `json:"payment"`
	ReceiptID       string    `json:"receiptId,omitempty"`
	AllocationPct   float64   `json:"allocationPercent"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt,omitzero"`
	PaymentEstimate bool      `json:"paymentEstimate"`
}

// Registry reduces worker start/complete/error events into per-slot status
// records. Slots are keyed by roster name, so a repeated start replaces the
// provisional record instead of appending a duplicate; the display order is
// the configured roster order, not arrival order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	slots map[string]AgentTask
}

// NewRegistry creates a registry for the given roster. The roster is fixed
// for the lifetime of the registry; events for names outside it are no-ops.
func NewRegistry(names []string) *Registry {
	order := append([]string(nil), names...)
	return &Registry{
		order: order,
		slots: make(map[string]AgentTask, len(order)),
	}
}

// Size returns the roster cardinality.
func (r *Registry) Size() int {
	return len(r.order)
}

// OnStart records a worker entering the working state with a provisional
// payment estimate. Returns false for names outside the roster.
func (r *Registry) OnStart(name string, payment, allocationPct float64) bool {
	if !r.member(name) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[name] = AgentTask{
		Name:            name,
		Status:          StatusWorking,
		Payment:         payment,
		AllocationPct:   allocationPct,
		StartedAt:       time.Now(),
		PaymentEstimate: true,
	}
	return true
}

// OnComplete upgrades a working slot to complete with its final payment and
// receipt. A slot that is not currently working is left untouched, which
// makes duplicate or late completions harmless.
func (r *Registry) OnComplete(name string, payment float64, receiptID string) bool {
	return r.finish(name, func(task *AgentTask) {
		task.Status = StatusComplete
		task.Payment = payment
		task.ReceiptID = receiptID
		task.PaymentEstimate = false
	})
}

// OnError upgrades a working slot to error. Same matching rule as OnComplete.
func (r *Registry) OnError(name string) bool {
	return r.finish(name, func(task *AgentTask) {
		task.Status = StatusError
	})
}

func (r *Registry) finish(name string, upgrade func(*AgentTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.slots[name]
	if !ok || task.Status != StatusWorking {
		return false
	}
	upgrade(&task)
	task.FinishedAt = time.Now()
	r.slots[name] = task
	return true
}

// Ordered returns the observed slots in roster order. Slots that have not
// reported yet are omitted.
func (r *Registry) Ordered() []AgentTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]AgentTask, 0, len(r.slots))
	for _, name := range r.order {
		if task, ok := r.slots[name]; ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// AllTerminal reports whether every roster slot has been observed and has
// reached complete or error.
func (r *Registry) AllTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		task, ok := r.slots[name]
		if !ok || !task.Status.Terminal() {
			return false
		}
	}
	return true
}

// Reset drops all observed slots, keeping the roster itself.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[string]AgentTask, len(r.order))
}

func (r *Registry) member(name string) bool {
	for _, n := range r.order {
		if n == name {
			return true
		}
	}
	return false
}
