// Package ledger derives budget state from the analysis stream. Budget
// values are authoritative from the stream; the ledger never recomputes
// them by subtracting payments, which would drift from the server.
package ledger

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrRefundAlreadyIssued is returned when a second refund is applied to
// the same ledger.
var ErrRefundAlreadyIssued = errors.New("refund already issued")

// Refund is the terminal monetary adjustment recorded by the ledger.
type Refund struct {
	Amount    float64
	ReceiptID string
}

// Ledger tracks the remaining budget for one session.
type Ledger struct {
	mu        sync.RWMutex
	initial   float64
	remaining float64
	refund    *Refund
	logger    *slog.Logger
}

// New creates a ledger holding the initial budget.
func New(initial float64, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		initial:   initial,
		remaining: initial,
		logger:    logger,
	}
}

// ApplyCompletion overwrites the remaining budget with the value carried by
// a worker-completed event. Negative values from the stream are clamped to
// zero; the remaining budget is never allowed to go below it.
func (l *Ledger) ApplyCompletion(remaining float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining < 0 {
		l.logger.Warn("stream reported negative remaining budget, clamping",
			"reported", remaining,
		)
		remaining = 0
	}
	if remaining > l.remaining {
		l.logger.Warn("stream reported increased remaining budget",
			"previous", l.remaining,
			"reported", remaining,
		)
	}
	l.remaining = remaining
}

// ApplyRefund records the terminal refund. The all-slots-terminal
// precondition is asserted by the session controller; the ledger itself
// only rejects a duplicate refund.
func (l *Ledger) ApplyRefund(amount float64, receiptID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refund != nil {
		return ErrRefundAlreadyIssued
	}
	l.refund = &Refund{Amount: amount, ReceiptID: receiptID}
	return nil
}

// Remaining returns the authoritative remaining budget.
func (l *Ledger) Remaining() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remaining
}

// Spent returns the amount consumed so far.
func (l *Ledger) Spent() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	spent := l.initial - l.remaining
	if spent < 0 {
		return 0
	}
	return spent
}

// Refund returns the recorded refund, or nil if none was issued.
func (l *Ledger) Refund() *Refund {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.refund == nil {
		return nil
	}
	refund := *l.refund
	return &refund
}
