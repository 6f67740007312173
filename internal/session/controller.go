package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veldtlabs/crewdash/internal/ledger"
	"github.com/veldtlabs/crewdash/internal/roster"
)

// Envelope is one delivery from the event stream subscription: either a
// parsed event or a terminal stream error. After an envelope carrying an
// error the source closes the channel.
type Envelope struct {
	Event Event
	Err   error
}

// Source abstracts the subscription transport so the controller can be
// driven by a scripted channel in tests.
type Source interface {
	Subscribe(ctx context.Context, subjectRef string, budget float64) (<-chan Envelope, error)
}

// updateBuffer sizes the snapshot channel consumed by the display layer.
// A slow display drops intermediate snapshots, never events.
const updateBuffer = 16

// Controller is the session state machine. It owns the Session aggregate
// exclusively: events are applied one at a time on a single goroutine, in
// arrival order, so remaining-budget and refund correctness follow from
// last-write-wins over a totally ordered sequence.
type Controller struct {
	source  Source
	names   []string
	logger  *slog.Logger
	updates chan Session

	mu     sync.RWMutex
	cur    Session
	reg    *roster.Registry
	led    *ledger.Ledger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller for the given fixed roster.
func NewController(names []string, source Source, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source:  source,
		names:   append([]string(nil), names...),
		logger:  logger,
		updates: make(chan Session, updateBuffer),
		cur:     Session{Phase: PhaseIdle},
		reg:     roster.NewRegistry(names),
		led:     ledger.New(0, logger),
	}
}

// Updates delivers each derived snapshot for display projection. The
// channel stays open across runs; intermediate snapshots may be dropped
// when the consumer lags, the latest always arrives.
func (c *Controller) Updates() <-chan Session {
	return c.updates
}

// Snapshot returns the current immutable session value.
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Start validates the subject reference, resets to a fresh Session and
// opens the event stream. Validation failures return a ValidationError
// before any network action. A run already in progress is stopped first.
func (c *Controller) Start(ctx context.Context, subjectRef string, budget float64) error {
	if err := validateSubjectRef(subjectRef); err != nil {
		return err
	}
	if budget <= 0 {
		return &ValidationError{Field: "budget", Reason: "must be positive"}
	}

	c.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	events, err := c.source.Subscribe(runCtx, subjectRef, budget)
	if err != nil {
		cancel()
		return err
	}

	fresh := Session{
		ID:              uuid.NewString(),
		SubjectRef:      subjectRef,
		Phase:           PhaseFetching,
		Agents:          []roster.AgentTask{},
		InitialBudget:   budget,
		RemainingBudget: budget,
		StartedAt:       time.Now(),
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.cur = fresh
	c.reg = roster.NewRegistry(c.names)
	c.led = ledger.New(budget, c.logger)
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.publish(fresh)

	go c.run(events, done)
	return nil
}

// Stop closes the subscription. It is safe in any phase and guarantees no
// further dispatch occurs after it returns, even for events already in
// flight on the transport.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run is the single consumer for one subscription. No two dispatches for
// the same Session ever overlap.
func (c *Controller) run(events <-chan Envelope, done chan struct{}) {
	defer close(done)

	for env := range events {
		if env.Err != nil {
			c.failRun(env.Err)
			continue
		}
		c.apply(env.Event)
	}
}

// failRun maps a terminal stream error onto the session: user-visible
// message, phase reset to idle.
func (c *Controller) failRun(err error) {
	c.logger.Error("analysis stream failed", "error", err)

	msg := "analysis stream failed unexpectedly"
	var perr *ProtocolError
	if errors.As(err, &perr) {
		msg = "analysis stream sent an unreadable message"
	}

	c.mutate(func(s *Session) {
		s.ErrMessage = msg
		s.Phase = PhaseIdle
	})
}

// apply dispatches one event. Events with unmet preconditions and events
// of unknown type are no-ops, which makes redelivery harmless.
func (c *Controller) apply(ev Event) {
	if !ev.Type.Known() {
		c.logger.Debug("ignoring unknown event type", "type", ev.Type)
		return
	}

	switch ev.Type {
	case EventSubjectFetchBegun:
		c.mutate(func(s *Session) {
			if s.Phase == PhaseIdle || s.Phase == PhaseFetching {
				s.Phase = PhaseFetching
			}
		})

	case EventSubjectFetched:
		c.mutate(func(s *Session) {
			if s.Phase != PhaseFetching {
				return
			}
			if s.SubjectMeta == nil && ev.Meta != nil {
				meta := *ev.Meta
				s.SubjectMeta = &meta
			}
			s.Phase = PhaseAnalyzing
		})

	case EventWorkerStarted:
		if c.Snapshot().Phase != PhaseAnalyzing {
			return
		}
		if !c.reg.OnStart(ev.Agent, ev.Payment, ev.Allocation) {
			c.logger.Warn("start event for unknown worker", "agent", ev.Agent)
			return
		}
		c.syncAgents()

	case EventWorkerCompleted:
		if c.Snapshot().Phase != PhaseAnalyzing {
			return
		}
		if !c.reg.OnComplete(ev.Agent, ev.Payment, ev.ReceiptID) {
			return
		}
		c.led.ApplyCompletion(ev.RemainingBudget)
		c.mutate(func(s *Session) {
			s.Agents = c.reg.Ordered()
			s.RemainingBudget = c.led.Remaining()
		})

	case EventWorkerFailed:
		if c.Snapshot().Phase != PhaseAnalyzing {
			return
		}
		if !c.reg.OnError(ev.Agent) {
			return
		}
		c.syncAgents()

	case EventReportReady:
		c.mutate(func(s *Session) {
			if s.ShareID == "" {
				s.ShareID = ev.ShareID
			}
		})

	case EventRefundIssued:
		if !c.reg.AllTerminal() {
			c.logger.Warn("refund issued before all roster slots terminal",
				"amount", ev.Amount,
			)
		}
		if err := c.led.ApplyRefund(ev.Amount, ev.ReceiptID); err != nil {
			c.logger.Debug("duplicate refund ignored", "error", err)
			return
		}
		c.mutate(func(s *Session) {
			s.Refund = &Refund{Amount: ev.Amount, ReceiptID: ev.ReceiptID}
			s.Phase = PhaseComplete
		})

	case EventFatalError:
		c.mutate(func(s *Session) {
			s.ErrMessage = ev.Message
			s.Phase = PhaseIdle
		})
	}
}

func (c *Controller) syncAgents() {
	c.mutate(func(s *Session) {
		s.Agents = c.reg.Ordered()
	})
}

// mutate derives the next snapshot under the lock and publishes it.
func (c *Controller) mutate(fn func(*Session)) {
	c.mu.Lock()
	next := c.cur
	fn(&next)
	c.cur = next
	c.mu.Unlock()

	c.publish(next)
}

// publish hands a snapshot to the display channel, dropping the oldest
// buffered one when the consumer lags.
func (c *Controller) publish(s Session) {
	for {
		select {
		case c.updates <- s:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}

// validateSubjectRef enforces the minimal owner/name shape of a subject
// reference before anything touches the network.
func validateSubjectRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return &ValidationError{Field: "subjectRef", Reason: "cannot be empty"}
	}
	if strings.ContainsAny(ref, " \t\n") {
		return &ValidationError{Field: "subjectRef", Reason: "cannot contain whitespace"}
	}
	owner, name, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || name == "" {
		return &ValidationError{Field: "subjectRef", Reason: "must look like owner/name"}
	}
	return nil
}
