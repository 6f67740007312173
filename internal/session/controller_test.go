package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veldtlabs/crewdash/internal/roster"
)

var testRoster = []string{"scout", "architect", "auditor", "scribe"}

// scriptedSource feeds a fixed event sequence, honoring ctx cancellation
// the way the real subscriber does.
type scriptedSource struct {
	envelopes []Envelope
	gate      chan struct{} // optional: sending waits for the gate
}

func (s *scriptedSource) Subscribe(ctx context.Context, _ string, _ float64) (<-chan Envelope, error) {
	ch := make(chan Envelope)
	go func() {
		defer close(ch)
		if s.gate != nil {
			select {
			case <-s.gate:
			case <-ctx.Done():
				return
			}
		}
		for _, env := range s.envelopes {
			select {
			case ch <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func events(evs ...Event) []Envelope {
	envs := make([]Envelope, len(evs))
	for i, ev := range evs {
		envs[i] = Envelope{Event: ev}
	}
	return envs
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func fullRunScript() []Envelope {
	return events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A", UnitCount: 42, Tags: []string{"go"}}},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
		Event{Type: EventWorkerStarted, Agent: "architect", Payment: 0.35, Allocation: 25},
		Event{Type: EventWorkerStarted, Agent: "auditor", Payment: 0.38, Allocation: 25},
		Event{Type: EventWorkerStarted, Agent: "scribe", Payment: 0.32, Allocation: 20},
		Event{Type: EventWorkerCompleted, Agent: "scout", Payment: 0.45, ReceiptID: "r1", RemainingBudget: 1.05},
		Event{Type: EventWorkerCompleted, Agent: "architect", Payment: 0.35, ReceiptID: "r2", RemainingBudget: 0.70},
		Event{Type: EventWorkerCompleted, Agent: "auditor", Payment: 0.38, ReceiptID: "r3", RemainingBudget: 0.32},
		Event{Type: EventWorkerCompleted, Agent: "scribe", Payment: 0.32, ReceiptID: "r4", RemainingBudget: 0.0},
		Event{Type: EventReportReady, ShareID: "share-abc"},
		Event{Type: EventRefundIssued, Amount: 0.10, ReceiptID: "r-refund"},
	)
}

func TestController_StartValidation(t *testing.T) {
	c := NewController(testRoster, &scriptedSource{}, nil)

	cases := []struct {
		name    string
		subject string
		budget  float64
	}{
		{"empty subject", "", 1.5},
		{"no slash", "repo-A", 1.5},
		{"empty owner", "/repo", 1.5},
		{"empty name", "owner/", 1.5},
		{"whitespace", "owner/re po", 1.5},
		{"zero budget", "owner/repo", 0},
		{"negative budget", "owner/repo", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Start(context.Background(), tc.subject, tc.budget)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}

	if c.Snapshot().Phase != PhaseIdle {
		t.Error("Expected phase to stay idle after validation failures")
	}
}

func TestController_FullRun(t *testing.T) {
	c := NewController(testRoster, &scriptedSource{envelopes: fullRunScript()}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool { return c.Snapshot().Phase == PhaseComplete },
		"session never reached complete")

	snap := c.Snapshot()
	if snap.RemainingBudget != 0.0 {
		t.Errorf("Expected remainingBudget 0.0, got %v", snap.RemainingBudget)
	}
	if snap.Refund == nil || snap.Refund.Amount != 0.10 {
		t.Errorf("Expected refund 0.10, got %+v", snap.Refund)
	}
	if snap.ShareID != "share-abc" {
		t.Errorf("Expected shareId share-abc, got %s", snap.ShareID)
	}
	if snap.SubjectMeta == nil || snap.SubjectMeta.Name != "repo-A" {
		t.Errorf("Expected subject meta repo-A, got %+v", snap.SubjectMeta)
	}
	if len(snap.Agents) != 4 {
		t.Fatalf("Expected 4 agents, got %d", len(snap.Agents))
	}
	for _, a := range snap.Agents {
		if a.Status != roster.StatusComplete {
			t.Errorf("Expected agent %s complete, got %s", a.Name, a.Status)
		}
	}
	if snap.Spent() != 1.5 {
		t.Errorf("Expected spent 1.5, got %v", snap.Spent())
	}
}

func TestController_FailedWorkerNeverStartedIsNoop(t *testing.T) {
	script := events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
		Event{Type: EventWorkerFailed, Agent: "auditor"},
	)
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool { return len(c.Snapshot().Agents) == 1 },
		"scout never appeared")
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	if len(snap.Agents) != 1 {
		t.Fatalf("Expected agents unchanged by failure of never-started worker, got %d", len(snap.Agents))
	}
	if snap.Agents[0].Name != "scout" || snap.Agents[0].Status != roster.StatusWorking {
		t.Errorf("Unexpected agent state: %+v", snap.Agents[0])
	}
}

func TestController_FatalErrorResetsToIdle(t *testing.T) {
	script := events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
		Event{Type: EventFatalError, Message: "rate limited"},
	)
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, func() bool { return c.Snapshot().ErrMessage == "rate limited" },
		"fatal error never surfaced")
	if c.Snapshot().Phase != PhaseIdle {
		t.Errorf("Expected phase idle after fatal error, got %s", c.Snapshot().Phase)
	}

	// the next start discards the old session entirely
	if err := c.Start(context.Background(), "acme/repo-B", 1.0); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer c.Stop()

	snap := c.Snapshot()
	if len(snap.Agents) != 0 || snap.Refund != nil || snap.ErrMessage != "" {
		t.Errorf("Expected fresh session on restart, got %+v", snap)
	}
	if snap.SubjectRef != "acme/repo-B" {
		t.Errorf("Expected new subject, got %s", snap.SubjectRef)
	}
}

func TestController_UnknownEventIgnored(t *testing.T) {
	script := events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}},
		Event{Type: "budget-warning", Message: "running low"},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
	)
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool { return len(c.Snapshot().Agents) == 1 },
		"events after the unknown one were not processed")
	if c.Snapshot().ErrMessage != "" {
		t.Error("Expected unknown event to not surface an error")
	}
}

func TestController_DuplicateStartReplaces(t *testing.T) {
	script := events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.50, Allocation: 35},
	)
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Agents) == 1 && snap.Agents[0].Payment == 0.50
	}, "duplicate start did not replace in place")
}

func TestController_DuplicateCompletionRedelivery(t *testing.T) {
	script := events(
		Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}},
		Event{Type: EventWorkerStarted, Agent: "scout", Payment: 0.45, Allocation: 30},
		Event{Type: EventWorkerCompleted, Agent: "scout", Payment: 0.45, ReceiptID: "r1", RemainingBudget: 1.05},
		Event{Type: EventWorkerCompleted, Agent: "scout", Payment: 0.45, ReceiptID: "r1", RemainingBudget: 1.05},
	)
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Agents) == 1 && snap.Agents[0].Status == roster.StatusComplete
	}, "completion never applied")
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	if snap.RemainingBudget != 1.05 {
		t.Errorf("Expected remainingBudget 1.05 after redelivery, got %v", snap.RemainingBudget)
	}
}

func TestController_TransportErrorResetsToIdle(t *testing.T) {
	script := []Envelope{
		{Event: Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "repo-A"}}},
		{Err: &TransportError{Err: errors.New("connection reset")}},
	}
	c := NewController(testRoster, &scriptedSource{envelopes: script}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool { return c.Snapshot().ErrMessage != "" },
		"transport error never surfaced")
	if c.Snapshot().Phase != PhaseIdle {
		t.Errorf("Expected phase idle, got %s", c.Snapshot().Phase)
	}
}

func TestController_SubscribeFailureReturnsError(t *testing.T) {
	c := NewController(testRoster, failingSource{}, nil)

	err := c.Start(context.Background(), "acme/repo-A", 1.5)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Errorf("Expected TransportError from Start, got %v", err)
	}
	if c.Snapshot().Phase != PhaseIdle {
		t.Error("Expected phase to stay idle when the subscription cannot open")
	}
}

type failingSource struct{}

func (failingSource) Subscribe(context.Context, string, float64) (<-chan Envelope, error) {
	return nil, &TransportError{Err: errors.New("dial refused")}
}

func TestController_StopPreventsFurtherDispatch(t *testing.T) {
	gate := make(chan struct{})
	src := &scriptedSource{
		envelopes: events(Event{Type: EventSubjectFetched, Meta: &SubjectMeta{Name: "late"}}),
		gate:      gate,
	}
	c := NewController(testRoster, src, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	c.Stop()
	before := c.Snapshot()

	// release the event that was in flight on the transport
	close(gate)
	time.Sleep(20 * time.Millisecond)

	after := c.Snapshot()
	if after.Phase != before.Phase || after.SubjectMeta != nil {
		t.Error("Expected no dispatch after Stop returned")
	}
}

func TestController_StopWithoutStart(t *testing.T) {
	c := NewController(testRoster, &scriptedSource{}, nil)
	c.Stop() // must not panic or block
}

func TestController_UpdatesDeliversLatestSnapshot(t *testing.T) {
	c := NewController(testRoster, &scriptedSource{envelopes: fullRunScript()}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-c.Updates():
			if snap.Phase == PhaseComplete {
				if snap.Refund == nil {
					t.Error("Expected final snapshot to carry the refund")
				}
				return
			}
		case <-deadline:
			t.Fatal("final snapshot never arrived on Updates")
		}
	}
}

func TestController_RemainingBudgetMonotonic(t *testing.T) {
	c := NewController(testRoster, &scriptedSource{envelopes: fullRunScript()}, nil)

	if err := c.Start(context.Background(), "acme/repo-A", 1.5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	prev := 1.5
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-c.Updates():
			if snap.RemainingBudget > prev {
				t.Errorf("remainingBudget increased: %v -> %v", prev, snap.RemainingBudget)
			}
			if snap.RemainingBudget < 0 {
				t.Errorf("remainingBudget went negative: %v", snap.RemainingBudget)
			}
			prev = snap.RemainingBudget
			if snap.Phase == PhaseComplete {
				return
			}
		case <-deadline:
			t.Fatal("session never completed")
		}
	}
}
