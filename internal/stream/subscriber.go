// Package stream opens the analysis event stream and yields parsed events
// over a channel, so the session controller can be driven by a scripted
// sequence in tests without any real transport.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/veldtlabs/crewdash/internal/session"
)

// maxFrameSize bounds a single SSE frame. Frames are small JSON events;
// anything larger is a protocol violation.
const maxFrameSize = 1 << 20

// Subscriber opens server-sent-event subscriptions against the analysis
// collaborator. It does not retry or reconnect; a dropped stream surfaces
// as a TransportError and any retry policy belongs to the caller.
type Subscriber struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSubscriber creates a subscriber for the given collaborator base URL.
func NewSubscriber(baseURL string, client *http.Client, logger *slog.Logger) *Subscriber {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Subscribe opens the event stream for one analysis run. The returned
// channel delivers events strictly in arrival order and closes when the
// stream ends, errors, or ctx is canceled. Opening failures are returned
// synchronously as a TransportError.
func (s *Subscriber) Subscribe(ctx context.Context, subjectRef string, budget float64) (<-chan session.Envelope, error) {
	q := url.Values{}
	q.Set("subject", subjectRef)
	q.Set("budget", strconv.FormatFloat(budget, 'f', -1, 64))
	endpoint := s.baseURL + "/v1/analyses/stream?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &session.TransportError{Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &session.TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &session.TransportError{
			Err: fmt.Errorf("unexpected status %d opening stream", resp.StatusCode),
		}
	}

	ch := make(chan session.Envelope)
	go s.consume(ctx, resp, ch)
	return ch, nil
}

// consume reads SSE frames off the response body until the stream ends.
// One data: line carries one JSON event.
func (s *Subscriber) consume(ctx context.Context, resp *http.Response, ch chan<- session.Envelope) {
	defer close(ch)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			frame := data.String()
			data.Reset()
			if !s.deliver(ctx, ch, frame) {
				return
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment/keepalive
		default:
			// event:/id:/retry: fields are not part of the contract
		}
	}

	if data.Len() > 0 {
		if !s.deliver(ctx, ch, data.String()) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		s.send(ctx, ch, session.Envelope{Err: &session.TransportError{Err: err}})
		return
	}
	// EOF without a terminal event: the collaborator dropped the stream.
	s.send(ctx, ch, session.Envelope{Err: &session.TransportError{Err: errors.New("stream closed by server")}})
}

// deliver parses one frame and sends it. Returns false when the stream
// should stop (protocol violation or canceled context).
func (s *Subscriber) deliver(ctx context.Context, ch chan<- session.Envelope, frame string) bool {
	ev, err := session.ParseEvent([]byte(frame))
	if err != nil {
		s.logger.Error("dropping malformed frame", "error", err)
		s.send(ctx, ch, session.Envelope{Err: err})
		return false
	}

	if !s.send(ctx, ch, session.Envelope{Event: ev}) {
		return false
	}

	// Terminal events end the stream from the consumer's point of view
	// regardless of what the server does with the connection.
	switch ev.Type {
	case session.EventRefundIssued, session.EventFatalError:
		return false
	}
	return true
}

func (s *Subscriber) send(ctx context.Context, ch chan<- session.Envelope, env session.Envelope) bool {
	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
