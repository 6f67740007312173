// Package report fetches previously shared analysis summaries by id. This
// component never writes reports; the share id arrives on the event stream
// and persistence belongs to the collaborator.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/veldtlabs/crewdash/internal/session"
)

// ErrNotFound is returned when a share id does not resolve, either because
// it never existed or because the report expired.
var ErrNotFound = errors.New("report not found or expired")

// Client is a read-only client for the shared-report collaborator.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a report client for the given base URL.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Fetch retrieves the Session-shaped payload stored under shareID.
func (c *Client) Fetch(ctx context.Context, shareID string) (*session.Session, error) {
	if shareID == "" {
		return nil, errors.New("share id cannot be empty")
	}

	endpoint := c.baseURL + "/v1/reports/" + url.PathEscape(shareID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch report %s: %w", shareID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("fetch report %s: unexpected status %d", shareID, resp.StatusCode)
	}

	var snapshot session.Session
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", shareID, err)
	}
	return &snapshot, nil
}
