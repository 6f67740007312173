package diagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// EngineConfig is the process-wide configuration of the external render
// engine: set once at startup, never mutated per render. Per-render options
// travel in RenderRequest instead, so tests can run renders with differing
// options without cross-test leakage.
type EngineConfig struct {
	Theme      string
	FontFamily string
}

var (
	configOnce   sync.Once
	globalConfig = EngineConfig{Theme: "dark", FontFamily: "monospace"}
)

// ConfigureOnce sets the process-wide engine configuration. Only the first
// call has any effect.
func ConfigureOnce(cfg EngineConfig) {
	configOnce.Do(func() {
		if cfg.Theme != "" {
			globalConfig.Theme = cfg.Theme
		}
		if cfg.FontFamily != "" {
			globalConfig.FontFamily = cfg.FontFamily
		}
	})
}

// GlobalConfig returns the process-wide engine configuration.
func GlobalConfig() EngineConfig {
	return globalConfig
}

// RenderRequest carries one engine invocation: sanitized source plus the
// explicit per-render options.
type RenderRequest struct {
	ID     string
	Source string
	Theme  string
}

// Engine renders a sanitized diagram description to SVG markup. The engine
// is stateless per call from this package's point of view; a failure means
// the description was rejected, not that the engine is broken.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// EngineError is the engine's rejection of a description. It never escapes
// the diagram package: the renderer downgrades it to a fallback result.
type EngineError struct {
	Status int
	Detail string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("render engine rejected input (status %d): %s", e.Status, e.Detail)
}

// maxEngineResponse bounds the SVG payload read from the engine.
const maxEngineResponse = 4 << 20

// HTTPEngine invokes a Kroki-style render service over HTTP: the sanitized
// description goes in the request body, SVG markup comes back.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEngine creates an engine client for the given render service.
func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	return &HTTPEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Render posts the description to the engine and returns the SVG markup.
func (e *HTTPEngine) Render(ctx context.Context, req RenderRequest) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/mermaid/svg", strings.NewReader(req.Source))
	if err != nil {
		return "", fmt.Errorf("build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")
	httpReq.Header.Set("X-Render-Id", req.ID)
	if req.Theme != "" {
		httpReq.Header.Set("X-Render-Theme", req.Theme)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("invoke render engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEngineResponse))
	if err != nil {
		return "", fmt.Errorf("read render response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &EngineError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}
