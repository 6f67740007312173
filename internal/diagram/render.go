package diagram

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ResultKind discriminates the two shapes a render can take.
type ResultKind string

const (
	// KindSVG carries rendered markup.
	KindSVG ResultKind = "svg"
	// KindFallback carries the sanitized source for textual display.
	KindFallback ResultKind = "fallback"
)

// Result is the outcome of one render. Exactly one of Markup/RawText is
// populated, per Kind. Stale marks a result whose generation was
// superseded while the engine was working; the caller must discard it
// instead of writing it into shared output.
type Result struct {
	Kind    ResultKind
	Markup  string
	RawText string
	Stale   bool
}

// Renderer turns untrusted diagram text into a displayable result. It
// never returns an error and never panics: engine rejections, transport
// failures, and panics all degrade to a fallback result carrying the
// sanitized source verbatim.
type Renderer struct {
	engine Engine
	cache  *renderCache
	theme  string
	logger *slog.Logger

	// nextID feeds monotonically increasing render identifiers so repeated
	// renders of the same content never collide.
	nextID atomic.Uint64

	// generation tracks the newest render request. An in-flight render
	// whose generation is no longer current resolves stale.
	generation atomic.Uint64
}

// NewRenderer creates a renderer backed by the given engine. Theme is the
// explicit per-render option passed on every engine call; cacheTTL bounds
// how long successful markup is reused.
func NewRenderer(engine Engine, theme string, cacheTTL time.Duration, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if theme == "" {
		theme = GlobalConfig().Theme
	}
	return &Renderer{
		engine: engine,
		cache:  newRenderCache(cacheTTL),
		theme:  theme,
		logger: logger,
	}
}

// Close releases the renderer's cache resources.
func (r *Renderer) Close() {
	r.cache.Close()
}

// Invalidate supersedes all in-flight renders, e.g. when the owning view
// is torn down. Their results resolve stale and must be discarded.
func (r *Renderer) Invalidate() {
	r.generation.Add(1)
}

// Render sanitizes the text and produces a displayable result. Each call
// claims a new generation: if another Render (or Invalidate) happens while
// the engine is working, the returned result is marked stale so a slow
// render never overwrites a newer one.
func (r *Renderer) Render(ctx context.Context, raw string) Result {
	source := Sanitize(raw)
	gen := r.generation.Add(1)

	result := r.renderSource(ctx, source)
	result.Stale = r.generation.Load() != gen
	return result
}

func (r *Renderer) renderSource(ctx context.Context, source string) Result {
	key := cacheKey(source, r.theme)
	if markup, ok := r.cache.get(key); ok {
		return Result{Kind: KindSVG, Markup: markup}
	}

	markup, err := r.invoke(ctx, source)
	if err != nil {
		r.logger.Debug("render failed, using fallback", "error", err)
		return Result{Kind: KindFallback, RawText: source}
	}

	r.cache.store(key, markup)
	return Result{Kind: KindSVG, Markup: markup}
}

// invoke calls the engine with panic recovery. A panicking engine is
// indistinguishable from a rejection: the caller gets a fallback.
func (r *Renderer) invoke(ctx context.Context, source string) (markup string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render engine panicked: %v", rec)
		}
	}()

	req := RenderRequest{
		ID:     fmt.Sprintf("crewdash-render-%d", r.nextID.Add(1)),
		Source: source,
		Theme:  r.theme,
	}
	return r.engine.Render(ctx, req)
}
