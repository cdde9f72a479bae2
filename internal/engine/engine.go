package engine

import (
	"context"

	"github.com/dgnsrekt/browse_agent/internal/navigation"
)

// Events carries the per-surface callbacks a consumer registers when it
// creates a surface. Handlers run on the driver's event goroutine for that
// surface; nil handlers are skipped.
type Events struct {
	URLChanged   func(url string)
	LoadFinished func(success bool)
	TitleChanged func(title string)
	IconChanged  func()
}

// Surface is one render target: a single browsing context inside the
// external rendering engine. All methods are safe to call until Close;
// after Close every call returns an error that callers treat as a no-op.
type Surface interface {
	Load(ctx context.Context, url string) error
	Stop(ctx context.Context) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error

	// Evaluate runs a script in page context and unmarshals the eval
	// envelope's data field into out. A nil out discards the result.
	Evaluate(ctx context.Context, js string, out any) error

	// URL returns the last URL the engine reported for this surface.
	URL() string

	Close(ctx context.Context) error
}

// Engine produces surfaces and owns the connection to the rendering engine.
type Engine interface {
	// NewSurface opens a fresh browsing context and subscribes ev to its
	// engine events.
	NewSurface(ctx context.Context, ev Events) (Surface, error)

	// SetInterceptor installs the outbound-request hook applied to every
	// request from every surface. Must be called before the first
	// NewSurface; a nil hook allows everything.
	SetInterceptor(hook func(url string) navigation.Decision)

	Close() error
}
