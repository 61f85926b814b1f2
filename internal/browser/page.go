// Package browser owns the single live page resource every other component
// operates on. The Page interface is the seam between the engine and the
// concrete driver: a chromedp-backed page in production, a pure-Go HTML
// page for tests and driverless runs.
package browser

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
)

// ErrSessionTerminated is returned by every Page method after Close. No
// further tool calls are valid once it surfaces.
var ErrSessionTerminated = errors.New("browser session terminated")

// Page is the single shared mutable browser resource. All methods are
// blocking with the caller's context as the only deadline; none of them
// retries. Retry policy lives entirely in the action executor.
type Page interface {
	// CurrentURL reports the URL of the current document.
	CurrentURL(ctx context.Context) (string, error)

	// Snapshot parses the current DOM into a tree for resolution. Every
	// call re-reads the live document: snapshots are never cached, so
	// facts derived from them are never stale.
	Snapshot(ctx context.Context) (*html.Node, error)

	// Navigate loads a URL in the current page.
	Navigate(ctx context.Context, url string) error

	// Back goes one step back in history.
	Back(ctx context.Context) error

	// NativeClick performs a trusted, input-level click on the target.
	NativeClick(ctx context.Context, t schemas.Target) error

	// DispatchClick fires a programmatic click event directly on the
	// target, bypassing hit-testing. Used as the fallback when overlapping
	// or animated elements reject the native click.
	DispatchClick(ctx context.Context, t schemas.Target) error

	// ScrollIntoView centers the target in the viewport.
	ScrollIntoView(ctx context.Context, t schemas.Target) error

	// ScrollBy scrolls the viewport vertically by a pixel delta.
	ScrollBy(ctx context.Context, pixels int) error

	// Clear empties the target's current value.
	Clear(ctx context.Context, t schemas.Target) error

	// Type sends literal text to the target.
	Type(ctx context.Context, t schemas.Target, text string) error

	// SendEnter sends an Enter keystroke scoped to the target (submits the
	// enclosing form where that is the document semantics).
	SendEnter(ctx context.Context, t schemas.Target) error

	// KeyPress dispatches a key chord as a global page event, not scoped
	// to any element. The chord is a chromedp/kb key string.
	KeyPress(ctx context.Context, chord string) error

	// Close tears the session down. Idempotent; Closed reports the state.
	Close(ctx context.Context) error
	Closed() bool
}
