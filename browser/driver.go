package browser

import (
	"context"
	"time"
)

// Driver is the low-level browser control surface the executor drives.
// Implementations own one page; coordinates are viewport pixels.
type Driver interface {
	// Navigate loads url and waits for content-loaded.
	Navigate(ctx context.Context, url string) error
	// GoBack and GoForward move through the page history.
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// Click presses and releases the primary button at a point.
	Click(ctx context.Context, x, y int) error
	// MoveMouse moves the pointer without pressing.
	MoveMouse(ctx context.Context, x, y int) error
	// MouseDown and MouseUp hold and release the primary button,
	// used for drags.
	MouseDown(ctx context.Context) error
	MouseUp(ctx context.Context) error

	// TypeText types into the focused element.
	TypeText(ctx context.Context, text string) error
	// PressKey presses a key or key combination ("Enter", "Meta+A").
	PressKey(ctx context.Context, keys string) error
	// Wheel scrolls by pixel deltas at the current pointer position.
	Wheel(ctx context.Context, deltaX, deltaY int) error

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// CurrentURL returns the page URL.
	CurrentURL(ctx context.Context) (string, error)
	// WaitForLoad waits until the document reaches content-loaded,
	// bounded by timeout.
	WaitForLoad(ctx context.Context, timeout time.Duration) error

	// Close releases the page and every resource behind it.
	Close(ctx context.Context) error
}
