// Package driver defines the browser session boundary the stock checker talks to.
// Every engine under pkg/driver implements Session.
package driver

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrElementNotFound is returned by FindOne when nothing matches the selector
	ErrElementNotFound = errors.New("element not found")
	// ErrTimeout is returned by WaitVisible when the element did not show up in time
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrNotDisplayed is returned by TextOf when the element exists but is not rendered
	ErrNotDisplayed = errors.New("element not displayed")
	// ErrUnsupported is returned by engines that cannot perform an interaction
	ErrUnsupported = errors.New("operation not supported by this driver")
)

// Element is a handle to a single element on the currently loaded page
type Element interface {
	Click() error
	SendKeys(text string) error
	IsDisplayed() (bool, error)
	Text() (string, error)
}

// Session is one browser automation session. Selectors are CSS selectors
type Session interface {
	// Navigate loads url and blocks until the page finished loading
	Navigate(ctx context.Context, url string) error
	// FindAll returns every element matching selector, an empty slice (not an error) when none do
	FindAll(selector string) ([]Element, error)
	// FindOne returns the first element matching selector or ErrElementNotFound
	FindOne(selector string) (Element, error)
	// WaitVisible blocks until selector is visible or returns ErrTimeout
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Screenshot returns a PNG of the current viewport
	Screenshot() ([]byte, error)
	// Sleep pauses the caller for d, returning early with ctx.Err() on cancellation
	Sleep(ctx context.Context, d time.Duration) error
	// Close releases the browser and everything started for it
	Close() error
}

// TextOf returns the rendered text of element, or ErrNotDisplayed if it is currently hidden
func TextOf(element Element) (string, error) {
	displayed, err := element.IsDisplayed()
	if err != nil {
		return "", err
	}
	if !displayed {
		return "", ErrNotDisplayed
	}
	return element.Text()
}

// Sleep is the Session.Sleep implementation shared by the engines
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
