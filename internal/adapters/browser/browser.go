package browser

import (
	"context"
	"time"
)

// Page is the capability set the portal flow needs from a browser tab.
// Every call may fail with a not-found or timeout error; callers decide
// whether to retry.
type Page interface {
	// Navigate loads the given URL and waits for the page load event.
	Navigate(url string) error
	// Fill replaces the content of the element matching selector.
	Fill(selector, value string) error
	// Type types text into the element key by key, like a user would.
	// The portal's autocomplete widgets only react to real key events.
	Type(selector, text string) error
	// Click clicks the element matching selector.
	Click(selector string) error
	// ClickText clicks the first element whose text matches.
	ClickText(text string, timeout time.Duration) error
	// WaitForVisible waits until the element is visible or the timeout elapses.
	WaitForVisible(selector string, timeout time.Duration) error
	// WaitForText waits until an element matching selector contains text.
	WaitForText(selector, text string, timeout time.Duration) error
	// Title returns the current page title.
	Title() (string, error)
	// Text returns the inner text of the element matching selector.
	Text(selector string) (string, error)
	// Close releases the tab and the browser session behind it.
	Close() error
}

// Factory opens browser sessions. One session is opened per flow
// attempt and fully torn down before the next attempt starts.
type Factory interface {
	Open(ctx context.Context) (Page, error)
}
