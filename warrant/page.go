package warrant

import (
	"context"
	"time"
)

// Page is the one navigable surface of a browser session. Implementations
// bind every call to ctx.
type Page interface {
	// Navigate loads url and returns once the network is idle.
	Navigate(ctx context.Context, url string) error

	// WaitFor blocks until an element matching selector is attached or
	// timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// FindTable returns the first table matching the earliest selector in
	// the list that matches anything. ok is false when none matches.
	FindTable(ctx context.Context, selectors []string) (t Table, ok bool, err error)

	// FindLinks returns every anchor matching selector in document order.
	FindLinks(ctx context.Context, selector string) ([]Link, error)
}

// Table is a located results table.
type Table interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Row is one <tr> of a Table.
type Row interface {
	// Cells returns the text of each <td> in order, untrimmed.
	Cells(ctx context.Context) ([]string, error)
}

// Link is an anchor element.
type Link struct {
	Href  string
	Text  string
	Title string
}

// Session owns one browser process and its single Page.
type Session interface {
	Page
	// Release closes the page and the browser. Safe to call more than once.
	Release()
}

// Launcher starts browser sessions.
type Launcher interface {
	Acquire(ctx context.Context, headless bool) (Session, error)
}
