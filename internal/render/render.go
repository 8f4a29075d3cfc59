// Package render loads pages and exposes DOM queries over them.
//
// A Page is used by one goroutine at a time: navigation is strictly
// sequential and callers never issue concurrent navigations on the same page.
// Callers wanting parallelism open one page per goroutine.
package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/tcasworker/pkg/errors"
)

// Element is a handle on one DOM node
type Element interface {
	// Attr returns the attribute value and whether it is present
	Attr(name string) (string, bool)
	// Text returns the node's text content, trimmed
	Text() string
	// Find queries descendants of the node
	Find(selector string) []Element
	// NextUntil returns the following siblings matching selector, stopping
	// at the first sibling matching until
	NextUntil(until, selector string) []Element
}

// Page is a single browser tab (or its static equivalent)
type Page interface {
	// Navigate loads url. It fails with a navigation error on timeout or
	// network failure.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitForSelector blocks until selector matches or fails with a selector
	// timeout error.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// QueryAll returns matching elements in document order; empty, never an
	// error, when nothing matches.
	QueryAll(ctx context.Context, selector string) []Element
	// Close releases the page
	Close() error
}

// Renderer opens pages
type Renderer interface {
	Name() string
	NewPage(ctx context.Context) (Page, error)
}

// Options configures a renderer
type Options struct {
	UserAgent         string
	RequestsPerSecond float64
	ChromeAddr        string
	Headless          bool
	SnapshotTimeout   time.Duration
}

// New creates the renderer named by kind ("chrome" or "http")
func New(kind string, opts Options) (Renderer, error) {
	switch kind {
	case "chrome":
		return NewChromeRenderer(opts), nil
	case "http":
		return NewHTTPRenderer(opts), nil
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown renderer %q", kind), nil)
	}
}

// ErrNotReady is returned by WaitFor when the predicate never held
var ErrNotReady = fmt.Errorf("condition not met before timeout")

// WaitFor polls ready every interval until it reports true or timeout elapses.
// ready is always evaluated at least once.
func WaitFor(ctx context.Context, timeout, interval time.Duration, ready func(context.Context) bool) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ready(ctx) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newLimiter gates navigations; a non-positive rate disables the gate
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

type node struct {
	sel *goquery.Selection
}

func (n node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

func (n node) Find(selector string) []Element {
	return elements(n.sel.Find(selector))
}

func (n node) NextUntil(until, selector string) []Element {
	return elements(n.sel.NextUntil(until).Filter(selector))
}

func elements(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out
}

// queryDocument runs selector against doc, tolerating a nil document
func queryDocument(doc *goquery.Document, selector string) []Element {
	if doc == nil {
		return nil
	}
	return elements(doc.Find(selector))
}
