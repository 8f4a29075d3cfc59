package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/logger"
	"sjsage522/tcasworker/pkg/errors"
)

// State is where a unit is in its visit of one page
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateWaitingForContent
	StateScanning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateWaitingForContent:
		return "waiting_for_content"
	case StateScanning:
		return "scanning"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BaseCrawler provides common functionality for all extraction units
type BaseCrawler struct {
	Site              Site
	StageName         string
	Keywords          []string
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	ReadyTimeout      time.Duration
	PollInterval      time.Duration
}

// Name returns the stage name for logging
func (c *BaseCrawler) Name() string {
	return c.StageName
}

func (c *BaseCrawler) log() *logger.Logger {
	return logger.ForStage(c.StageName)
}

// visit navigates to url and, when selector is set, waits for it to match.
// On success the page is ready to be scanned.
func (c *BaseCrawler) visit(ctx context.Context, page render.Page, url, selector string) error {
	c.trace(url, StateNavigating)
	if err := page.Navigate(ctx, url, c.NavigationTimeout); err != nil {
		c.trace(url, StateFailed)
		return c.tag(err)
	}

	if selector != "" {
		c.trace(url, StateWaitingForContent)
		if err := page.WaitForSelector(ctx, selector, c.ContentTimeout); err != nil {
			c.trace(url, StateFailed)
			return c.tag(err)
		}
	}

	c.trace(url, StateScanning)
	return nil
}

// waitForAny polls until selector matches at least once, bounded by the
// readiness timeout. Used where content appears after load without a single
// stable container to wait on.
func (c *BaseCrawler) waitForAny(ctx context.Context, page render.Page, url, selector string) error {
	c.trace(url, StateWaitingForContent)
	err := render.WaitFor(ctx, c.ReadyTimeout, c.PollInterval, func(ctx context.Context) bool {
		return len(page.QueryAll(ctx, selector)) > 0
	})
	if err != nil {
		c.trace(url, StateFailed)
		if err == render.ErrNotReady {
			return errors.NewSelectorTimeout(c.StageName, selector, c.ReadyTimeout)
		}
		return err
	}
	c.trace(url, StateScanning)
	return nil
}

func (c *BaseCrawler) trace(url string, state State) {
	if logger.IsDebugEnabled() {
		c.log().Debug().Str("url", url).Str("state", state.String()).Msg("visit")
	}
}

// tag attributes a renderer error to this stage
func (c *BaseCrawler) tag(err error) error {
	if perr, ok := errors.As(err); ok && perr.Stage == "" {
		perr.Stage = c.StageName
	}
	return err
}

// absoluteURL resolves href against the site's base origin
func (c *BaseCrawler) absoluteURL(href string) (string, error) {
	abs, err := helpers.ResolveURL(c.Site.BaseURL+"/", href)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", href, err)
	}
	return abs, nil
}

// linkText returns the whitespace-collapsed text of el
func linkText(el render.Element) string {
	return helpers.NormalizeSpace(el.Text())
}

// href returns the trimmed href of el, or "" when absent
func href(el render.Element) string {
	v, ok := el.Attr("href")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
