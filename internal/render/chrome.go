package render

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"sjsage522/tcasworker/logger"
	"sjsage522/tcasworker/pkg/errors"
)

const defaultSnapshotTimeout = 10 * time.Second

// ChromeRenderer drives a headless Chrome through the DevTools protocol.
// With ChromeAddr set it attaches to a running browser (for example a
// browserless container) instead of launching one.
type ChromeRenderer struct {
	opts Options
}

// NewChromeRenderer creates a Chrome-backed renderer
func NewChromeRenderer(opts Options) *ChromeRenderer {
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = defaultSnapshotTimeout
	}
	return &ChromeRenderer{opts: opts}
}

// Name implements Renderer
func (r *ChromeRenderer) Name() string { return "chrome" }

// NewPage starts (or attaches to) a browser and opens one tab
func (r *ChromeRenderer) NewPage(ctx context.Context) (Page, error) {
	log := logger.ForRenderer(r.Name())

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if r.opts.ChromeAddr != "" {
		log.Info().Str("addr", r.opts.ChromeAddr).Msg("Attaching to remote Chrome")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, r.opts.ChromeAddr)
	} else {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", r.opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if r.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(r.opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, errors.NewSession("start chrome", err)
	}

	return &chromePage{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		limiter:         newLimiter(r.opts.RequestsPerSecond),
		snapshotTimeout: r.opts.SnapshotTimeout,
		log:             log,
	}, nil
}

type chromePage struct {
	ctx             context.Context
	cancel          context.CancelFunc
	limiter         *rate.Limiter
	snapshotTimeout time.Duration
	log             *logger.Logger
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(tctx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return errors.NewNavigation("", url, err)
	}

	start := time.Now()
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return errors.NewNavigation("", url, err)
	}

	p.log.Debug().Str("url", url).Dur("took", time.Since(start)).Msg("page loaded")
	return nil
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		p.log.Debug().Str("selector", selector).Err(err).Msg("wait failed")
		return errors.NewSelectorTimeout("", selector, timeout)
	}
	return nil
}

// QueryAll snapshots the live DOM and queries the snapshot
func (p *chromePage) QueryAll(ctx context.Context, selector string) []Element {
	var html string
	if err := p.run(ctx, p.snapshotTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		p.log.Warn().Err(err).Msg("DOM snapshot failed")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn().Err(err).Msg("DOM snapshot unparsable")
		return nil
	}
	return queryDocument(doc, selector)
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
