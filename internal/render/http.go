package render

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/logger"
	"sjsage522/tcasworker/pkg/errors"
)

// HTTPRenderer fetches pages without executing JavaScript. It suits
// server-rendered catalog pages and local fixtures.
type HTTPRenderer struct {
	opts Options
}

// NewHTTPRenderer creates a static renderer
func NewHTTPRenderer(opts Options) *HTTPRenderer {
	return &HTTPRenderer{opts: opts}
}

// Name implements Renderer
func (r *HTTPRenderer) Name() string { return "http" }

// NewPage implements Renderer
func (r *HTTPRenderer) NewPage(ctx context.Context) (Page, error) {
	return &httpPage{
		userAgent: r.opts.UserAgent,
		limiter:   newLimiter(r.opts.RequestsPerSecond),
		log:       logger.ForRenderer(r.Name()),
	}, nil
}

type httpPage struct {
	userAgent string
	limiter   *rate.Limiter
	log       *logger.Logger
	url       string
	doc       *goquery.Document
}

func (p *httpPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.url, p.doc = url, nil

	if err := p.limiter.Wait(ctx); err != nil {
		return errors.NewNavigation("", url, err)
	}

	start := time.Now()
	body, err := helpers.FetchWithRandomHeaders(ctx, url, p.userAgent, timeout)
	if err != nil {
		return errors.NewNavigation("", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return errors.NewNavigation("", url, err)
	}
	p.doc = doc

	p.log.Debug().Str("url", url).Dur("took", time.Since(start)).Msg("page loaded")
	return nil
}

// WaitForSelector checks the loaded document. Static content cannot change, so
// an absent selector fails immediately instead of burning the timeout.
func (p *httpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if p.doc != nil && p.doc.Find(selector).Length() > 0 {
		return nil
	}
	return errors.NewSelectorTimeout("", selector, timeout)
}

func (p *httpPage) QueryAll(ctx context.Context, selector string) []Element {
	return queryDocument(p.doc, selector)
}

func (p *httpPage) Close() error {
	p.doc = nil
	return nil
}
