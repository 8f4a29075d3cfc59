package crawler

import (
	"context"
	"strings"

	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
)

// DiscoveryStage lists every university on the index page. It is the seed
// stage: it reads no dataset and runs once.
type DiscoveryStage struct {
	BaseCrawler
}

// InputColumns implements Stage
func (s *DiscoveryStage) InputColumns() []string { return nil }

// OutputColumns implements Stage
func (s *DiscoveryStage) OutputColumns() []string { return UniversityColumns }

// Process implements Stage; the row is ignored
func (s *DiscoveryStage) Process(ctx context.Context, page render.Page, _ dataset.Row) ([]dataset.Row, error) {
	universities, err := s.Discover(ctx, page)
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(universities))
	for i, u := range universities {
		rows[i] = u.Row()
	}
	return rows, nil
}

// Discover returns the universities in index order
func (s *DiscoveryStage) Discover(ctx context.Context, page render.Page) ([]University, error) {
	indexURL := s.Site.IndexURL()
	if err := s.visit(ctx, page, indexURL, s.Site.UniversityLink); err != nil {
		return nil, err
	}

	var universities []University
	for _, link := range page.QueryAll(ctx, s.Site.UniversityLink) {
		h := href(link)
		if !s.isUniversityPath(h) {
			continue
		}

		abs, err := s.absoluteURL(h)
		if err != nil {
			s.log().Debug().Err(err).Msg("skipping university link")
			continue
		}
		universities = append(universities, University{Name: linkText(link), CatalogURL: abs})
	}

	s.trace(indexURL, StateDone)
	return universities, nil
}

// isUniversityPath accepts relative university paths and absolute URLs on the
// same site
func (s *DiscoveryStage) isUniversityPath(h string) bool {
	prefix := s.Site.UniversityPathPrefix
	return strings.HasPrefix(h, prefix) || strings.HasPrefix(h, s.Site.BaseURL+prefix)
}
