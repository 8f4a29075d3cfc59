package crawler

import (
	"context"
	"fmt"

	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/pkg/errors"
)

// FacultyStage keeps the faculties of a university whose label contains the
// faculty keyword
type FacultyStage struct {
	BaseCrawler
}

// InputColumns implements Stage
func (s *FacultyStage) InputColumns() []string { return UniversityColumns }

// OutputColumns implements Stage
func (s *FacultyStage) OutputColumns() []string { return FacultyColumns }

// Process implements Stage
func (s *FacultyStage) Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	u := University{Name: row.Get("name"), CatalogURL: row.Get("catalog_url")}

	matches, err := s.Filter(ctx, page, u)
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(matches))
	for i, m := range matches {
		rows[i] = m.Row()
	}
	return rows, nil
}

// Filter returns the matching faculties of u in page order. A university
// without any faculty link fails with a no-match error.
func (s *FacultyStage) Filter(ctx context.Context, page render.Page, u University) ([]FacultyMatch, error) {
	if err := s.visit(ctx, page, u.CatalogURL, ""); err != nil {
		return nil, err
	}

	if err := s.waitForAny(ctx, page, u.CatalogURL, s.Site.FacultyLink); err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeSelectorTimeout {
			return nil, errors.NewNoMatch(s.StageName, fmt.Sprintf("no faculty data for %s", u.Name))
		}
		return nil, err
	}

	var matches []FacultyMatch
	for _, link := range page.QueryAll(ctx, s.Site.FacultyLink) {
		label := linkText(link)
		if helpers.ContainsAny(label, s.Keywords) {
			matches = append(matches, FacultyMatch{UniversityName: u.Name, FacultyLabel: label})
		}
	}

	s.trace(u.CatalogURL, StateDone)
	return matches, nil
}
