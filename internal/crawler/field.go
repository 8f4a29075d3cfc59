package crawler

import (
	"context"
	"fmt"

	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/pkg/errors"
)

// FieldStage finds the fields of study of a matched faculty whose name
// contains any of the field keywords. Each input row costs three visits:
// the index, the university page and the faculty page.
type FieldStage struct {
	BaseCrawler
	Resolver *Resolver
}

// InputColumns implements Stage
func (s *FieldStage) InputColumns() []string { return FacultyColumns }

// OutputColumns implements Stage
func (s *FieldStage) OutputColumns() []string { return FieldColumns }

// Process implements Stage
func (s *FieldStage) Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	fields, err := s.Resolve(ctx, page, FacultyMatchFromRow(row))
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(fields))
	for i, f := range fields {
		rows[i] = f.Row()
	}
	return rows, nil
}

// Resolve returns the matching fields of fm in page order
func (s *FieldStage) Resolve(ctx context.Context, page render.Page, fm FacultyMatch) ([]FieldMatch, error) {
	code, ok := FacultyCode(fm.FacultyLabel)
	if !ok {
		return nil, errors.NewNoMatch(s.StageName, fmt.Sprintf("faculty label %q has no code", fm.FacultyLabel))
	}

	universityURL, err := s.Resolver.UniversityURL(ctx, page, fm.UniversityName)
	if err != nil {
		return nil, err
	}

	facultyURL, err := s.Resolver.FacultyURL(ctx, page, universityURL, code)
	if err != nil {
		return nil, err
	}

	if err := s.visit(ctx, page, facultyURL, s.Site.FieldLink); err != nil {
		return nil, err
	}

	var fields []FieldMatch
	for _, link := range page.QueryAll(ctx, s.Site.FieldLink) {
		name := linkText(link)
		if !helpers.ContainsAny(name, s.Keywords) {
			continue
		}
		h := href(link)
		if h == "" {
			continue
		}
		fieldURL, err := s.absoluteURL(h)
		if err != nil {
			s.log().Debug().Err(err).Str("field", name).Msg("skipping field link")
			continue
		}
		fields = append(fields, FieldMatch{
			UniversityName: fm.UniversityName,
			FacultyLabel:   fm.FacultyLabel,
			FieldName:      name,
			FieldURL:       fieldURL,
		})
	}

	s.trace(facultyURL, StateDone)
	return fields, nil
}
