package crawler

import (
	"context"

	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
)

// ProgramStage lists the programs offered under a field
type ProgramStage struct {
	BaseCrawler
}

// InputColumns implements Stage
func (s *ProgramStage) InputColumns() []string { return FieldColumns }

// OutputColumns implements Stage
func (s *ProgramStage) OutputColumns() []string { return ProgramColumns }

// Process implements Stage
func (s *ProgramStage) Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	programs, err := s.Enumerate(ctx, page, FieldMatchFromRow(row))
	if err != nil {
		return nil, err
	}

	rows := make([]dataset.Row, len(programs))
	for i, p := range programs {
		rows[i] = p.Row()
	}
	return rows, nil
}

// Enumerate returns the programs of f in page order
func (s *ProgramStage) Enumerate(ctx context.Context, page render.Page, f FieldMatch) ([]Program, error) {
	if err := s.visit(ctx, page, f.FieldURL, s.Site.ProgramLink); err != nil {
		return nil, err
	}

	var programs []Program
	for _, link := range page.QueryAll(ctx, s.Site.ProgramLink) {
		h := href(link)
		if h == "" {
			continue
		}
		programURL, err := s.absoluteURL(h)
		if err != nil {
			s.log().Debug().Err(err).Msg("skipping program link")
			continue
		}

		programs = append(programs, Program{
			UniversityName: f.UniversityName,
			FacultyLabel:   f.FacultyLabel,
			FieldName:      f.FieldName,
			ProgramName:    s.programName(link),
			ProgramURL:     programURL,
		})
	}

	s.trace(f.FieldURL, StateDone)
	return programs, nil
}

// programName prefers the nested name element over the whole link text
func (s *ProgramStage) programName(link render.Element) string {
	for _, el := range link.Find(s.Site.ProgramName) {
		if name := linkText(el); name != "" {
			return name
		}
	}
	return linkText(link)
}
