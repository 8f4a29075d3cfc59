package crawler

import (
	"context"

	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
)

// FeeKind tells the three outcomes of a fee extraction apart
type FeeKind int

const (
	FeeOK FeeKind = iota
	FeeNoData
	FeeFailed
)

// FeeResult is the outcome of reading one program's expenses
type FeeResult struct {
	Kind   FeeKind
	Text   string // set for FeeOK
	Reason string // set for FeeFailed
}

// Value is what gets written to the fee column
func (r FeeResult) Value() string {
	switch r.Kind {
	case FeeOK:
		return r.Text
	case FeeNoData:
		return NoData
	default:
		return ExtractionFailed
	}
}

// FeeStage reads the tuition fee of a program. Unlike the other units it
// never skips a row: every program gets a fee value, possibly a sentinel.
type FeeStage struct {
	BaseCrawler
}

// InputColumns implements Stage
func (s *FeeStage) InputColumns() []string { return ProgramColumns }

// OutputColumns implements Stage
func (s *FeeStage) OutputColumns() []string { return FeeColumns }

// Process implements Stage. It never returns an error.
func (s *FeeStage) Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	program := ProgramFromRow(row)

	result := s.Extract(ctx, page, program.ProgramURL)
	if result.Kind == FeeFailed {
		s.log().Warn().
			Str("program", program.ProgramName).
			Str("url", program.ProgramURL).
			Str("reason", result.Reason).
			Msg("fee extraction failed")
	}

	return []dataset.Row{FeeRecord{Program: program, Fee: result.Value()}.Row()}, nil
}

// Extract scans the terms of the program page's definition lists for the
// first one carrying a fee label and returns the first non-empty definition
// belonging to that term
func (s *FeeStage) Extract(ctx context.Context, page render.Page, programURL string) FeeResult {
	if err := s.visit(ctx, page, programURL, s.Site.FeeList); err != nil {
		return FeeResult{Kind: FeeFailed, Reason: err.Error()}
	}
	s.trace(programURL, StateDone)

	for _, term := range page.QueryAll(ctx, s.Site.feeTerms()) {
		if !helpers.ContainsAny(term.Text(), s.Keywords) {
			continue
		}
		for _, definition := range term.NextUntil(s.Site.FeeTerm, s.Site.FeeDefinition) {
			if text := helpers.NormalizeSpace(definition.Text()); text != "" {
				return FeeResult{Kind: FeeOK, Text: text}
			}
		}
		return FeeResult{Kind: FeeNoData}
	}

	return FeeResult{Kind: FeeNoData}
}
