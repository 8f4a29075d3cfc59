package crawler

import (
	"context"
	"strconv"
	"strings"

	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
)

// RoundsStage reads the seat quota of each admission round from a program
// page
type RoundsStage struct {
	BaseCrawler
}

// InputColumns implements Stage
func (s *RoundsStage) InputColumns() []string { return ProgramColumns }

// OutputColumns implements Stage
func (s *RoundsStage) OutputColumns() []string { return AdmissionColumns }

// Process implements Stage
func (s *RoundsStage) Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error) {
	program := ProgramFromRow(row)

	rounds, err := s.Extract(ctx, page, program.ProgramURL)
	if err != nil {
		return nil, err
	}

	return []dataset.Row{AdmissionRecord{Program: program, Rounds: rounds}.Row()}, nil
}

// Extract returns exactly one value per round. A round that is missing,
// marked not open, or without a numeric quota is NoData.
func (s *RoundsStage) Extract(ctx context.Context, page render.Page, programURL string) ([4]string, error) {
	var rounds [4]string
	if err := s.visit(ctx, page, programURL, s.Site.RoundList); err != nil {
		return rounds, err
	}

	items := make(map[string]render.Element, len(RoundIDs))
	for _, item := range page.QueryAll(ctx, s.Site.roundItems()) {
		id, _ := item.Attr("id")
		if _, seen := items[id]; !seen {
			items[id] = item
		}
	}

	for i, id := range RoundIDs {
		rounds[i] = s.quota(items[id])
	}

	s.trace(programURL, StateDone)
	return rounds, nil
}

func (s *RoundsStage) quota(item render.Element) string {
	if item == nil || len(item.Find(s.Site.RoundClosed)) > 0 {
		return NoData
	}
	quota := item.Find(s.Site.RoundQuota)
	if len(quota) == 0 {
		return NoData
	}
	return normalizeQuota(quota[0].Text())
}

// normalizeQuota strips thousands separators and rejects anything that is
// not a non-negative integer
func normalizeQuota(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return NoData
	}
	return strconv.Itoa(n)
}
