package crawler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"sjsage522/tcasworker/internal/dataset"
	"sjsage522/tcasworker/internal/render"
)

// Sentinels written in place of values that could not be obtained
const (
	NoData           = "no data"
	ExtractionFailed = "extraction failed"
)

// RoundIDs are the four admission rounds, in column order
var RoundIDs = []string{"r1", "r2", "r3", "r4"}

// Output schemas, in column order
var (
	UniversityColumns = []string{"name", "catalog_url"}
	FacultyColumns    = []string{"university_name", "faculty_label"}
	FieldColumns      = []string{"university_name", "faculty_label", "field_name", "field_url"}
	ProgramColumns    = []string{"university_name", "faculty_label", "field_name", "program_name", "program_url"}
	AdmissionColumns  = withColumns(ProgramColumns, RoundIDs...)
	FeeColumns        = withColumns(ProgramColumns, "fee")
)

func withColumns(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// Stage is one extraction unit plus its dataset contract
type Stage interface {
	// Name identifies the stage in logs and summaries
	Name() string

	// InputColumns lists the columns the input dataset must carry; nil for
	// the seed stage, which reads no dataset.
	InputColumns() []string

	// OutputColumns is the fixed column order of the output dataset
	OutputColumns() []string

	// Process visits the page(s) for one input row and returns the derived
	// rows in discovery order. A returned error means the row is skipped.
	Process(ctx context.Context, page render.Page, row dataset.Row) ([]dataset.Row, error)
}

// University is one entry of the universities index
type University struct {
	Name       string
	CatalogURL string
}

// Row converts the record to a dataset row
func (u University) Row() dataset.Row {
	return dataset.Row{"name": u.Name, "catalog_url": u.CatalogURL}
}

// FacultyMatch is a faculty whose label matched the target keyword
type FacultyMatch struct {
	UniversityName string
	FacultyLabel   string
}

// Row converts the record to a dataset row
func (f FacultyMatch) Row() dataset.Row {
	return dataset.Row{"university_name": f.UniversityName, "faculty_label": f.FacultyLabel}
}

// FacultyMatchFromRow reads a FacultyMatch from a dataset row
func FacultyMatchFromRow(r dataset.Row) FacultyMatch {
	return FacultyMatch{UniversityName: r.Get("university_name"), FacultyLabel: r.Get("faculty_label")}
}

// FieldMatch is a field of study whose name matched a target keyword
type FieldMatch struct {
	UniversityName string
	FacultyLabel   string
	FieldName      string
	FieldURL       string
}

// Row converts the record to a dataset row
func (f FieldMatch) Row() dataset.Row {
	return dataset.Row{
		"university_name": f.UniversityName,
		"faculty_label":   f.FacultyLabel,
		"field_name":      f.FieldName,
		"field_url":       f.FieldURL,
	}
}

// FieldMatchFromRow reads a FieldMatch from a dataset row
func FieldMatchFromRow(r dataset.Row) FieldMatch {
	return FieldMatch{
		UniversityName: r.Get("university_name"),
		FacultyLabel:   r.Get("faculty_label"),
		FieldName:      r.Get("field_name"),
		FieldURL:       r.Get("field_url"),
	}
}

// Program is one degree program and its detail page
type Program struct {
	UniversityName string
	FacultyLabel   string
	FieldName      string
	ProgramName    string
	ProgramURL     string
}

// Row converts the record to a dataset row
func (p Program) Row() dataset.Row {
	return dataset.Row{
		"university_name": p.UniversityName,
		"faculty_label":   p.FacultyLabel,
		"field_name":      p.FieldName,
		"program_name":    p.ProgramName,
		"program_url":     p.ProgramURL,
	}
}

// ProgramFromRow reads a Program from a dataset row
func ProgramFromRow(r dataset.Row) Program {
	return Program{
		UniversityName: r.Get("university_name"),
		FacultyLabel:   r.Get("faculty_label"),
		FieldName:      r.Get("field_name"),
		ProgramName:    r.Get("program_name"),
		ProgramURL:     r.Get("program_url"),
	}
}

// AdmissionRecord carries the quota of each admission round for a program.
// Every value is a non-negative integer string or NoData.
type AdmissionRecord struct {
	Program
	Rounds [4]string
}

// Row converts the record to a dataset row
func (a AdmissionRecord) Row() dataset.Row {
	row := a.Program.Row()
	for i, id := range RoundIDs {
		row[id] = a.Rounds[i]
	}
	return row
}

// FeeRecord carries the tuition-fee text of a program
type FeeRecord struct {
	Program
	Fee string
}

// Row converts the record to a dataset row
func (f FeeRecord) Row() dataset.Row {
	row := f.Program.Row()
	row["fee"] = f.Fee
	return row
}

var facultyCodePattern = regexp.MustCompile(`^\s*(\d+)\.`)

// FacultyCode returns the numeric code a faculty label starts with, e.g.
// "12" for "12. Faculty of Engineering".
func FacultyCode(label string) (string, bool) {
	m := facultyCodePattern.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// QuotaValue converts a round-quota value for numeric use. The NoData
// sentinel, and anything else that is not a number, counts as zero.
func QuotaValue(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
