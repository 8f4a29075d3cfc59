package crawler

import (
	"fmt"
	"strings"
)

// Site describes where things live on the catalog site. Every selector the
// extraction units use is defined here so a markup change is a one-line fix.
type Site struct {
	BaseURL          string
	UniversitiesPath string

	// Universities index
	UniversityLink       string
	UniversityPathPrefix string

	// University page
	FacultyLink string

	// Faculty page; the selector is scoped to the field list container
	FieldLink string

	// Field page
	ProgramLink string
	ProgramName string

	// Program page, admission rounds
	RoundList   string
	RoundItem   string // format string taking the round id
	RoundClosed string
	RoundQuota  string

	// Program page, expense details
	FeeList       string
	FeeTerm       string
	FeeDefinition string
}

// DefaultSite returns the selectors of course.mytcas.com rooted at baseURL
func DefaultSite(baseURL, universitiesPath string) Site {
	return Site{
		BaseURL:              strings.TrimRight(baseURL, "/"),
		UniversitiesPath:     universitiesPath,
		UniversityLink:       "a.brand",
		UniversityPathPrefix: "/universities/",
		FacultyLink:          "a[href*='/faculties/']",
		FieldLink:            "ul.t-field a[href*='/fields/']",
		ProgramLink:          "ul.t-program a[href*='/programs/']",
		ProgramName:          "span.name",
		RoundList:            "ul.body.t-program",
		RoundItem:            "li#%s",
		RoundClosed:          ".not-open",
		RoundQuota:           "small.receive-quota b",
		FeeList:              "dl",
		FeeTerm:              "dt",
		FeeDefinition:        "dd",
	}
}

// IndexURL is the absolute URL of the universities index
func (s Site) IndexURL() string {
	return s.BaseURL + s.UniversitiesPath
}

// roundItems selects the items of every known round inside the round list
// in one query
func (s Site) roundItems() string {
	selectors := make([]string, len(RoundIDs))
	for i, id := range RoundIDs {
		selectors[i] = s.RoundList + " " + fmt.Sprintf(s.RoundItem, id)
	}
	return strings.Join(selectors, ", ")
}

// feeTerms selects the terms that are direct children of a definition list,
// so a list nested inside a definition keeps its own terms
func (s Site) feeTerms() string {
	return s.FeeList + " > " + s.FeeTerm
}
