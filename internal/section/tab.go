// Package section turns a parsed scrape result into a presentation-neutral
// description of one tab.
package section

import (
	"fmt"

	"github.com/xcrape/xcrape/internal/payload"
)

// TabID names one section of a result
type TabID string

const (
	TabOverview     TabID = "overview"
	TabMeta         TabID = "meta"
	TabHeadings     TabID = "headings"
	TabLinks        TabID = "links"
	TabImages       TabID = "images"
	TabText         TabID = "text"
	TabTables       TabID = "tables"
	TabLists        TabID = "lists"
	TabTechnologies TabID = "technologies"
	TabSocial       TabID = "social"
	TabStructured   TabID = "structured"
	TabStats        TabID = "stats"
	TabRaw          TabID = "raw"
	// TabError is the only tab of an error result
	TabError TabID = "error"
)

// SuccessTabs lists the tabs of a successful result in display order
var SuccessTabs = []TabID{
	TabOverview,
	TabMeta,
	TabHeadings,
	TabLinks,
	TabImages,
	TabText,
	TabTables,
	TabLists,
	TabTechnologies,
	TabSocial,
	TabStructured,
	TabStats,
	TabRaw,
}

var tabLabels = map[TabID]string{
	TabOverview:     "Overview",
	TabMeta:         "Meta",
	TabHeadings:     "Headings",
	TabLinks:        "Links",
	TabImages:       "Images",
	TabText:         "Text",
	TabTables:       "Tables",
	TabLists:        "Lists",
	TabTechnologies: "Tech",
	TabSocial:       "Social",
	TabStructured:   "Structured",
	TabStats:        "Stats",
	TabRaw:          "Raw",
	TabError:        "Error",
}

// Label is the short name shown in the tab bar
func (t TabID) Label() string {
	if l, ok := tabLabels[t]; ok {
		return l
	}
	return string(t)
}

// ParseTabID validates a tab name. "screenshot" is accepted for the overview.
func ParseTabID(s string) (TabID, error) {
	if s == "screenshot" {
		return TabOverview, nil
	}
	t := TabID(s)
	if _, ok := tabLabels[t]; !ok {
		return "", fmt.Errorf("invalid tab: %s", s)
	}
	return t, nil
}

// TabsFor returns the tabs offered for a payload. NoData has none.
func TabsFor(p payload.Payload) []TabID {
	switch p.(type) {
	case *payload.SuccessResult:
		return append([]TabID(nil), SuccessTabs...)
	case *payload.ErrorResult:
		return []TabID{TabError}
	default:
		return nil
	}
}

// Offers reports whether tab is one of the tabs for p
func Offers(p payload.Payload, tab TabID) bool {
	for _, t := range TabsFor(p) {
		if t == tab {
			return true
		}
	}
	return false
}

// DefaultTab is the tab a freshly opened result starts on: the error view for
// error results, the capture when there is one, the metadata otherwise.
func DefaultTab(p payload.Payload) (TabID, bool) {
	switch v := p.(type) {
	case *payload.ErrorResult:
		return TabError, true
	case *payload.SuccessResult:
		if v.HasScreenshot() {
			return TabOverview, true
		}
		return TabMeta, true
	default:
		return "", false
	}
}
