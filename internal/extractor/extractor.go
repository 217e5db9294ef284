// Package extractor parses listing pages into records using goquery.
//
// Extraction is a pure function of the page content: no I/O, no retries.
// Missing optional fields (secondary label, annotation) become empty
// strings, and a page without row markers yields an empty record list;
// absence of data is not a parse failure.
package extractor

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

// Selectors is the layout-specific selector set, injected as
// configuration so the extractor itself stays layout-agnostic.
type Selectors struct {
	RowClass          string
	MaleAnchorClass   string
	FemaleAnchorClass string
	SecondaryClass    string
	// PaginationStyle is the style-attribute substring identifying the
	// pagination marker div.
	PaginationStyle string
}

// DefaultSelectors matches the known listing layout.
func DefaultSelectors() Selectors {
	return Selectors{
		RowClass:          "name_row",
		MaleAnchorClass:   "name_boys",
		FemaleAnchorClass: "name_girls",
		SecondaryClass:    "name_arabic",
		PaginationStyle:   "text-align:center",
	}
}

// Extractor turns one page's HTML into category-tagged records.
type Extractor struct {
	baseURL string
	sel     Selectors
}

// New builds an Extractor. Relative record URLs are resolved against
// baseURL.
func New(baseURL string, sel Selectors) *Extractor {
	return &Extractor{baseURL: strings.TrimSuffix(baseURL, "/"), sel: sel}
}

// Extract parses content into records for category, plus the total page
// count found in pagination markup. totalPages is 0 when the marker is
// missing or unparseable; the caller supplies the fallback.
func (e *Extractor) Extract(content []byte, category harvest.Category) ([]harvest.Record, int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, 0
	}

	anchorClass := e.sel.MaleAnchorClass
	if category == harvest.CategoryFemale {
		anchorClass = e.sel.FemaleAnchorClass
	}

	var records []harvest.Record
	doc.Find("div." + e.sel.RowClass).Each(func(_ int, row *goquery.Selection) {
		anchor := row.Find("a." + anchorClass).First()
		if anchor.Length() == 0 {
			return
		}
		name := strings.TrimSpace(anchor.Text())
		if name == "" {
			return
		}

		arabic := strings.TrimSpace(row.Find("b." + e.sel.SecondaryClass).First().Text())

		records = append(records, harvest.Record{
			Name:     name,
			Arabic:   arabic,
			Meaning:  rowMeaning(row),
			URL:      e.resolveURL(anchor.AttrOr("href", "")),
			Category: category,
		})
	})

	return records, e.pageCount(doc)
}

// rowMeaning takes the last non-empty line of the row text; the layout
// renders the annotation after the name and script forms.
func rowMeaning(row *goquery.Selection) string {
	lines := make([]string, 0, 4)
	for _, line := range strings.Split(row.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) > 1 {
		return lines[len(lines)-1]
	}
	return ""
}

func (e *Extractor) resolveURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.baseURL + href
}

// pageCount probes the "Page X of N" pagination marker. Returns 0 when
// absent or unparseable.
func (e *Extractor) pageCount(doc *goquery.Document) int {
	total := 0
	doc.Find("div[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := s.AttrOr("style", "")
		if !strings.Contains(style, e.sel.PaginationStyle) {
			return true
		}
		text := s.Text()
		_, after, found := strings.Cut(text, "of")
		if !found {
			return true
		}
		fields := strings.Fields(after)
		if len(fields) == 0 {
			return true
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return true
		}
		total = n
		return false
	})
	return total
}
