package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

const listingPage = `
<html><body>
<div class="name_row">
  <a class="name_boys" href="/aariz">Aariz</a>
  <b class="name_arabic">عارض</b>
  Respectable man
</div>
<div class="name_row">
  <a class="name_boys" href="https://example.com/aban">Aban</a>
  <b class="name_arabic">ابان</b>
  Clear, lucid
</div>
<div class="name_row">
  <a class="name_girls" href="/aisha">Aisha</a>
  <b class="name_arabic">عائشة</b>
  Alive, prosperous
</div>
<div style="text-align:center; margin-top: 10px">Page 1 of 43</div>
</body></html>`

func TestExtractRecords(t *testing.T) {
	t.Parallel()

	e := New("https://muslimnames.com", DefaultSelectors())
	records, total := e.Extract([]byte(listingPage), harvest.CategoryMale)

	require.Len(t, records, 2)
	require.Equal(t, 43, total)

	require.Equal(t, harvest.Record{
		Name:     "Aariz",
		Arabic:   "عارض",
		Meaning:  "Respectable man",
		URL:      "https://muslimnames.com/aariz",
		Category: harvest.CategoryMale,
	}, records[0])

	// Absolute hrefs pass through unresolved.
	require.Equal(t, "https://example.com/aban", records[1].URL)
}

func TestExtractFemaleAnchors(t *testing.T) {
	t.Parallel()

	e := New("https://muslimnames.com", DefaultSelectors())
	records, _ := e.Extract([]byte(listingPage), harvest.CategoryFemale)

	require.Len(t, records, 1)
	require.Equal(t, "Aisha", records[0].Name)
	require.Equal(t, harvest.CategoryFemale, records[0].Category)
}

func TestExtractMissingOptionalFields(t *testing.T) {
	t.Parallel()

	page := `<div class="name_row"><a class="name_boys" href="/omar">Omar</a></div>`
	e := New("https://muslimnames.com", DefaultSelectors())
	records, total := e.Extract([]byte(page), harvest.CategoryMale)

	require.Len(t, records, 1)
	require.Equal(t, "Omar", records[0].Name)
	require.Empty(t, records[0].Arabic)
	require.Empty(t, records[0].Meaning)
	require.Zero(t, total)
}

func TestExtractSkipsRowsWithoutAnchor(t *testing.T) {
	t.Parallel()

	page := `
<div class="name_row"><b class="name_arabic">عمر</b></div>
<div class="name_row"><a class="name_boys" href="/x">  </a></div>`
	e := New("https://muslimnames.com", DefaultSelectors())
	records, _ := e.Extract([]byte(page), harvest.CategoryMale)

	require.Empty(t, records)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	e := New("https://muslimnames.com", DefaultSelectors())
	records, total := e.Extract([]byte("<html><body></body></html>"), harvest.CategoryMale)

	require.Empty(t, records)
	require.Zero(t, total)
}

func TestPageCountUnparseable(t *testing.T) {
	t.Parallel()

	e := New("https://muslimnames.com", DefaultSelectors())

	for _, page := range []string{
		`<div style="text-align:center">Page 1</div>`,
		`<div style="text-align:center">Page 1 of soon</div>`,
		`<div style="float:left">Page 1 of 43</div>`,
	} {
		_, total := e.Extract([]byte(page), harvest.CategoryMale)
		require.Zero(t, total, "page %q", page)
	}
}
