package parser

import (
	"testing"

	"quota-scraper/config"
	"quota-scraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotaTable = `<html><body>
<table id="quotas">
  <tr class="match"><td class="team">  Real&nbsp;Madrid </td><td class="quota">(1.50)</td></tr>
  <tr class="match"><td class="team">Boca
      Juniors</td><td class="quota">2,25</td></tr>
  <tr class="match"><td class="team"></td><td class="quota">9.99</td></tr>
  <tr class="match"><td class="team">River Plate</td></tr>
  <tr class="match"><td class="team">Nacional</td><td class="quota">evens</td></tr>
</table>
</body></html>`

func TestNewParser(t *testing.T) {
	_, err := NewParser(Selectors{Row: "tr"})
	assert.Error(t, err)

	_, err = NewParser(Selectors{Kind: "regex", Row: "tr", Team: "td"})
	assert.Error(t, err)

	_, err = NewParser(Selectors{Row: "tr", Team: "td"})
	assert.NoError(t, err)
}

func TestParseHTML(t *testing.T) {
	expected := []models.PagePayload{
		{Team: "Real Madrid", Quota: models.NewQuota("1.50")},
		{Team: "Boca Juniors", Quota: models.NewQuota("2,25")},
		{Team: "River Plate"},
		{Team: "Nacional", Quota: models.NewQuota("evens")},
	}

	tests := []struct {
		name string
		sel  Selectors
	}{
		{
			name: "css",
			sel:  Selectors{Kind: config.SelectorCSS, Row: "tr.match", Team: "td.team", Quota: "td.quota"},
		},
		{
			name: "xpath",
			sel: Selectors{
				Kind:  config.SelectorXPath,
				Row:   `//tr[@class="match"]`,
				Team:  `./td[@class="team"]`,
				Quota: `./td[@class="quota"]`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParser(tt.sel)
			require.NoError(t, err)

			got, err := p.ParseHTML(quotaTable)
			require.NoError(t, err)
			assert.Equal(t, expected, got)
		})
	}
}

func TestParseHTMLWithoutQuotaSelector(t *testing.T) {
	p, err := NewParser(Selectors{Row: "tr.match", Team: "td.team"})
	require.NoError(t, err)

	got, err := p.ParseHTML(quotaTable)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, payload := range got {
		assert.False(t, payload.Quota.Valid)
	}
}

func TestParseHTMLInvalidXPath(t *testing.T) {
	p, err := NewParser(Selectors{Kind: config.SelectorXPath, Row: "//tr[", Team: "./td"})
	require.NoError(t, err)

	_, err = p.ParseHTML(quotaTable)
	assert.Error(t, err)
}

func TestSelectorsFromConfig(t *testing.T) {
	sel := SelectorsFromConfig(config.PageConfig{SelectorKind: config.SelectorXPath, Row: "r", Team: "t", Quota: "q"})
	assert.Equal(t, Selectors{Kind: config.SelectorXPath, Row: "r", Team: "t", Quota: "q"}, sel)
}

func TestExtractQuota(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Quota
	}{
		{"plain decimal", "1.85", models.NewQuota("1.85")},
		{"wrapped", "(2.10)", models.NewQuota("2.10")},
		{"comma decimal", "1,5", models.NewQuota("1,5")},
		{"with label", "Quota: 3", models.NewQuota("3")},
		{"signed", "-120", models.NewQuota("-120")},
		{"no number", "  sus pended ", models.NewQuota("sus pended")},
		{"empty", "   ", models.Quota{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractQuota(tt.input))
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "Real Madrid", normalizeWhitespace(" Real \t\n Madrid "))
	assert.Equal(t, "", normalizeWhitespace(" \n "))
}
