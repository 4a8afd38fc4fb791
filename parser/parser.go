package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"quota-scraper/config"
	"quota-scraper/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

var quotaPattern = regexp.MustCompile(`[+-]?\d+(?:[.,]\d+)?`)

// Selectors locate the team rows of a page.
// Team and Quota are evaluated relative to each Row match.
type Selectors struct {
	Kind  string // config.SelectorCSS or config.SelectorXPath
	Row   string
	Team  string
	Quota string
}

// SelectorsFromConfig returns the selectors configured for a page
func SelectorsFromConfig(p config.PageConfig) Selectors {
	return Selectors{
		Kind:  p.SelectorKind,
		Row:   p.Row,
		Team:  p.Team,
		Quota: p.Quota,
	}
}

// Parser extracts team quotas from HTML
type Parser struct {
	sel Selectors
}

// NewParser creates a new Parser instance
func NewParser(sel Selectors) (*Parser, error) {
	if sel.Row == "" || sel.Team == "" {
		return nil, fmt.Errorf("row and team selectors are required")
	}
	switch sel.Kind {
	case "", config.SelectorCSS, config.SelectorXPath:
	default:
		return nil, fmt.Errorf("unknown selector kind %q", sel.Kind)
	}
	return &Parser{sel: sel}, nil
}

// ParseHTML extracts payloads from HTML content in document order.
// Rows without a team name are skipped.
func (p *Parser) ParseHTML(htmlContent string) ([]models.PagePayload, error) {
	if p.sel.Kind == config.SelectorXPath {
		return p.parseXPath(htmlContent)
	}
	return p.parseCSS(htmlContent)
}

func (p *Parser) parseCSS(htmlContent string) ([]models.PagePayload, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var payloads []models.PagePayload
	doc.Find(p.sel.Row).Each(func(i int, s *goquery.Selection) {
		team := normalizeWhitespace(s.Find(p.sel.Team).First().Text())
		if team == "" {
			return
		}

		payload := models.PagePayload{Team: team}
		if p.sel.Quota != "" {
			if q := s.Find(p.sel.Quota).First(); q.Length() > 0 {
				payload.Quota = extractQuota(q.Text())
			}
		}
		payloads = append(payloads, payload)
	})

	return payloads, nil
}

func (p *Parser) parseXPath(htmlContent string) ([]models.PagePayload, error) {
	doc, err := htmlquery.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rows, err := htmlquery.QueryAll(doc, p.sel.Row)
	if err != nil {
		return nil, fmt.Errorf("invalid row xpath %q: %w", p.sel.Row, err)
	}

	var payloads []models.PagePayload
	for _, row := range rows {
		teamNode, err := htmlquery.Query(row, p.sel.Team)
		if err != nil {
			return nil, fmt.Errorf("invalid team xpath %q: %w", p.sel.Team, err)
		}
		if teamNode == nil {
			continue
		}
		team := normalizeWhitespace(htmlquery.InnerText(teamNode))
		if team == "" {
			continue
		}

		payload := models.PagePayload{Team: team}
		if p.sel.Quota != "" {
			quotaNode, err := htmlquery.Query(row, p.sel.Quota)
			if err != nil {
				return nil, fmt.Errorf("invalid quota xpath %q: %w", p.sel.Quota, err)
			}
			if quotaNode != nil {
				payload.Quota = extractQuota(htmlquery.InnerText(quotaNode))
			}
		}
		payloads = append(payloads, payload)
	}

	return payloads, nil
}

// extractQuota keeps the first numeric token of text, or the whole text when it has none
func extractQuota(text string) models.Quota {
	text = normalizeWhitespace(text)
	if text == "" {
		return models.Quota{}
	}
	if token := quotaPattern.FindString(text); token != "" {
		return models.NewQuota(token)
	}
	return models.NewQuota(text)
}

// normalizeWhitespace replaces unicode whitespace (non-breaking spaces included)
// with regular spaces and collapses runs of them
func normalizeWhitespace(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
