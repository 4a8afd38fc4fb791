package transform

import (
	"strings"

	"quota-scraper/models"

	"github.com/shopspring/decimal"
)

// DefaultDisplayCap is the maximum number of derived records shown
const DefaultDisplayCap = 15

// Extracts splits raw entries into the first-page and second-page payload lists,
// preserving the original order. An entry contributes to each list at most once.
func Extracts(raw []models.RawResultEntry) (first, second []models.PagePayload) {
	for _, entry := range raw {
		if entry.FirstPageData != nil {
			first = append(first, *entry.FirstPageData)
		}
		if entry.SecondPageData != nil {
			second = append(second, *entry.SecondPageData)
		}
	}
	return first, second
}

// Balance pairs first-page and second-page payloads by position.
// The result length is min(len(first), len(second), limit).
func Balance(raw []models.RawResultEntry, limit int) []models.BalancedPair {
	if len(raw) == 0 || limit <= 0 {
		return []models.BalancedPair{}
	}

	first, second := Extracts(raw)
	n := min(len(first), len(second), limit)

	pairs := make([]models.BalancedPair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, models.BalancedPair{
			FirstPageData:  first[i],
			SecondPageData: second[i],
		})
	}
	return pairs
}

// Compare matches each first-page payload to the first second-page payload with the
// same team and computes firstQuota - secondQuota. Teams without a match are dropped,
// and a team repeated on the first page is only reported once.
func Compare(raw []models.RawResultEntry, limit int) []models.ComparativeRecord {
	if len(raw) == 0 || limit <= 0 {
		return []models.ComparativeRecord{}
	}

	first, second := Extracts(raw)

	// first occurrence wins
	byTeam := make(map[string]models.PagePayload, len(second))
	for _, p := range second {
		if _, ok := byTeam[p.Team]; !ok {
			byTeam[p.Team] = p
		}
	}

	seen := make(map[string]bool, len(first))
	records := make([]models.ComparativeRecord, 0, min(len(first), limit))
	for _, p := range first {
		if len(records) >= limit {
			break
		}
		if seen[p.Team] {
			continue
		}
		match, ok := byTeam[p.Team]
		if !ok {
			continue
		}
		seen[p.Team] = true
		records = append(records, models.ComparativeRecord{
			Team:            p.Team,
			FirstPageQuota:  p.Quota,
			SecondPageQuota: match.Quota,
			Difference:      Difference(p.Quota, match.Quota),
		})
	}
	return records
}

// ExtractSingle flattens entries holding one page payload into a list of payloads.
// Entries with neither side populated are skipped.
func ExtractSingle(raw []models.RawResultEntry, limit int) []models.PagePayload {
	if len(raw) == 0 || limit <= 0 {
		return []models.PagePayload{}
	}

	payloads := make([]models.PagePayload, 0, min(len(raw), limit))
	for _, entry := range raw {
		if len(payloads) >= limit {
			break
		}
		switch {
		case entry.FirstPageData != nil:
			payloads = append(payloads, *entry.FirstPageData)
		case entry.SecondPageData != nil:
			payloads = append(payloads, *entry.SecondPageData)
		}
	}
	return payloads
}

// Difference returns a - b rounded to 2 decimal places.
// The result is unavailable when either quota is missing or not numeric.
func Difference(a, b models.Quota) models.Difference {
	da, ok := ParseQuota(a)
	if !ok {
		return models.Difference{}
	}
	db, ok := ParseQuota(b)
	if !ok {
		return models.Difference{}
	}

	value, _ := da.Sub(db).Round(2).Float64()
	return models.Difference{Value: value, Valid: true}
}

// ParseQuota parses a quota into a decimal. Both "1.5" and "1,5" are accepted.
func ParseQuota(q models.Quota) (decimal.Decimal, bool) {
	if !q.Valid {
		return decimal.Zero, false
	}
	s := strings.TrimSpace(q.Value)
	if s == "" {
		return decimal.Zero, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
