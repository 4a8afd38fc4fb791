package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PagePayload represents a single scraped record from one source page
type PagePayload struct {
	Team  string `json:"team"`
	Quota Quota  `json:"quota"`
}

// IsEmpty reports whether the payload carries no data (the "empty object" side of a pair)
func (p PagePayload) IsEmpty() bool {
	return p.Team == "" && !p.Quota.Valid
}

// RawResultEntry is one element of the list produced by a fetch collaborator.
// Either side may be nil.
type RawResultEntry struct {
	FirstPageData  *PagePayload `json:"firstPageData,omitempty"`
	SecondPageData *PagePayload `json:"secondPageData,omitempty"`
}

// Quota is an optional quota value as published by a page.
// The source text is kept verbatim; numeric parsing happens at comparison time.
type Quota struct {
	Value string
	Valid bool
}

// NewQuota returns a valid quota holding s
func NewQuota(s string) Quota {
	return Quota{Value: s, Valid: true}
}

// String returns the quota text, or "" when absent
func (q Quota) String() string {
	if !q.Valid {
		return ""
	}
	return q.Value
}

// MarshalJSON writes the quota as a JSON string, or null when absent
func (q Quota) MarshalJSON() ([]byte, error) {
	if !q.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value)
}

// UnmarshalJSON accepts a JSON string, a JSON number or null
func (q *Quota) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = Quota{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid quota string: %w", err)
		}
		*q = NewQuota(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quota must be a string or a number, got %s", string(data))
	}
	*q = NewQuota(n.String())
	return nil
}

// BalancedPair pairs the first-page and second-page payloads found at the same position
type BalancedPair struct {
	FirstPageData  PagePayload `json:"firstPageData"`
	SecondPageData PagePayload `json:"secondPageData"`
}

// Difference is a quota difference that may be unavailable when a quota is not numeric
type Difference struct {
	Value float64
	Valid bool
}

// String renders the difference with 2 decimal places, or "n/a"
func (d Difference) String() string {
	if !d.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", d.Value)
}

// MarshalJSON writes the difference as a number, or null when unavailable
func (d Difference) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(d.String()), nil
}

// ComparativeRecord holds the quotas published for the same team on both pages
type ComparativeRecord struct {
	Team            string     `json:"team"`
	FirstPageQuota  Quota      `json:"firstPageQuota"`
	SecondPageQuota Quota      `json:"secondPageQuota"`
	Difference      Difference `json:"difference"`
}
