package session

import (
	"quota-scraper/models"
	"quota-scraper/transform"
)

// View is what a presentation layer renders: the session timing plus one reshaped sequence
type View struct {
	Session FetchSession
	Mode    DisplayMode
	Kind    ViewKind

	Payloads []models.PagePayload
	Pairs    []models.BalancedPair
	Records  []models.ComparativeRecord
}

// CanToggle reports whether the display mode can be switched for this view
func (v View) CanToggle() bool {
	return v.Session.ComparisonMode && v.Session.HasData()
}

// BuildView reshapes the session data for the given mode.
// Single-page sessions ignore the mode.
func BuildView(s FetchSession, mode DisplayMode, limit int) View {
	v := View{Session: s, Mode: mode, Kind: ViewNone}
	if !s.HasData() {
		return v
	}

	if !s.ComparisonMode {
		v.Mode = ModeNormal
		v.Kind = ViewList
		v.Payloads = transform.ExtractSingle(s.Data, limit)
		return v
	}

	if mode == ModeComparative {
		v.Kind = ViewComparative
		v.Records = transform.Compare(s.Data, limit)
		return v
	}

	v.Kind = ViewPairs
	v.Pairs = transform.Balance(s.Data, limit)
	return v
}
