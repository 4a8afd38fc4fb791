package session

import (
	"errors"
	"time"

	"quota-scraper/models"

	"github.com/google/uuid"
)

var (
	// ErrFetchInFlight is returned when a fetch is triggered while another one is running
	ErrFetchInFlight = errors.New("a fetch is already in flight")
	// ErrToggleUnavailable is returned when the view cannot switch modes
	ErrToggleUnavailable = errors.New("display mode toggle requires comparison mode with data")
	// ErrClosed is returned by an orchestrator after Close
	ErrClosed = errors.New("orchestrator closed")
)

// FetchSession records one fetch: when it ran, what it asked for and what came back
type FetchSession struct {
	ID             uuid.UUID
	StartedAt      time.Time
	EndedAt        *time.Time
	WantFirst      bool
	WantSecond     bool
	ComparisonMode bool
	InFlight       bool

	// Data is nil until the fetch succeeds
	Data []models.RawResultEntry
	// Err holds the fetch failure, if any
	Err error
}

// HasData reports whether the session holds displayable data
func (s FetchSession) HasData() bool {
	return !s.InFlight && s.Data != nil
}

// Duration returns how long the fetch took, or zero while it is running
func (s FetchSession) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// DisplayMode selects how comparison-mode data is shown
type DisplayMode int

const (
	ModeNormal DisplayMode = iota
	ModeComparative
)

func (m DisplayMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeComparative:
		return "comparative"
	default:
		return "unknown"
	}
}

// ViewKind names the shape of the data in a View
type ViewKind string

const (
	ViewNone        ViewKind = "none"
	ViewList        ViewKind = "list"
	ViewPairs       ViewKind = "pairs"
	ViewComparative ViewKind = "comparative"
)
