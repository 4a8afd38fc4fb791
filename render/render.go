package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"quota-scraper/session"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Title describes what the view shows
func Title(v session.View) string {
	s := v.Session
	switch {
	case s.ComparisonMode && v.Mode == session.ModeComparative:
		return "Both pages (comparative view)"
	case s.ComparisonMode:
		return "Both pages"
	case s.WantFirst:
		return "First page"
	case s.WantSecond:
		return "Second page"
	default:
		return "No pages requested"
	}
}

// Status returns a one-line summary for views without data, or "" when there is data
func Status(v session.View, ok bool) string {
	switch {
	case !ok:
		return "No fetch has been run yet."
	case v.Session.InFlight:
		return "Fetching data..."
	case v.Session.Err != nil:
		return fmt.Sprintf("Fetch failed: %v", v.Session.Err)
	case v.Kind == session.ViewNone:
		return "No data."
	default:
		return ""
	}
}

// Headers returns the column names for the view kind
func Headers(kind session.ViewKind) []string {
	switch kind {
	case session.ViewList:
		return []string{"#", "Team", "Quota"}
	case session.ViewPairs:
		return []string{"#", "First page team", "Quota", "Second page team", "Quota"}
	case session.ViewComparative:
		return []string{"#", "Team", "First page", "Second page", "Difference"}
	default:
		return nil
	}
}

// Rows returns the table body for the view, numbered from 1
func Rows(v session.View) [][]string {
	var rows [][]string
	switch v.Kind {
	case session.ViewList:
		for i, p := range v.Payloads {
			rows = append(rows, []string{fmt.Sprint(i + 1), p.Team, quotaText(p.Quota.String())})
		}
	case session.ViewPairs:
		for i, p := range v.Pairs {
			rows = append(rows, []string{
				fmt.Sprint(i + 1),
				p.FirstPageData.Team, quotaText(p.FirstPageData.Quota.String()),
				p.SecondPageData.Team, quotaText(p.SecondPageData.Quota.String()),
			})
		}
	case session.ViewComparative:
		for i, r := range v.Records {
			rows = append(rows, []string{
				fmt.Sprint(i + 1),
				r.Team,
				quotaText(r.FirstPageQuota.String()),
				quotaText(r.SecondPageQuota.String()),
				r.Difference.String(),
			})
		}
	}
	return rows
}

// Timing returns the start and end lines of the session
func Timing(s session.FetchSession) []string {
	lines := []string{"Started: " + formatTime(&s.StartedAt)}
	if s.InFlight {
		return lines
	}
	return append(lines, "Ended:   "+formatTime(s.EndedAt))
}

// Console writes the view as a table followed by the session timing
func Console(w io.Writer, v session.View, ok bool) error {
	var sb strings.Builder

	if ok {
		sb.WriteString(titleStyle.Render(Title(v)))
		sb.WriteString("\n")
	}

	if status := Status(v, ok); status != "" {
		sb.WriteString(status)
		sb.WriteString("\n")
	} else {
		rows := Rows(v)
		if len(rows) == 0 {
			sb.WriteString("No matching entries.\n")
		} else {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers(Headers(v.Kind)...).
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})
			sb.WriteString(t.String())
			sb.WriteString("\n")
		}
	}

	if ok {
		for _, line := range Timing(v.Session) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Text formats the view as plain lines for chat messages
func Text(v session.View, ok bool) string {
	var sb strings.Builder

	if ok {
		sb.WriteString(Title(v))
		sb.WriteString("\n\n")
	}

	if status := Status(v, ok); status != "" {
		sb.WriteString(status)
		sb.WriteString("\n")
	} else {
		rows := Rows(v)
		if len(rows) == 0 {
			sb.WriteString("No matching entries.\n")
		}
		for _, row := range rows {
			sb.WriteString(textLine(v.Kind, row))
			sb.WriteString("\n")
		}
	}

	if ok {
		sb.WriteString("\n")
		for _, line := range Timing(v.Session) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func textLine(kind session.ViewKind, row []string) string {
	switch kind {
	case session.ViewPairs:
		return fmt.Sprintf("%s. %s %s | %s %s", row[0], row[1], row[2], row[3], row[4])
	case session.ViewComparative:
		return fmt.Sprintf("%s. %s: %s vs %s (diff %s)", row[0], row[1], row[2], row[3], row[4])
	default:
		return fmt.Sprintf("%s. %s %s", row[0], row[1], row[2])
	}
}

func quotaText(q string) string {
	if q == "" {
		return "-"
	}
	return q
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}
