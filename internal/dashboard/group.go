// Package dashboard groups reports into severity tiers for display.
package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mr1hm/relief-hub/internal/models"
)

const (
	Placeholder  = "No description provided."
	EmptyMessage = "No disaster reports yet."
	DateLayout   = "Jan 2, 2006"
)

// Groups holds reports bucketed by normalized severity. Within a bucket,
// reports keep the order of a stable sort by state.
type Groups struct {
	High   []models.Report
	Medium []models.Report
	Low    []models.Report
}

// Group sorts by state (case-sensitive, empty first) and buckets by
// severity. Unknown severities land in medium. The input is not modified.
func Group(reports []models.Report) Groups {
	sorted := make([]models.Report, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].State < sorted[j].State
	})

	var g Groups
	for _, r := range sorted {
		r.Severity = models.NormalizeSeverity(r.Severity)
		switch r.Severity {
		case models.SeverityHigh:
			g.High = append(g.High, r)
		case models.SeverityLow:
			g.Low = append(g.Low, r)
		default:
			g.Medium = append(g.Medium, r)
		}
	}
	return g
}

func (g Groups) Tier(s models.Severity) []models.Report {
	switch s {
	case models.SeverityHigh:
		return g.High
	case models.SeverityLow:
		return g.Low
	default:
		return g.Medium
	}
}

func (g Groups) Counts() map[models.Severity]int {
	return map[models.Severity]int{
		models.SeverityHigh:   len(g.High),
		models.SeverityMedium: len(g.Medium),
		models.SeverityLow:    len(g.Low),
	}
}

func (g Groups) Len() int {
	return len(g.High) + len(g.Medium) + len(g.Low)
}

// Badge is the label shown on a card for each tier.
func Badge(s models.Severity) string {
	switch models.NormalizeSeverity(s) {
	case models.SeverityHigh:
		return "CRITICAL"
	case models.SeverityLow:
		return "NOTICE"
	default:
		return "WARNING"
	}
}

type Card struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Badge       string `json:"badge"`
	State       string `json:"state"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func NewCard(r models.Report) Card {
	sev := models.NormalizeSeverity(r.Severity)
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = Placeholder
	}
	var date string
	if !r.CreatedAt.IsZero() {
		date = r.CreatedAt.Format(DateLayout)
	}
	return Card{
		ID:          r.ID,
		Type:        r.Type,
		Severity:    string(sev),
		Badge:       Badge(sev),
		State:       r.State,
		Description: desc,
		Date:        date,
	}
}

// Detail is the expanded view of one card.
type Detail struct {
	Card
	Coordinates string `json:"coordinates,omitempty"`
	ImageRef    string `json:"imageRef,omitempty"`
	Reported    string `json:"reported,omitempty"`
}

func NewDetail(r models.Report) Detail {
	d := Detail{Card: NewCard(r), ImageRef: r.ImageRef}
	if r.HasCoordinates() {
		d.Coordinates = fmt.Sprintf("%.4f, %.4f", r.Location.Lat, r.Location.Lng)
	}
	if !r.CreatedAt.IsZero() {
		d.Reported = r.CreatedAt.Format("Jan 2, 2006 15:04 MST")
	}
	return d
}

// Section is one severity tier ready to render.
type Section struct {
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Badge    string `json:"badge"`
	Cards    []Card `json:"cards"`
}

func (g Groups) Sections() []Section {
	sections := make([]Section, 0, len(models.Tiers))
	for _, tier := range models.Tiers {
		reports := g.Tier(tier)
		cards := make([]Card, 0, len(reports))
		for _, r := range reports {
			cards = append(cards, NewCard(r))
		}
		sections = append(sections, Section{
			Severity: string(tier),
			Title:    strings.ToUpper(string(tier[:1])) + string(tier[1:]) + " Severity",
			Badge:    Badge(tier),
			Cards:    cards,
		})
	}
	return sections
}
