// Package mapview filters reports by region and derives map pins.
package mapview

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mr1hm/relief-hub/internal/models"
)

// All disables region filtering.
const All = "all"

type Fetcher interface {
	ListDisasters(ctx context.Context) ([]models.Report, error)
}

type FetcherFunc func(ctx context.Context) ([]models.Report, error)

func (f FetcherFunc) ListDisasters(ctx context.Context) ([]models.Report, error) {
	return f(ctx)
}

// Pin is a map marker. Only reports with valid nested coordinates get one.
type Pin struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	State    string  `json:"state"`
	Severity string  `json:"severity"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Apply keeps reports whose state equals selection exactly (everything for
// All) and stable-sorts them by state.
func Apply(reports []models.Report, selection string) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if selection == All || r.State == selection {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].State < out[j].State
	})
	return out
}

func Pins(reports []models.Report) []Pin {
	pins := make([]Pin, 0, len(reports))
	for _, r := range reports {
		if !r.HasCoordinates() {
			continue
		}
		pins = append(pins, Pin{
			ID:       r.ID,
			Type:     r.Type,
			State:    r.State,
			Severity: string(models.NormalizeSeverity(r.Severity)),
			Lat:      r.Location.Lat,
			Lng:      r.Location.Lng,
		})
	}
	return pins
}

// States lists the distinct non-empty states, sorted, for building the
// region selector.
func States(reports []models.Report) []string {
	seen := make(map[string]bool)
	var states []string
	for _, r := range reports {
		if r.State != "" && !seen[r.State] {
			seen[r.State] = true
			states = append(states, r.State)
		}
	}
	sort.Strings(states)
	return states
}

// Filter holds the region selection and the last successful result for it.
type Filter struct {
	fetcher Fetcher

	mu        sync.RWMutex
	selection string
	list      []models.Report
	err       error
}

func NewFilter(f Fetcher) *Filter {
	return &Filter{fetcher: f, selection: All}
}

// Select changes the region and refetches. The new selection sticks even
// if the fetch fails.
func (f *Filter) Select(ctx context.Context, state string) error {
	state = strings.TrimSpace(state)
	if state == "" || strings.EqualFold(state, All) {
		state = All
	}
	f.mu.Lock()
	f.selection = state
	f.mu.Unlock()

	return f.Refresh(ctx)
}

// Refresh refetches for the current selection. On failure the list is
// cleared and Err reports the inline error.
func (f *Filter) Refresh(ctx context.Context) error {
	reports, err := f.fetcher.ListDisasters(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.err = err
		f.list = nil
		return err
	}
	f.err = nil
	f.list = Apply(reports, f.selection)
	return nil
}

func (f *Filter) Selection() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selection
}

func (f *Filter) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// List is every filtered report, with or without coordinates.
func (f *Filter) List() []models.Report {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Report, len(f.list))
	copy(out, f.list)
	return out
}

func (f *Filter) Pins() []Pin {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Pins(f.list)
}

const ErrorMessage = "Could not load disaster reports for this region."

type View struct {
	Selection string          `json:"selection"`
	Error     string          `json:"error,omitempty"`
	Pins      []Pin           `json:"pins"`
	List      []models.Report `json:"list"`
}

func (f *Filter) View() View {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v := View{
		Selection: f.selection,
		Pins:      Pins(f.list),
		List:      make([]models.Report, len(f.list)),
	}
	copy(v.List, f.list)
	if f.err != nil {
		v.Error = ErrorMessage
	}
	return v
}
