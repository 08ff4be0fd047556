package dashboard

import (
	"context"
	"sync"

	"github.com/mr1hm/relief-hub/internal/models"
)

// Fetcher returns the full set of reports.
type Fetcher interface {
	ListDisasters(ctx context.Context) ([]models.Report, error)
}

type FetcherFunc func(ctx context.Context) ([]models.Report, error)

func (f FetcherFunc) ListDisasters(ctx context.Context) ([]models.Report, error) {
	return f(ctx)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

const FailedMessage = "Could not load disaster reports."

// Aggregator drives one dashboard: fetch once on Load, then expose either
// the grouped sections, an empty message, or a failure with a retry.
type Aggregator struct {
	fetcher Fetcher

	mu      sync.RWMutex
	status  Status
	groups  Groups
	reports map[string]models.Report
	err     error
}

func NewAggregator(f Fetcher) *Aggregator {
	return &Aggregator{fetcher: f, status: StatusIdle}
}

func (a *Aggregator) Load(ctx context.Context) error {
	a.mu.Lock()
	a.status = StatusLoading
	a.err = nil
	a.mu.Unlock()

	reports, err := a.fetcher.ListDisasters(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.status = StatusFailed
		a.err = err
		a.groups = Groups{}
		a.reports = nil
		return err
	}

	a.groups = Group(reports)
	a.reports = make(map[string]models.Report, len(reports))
	for _, r := range reports {
		a.reports[r.ID] = r
	}
	if len(reports) == 0 {
		a.status = StatusEmpty
	} else {
		a.status = StatusLoaded
	}
	return nil
}

// Retry re-runs the same fetch after a failure.
func (a *Aggregator) Retry(ctx context.Context) error {
	return a.Load(ctx)
}

func (a *Aggregator) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Aggregator) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

func (a *Aggregator) Groups() Groups {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.groups
}

// Detail opens the detail view for a loaded report.
func (a *Aggregator) Detail(id string) (Detail, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.reports[id]
	if !ok {
		return Detail{}, false
	}
	return NewDetail(r), true
}

// View is the renderable dashboard. Sections are only present when loaded.
type View struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	CanRetry bool           `json:"canRetry,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
	Sections []Section      `json:"sections,omitempty"`
}

func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v := View{Status: a.status}
	switch a.status {
	case StatusLoading:
		v.Message = "Loading disaster reports..."
	case StatusFailed:
		v.Message = FailedMessage
		v.CanRetry = true
	case StatusEmpty:
		v.Message = EmptyMessage
	case StatusLoaded:
		v.Counts = make(map[string]int, len(models.Tiers))
		for sev, n := range a.groups.Counts() {
			v.Counts[string(sev)] = n
		}
		v.Sections = a.groups.Sections()
	}
	return v
}
