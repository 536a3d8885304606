package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// RunSummary is a read model summarizing one run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Site           string        `json:"site"`
	Kinds          []string      `json:"kinds"`
	Status         string        `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	StepCount      int           `json:"step_count"`
	StepsCompleted int           `json:"steps_completed"`
	Sections       int           `json:"sections"`
	Items          int           `json:"items"`
	Pages          int           `json:"pages"`
	FailedStep     string        `json:"failed_step,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// HistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type HistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary
	maxSize int
}

// NewHistoryProjection creates a projection keeping at most maxSize runs.
func NewHistoryProjection(store Store, maxSize int) *HistoryProjection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &HistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		maxSize: maxSize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *HistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.Between(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = make(map[string]*RunSummary)
	for _, e := range events {
		p.applyLocked(e)
	}
	p.pruneLocked()
	return nil
}

// Apply processes a single event.
func (p *HistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
	p.pruneLocked()
}

func (p *HistoryProjection) applyLocked(e Event) {
	if e.RunID == "" {
		return
	}
	s, ok := p.runs[e.RunID]
	if !ok {
		s = &RunSummary{RunID: e.RunID, Status: StatusRunning, StartedAt: e.At}
		p.runs[e.RunID] = s
	}

	switch e.Type {
	case TypeRunStarted:
		var payload RunStartedPayload
		if e.Decode(&payload) == nil {
			s.Site = payload.Site
			s.Kinds = payload.Kinds
			s.StepCount = len(payload.Steps)
		}
		s.StartedAt = e.At

	case TypeStepCompleted:
		var payload StepCompletedPayload
		if e.Decode(&payload) == nil && payload.Error == "" {
			s.StepsCompleted++
		}

	case TypeRunCompleted:
		p.complete(s, e.At, StatusSuccess)
		var payload RunCompletedPayload
		if e.Decode(&payload) == nil {
			s.Sections = payload.Sections
			s.Items = payload.Items
			s.Pages = payload.Pages
		}

	case TypeRunFailed:
		var payload RunFailedPayload
		status := StatusFailed
		if e.Decode(&payload) == nil {
			if payload.Outcome == StatusCanceled {
				status = StatusCanceled
			}
			s.FailedStep = payload.Step
			s.ErrorMessage = payload.Error
		}
		p.complete(s, e.At, status)
	}
}

func (p *HistoryProjection) complete(s *RunSummary, at time.Time, status string) {
	s.CompletedAt = &at
	s.Duration = at.Sub(s.StartedAt)
	s.Status = status
}

// pruneLocked drops the oldest finished runs beyond maxSize. Running runs
// are always kept.
func (p *HistoryProjection) pruneLocked() {
	finished := make([]*RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		if s.Status != StatusRunning {
			finished = append(finished, s)
		}
	}
	if len(finished) <= p.maxSize {
		return
	}
	sortNewestFirst(finished)
	for _, s := range finished[p.maxSize:] {
		delete(p.runs, s.RunID)
	}
}

func sortNewestFirst(runs []*RunSummary) {
	slices.SortStableFunc(runs, func(a, b *RunSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
}

// History returns copies of all known runs, newest first.
func (p *HistoryProjection) History() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	runs := make([]*RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		runs = append(runs, s)
	}
	sortNewestFirst(runs)

	out := make([]RunSummary, len(runs))
	for i, s := range runs {
		out[i] = *s
		out[i].Kinds = slices.Clone(s.Kinds)
	}
	return out
}

// Run returns the summary for a specific run.
func (p *HistoryProjection) Run(id string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[id]
	if !ok {
		return RunSummary{}, false
	}
	cp := *s
	cp.Kinds = slices.Clone(s.Kinds)
	return cp, true
}

// LastCompleted returns the most recently started run that has finished.
func (p *HistoryProjection) LastCompleted() (RunSummary, bool) {
	for _, s := range p.History() {
		if s.Status != StatusRunning {
			return s, true
		}
	}
	return RunSummary{}, false
}
