package statusserver

import (
	"sync"
	"time"

	"media-normalizer/internal/model"
	"media-normalizer/internal/progress"
)

const recentResults = 20

// Status is the JSON document served on /status.
type Status struct {
	RunID     string           `json:"run_id"`
	StartedAt string           `json:"started_at"`
	Total     int              `json:"total"`
	Index     int              `json:"index"`
	Current   *model.Job       `json:"current,omitempty"`
	Progress  *progress.Sample `json:"progress,omitempty"`
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Recent    []model.Result   `json:"recent"`
}

// Board records batch state for the status endpoint. It is both a progress
// sink and a batch observer.
type Board struct {
	mu     sync.Mutex
	status Status
}

func NewBoard(runID string) *Board {
	return &Board{status: Status{
		RunID:     runID,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Recent:    []model.Result{},
	}}
}

func (b *Board) Update(s progress.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Progress = &s
}

func (b *Board) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Progress = nil
}

func (b *Board) JobStarted(index, total int, job model.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Index = index
	b.status.Total = total
	b.status.Current = &job
	b.status.Progress = nil
}

func (b *Board) JobFinished(index, total int, res model.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch res.State {
	case model.StateSucceeded:
		b.status.Succeeded++
	case model.StateSkipped:
		b.status.Skipped++
	default:
		b.status.Failed++
	}
	b.status.Current = nil
	b.status.Recent = append(b.status.Recent, res)
	if len(b.status.Recent) > recentResults {
		b.status.Recent = b.status.Recent[len(b.status.Recent)-recentResults:]
	}
}

func (b *Board) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.status
	out.Recent = append([]model.Result(nil), b.status.Recent...)
	if b.status.Current != nil {
		job := *b.status.Current
		out.Current = &job
	}
	if b.status.Progress != nil {
		s := *b.status.Progress
		out.Progress = &s
	}
	return out
}
