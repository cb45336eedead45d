package tasks

import (
	"context"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/state"
)

// ProgressTracker holds the [models.ProgressState] of one pass in a shared [state.Store].
//
// Every operation is a single read-modify-write of the store, so workers may call them concurrently.
type ProgressTracker struct {
	store state.Store
	key   string
}

// NewProgressTracker creates a tracker writing under the session's progress key for module.
func NewProgressTracker(s state.Store, session string, module models.ActionModule) *ProgressTracker {
	return &ProgressTracker{store: s, key: state.Key(session, module, state.FieldProgress)}
}

// Key returns the state key holding the progress.
func (t *ProgressTracker) Key() string { return t.key }

// Initialize replaces the whole state.
func (t *ProgressTracker) Initialize(ctx context.Context, running bool, now, max int) error {
	return state.SetJSON(ctx, t.store, t.key, models.ProgressState{
		Running: running,
		Overall: models.Counter{Now: now, Max: max},
	})
}

// InitializeCurrent starts a fresh current-watchlist block without touching the overall counter.
func (t *ProgressTracker) InitializeCurrent(ctx context.Context, kind models.WatchlistKind, now, max int) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Current = models.CurrentCounter{Watchlist: kind, Now: now, Max: max}
	})
}

// IncrementOverall advances the overall counter.
func (t *ProgressTracker) IncrementOverall(ctx context.Context) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Overall.Now++
	})
}

// IncrementCurrent advances the current-watchlist counter and, with alsoOverall, the overall one.
func (t *ProgressTracker) IncrementCurrent(ctx context.Context, alsoOverall bool) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Current.Now++
		if alsoOverall {
			p.Overall.Now++
		}
	})
}

// SetOverallMax replaces the overall maximum.
func (t *ProgressTracker) SetOverallMax(ctx context.Context, max int) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Overall.Max = max
	})
}

// AddOverallMax grows the overall maximum by n.
func (t *ProgressTracker) AddOverallMax(ctx context.Context, n int) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Overall.Max += n
	})
}

// Finish clears the running flag and keeps the counters for the final poll.
func (t *ProgressTracker) Finish(ctx context.Context) error {
	return t.update(ctx, func(p *models.ProgressState) {
		p.Running = false
	})
}

// Reset removes the state.
func (t *ProgressTracker) Reset(ctx context.Context) error {
	return t.store.Delete(ctx, t.key)
}

// State returns the current progress. A missing state reads as the zero value.
func (t *ProgressTracker) State(ctx context.Context) (models.ProgressState, error) {
	var p models.ProgressState
	_, err := state.GetJSON(ctx, t.store, t.key, &p)
	return p, err
}

func (t *ProgressTracker) update(ctx context.Context, fn func(p *models.ProgressState)) error {
	return state.UpdateJSON(ctx, t.store, t.key, func(p *models.ProgressState, _ bool) bool {
		fn(p)
		return true
	})
}
