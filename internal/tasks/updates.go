package tasks

import (
	"fmt"

	"github.com/desertthunder/wlsync/internal/models"
)

// ProgressUpdate represents a progress event during a pass.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Prepare Phase = iota
	Enumerate
	FetchTitles
	Reconcile
	Persist
	ExportTitles
	Finished
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case Enumerate:
		return "enumerate"
	case FetchTitles:
		return "fetch_titles"
	case Reconcile:
		return "reconcile"
	case Persist:
		return "persist"
	case ExportTitles:
		return "export_titles"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func prepareUpdate(module string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prepare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Preparing module %s...", module),
	}
}

func enumerateUpdate(kind models.WatchlistKind, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Enumerate,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Reading %s watchlist...", kind),
	}
}

func titleUpdate(phase Phase, step, total int, out outcome) ProgressUpdate {
	mark := "✓"
	switch {
	case out.err != nil:
		mark = "✗"
	case out.skipped:
		mark = "-"
	}
	msg := fmt.Sprintf("[%d/%d] %s %s", step, total, mark, out.key)
	if out.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, out.err)
	}
	return ProgressUpdate{Phase: phase, Step: step, Total: total, Message: msg, Data: out.key}
}

func reconcileUpdate(kind models.WatchlistKind, deleted int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d stale %s titles", deleted, kind),
	}
}

func persistUpdate(kind models.WatchlistKind, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved %s watchlist (%d failed)", kind, failed),
	}
}

func finishedUpdate(res *PassResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    res.Processed,
		Total:   res.Processed,
		Message: fmt.Sprintf("%s of %s finished: %d processed, %d failed", res.Action, res.Module, res.Processed, res.Failed),
		Data:    res,
	}
}
