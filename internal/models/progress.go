package models

// Counter is a now/max pair.
type Counter struct {
	Now int `json:"now"`
	Max int `json:"max"`
}

// CurrentCounter is the counter of the watchlist being processed.
type CurrentCounter struct {
	Watchlist WatchlistKind `json:"watchlist"`
	Now       int           `json:"now"`
	Max       int           `json:"max"`
}

// ProgressState is the progress of one running pass as seen by a polling caller.
type ProgressState struct {
	Running bool           `json:"running"`
	Overall Counter        `json:"overall"`
	Current CurrentCounter `json:"current"`
}

// Percent returns overall completion in [0, 100].
func (p ProgressState) Percent() int {
	return percent(p.Overall.Now, p.Overall.Max)
}

// CurrentPercent returns current-watchlist completion in [0, 100].
func (p ProgressState) CurrentPercent() int {
	return percent(p.Current.Now, p.Current.Max)
}

func percent(now, max int) int {
	if max <= 0 {
		return 0
	}
	if now >= max {
		return 100
	}
	return now * 100 / max
}
