package tasks

import (
	"context"
	"sort"
	"sync"

	"github.com/desertthunder/wlsync/internal/models"
)

// EngineOpts contains the settings shared by [ScrapeEngine] and [ExportEngine].
type EngineOpts struct {
	Workers     int  // pool size when Multithread is set, defaults to 1
	Multithread bool // use_multithreads
	ForceUpdate bool // update_json_dumps: reprocess titles already stored
}

func (o EngineOpts) workers() int {
	if !o.Multithread || o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// KindResult summarizes one watchlist kind of a pass.
type KindResult struct {
	Kind       models.WatchlistKind `json:"kind"`
	Enumerated int                  `json:"enumerated"`
	Stored     int                  `json:"stored"`
	Skipped    int                  `json:"skipped"`
	Failed     int                  `json:"failed"`
	Deleted    int                  `json:"deleted"`
	Errors     map[string]string    `json:"errors,omitempty"` // title key -> error message
}

// PassResult summarizes a whole pass.
type PassResult struct {
	Action    models.Action `json:"action"`
	Module    string        `json:"module"`
	Kinds     []KindResult  `json:"kinds"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
}

func (r *PassResult) add(k *KindResult) {
	r.Kinds = append(r.Kinds, *k)
	r.Processed += k.Stored + k.Skipped + k.Failed
	r.Failed += k.Failed
}

// job is one title handed to a worker.
type job struct {
	key string
	url string // source title URL, empty for export jobs
	raw any    // stored value, nil for scrape jobs
}

// outcome is the result of one job.
type outcome struct {
	key     string
	url     string
	raw     any
	skipped bool
	err     error
}

// sortedJobs orders jobs by title key so sequential runs are reproducible.
func sortedJobs(jobs []job) []job {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].key < jobs[j].key })
	return jobs
}

// runJobs processes every job and calls done with each outcome as soon as it is known.
//
// With one worker the jobs run on the calling goroutine. Otherwise a pool of workers consumes a
// jobs channel and done runs on the calling goroutine as results arrive. runJobs returns after
// every started job has reported, so callers may read the store afterwards. Jobs not yet started
// when ctx is cancelled are dropped.
func runJobs(ctx context.Context, workers int, jobs []job, process func(context.Context, job) outcome, done func(outcome)) {
	if workers <= 1 {
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			done(process(ctx, j))
		}
		return
	}

	queue := make(chan job, len(jobs))
	results := make(chan outcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker(ctx, &wg, queue, results, process)
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		done(out)
	}
}

// worker is a worker goroutine that processes jobs from the queue.
func worker(ctx context.Context, wg *sync.WaitGroup, queue <-chan job, results chan<- outcome, process func(context.Context, job) outcome) {
	defer wg.Done()

	for j := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- process(ctx, j)
	}
}

// staleKeys returns the stored keys missing from current that are not protected.
func staleKeys(stored []string, current map[string]bool, protected map[string]bool) []string {
	var stale []string
	for _, k := range stored {
		if !current[k] && !protected[k] {
			stale = append(stale, k)
		}
	}
	return stale
}
