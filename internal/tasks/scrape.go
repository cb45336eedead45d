package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
	"github.com/desertthunder/wlsync/internal/store"
)

// ScrapeEngine reads a source platform's watchlists into a [store.TitleStore].
type ScrapeEngine struct {
	source  sites.Source
	fetcher fetch.Fetcher
	store   store.TitleStore
	tracker *ProgressTracker
	logger  *log.Logger
	opts    EngineOpts
}

// NewScrapeEngine creates a [ScrapeEngine]. tracker may be nil.
func NewScrapeEngine(src sites.Source, f fetch.Fetcher, s store.TitleStore, tracker *ProgressTracker, logger *log.Logger, opts EngineOpts) *ScrapeEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ScrapeEngine{
		source:  src,
		fetcher: f,
		store:   s,
		tracker: tracker,
		logger:  shared.WithLogger(logger, "module", src.Config().Name, "action", models.ActionParse),
		opts:    opts,
	}
}

// Run scrapes every watchlist kind in order.
//
// A kind whose listing cannot be read is logged and skipped. Storage failures and cancellation end
// the pass.
func (e *ScrapeEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*PassResult, error) {
	res := &PassResult{Action: models.ActionParse, Module: e.source.Config().Name}
	countKnown := false

	kinds := models.AllKinds()
	for i, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sendProgress(progress, enumerateUpdate(kind, i+1, len(kinds)))

		kr, err := e.scrapeKind(ctx, kind, &countKnown, progress)
		if kr != nil {
			res.add(kr)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || isStorageErr(err) {
			return res, err
		}
		e.logger.Error("watchlist skipped", "kind", kind, "error", err)
	}

	sendProgress(progress, finishedUpdate(res))
	return res, nil
}

// ScrapeKind runs ENUMERATE, FETCH_ALL, RECONCILE and PERSIST for one kind.
//
// It returns a nil result when the platform has no listing for kind.
func (e *ScrapeEngine) ScrapeKind(ctx context.Context, kind models.WatchlistKind, progress chan<- ProgressUpdate) (*KindResult, error) {
	countKnown := true
	return e.scrapeKind(ctx, kind, &countKnown, progress)
}

func (e *ScrapeEngine) scrapeKind(ctx context.Context, kind models.WatchlistKind, countKnown *bool, progress chan<- ProgressUpdate) (*KindResult, error) {
	u, ok := e.source.WatchlistURL(kind)
	if !ok {
		e.logger.Debug("no listing for watchlist", "kind", kind)
		return nil, nil
	}

	page, err := e.fetcher.Get(ctx, fetch.Request{Kind: kind, URL: u, Reload: true})
	if err != nil {
		return nil, err
	}

	if !*countKnown {
		if n := e.source.CountTitles(page.Body); n > 0 {
			e.track(ctx, func(t *ProgressTracker) error { return t.SetOverallMax(ctx, n) })
			*countKnown = true
		}
	}

	titles, err := e.source.Enumerate(kind, page.Body)
	if err != nil {
		return nil, err
	}

	bucket := string(kind)
	if err := e.store.PrepareData(ctx, bucket, false); err != nil {
		return nil, wrapStorage(err)
	}
	keys, err := e.store.Keys(ctx, bucket)
	if err != nil {
		return nil, wrapStorage(err)
	}
	existing := make(map[string]bool, len(keys))
	for _, k := range keys {
		existing[k] = true
	}

	if !*countKnown {
		e.track(ctx, func(t *ProgressTracker) error { return t.AddOverallMax(ctx, len(titles)) })
	}
	e.track(ctx, func(t *ProgressTracker) error { return t.InitializeCurrent(ctx, kind, 0, len(titles)) })

	jobs := make([]job, 0, len(titles))
	for key, titleURL := range titles {
		jobs = append(jobs, job{key: key, url: titleURL})
	}
	jobs = sortedJobs(jobs)

	kr := &KindResult{Kind: kind, Enumerated: len(titles)}
	failed := make(map[string]any)
	var succeeded []string
	var storeErr error
	step := 0

	process := func(ctx context.Context, j job) outcome {
		return e.scrapeTitle(ctx, kind, j, existing[j.key])
	}
	runJobs(ctx, e.opts.workers(), jobs, process, func(out outcome) {
		step++
		switch {
		case out.err != nil:
			kr.Failed++
			failed[out.key] = out.url
			if kr.Errors == nil {
				kr.Errors = make(map[string]string)
			}
			kr.Errors[out.key] = out.err.Error()
			if isStorageErr(out.err) && storeErr == nil {
				storeErr = out.err
			}
			e.logger.Warn("title aborted", "kind", kind, "key", out.key, "url", out.url, "error", out.err)
		case out.skipped:
			kr.Skipped++
		default:
			kr.Stored++
			succeeded = append(succeeded, out.key)
		}
		e.track(ctx, func(t *ProgressTracker) error { return t.IncrementCurrent(ctx, true) })
		sendProgress(progress, titleUpdate(FetchTitles, step, len(jobs), out))
	})

	if err := ctx.Err(); err != nil {
		return kr, err
	}
	if storeErr != nil {
		return kr, storeErr
	}

	deleted, err := e.reconcile(ctx, kind, titles, failed, succeeded)
	if err != nil {
		return kr, wrapStorage(err)
	}
	kr.Deleted = deleted
	sendProgress(progress, reconcileUpdate(kind, deleted))

	if err := e.store.SaveData(ctx); err != nil {
		e.logger.Error("failed to save titles dump", "kind", kind, "error", err)
		return kr, wrapStorage(err)
	}
	sendProgress(progress, persistUpdate(kind, kr.Failed))
	return kr, nil
}

// scrapeTitle fetches and parses one title. Failures are returned in the outcome.
func (e *ScrapeEngine) scrapeTitle(ctx context.Context, kind models.WatchlistKind, j job, stored bool) outcome {
	out := outcome{key: j.key, url: j.url}
	if stored && !e.opts.ForceUpdate {
		out.skipped = true
		return out
	}

	page, err := e.fetcher.Get(ctx, fetch.Request{Kind: kind, URL: j.url, Filename: j.key})
	if err != nil {
		out.err = err
		return out
	}

	rec, err := e.source.Parse(page.Body)
	if err != nil {
		out.err = err
		return out
	}

	if err := store.SetRecord(ctx, e.store, string(kind), j.key, rec.Record()); err != nil {
		out.err = fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return out
}

// reconcile deletes stale keys of kind and merges this pass's failures into the errors bucket.
//
// A key is stale when it is stored but no longer listed. Keys held in the errors bucket are kept.
// Keys that succeeded this pass leave the errors bucket.
func (e *ScrapeEngine) reconcile(ctx context.Context, kind models.WatchlistKind, listed map[string]string, failed map[string]any, succeeded []string) (int, error) {
	if err := e.store.PrepareData(ctx, models.ErrorsKey, false); err != nil {
		return 0, err
	}
	if len(succeeded) > 0 {
		if err := e.store.Delete(ctx, models.ErrorsKey, succeeded...); err != nil {
			return 0, err
		}
	}
	if len(failed) > 0 {
		if err := e.store.Update(ctx, models.ErrorsKey, failed); err != nil {
			return 0, err
		}
	}

	errored, err := e.store.Keys(ctx, models.ErrorsKey)
	if err != nil {
		return 0, err
	}
	stored, err := e.store.Keys(ctx, string(kind))
	if err != nil {
		return 0, err
	}

	current := make(map[string]bool, len(listed))
	for k := range listed {
		current[k] = true
	}
	protected := make(map[string]bool, len(errored))
	for _, k := range errored {
		protected[k] = true
	}

	stale := staleKeys(stored, current, protected)
	if len(stale) == 0 {
		return 0, nil
	}
	e.logger.Info("removing stale titles", "kind", kind, "keys", stale)
	if err := e.store.Delete(ctx, string(kind), stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (e *ScrapeEngine) track(ctx context.Context, fn func(t *ProgressTracker) error) {
	trackProgress(ctx, e.tracker, e.logger, fn)
}

func trackProgress(ctx context.Context, t *ProgressTracker, logger *log.Logger, fn func(t *ProgressTracker) error) {
	if t == nil {
		return
	}
	if err := fn(t); err != nil && ctx.Err() == nil {
		logger.Warn("failed to update progress", "error", err)
	}
}

// wrapStorage marks err as a storage failure.
func wrapStorage(err error) error {
	if err == nil || isStorageErr(err) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
}

func isStorageErr(err error) bool {
	return errors.Is(err, shared.ErrStoreIO) || errors.Is(err, shared.ErrStoreSave) ||
		errors.Is(err, shared.ErrBucketNotFound) || errors.Is(err, shared.ErrBadPath)
}
