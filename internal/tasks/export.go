package tasks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
	"github.com/desertthunder/wlsync/internal/store"
)

// ExportEngine creates target platform watchlist entries for the records of a source dump.
//
// The exporter's own store keeps the refreshed record of every exported title under its kind and,
// under the errors bucket, {kind: {title key: original record}} for titles that failed.
type ExportEngine struct {
	target  sites.Target
	fetcher fetch.Fetcher
	store   store.TitleStore
	tracker *ProgressTracker
	logger  *log.Logger
	opts    EngineOpts
}

// NewExportEngine creates an [ExportEngine]. tracker may be nil.
func NewExportEngine(tgt sites.Target, f fetch.Fetcher, s store.TitleStore, tracker *ProgressTracker, logger *log.Logger, opts EngineOpts) *ExportEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ExportEngine{
		target:  tgt,
		fetcher: f,
		store:   s,
		tracker: tracker,
		logger:  shared.WithLogger(logger, "module", tgt.Config().Name, "action", models.ActionExport),
		opts:    opts,
	}
}

// Run exports every kind of dump in order. Kinds without a target action are skipped.
func (e *ExportEngine) Run(ctx context.Context, dump models.TitlesDump, progress chan<- ProgressUpdate) (*PassResult, error) {
	res := &PassResult{Action: models.ActionExport, Module: e.target.Config().Name}

	var kinds []models.WatchlistKind
	total := 0
	for _, kind := range dump.Kinds() {
		if !e.target.SupportsAction(kind) {
			e.logger.Warn("unknown action, watchlist skipped", "kind", kind, "titles", len(dump[string(kind)]))
			continue
		}
		kinds = append(kinds, kind)
		total += len(dump[string(kind)])
	}
	e.track(ctx, func(t *ProgressTracker) error { return t.SetOverallMax(ctx, total) })

	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		kr, err := e.ExportKind(ctx, kind, dump[string(kind)], progress)
		if kr != nil {
			res.add(kr)
		}
		if err != nil {
			return res, err
		}
	}

	sendProgress(progress, finishedUpdate(res))
	return res, nil
}

// ExportKind exports the titles of one kind. titles maps title keys to stored record mappings.
//
// Only storage failures and cancellation are returned; per-title failures land in the errors bucket.
func (e *ExportEngine) ExportKind(ctx context.Context, kind models.WatchlistKind, titles map[string]any, progress chan<- ProgressUpdate) (*KindResult, error) {
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

	e.track(ctx, func(t *ProgressTracker) error { return t.InitializeCurrent(ctx, kind, 0, len(titles)) })

	jobs := make([]job, 0, len(titles))
	for key, raw := range titles {
		jobs = append(jobs, job{key: key, raw: raw})
	}
	jobs = sortedJobs(jobs)

	kr := &KindResult{Kind: kind, Enumerated: len(titles)}
	failed := make(map[string]any)
	var succeeded []string
	var storeErr error
	step := 0

	process := func(ctx context.Context, j job) outcome {
		return e.exportTitle(ctx, kind, j, existing[j.key])
	}
	runJobs(ctx, e.opts.workers(), jobs, process, func(out outcome) {
		step++
		switch {
		case out.err != nil:
			kr.Failed++
			failed[out.key] = out.raw
			if kr.Errors == nil {
				kr.Errors = make(map[string]string)
			}
			kr.Errors[out.key] = out.err.Error()
			if isStorageErr(out.err) && storeErr == nil {
				storeErr = out.err
			}
			e.logger.Warn("title not exported", "kind", kind, "key", out.key, "error", out.err)
		case out.skipped:
			kr.Skipped++
		default:
			kr.Stored++
			succeeded = append(succeeded, out.key)
		}
		e.track(ctx, func(t *ProgressTracker) error { return t.IncrementCurrent(ctx, true) })
		sendProgress(progress, titleUpdate(ExportTitles, step, len(jobs), out))
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
		e.logger.Error("failed to save export dump", "kind", kind, "error", err)
		return kr, wrapStorage(err)
	}
	if kr.Failed > 0 {
		e.logger.Error("titles not exported", "kind", kind, "count", kr.Failed)
	}
	sendProgress(progress, persistUpdate(kind, kr.Failed))
	return kr, nil
}

// exportTitle searches, matches, submits and stores one title.
func (e *ExportEngine) exportTitle(ctx context.Context, kind models.WatchlistKind, j job, exported bool) outcome {
	out := outcome{key: j.key, raw: j.raw}
	if exported && !e.opts.ForceUpdate {
		out.skipped = true
		return out
	}

	m, ok := j.raw.(map[string]any)
	if !ok {
		out.err = fmt.Errorf("%w: %s is %T", shared.ErrBadRecord, j.key, j.raw)
		return out
	}
	query, err := models.FromMapping(m)
	if err != nil {
		out.err = fmt.Errorf("%w: %s: %v", shared.ErrBadRecord, j.key, err)
		return out
	}

	searchURL := e.target.SearchURL(query.OriginalName)
	page, err := e.fetcher.Get(ctx, fetch.Request{
		Kind:     kind,
		URL:      searchURL,
		Filename: fetch.FilenameFromURL(searchURL),
		NoSave:   true,
	})
	if err != nil {
		out.err = err
		return out
	}

	candidates, err := e.target.ParseSearchResults(page.Body)
	if err != nil {
		out.err = err
		return out
	}
	found, ok := Match(query, candidates)
	if !ok {
		out.err = fmt.Errorf("%w: %q among %d results", shared.ErrNoMatch, query.OriginalName, len(candidates))
		return out
	}

	titlePage, err := e.fetcher.Get(ctx, fetch.Request{
		Kind:     kind,
		URL:      found.Link,
		Filename: fetch.FilenameFromURL(found.Link),
	})
	if err != nil {
		out.err = err
		return out
	}

	actionURL, err := e.target.LocateAction(titlePage.Body, kind)
	if err != nil {
		out.err = err
		return out
	}
	if _, err := e.fetcher.Get(ctx, fetch.Request{
		Kind:     kind,
		URL:      actionURL,
		Method:   http.MethodPost,
		Filename: fetch.FilenameFromURL(actionURL),
		NoSave:   true,
	}); err != nil {
		out.err = err
		return out
	}

	refreshed := query
	if full, err := e.target.Parse(titlePage.Body); err == nil {
		refreshed = full.Record()
	} else {
		e.logger.Warn("keeping source record, title page not parsed", "key", j.key, "error", err)
	}

	if err := store.SetRecord(ctx, e.store, string(kind), j.key, refreshed); err != nil {
		out.err = fmt.Errorf("%w: %v", shared.ErrStoreIO, err)
	}
	return out
}

// reconcile merges failures into errors[kind], drops succeeded keys from it and deletes exported
// keys that left the source dump. Keys held in errors[kind] are kept.
func (e *ExportEngine) reconcile(ctx context.Context, kind models.WatchlistKind, source map[string]any, failed map[string]any, succeeded []string) (int, error) {
	if err := e.store.PrepareData(ctx, models.ErrorsKey, false); err != nil {
		return 0, err
	}

	errored := make(map[string]any)
	prev, err := e.store.Get(ctx, models.ErrorsKey, string(kind))
	if err == nil {
		if m, ok := prev.(map[string]any); ok {
			errored = m
		}
	}
	for _, k := range succeeded {
		delete(errored, k)
	}
	for k, v := range failed {
		errored[k] = v
	}

	if len(errored) > 0 {
		if err := e.store.Set(ctx, models.ErrorsKey, string(kind), errored); err != nil {
			return 0, err
		}
	} else if prev != nil {
		if err := e.store.Delete(ctx, models.ErrorsKey, string(kind)); err != nil {
			return 0, err
		}
	}

	stored, err := e.store.Keys(ctx, string(kind))
	if err != nil {
		return 0, err
	}
	current := make(map[string]bool, len(source))
	for k := range source {
		current[k] = true
	}
	protected := make(map[string]bool, len(errored))
	for k := range errored {
		protected[k] = true
	}

	stale := staleKeys(stored, current, protected)
	if len(stale) == 0 {
		return 0, nil
	}
	e.logger.Info("removing stale exported titles", "kind", kind, "keys", stale)
	if err := e.store.Delete(ctx, string(kind), stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (e *ExportEngine) track(ctx context.Context, fn func(t *ProgressTracker) error) {
	trackProgress(ctx, e.tracker, e.logger, fn)
}
