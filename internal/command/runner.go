package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/state"
	"github.com/desertthunder/wlsync/internal/tasks"
)

// TaskFunc is the body of a background pass.
type TaskFunc func(ctx context.Context) (*tasks.PassResult, error)

// TaskInfo is the state of a submitted task as read by any process sharing the state store.
type TaskInfo struct {
	ID          string            `json:"id"`
	Action      models.Action     `json:"action"`
	Module      string            `json:"module"`
	State       models.TaskState  `json:"state"`
	Error       string            `json:"error,omitempty"`
	Result      *tasks.PassResult `json:"result,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// TaskRunner runs passes in the background.
type TaskRunner interface {
	// Submit enqueues fn and returns the task id.
	Submit(ctx context.Context, action models.Action, module string, fn TaskFunc) (string, error)
	Status(ctx context.Context, id string) (TaskInfo, error)
	// Revoke terminates the task. Completed titles are kept.
	Revoke(ctx context.Context, id string) error
}

// RunRecorder stores the history of runs.
type RunRecorder interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
}

// LocalRunner is a [TaskRunner] executing each task on its own goroutine.
//
// Task states are mirrored into the state store under "task/<id>", so a process sharing the store can
// poll them. A task revoked by another process is cancelled once its owner polls the mark.
type LocalRunner struct {
	state  state.Store
	runs   RunRecorder
	logger *log.Logger
	poll   time.Duration

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	closed bool
}

// LocalRunnerOpts contains the dependencies of a [LocalRunner].
type LocalRunnerOpts struct {
	State  state.Store
	Runs   RunRecorder // nil disables run history
	Logger *log.Logger
	// PollInterval is how often a running task checks the store for a revoke. Defaults to 500ms.
	PollInterval time.Duration
}

// NewLocalRunner creates a [LocalRunner].
func NewLocalRunner(opts LocalRunnerOpts) *LocalRunner {
	if opts.State == nil {
		opts.State = state.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	base, stop := context.WithCancel(context.Background())
	return &LocalRunner{
		state:  opts.State,
		runs:   opts.Runs,
		logger: shared.WithLogger(opts.Logger, "component", "runner"),
		poll:   opts.PollInterval,
		base:   base,
		stop:   stop,
		cancel: make(map[string]context.CancelFunc),
	}
}

func taskKey(id string) string { return "task/" + id }

// Submit starts fn in the background. The task outlives ctx; use [LocalRunner.Revoke] to stop it.
func (r *LocalRunner) Submit(ctx context.Context, action models.Action, module string, fn TaskFunc) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", shared.ErrRunnerClosed
	}

	info := TaskInfo{
		ID:          shared.GenerateID(),
		Action:      action,
		Module:      module,
		State:       models.TaskPending,
		SubmittedAt: time.Now(),
	}
	if err := state.SetJSON(ctx, r.state, taskKey(info.ID), info); err != nil {
		return "", err
	}

	run := r.createRun(info)

	taskCtx, cancel := context.WithCancel(r.base)
	r.cancel[info.ID] = cancel
	r.wg.Add(1)
	go r.execute(taskCtx, cancel, info.ID, run, fn)

	r.logger.Info("task submitted", "id", info.ID, "action", action, "module", module)
	return info.ID, nil
}

func (r *LocalRunner) execute(ctx context.Context, cancel context.CancelFunc, id string, run *models.Run, fn TaskFunc) {
	defer r.wg.Done()
	defer r.forget(id)

	if !r.transition(id, models.TaskRunning, nil, nil) {
		if run != nil {
			run.Finish(models.TaskRevoked, 0, 0, nil)
			r.updateRun(run)
		}
		return
	}
	if run != nil {
		run.Status = models.TaskRunning
		r.updateRun(run)
	}

	done := make(chan struct{})
	go r.watch(ctx, cancel, id, done)
	res, err := fn(ctx)
	close(done)

	status := models.TaskSuccess
	switch {
	case ctx.Err() != nil:
		status = models.TaskRevoked
	case err != nil:
		status = models.TaskFailure
		r.logger.Error("task failed", "id", id, "error", err)
	default:
		r.logger.Info("task finished", "id", id)
	}
	r.transition(id, status, res, err)

	if run != nil {
		processed, failed := 0, 0
		if res != nil {
			processed, failed = res.Processed, res.Failed
		}
		run.Finish(status, processed, failed, err)
		r.updateRun(run)
	}
}

// watch cancels the task when the store shows it revoked by another process.
func (r *LocalRunner) watch(ctx context.Context, cancel context.CancelFunc, id string, done <-chan struct{}) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var info TaskInfo
		ok, err := state.GetJSON(ctx, r.state, taskKey(id), &info)
		if err != nil {
			r.logger.Debug("failed to poll task state", "id", id, "error", err)
			continue
		}
		if ok && info.State == models.TaskRevoked {
			r.logger.Info("task revoked remotely", "id", id)
			cancel()
			return
		}
	}
}

// transition moves a task to next unless it is already done. It reports whether the task moved.
func (r *LocalRunner) transition(id string, next models.TaskState, res *tasks.PassResult, taskErr error) bool {
	moved := false
	err := state.UpdateJSON(context.Background(), r.state, taskKey(id), func(info *TaskInfo, ok bool) bool {
		if !ok || info.State.Done() {
			return false
		}
		info.State = next
		info.Result = res
		if taskErr != nil {
			info.Error = taskErr.Error()
		}
		if next.Done() {
			now := time.Now()
			info.FinishedAt = &now
		}
		moved = true
		return true
	})
	if err != nil {
		r.logger.Warn("failed to update task state", "id", id, "state", next, "error", err)
	}
	return moved
}

// Status reads the task state.
func (r *LocalRunner) Status(ctx context.Context, id string) (TaskInfo, error) {
	var info TaskInfo
	ok, err := state.GetJSON(ctx, r.state, taskKey(id), &info)
	if err != nil {
		return info, err
	}
	if !ok {
		return info, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	return info, nil
}

// Revoke marks the task revoked and cancels it when this runner owns it.
func (r *LocalRunner) Revoke(ctx context.Context, id string) error {
	if _, err := r.Status(ctx, id); err != nil {
		return err
	}
	r.transition(id, models.TaskRevoked, nil, nil)

	r.mu.Lock()
	cancel, ok := r.cancel[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	r.logger.Info("task revoked", "id", id, "local", ok)
	return nil
}

// Wait blocks until every submitted task has returned.
func (r *LocalRunner) Wait() {
	r.wg.Wait()
}

// Close revokes running tasks and waits for them.
func (r *LocalRunner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
	return nil
}

func (r *LocalRunner) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancel[id]; ok {
		cancel()
		delete(r.cancel, id)
	}
}

func (r *LocalRunner) createRun(info TaskInfo) *models.Run {
	if r.runs == nil {
		return nil
	}
	run := models.NewRun(info.ID, info.Action, info.Module)
	if err := r.runs.Create(run); err != nil {
		r.logger.Warn("failed to record run", "id", info.ID, "error", err)
		return nil
	}
	return run
}

func (r *LocalRunner) updateRun(run *models.Run) {
	if err := r.runs.Update(run); err != nil && !errors.Is(err, shared.ErrTaskNotFound) {
		r.logger.Warn("failed to update run", "id", run.TaskID, "error", err)
	}
}
