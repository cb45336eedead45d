package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	tu "github.com/desertthunder/wlsync/internal/testing"
)

type mockJob struct {
	name string
	ran  chan struct{}
}

func (j *mockJob) Name() string { return j.name }

func (j *mockJob) Run(ctx context.Context) error {
	select {
	case j.ran <- struct{}{}:
	default:
	}
	return nil
}

type mockStarter struct {
	mu       sync.Mutex
	err      error
	sessions []string
	actions  []models.Action
}

func (m *mockStarter) Start(ctx context.Context, session string, action models.Action) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	m.actions = append(m.actions, action)
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("task-%d", len(m.actions)), nil
}

func TestScheduler(t *testing.T) {
	logger, _ := tu.NewTestLogger()

	t.Run("runs on schedule", func(t *testing.T) {
		s := NewScheduler(logger)
		job := &mockJob{name: "tick", ran: make(chan struct{}, 1)}
		if err := s.AddJob("@every 1s", job); err != nil {
			t.Fatalf("failed to add job: %v", err)
		}

		s.Start()
		defer s.Stop()

		select {
		case <-job.ran:
		case <-time.After(3 * time.Second):
			t.Fatal("job did not run")
		}
	})

	t.Run("duplicate job", func(t *testing.T) {
		s := NewScheduler(logger)
		job := &mockJob{name: "dup", ran: make(chan struct{}, 1)}
		if err := s.AddJob("@hourly", job); err != nil {
			t.Fatalf("failed to add job: %v", err)
		}
		if err := s.AddJob("@daily", job); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("bad spec", func(t *testing.T) {
		s := NewScheduler(logger)
		err := s.AddJob("every tuesday", &mockJob{name: "bad"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("run now", func(t *testing.T) {
		s := NewScheduler(logger)
		job := &mockJob{name: "now", ran: make(chan struct{}, 1)}
		if err := s.AddJob("0 0 10 * * *", job); err != nil {
			t.Fatalf("failed to add job: %v", err)
		}
		if err := s.RunJobNow(context.Background(), "now"); err != nil {
			t.Fatalf("failed to run job now: %v", err)
		}
		select {
		case <-job.ran:
		default:
			t.Error("job did not run")
		}

		if err := s.RunJobNow(context.Background(), "missing"); err == nil {
			t.Error("expected error for unregistered job")
		}
	})

	t.Run("stop without start", func(t *testing.T) {
		NewScheduler(logger).Stop()
	})
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"*/15 * * * *", false},
		{"0 */15 * * * *", false},
		{"@daily", false},
		{"@every 2h", false},
		{"", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := ValidateSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestPassJob(t *testing.T) {
	logger, buf := tu.NewTestLogger()

	t.Run("starts under the scheduler session", func(t *testing.T) {
		starter := &mockStarter{}
		job := NewPassJob(models.ActionExport, starter, logger)

		if job.Name() != "pass_export" {
			t.Errorf("unexpected name %q", job.Name())
		}
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if starter.sessions[0] != Session || starter.actions[0] != models.ActionExport {
			t.Errorf("unexpected call %v %v", starter.sessions, starter.actions)
		}
	})

	t.Run("skips an active pass", func(t *testing.T) {
		starter := &mockStarter{err: fmt.Errorf("%w: parse", shared.ErrAlreadyActive)}
		if err := NewPassJob(models.ActionParse, starter, logger).Run(context.Background()); err != nil {
			t.Errorf("expected skip, got %v", err)
		}
		if len(buf.String()) == 0 {
			t.Error("expected skip to be logged")
		}
	})

	t.Run("reports other errors", func(t *testing.T) {
		starter := &mockStarter{err: shared.ErrModuleDisabled}
		err := NewPassJob(models.ActionParse, starter, logger).Run(context.Background())
		if !errors.Is(err, shared.ErrModuleDisabled) {
			t.Errorf("expected ErrModuleDisabled, got %v", err)
		}
	})
}
