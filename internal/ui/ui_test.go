package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wlsync/internal/models"
)

type fakeMonitor struct {
	mu       sync.Mutex
	progress models.ProgressState
	err      error
	dump     models.TitlesDump
	requests []models.CommandRequest
	sessions []string
}

func (f *fakeMonitor) Handle(ctx context.Context, session string, req models.CommandRequest) models.CommandResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.sessions = append(f.sessions, session)
	return models.CommandResponse{Status: models.ResponseDone}
}

func (f *fakeMonitor) Progress(ctx context.Context, session string, action models.Action) (models.ProgressState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress, f.err
}

func (f *fakeMonitor) Titles(ctx context.Context, session string, role models.ActionModule) (models.TitlesDump, error) {
	return f.dump, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send runs one command synchronously and feeds its message back.
func send(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	_, next := m.Update(cmd())
	return next
}

func TestModel(t *testing.T) {
	running := models.ProgressState{
		Running: true,
		Overall: models.Counter{Now: 2, Max: 4},
		Current: models.CurrentCounter{Watchlist: models.KindWatch, Now: 1, Max: 3},
	}

	t.Run("shows running progress", func(t *testing.T) {
		mon := &fakeMonitor{progress: running}
		m := NewModel(context.Background(), mon, Options{Session: "cli", Action: models.ActionParse})

		send(t, m, m.fetchProgress())

		view := m.View()
		for _, want := range []string{"wlsync · parse", "2/4", "1/3", "running"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected view to contain %q, got:\n%s", want, view)
			}
		}
		if !m.seenRunning {
			t.Error("expected pass to be seen running")
		}
	})

	t.Run("finishes after running", func(t *testing.T) {
		mon := &fakeMonitor{progress: running}
		m := NewModel(context.Background(), mon, Options{Action: models.ActionParse})

		send(t, m, m.fetchProgress())
		mon.progress = models.ProgressState{Overall: models.Counter{Now: 4, Max: 4}}
		send(t, m, m.fetchProgress())

		if !m.finished {
			t.Fatal("expected pass to be finished")
		}
		if !strings.Contains(m.View(), "finished") {
			t.Errorf("expected finished state, got:\n%s", m.View())
		}
	})

	t.Run("idle is not finished", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeMonitor{}, Options{})
		send(t, m, m.fetchProgress())

		if m.finished {
			t.Error("an idle pass never seen running is not finished")
		}
		if !strings.Contains(m.View(), "idle") {
			t.Errorf("expected idle state, got:\n%s", m.View())
		}
	})

	t.Run("exits when done", func(t *testing.T) {
		mon := &fakeMonitor{progress: running}
		m := NewModel(context.Background(), mon, Options{Action: models.ActionExport, ExitOnDone: true})

		send(t, m, m.fetchProgress())
		mon.progress = models.ProgressState{}
		next := send(t, m, m.fetchProgress())

		if _, ok := next().(tea.QuitMsg); !ok {
			t.Error("expected quit after the pass stopped")
		}
	})

	t.Run("stop command", func(t *testing.T) {
		mon := &fakeMonitor{}
		m := NewModel(context.Background(), mon, Options{Session: "cli", Action: models.ActionExport})

		_, cmd := m.Update(runes("s"))
		send(t, m, cmd)

		if len(mon.requests) != 1 {
			t.Fatalf("expected one command, got %d", len(mon.requests))
		}
		want := models.CommandRequest{Action: models.ActionExport, Command: models.CommandStop}
		if mon.requests[0] != want || mon.sessions[0] != "cli" {
			t.Errorf("unexpected request %+v in session %q", mon.requests[0], mon.sessions[0])
		}
		if !strings.Contains(m.View(), "stop: done") {
			t.Errorf("expected command status, got:\n%s", m.View())
		}
	})

	t.Run("titles view", func(t *testing.T) {
		mon := &fakeMonitor{dump: models.TitlesDump{
			"watch":          {"t1": models.AnimeRecord{Name: "Frieren"}.ToMapping()},
			"desired":        {"t2": models.AnimeRecord{Name: "Akira"}.ToMapping(), "t3": models.AnimeRecord{Name: "Mushishi"}.ToMapping()},
			models.ErrorsKey: {"t4": "https://src.test/anime/t4"},
		}}
		m := NewModel(context.Background(), mon, Options{Action: models.ActionParse})
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

		_, cmd := m.Update(runes("t"))
		if m.view != TitlesView {
			t.Fatal("expected titles view")
		}
		send(t, m, cmd)
		if m.titles.Title != "watch (1)" {
			t.Errorf("unexpected title %q", m.titles.Title)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.titles.Title != "desired (2)" {
			t.Errorf("unexpected title %q", m.titles.Title)
		}

		m.bucket = len(m.buckets) - 2
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.titles.Title != "errors (1)" {
			t.Errorf("unexpected title %q", m.titles.Title)
		}
		if got := m.titles.Items()[0].(titleItem).Description(); got != "https://src.test/anime/t4" {
			t.Errorf("unexpected description %q", got)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != MonitorView {
			t.Error("expected monitor view after esc")
		}
	})

	t.Run("polling error", func(t *testing.T) {
		boom := errors.New("state unavailable")
		m := NewModel(context.Background(), &fakeMonitor{err: boom}, Options{})
		send(t, m, m.fetchProgress())

		if !errors.Is(m.Err(), boom) {
			t.Errorf("expected polling error, got %v", m.Err())
		}
		if !strings.Contains(m.View(), "state unavailable") {
			t.Errorf("expected error in view, got:\n%s", m.View())
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeMonitor{}, Options{})
		_, cmd := m.Update(runes("q"))
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}
