package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/web"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MonitorView ViewState = iota
	TitlesView
)

const (
	defaultInterval = time.Second
	barWidth        = 48
)

// Monitor is the command protocol as seen by the TUI. [command.Orchestrator] implements it.
type Monitor interface {
	Handle(ctx context.Context, session string, req models.CommandRequest) models.CommandResponse
	Progress(ctx context.Context, session string, action models.Action) (models.ProgressState, error)
	Titles(ctx context.Context, session string, role models.ActionModule) (models.TitlesDump, error)
}

// Options selects what the monitor watches.
type Options struct {
	Session  string
	Action   models.Action
	Interval time.Duration // polling interval, defaults to one second
	// ExitOnDone quits once a pass seen running has stopped.
	ExitOnDone bool
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	monitor     Monitor
	opts        Options
	view        ViewState
	width       int
	height      int
	overall     progress.Model
	current     progress.Model
	state       models.ProgressState
	seenRunning bool
	finished    bool
	status      string
	statusKind  models.ResponseStatus
	buckets     []string
	bucket      int
	dump        models.TitlesDump
	titles      list.Model
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model polling monitor for the session's action.
func NewModel(ctx context.Context, monitor Monitor, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Action == "" {
		opts.Action = models.ActionParse
	}

	buckets := make([]string, 0, len(models.AllKinds())+1)
	for _, k := range models.AllKinds() {
		buckets = append(buckets, string(k))
	}
	buckets = append(buckets, models.ErrorsKey)

	titles := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	titles.Title = listTitle(buckets[0], 0)

	return &Model{
		ctx:     ctx,
		monitor: monitor,
		opts:    opts,
		view:    MonitorView,
		overall: progress.New(progress.WithGradient(colorTitle, colorOK), progress.WithWidth(barWidth)),
		current: progress.New(progress.WithSolidFill(colorOK), progress.WithWidth(barWidth)),
		buckets: buckets,
		titles:  titles,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts polling.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchProgress(), m.fetchTitles())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if w := msg.Width - 20; w > 10 && w < barWidth {
			m.overall.Width = w
			m.current.Width = w
		}
		m.titles.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == TitlesView {
		var cmd tea.Cmd
		m.titles, cmd = m.titles.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTick:
		cmds := []tea.Cmd{m.fetchProgress()}
		if m.view == TitlesView {
			cmds = append(cmds, m.fetchTitles())
		}
		return m, tea.Batch(cmds...)

	case MsgProgressFetched:
		res := msg.data.(progressResult)
		m.err = res.err
		if res.err != nil {
			return m, m.tick()
		}

		m.state = res.progress
		if m.state.Running {
			m.seenRunning = true
			m.finished = false
			return m, m.tick()
		}
		if m.seenRunning && !m.finished {
			m.finished = true
			if m.opts.ExitOnDone {
				return m, tea.Quit
			}
			return m, tea.Batch(m.fetchTitles(), m.tick())
		}
		return m, m.tick()

	case MsgTitlesFetched:
		res := msg.data.(titlesResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.dump = res.dump
		return m, m.refreshTitles()

	case MsgCommandDone:
		data := msg.data.(struct {
			cmd  models.Command
			resp models.CommandResponse
		})
		m.statusKind = data.resp.Status
		m.status = fmt.Sprintf("%s: %s", data.cmd, statusText(data.resp.Status))
		if data.cmd == models.CommandStart && data.resp.Status != models.ResponseFail {
			m.seenRunning = false
			m.finished = false
		}
		return m, m.fetchProgress()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == TitlesView && m.titles.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.titles, cmd = m.titles.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.start):
		return m, m.command(models.CommandStart)
	case key.Matches(msg, m.keys.stop):
		return m, m.command(models.CommandStop)
	case key.Matches(msg, m.keys.titles):
		if m.view == MonitorView {
			m.view = TitlesView
			return m, m.fetchTitles()
		}
		m.view = MonitorView
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.view = MonitorView
		return m, nil
	case key.Matches(msg, m.keys.tab) && m.view == TitlesView:
		m.bucket = (m.bucket + 1) % len(m.buckets)
		return m, m.refreshTitles()
	}

	if m.view == TitlesView {
		var cmd tea.Cmd
		m.titles, cmd = m.titles.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case TitlesView:
		return m.renderTitles()
	default:
		return m.renderMonitor()
	}
}

func (m *Model) renderMonitor() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("wlsync · %s", m.opts.Action)))
	b.WriteString("\n")

	p := m.state
	fmt.Fprintf(&b, "%s%s %d/%d\n",
		styles.label.Render("overall"), m.overall.ViewAs(float64(p.Percent())/100), p.Overall.Now, p.Overall.Max)

	watchlist := string(p.Current.Watchlist)
	if watchlist == "" {
		watchlist = "-"
	}
	fmt.Fprintf(&b, "%s%s %d/%d\n\n",
		styles.label.Render(watchlist), m.current.ViewAs(float64(p.CurrentPercent())/100), p.Current.Now, p.Current.Max)

	switch {
	case p.Running:
		b.WriteString(styles.ok.Render("● running"))
	case m.finished:
		b.WriteString(styles.ok.Render("✓ finished"))
	default:
		b.WriteString(styles.help.Render("○ idle"))
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(statusStyle(m.statusKind).Render(m.status))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.start, m.keys.stop, m.keys.titles, m.keys.quit}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderTitles() string {
	helpKeys := []key.Binding{m.keys.tab, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.titles.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) refreshTitles() tea.Cmd {
	bucket := m.buckets[m.bucket]
	items := web.TitleItems(bucket, m.dump)
	m.titles.Title = listTitle(bucket, len(items))
	return m.titles.SetItems(titleItems(items))
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) fetchProgress() tea.Cmd {
	return func() tea.Msg {
		p, err := m.monitor.Progress(m.ctx, m.opts.Session, m.opts.Action)
		return progressFetchedMsg(p, err)
	}
}

func (m *Model) fetchTitles() tea.Cmd {
	return func() tea.Msg {
		dump, err := m.monitor.Titles(m.ctx, m.opts.Session, m.opts.Action.Module())
		return titlesFetchedMsg(dump, err)
	}
}

func (m *Model) command(cmd models.Command) tea.Cmd {
	return func() tea.Msg {
		resp := m.monitor.Handle(m.ctx, m.opts.Session, models.CommandRequest{Action: m.opts.Action, Command: cmd})
		return commandDoneMsg(cmd, resp)
	}
}

// State returns the last progress read.
func (m *Model) State() models.ProgressState { return m.state }

// Err returns the last polling error.
func (m *Model) Err() error { return m.err }

func statusText(s models.ResponseStatus) string {
	if s == models.ResponseEmpty {
		return "no answer"
	}
	return string(s)
}
