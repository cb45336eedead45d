package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wlsync/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTick MsgKind = iota
	MsgProgressFetched
	MsgTitlesFetched
	MsgCommandDone
)

type progressResult struct {
	progress models.ProgressState
	err      error
}

type titlesResult struct {
	dump models.TitlesDump
	err  error
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// progressFetchedMsg is the constructor for [MsgProgressFetched]
func progressFetchedMsg(p models.ProgressState, err error) Msg {
	return Msg{kind: MsgProgressFetched, data: progressResult{p, err}}
}

// titlesFetchedMsg is the constructor for [MsgTitlesFetched]
func titlesFetchedMsg(dump models.TitlesDump, err error) Msg {
	return Msg{kind: MsgTitlesFetched, data: titlesResult{dump, err}}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(cmd models.Command, resp models.CommandResponse) Msg {
	return Msg{
		kind: MsgCommandDone,
		data: struct {
			cmd  models.Command
			resp models.CommandResponse
		}{cmd, resp},
	}
}
