// Package ui implements a terminal progress monitor using bubbletea's Elm architecture.
//
// The monitor polls the command orchestrator for one session and action and provides two views:
//  1. [MonitorView] : overall and current-watchlist progress bars, pass state and the last command answer
//  2. [TitlesView] : the titles of the action's dump, one watchlist kind (or the errors bucket) at a time
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Polling is driven by [tea.Tick]; every tick fetches the progress once.
//
// Keyboard bindings (r start, s stop, t titles, tab, esc, q) show contextual help via charmbracelet/bubbles/help.
package ui
