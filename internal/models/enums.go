package models

import (
	"fmt"
	"slices"
)

// WatchlistKind is one category of a user's tracked-title list.
type WatchlistKind string

const (
	KindWatch     WatchlistKind = "watch"
	KindDesired   WatchlistKind = "desired"
	KindViewed    WatchlistKind = "viewed"
	KindAbandoned WatchlistKind = "abandone"
	KindFavorites WatchlistKind = "favorites"
	KindDelayed   WatchlistKind = "delayed"
	KindReviewed  WatchlistKind = "reviewed"
)

// AllKinds returns every watchlist kind in processing order.
func AllKinds() []WatchlistKind {
	return []WatchlistKind{KindWatch, KindDesired, KindViewed, KindAbandoned, KindFavorites, KindDelayed, KindReviewed}
}

// ParseWatchlistKind returns the kind for its wire value.
func ParseWatchlistKind(s string) (WatchlistKind, error) {
	k := WatchlistKind(s)
	if !slices.Contains(AllKinds(), k) {
		return "", fmt.Errorf("unknown watchlist kind %q", s)
	}
	return k, nil
}

func (k WatchlistKind) String() string { return string(k) }

// AnimeType is the release format of a title.
type AnimeType string

const (
	TypeTV      AnimeType = "tv-serial"
	TypeOVA     AnimeType = "ova"
	TypeMovie   AnimeType = "film"
	TypeSpecial AnimeType = "special"
	TypeONA     AnimeType = "ona"
	TypeClip    AnimeType = "clip"
)

// ParseAnimeType returns the type for its wire value.
func ParseAnimeType(s string) (AnimeType, error) {
	switch t := AnimeType(s); t {
	case TypeTV, TypeOVA, TypeMovie, TypeSpecial, TypeONA, TypeClip:
		return t, nil
	}
	return "", fmt.Errorf("unknown anime type %q", s)
}

// AnimeStatus is the airing state of a title.
type AnimeStatus string

const (
	StatusAiring   AnimeStatus = "airing"
	StatusFinished AnimeStatus = "finished"
	StatusUpcoming AnimeStatus = "upcoming"
)

// ParseAnimeStatus returns the status for its wire value.
func ParseAnimeStatus(s string) (AnimeStatus, error) {
	switch st := AnimeStatus(s); st {
	case StatusAiring, StatusFinished, StatusUpcoming:
		return st, nil
	}
	return "", fmt.Errorf("unknown anime status %q", s)
}

// Action is a background pass a caller can start.
type Action string

const (
	ActionParse  Action = "parse"
	ActionExport Action = "export"
)

// ParseAction returns the action for its wire value.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionParse, ActionExport:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Module returns the module role that performs the action.
func (a Action) Module() ActionModule {
	if a == ActionExport {
		return ModuleExporter
	}
	return ModuleParser
}

// ActionModule is the role a site module plays in a pass.
type ActionModule string

const (
	ModuleParser   ActionModule = "parser"
	ModuleExporter ActionModule = "exporter"
)

// Command is a lifecycle request for a background pass.
type Command string

const (
	CommandStart Command = "start"
	CommandAsk   Command = "ask"
	CommandStop  Command = "stop"
)

// ResponseStatus is the status carried by a [CommandResponse].
type ResponseStatus string

const (
	ResponseProcessed ResponseStatus = "processed"
	ResponseDone      ResponseStatus = "done"
	ResponseFail      ResponseStatus = "fail"
	ResponseInfo      ResponseStatus = "info"
	ResponseWarning   ResponseStatus = "warning"
	ResponseEmpty     ResponseStatus = ""
)
