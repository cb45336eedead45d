// Package models defines the domain types shared by the fetch, storage, task and command layers.
//
// The package contains three categories of types:
//
// 1. Title records: the canonical per-title data produced by a site adapter
//   - [AnimeRecord] : Poster, names, type, genres, episode count, year and status
//   - [LinkedAnimeRecord] : An [AnimeRecord] carrying the canonical source URL, used while matching
//
// 2. Enumerations with their wire values
//   - [WatchlistKind], [AnimeType], [AnimeStatus]
//   - [Action], [ActionModule], [Command], [ResponseStatus]
//
// 3. Pass state exchanged with a polling caller
//   - [TitlesDump] : Per-kind title mappings plus the errors bucket
//   - [ProgressState] : Overall and current-watchlist counters
//   - [CommandRequest] / [CommandResponse] : The command protocol
//   - [Run] : History record of one background pass and its [TaskState]
//
// Records are persisted through their plain-mapping form ([AnimeRecord.ToMapping] and [FromMapping])
// so that every storage backend only deals with JSON-compatible scalars.
package models
