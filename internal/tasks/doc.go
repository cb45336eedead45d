// Package tasks runs watchlist passes between a source and a target platform with progress reporting.
//
// # Core Operations
//
//  1. [ScrapeEngine.Run] : source platform → title store
//     - Reads each watchlist listing and enumerates {title key: URL}
//     - Fetches and parses every title concurrently into the kind's bucket
//     - Deletes titles that left the listing, keeping titles held in the errors bucket
//     - Merges failed titles into the errors bucket and saves the store
//
//  2. [ExportEngine.Run] : title store → target platform
//     - Searches the target for each record's original name
//     - Matches candidates with [SameTitle] (name or original name, plus type and year)
//     - Submits the kind's list action and stores the refreshed record
//     - Keeps the original record of every failed title under errors[kind]
//
//  3. [ActionService] : module enablement, preparation, store selection and the export fallback
//     that parses the source first when its dump is empty
//
// # Progress Reporting
//
// # Two channels of progress exist
//
// [ProgressTracker] keeps the polled [models.ProgressState] in a shared state store. Engines also
// send [ProgressUpdate] values on an optional channel for CLI and UI rendering. Channel updates use
// select with default to prevent blocking.
package tasks
