package tasks

import "github.com/desertthunder/wlsync/internal/models"

// SameTitle reports whether a search candidate represents the queried title.
//
// Either the original name or the display name must be equal, and both type and year must be equal.
func SameTitle(query, candidate models.AnimeRecord) bool {
	if query.OriginalName != candidate.OriginalName && query.Name != candidate.Name {
		return false
	}
	return query.Type == candidate.Type && query.Year == candidate.Year
}

// Match returns the first candidate that is the same title as query.
func Match(query models.AnimeRecord, candidates []models.LinkedAnimeRecord) (models.LinkedAnimeRecord, bool) {
	for _, c := range candidates {
		if SameTitle(query, c.AnimeRecord) {
			return c, true
		}
	}
	return models.LinkedAnimeRecord{}, false
}
