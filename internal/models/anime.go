package models

import (
	"fmt"
	"slices"
)

// AnimeRecord is the canonical data of one title as parsed from a site page.
type AnimeRecord struct {
	Poster       string      `json:"poster"`
	Name         string      `json:"name"`
	OriginalName string      `json:"original_name"`
	OtherNames   []string    `json:"other_names"`
	Type         AnimeType   `json:"type"`
	Genres       []string    `json:"genres"`
	EpCount      *int        `json:"ep_count"`
	Year         int         `json:"year"`
	Status       AnimeStatus `json:"status"`
}

// LinkedAnimeRecord is an [AnimeRecord] with the URL it was parsed from.
//
// Search result cards only fill Name, OriginalName, Type, Year and Link.
type LinkedAnimeRecord struct {
	AnimeRecord
	Link string `json:"link"`
}

// Record drops the link.
func (l LinkedAnimeRecord) Record() AnimeRecord {
	return l.AnimeRecord
}

// Equal reports whether both records carry the same values.
func (r AnimeRecord) Equal(o AnimeRecord) bool {
	if r.Poster != o.Poster || r.Name != o.Name || r.OriginalName != o.OriginalName ||
		r.Type != o.Type || r.Year != o.Year || r.Status != o.Status {
		return false
	}
	if (r.EpCount == nil) != (o.EpCount == nil) {
		return false
	}
	if r.EpCount != nil && *r.EpCount != *o.EpCount {
		return false
	}
	return slices.Equal(r.OtherNames, o.OtherNames) && slices.Equal(r.Genres, o.Genres)
}

// ToMapping returns the plain-mapping form of the record with enums written as their values.
func (r AnimeRecord) ToMapping() map[string]any {
	var ep any
	if r.EpCount != nil {
		ep = *r.EpCount
	}
	return map[string]any{
		"poster":        r.Poster,
		"name":          r.Name,
		"original_name": r.OriginalName,
		"other_names":   stringsToAny(r.OtherNames),
		"type":          string(r.Type),
		"genres":        stringsToAny(r.Genres),
		"ep_count":      ep,
		"year":          r.Year,
		"status":        string(r.Status),
	}
}

// FromMapping builds a record from its plain-mapping form.
//
// Numbers may arrive as int, int64 or float64 depending on the backend that decoded them.
// An empty name list decodes to nil.
func FromMapping(m map[string]any) (AnimeRecord, error) {
	var r AnimeRecord
	var err error

	if r.Poster, err = stringField(m, "poster"); err != nil {
		return r, err
	}
	if r.Name, err = stringField(m, "name"); err != nil {
		return r, err
	}
	if r.OriginalName, err = stringField(m, "original_name"); err != nil {
		return r, err
	}
	if r.OtherNames, err = stringsField(m, "other_names"); err != nil {
		return r, err
	}
	if r.Genres, err = stringsField(m, "genres"); err != nil {
		return r, err
	}

	typ, err := stringField(m, "type")
	if err != nil {
		return r, err
	}
	if typ != "" {
		if r.Type, err = ParseAnimeType(typ); err != nil {
			return r, err
		}
	}

	status, err := stringField(m, "status")
	if err != nil {
		return r, err
	}
	if status != "" {
		if r.Status, err = ParseAnimeStatus(status); err != nil {
			return r, err
		}
	}

	if v, ok := m["ep_count"]; ok && v != nil {
		n, err := intValue(v)
		if err != nil {
			return r, fmt.Errorf("field ep_count: %w", err)
		}
		r.EpCount = &n
	}

	if v, ok := m["year"]; ok && v != nil {
		if r.Year, err = intValue(v); err != nil {
			return r, fmt.Errorf("field year: %w", err)
		}
	}

	return r, nil
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s: expected string, got %T", key, v)
	}
	return s, nil
}

func stringsField(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}

	var out []string
	switch list := v.(type) {
	case []string:
		out = slices.Clone(list)
	case []any:
		out = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %s: expected string item, got %T", key, item)
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("field %s: expected list, got %T", key, v)
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}
