// Package web renders the HTML served by the command endpoints.
//
// Templates are embedded and parsed once. Fragments are returned as strings because the command
// protocol carries them inside JSON responses:
//
//   - alert.html: status alert for a [models.CommandResponse] message
//   - progress.html: overall and current-watchlist progress bar, expanded or collapsed
//   - titles.html: the last titles of one watchlist tab of a dump
//   - index.html: the page hosting both actions
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/desertthunder/wlsync/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DefaultTitlesLimit is the number of titles listed per tab when none is configured.
const DefaultTitlesLimit = 4

// Renderer renders alerts, progress bars, title lists and the index page.
type Renderer struct {
	limit int
}

// NewRenderer creates a [Renderer] listing up to limit titles per tab.
func NewRenderer(limit int) *Renderer {
	if limit <= 0 {
		limit = DefaultTitlesLimit
	}
	return &Renderer{limit: limit}
}

type alertData struct {
	Class   string
	Message string
}

var alertClasses = map[models.ResponseStatus]string{
	models.ResponseDone:    "success",
	models.ResponseFail:    "danger",
	models.ResponseInfo:    "info",
	models.ResponseWarning: "warning",
}

// Alert renders a status alert.
func (r *Renderer) Alert(status models.ResponseStatus, message string) (string, error) {
	class, ok := alertClasses[status]
	if !ok {
		class = "secondary"
	}
	return render("alert.html", alertData{Class: class, Message: message})
}

type progressData struct {
	Action         models.Action
	Expanded       bool
	Running        bool
	Overall        models.Counter
	Current        models.CurrentCounter
	Percent        int
	CurrentPercent int
}

// StatusBar renders the progress bar of an action.
func (r *Renderer) StatusBar(action models.Action, expanded bool, p models.ProgressState) (string, error) {
	return render("progress.html", progressData{
		Action:         action,
		Expanded:       expanded,
		Running:        p.Running,
		Overall:        p.Overall,
		Current:        p.Current,
		Percent:        p.Percent(),
		CurrentPercent: p.CurrentPercent(),
	})
}

// TitleItem is one row of a rendered title list.
type TitleItem struct {
	Key          string
	Name         string
	OriginalName string
	Poster       string
	Type         models.AnimeType
	Year         int
	Link         string // source URL of a failed parser title
}

type titlesData struct {
	Role  models.ActionModule
	Tab   string
	Items []TitleItem
	Total int
}

// Titles renders the last titles of tab, by title key order. An unknown tab falls back to watch.
func (r *Renderer) Titles(role models.ActionModule, tab string, dump models.TitlesDump) (string, error) {
	if _, err := models.ParseWatchlistKind(tab); err != nil && tab != models.ErrorsKey {
		tab = string(models.KindWatch)
	}
	items := TitleItems(tab, dump)
	data := titlesData{Role: role, Tab: tab, Total: len(items)}
	if len(items) > r.limit {
		items = items[len(items)-r.limit:]
	}
	data.Items = items
	return render("titles.html", data)
}

// TitleItems flattens one bucket of a dump into rows sorted by title key.
//
// Parser errors map keys to URLs; exporter errors nest {kind: {key: record}} and are flattened.
func TitleItems(bucket string, dump models.TitlesDump) []TitleItem {
	var items []TitleItem
	for key, raw := range dump[bucket] {
		switch v := raw.(type) {
		case string:
			items = append(items, TitleItem{Key: key, Name: key, Link: v})
		case map[string]any:
			if _, isRecord := v["name"]; isRecord || bucket != models.ErrorsKey {
				if rec, err := models.FromMapping(v); err == nil {
					items = append(items, recordItem(key, rec))
				}
				continue
			}
			for inner, nested := range v {
				m, ok := nested.(map[string]any)
				if !ok {
					continue
				}
				if rec, err := models.FromMapping(m); err == nil {
					items = append(items, recordItem(inner, rec))
				}
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

func recordItem(key string, rec models.AnimeRecord) TitleItem {
	return TitleItem{
		Key:          key,
		Name:         rec.Name,
		OriginalName: rec.OriginalName,
		Poster:       rec.Poster,
		Type:         rec.Type,
		Year:         rec.Year,
	}
}

// ActionView is one action panel of the index page.
type ActionView struct {
	Action    models.Action
	Role      models.ActionModule
	Modules   []string
	Selected  string
	StatusBar template.HTML
	Titles    template.HTML
}

// IndexData is the content of the index page.
type IndexData struct {
	Actions []ActionView
	Kinds   []models.WatchlistKind
}

// Index writes the index page.
func (r *Renderer) Index(w io.Writer, data IndexData) error {
	if data.Kinds == nil {
		data.Kinds = models.AllKinds()
	}
	if err := templates.ExecuteTemplate(w, "index.html", data); err != nil {
		return fmt.Errorf("failed to render index: %w", err)
	}
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
