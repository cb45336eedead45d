// Package animebuff is the source adapter for animebuff.ru.
package animebuff

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
)

const (
	Name       = "animebuff_ru"
	GeneralURL = "https://animebuff.ru"
)

// watchlistTypes holds the escaped list names used in the watchlist query string.
var watchlistTypes = map[models.WatchlistKind]string{
	models.KindWatch:     "%D0%A1%D0%BC%D0%BE%D1%82%D1%80%D1%8E",
	models.KindDesired:   "%D0%91%D1%83%D0%B4%D1%83%20%D1%81%D0%BC%D0%BE%D1%82%D1%80%D0%B5%D1%82%D1%8C",
	models.KindViewed:    "%D0%9F%D1%80%D0%BE%D1%81%D0%BC%D0%BE%D1%82%D1%80%D0%B5%D0%BD%D0%BE",
	models.KindAbandoned: "%D0%97%D0%B0%D0%B1%D1%80%D0%BE%D1%88%D0%B5%D0%BD%D0%BE",
	models.KindFavorites: "%D0%98%D0%B7%D0%B1%D1%80%D0%B0%D0%BD%D0%BD%D0%BE%D0%B5",
}

// Info list labels.
const (
	labelType       = "Тип"
	labelGenres     = "Жанры"
	labelEpisodes   = "Эпизоды"
	labelStatus     = "Статус"
	labelOtherNames = "Другие названия"
)

// Site implements [sites.Source].
type Site struct {
	cfg *sites.SiteConfig
}

// New creates the adapter.
func New() sites.Site {
	return &Site{cfg: &sites.SiteConfig{
		Name:       Name,
		Domain:     "animebuff.ru",
		GeneralURL: GeneralURL,
		UseProxy:   true,
		Headers: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
		Cookies: []string{"animebuff_session", "XSRF-TOKEN"},
		CookieEnv: map[string]string{
			"animebuff_session": "animebuff_session_value",
			"XSRF-TOKEN":        "XSRF-TOKEN-VALUE",
		},
		UserEnv: "animebuff_user_num",
	}}
}

func (s *Site) Config() *sites.SiteConfig { return s.cfg }

// Prepare reads the user number from the environment. The page fetcher is not used.
func (s *Site) Prepare(_ context.Context, _ fetch.Fetcher) error {
	if s.cfg.UserNum != "" {
		return nil
	}
	num, err := shared.RequireEnv(s.cfg.UserEnv)
	if err != nil {
		return err
	}
	s.cfg.UserNum = num
	return nil
}

// WatchlistURL returns the user's list page for kind.
func (s *Site) WatchlistURL(kind models.WatchlistKind) (string, bool) {
	t, ok := watchlistTypes[kind]
	if !ok || s.cfg.UserNum == "" {
		return "", false
	}
	return fmt.Sprintf("%s/users/%s/watchlist?type=%s", GeneralURL, s.cfg.UserNum, t), true
}

// Enumerate lists the titles of a watchlist page keyed by their slug.
func (s *Site) Enumerate(_ models.WatchlistKind, page []byte) (map[string]string, error) {
	doc, err := sites.Document(page)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string)
	doc.Find(".watchlist__item").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(".watchlist__name").First().Attr("href")
		if !ok || href == "" {
			return
		}
		key := sites.LastSegment(href)
		if key == "" {
			return
		}
		titles[key] = s.cfg.Absolute(href)
	})
	return titles, nil
}

// CountTitles reads the count of the active list tab.
func (s *Site) CountTitles(page []byte) int {
	doc, err := sites.Document(page)
	if err != nil {
		return 0
	}
	n, _ := sites.FirstNumber(doc.Find(".watchlist__sort-active span").First().Text())
	return n
}

// Parse extracts the record of a title page.
func (s *Site) Parse(page []byte) (models.LinkedAnimeRecord, error) {
	var rec models.LinkedAnimeRecord

	doc, err := sites.Document(page)
	if err != nil {
		return rec, err
	}
	info, err := sites.Required(doc.Selection, ".anime__info-list")
	if err != nil {
		return rec, err
	}

	items := make(map[string]*goquery.Selection)
	info.Find(".anime__info-type").Each(func(_ int, label *goquery.Selection) {
		if name := strings.TrimSuffix(sites.Text(label), ":"); name != "" {
			items[name] = label.Parent()
		}
	})

	if item, ok := items[labelType]; ok {
		href, _ := item.Find("a").First().Attr("href")
		rec.Type = parseType(sites.LastSegment(href))
	}

	if item, ok := items[labelGenres]; ok {
		item.Find("a").Each(func(_ int, a *goquery.Selection) {
			if g := sites.Text(a); g != "" {
				rec.Genres = append(rec.Genres, g)
			}
		})
	}

	if item, ok := items[labelEpisodes]; ok {
		rec.EpCount = parseEpisodes(sites.Text(item.Find(".anime__info-value")))
	}

	if item, ok := items[labelStatus]; ok {
		links := item.Find("a")
		if links.Length() > 0 {
			first, _ := links.First().Attr("href")
			last, _ := links.Last().Attr("href")
			if st, err := models.ParseAnimeStatus(sites.LastSegment(first)); err == nil {
				rec.Status = st
			}
			if year, err := strconv.Atoi(sites.LastSegment(last)); err == nil {
				rec.Year = year
			}
		}
	}

	if item, ok := items[labelOtherNames]; ok {
		for _, name := range strings.Split(sites.Text(item.Find(".anime__info-value")), ",") {
			if name = strings.TrimSpace(name); name != "" {
				rec.OtherNames = append(rec.OtherNames, name)
			}
		}
	}

	if src, ok := doc.Find(".anime__poster-img img").First().Attr("src"); ok {
		rec.Poster = s.cfg.Absolute(src)
	}

	rec.Name = sites.Text(doc.Find(".anime__title").First())
	if rec.Name == "" {
		return rec, fmt.Errorf("%w: title has no name", shared.ErrParseFailed)
	}

	other := doc.Find(".anime__other-names").First().Clone()
	other.Find("span").Remove()
	rec.OriginalName = sites.Text(other)

	rec.Link = sites.Canonical(doc)
	return rec, nil
}

func parseType(slug string) models.AnimeType {
	if slug == "polnometrazhnyi-film" {
		return models.TypeMovie
	}
	t, err := models.ParseAnimeType(slug)
	if err != nil {
		return ""
	}
	return t
}

// parseEpisodes reads values such as "12 из 24" or "24 эп.".
func parseEpisodes(value string) *int {
	parts := strings.Fields(value)
	if len(parts) < 2 {
		return nil
	}
	if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
		return models.IntPtr(n)
	}
	if n, err := strconv.Atoi(parts[0]); err == nil {
		return models.IntPtr(n)
	}
	return nil
}
