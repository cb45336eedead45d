// Package animego is the target adapter for animego.org.
package animego

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
)

const (
	Name       = "animego_org"
	GeneralURL = "https://animego.org"
	CookieName = "REMEMBERME"

	searchPath = "/search/anime?q="
	listAll    = "Все"
)

// actionLabels maps each kind to the text of its control in the title page's list menu.
// Favorites have no control.
var actionLabels = map[models.WatchlistKind]string{
	models.KindWatch:     "Смотрю",
	models.KindDesired:   "Запланировано",
	models.KindViewed:    "Просмотрено",
	models.KindAbandoned: "Брошено",
	models.KindDelayed:   "Отложено",
	models.KindReviewed:  "Пересматриваю",
}

var cardTypes = map[string]models.AnimeType{
	"tv":      models.TypeTV,
	"movie":   models.TypeMovie,
	"ova":     models.TypeOVA,
	"special": models.TypeSpecial,
	"ona":     models.TypeONA,
}

var infoTypes = map[string]models.AnimeType{
	"ТВ Сериал": models.TypeTV,
	"Фильм":     models.TypeMovie,
	"OVA":       models.TypeOVA,
	"Спешл":     models.TypeSpecial,
	"ONA":       models.TypeONA,
}

var statuses = map[string]models.AnimeStatus{
	"Анонс":   models.StatusUpcoming,
	"Вышел":   models.StatusFinished,
	"Онгоинг": models.StatusAiring,
}

// Site implements [sites.Target] and [sites.Preparer].
type Site struct {
	cfg *sites.SiteConfig
}

// New creates the adapter.
func New() sites.Site {
	return &Site{cfg: &sites.SiteConfig{
		Name:       Name,
		Domain:     "animego.org",
		GeneralURL: GeneralURL,
		UseProxy:   true,
		Headers: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"Accept-Language":  "ru,en-US;q=0.8,en;q=0.5,be;q=0.3",
			"X-Requested-With": "XMLHttpRequest",
		},
		Cookies:   []string{CookieName},
		CookieEnv: map[string]string{CookieName: "animego_rememberme"},
	}}
}

func (s *Site) Config() *sites.SiteConfig { return s.cfg }

// Prepare reads the signed-in username from the home page and derives the user number from it.
func (s *Site) Prepare(ctx context.Context, f fetch.Fetcher) error {
	page, err := f.Get(ctx, fetch.Request{URL: GeneralURL, NoSave: true, Reload: true})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrModuleNotReady, err)
	}
	username, err := Username(page.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrModuleNotReady, err)
	}
	s.cfg.Username = username
	s.cfg.UserNum = UserNum(username)
	return nil
}

// Username reads the profile name from the navigation bar.
func Username(page []byte) (string, error) {
	doc, err := sites.Document(page)
	if err != nil {
		return "", err
	}
	el, err := sites.Required(doc.Selection, ".login .text-nowrap")
	if err != nil {
		return "", err
	}
	name := sites.Text(el)
	if name == "" {
		return "", fmt.Errorf("%w: empty username", shared.ErrParseFailed)
	}
	return name, nil
}

// UserNum concatenates the decimal code points of username.
func UserNum(username string) string {
	var b strings.Builder
	for _, r := range username {
		b.WriteString(strconv.Itoa(int(r)))
	}
	return b.String()
}

// ProfileURL returns the prepared user's profile page.
func (s *Site) ProfileURL() string {
	return GeneralURL + "/user/" + url.PathEscape(s.cfg.Username)
}

// ListURL returns the prepared user's anime list page.
func (s *Site) ListURL() string {
	return s.ProfileURL() + "/mylist/anime"
}

// SearchURL returns the search page for query. Spaces are sent as %20.
func (s *Site) SearchURL(query string) string {
	return GeneralURL + searchPath + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

func (s *Site) SupportsAction(kind models.WatchlistKind) bool {
	_, ok := actionLabels[kind]
	return ok
}

// ParseSearchResults reads the result cards of a search page. Cards that cannot be read are skipped.
func (s *Site) ParseSearchResults(page []byte) ([]models.LinkedAnimeRecord, error) {
	doc, err := sites.Document(page)
	if err != nil {
		return nil, err
	}

	var results []models.LinkedAnimeRecord
	doc.Find(".animes-grid .animes-grid-item-body").Each(func(_ int, card *goquery.Selection) {
		a := card.Find(".card-title a").First()
		name, _ := a.Attr("title")
		href, _ := a.Attr("href")
		if name == "" || href == "" {
			return
		}

		rec := models.LinkedAnimeRecord{Link: s.cfg.Absolute(href)}
		rec.Name = name
		rec.OriginalName = sites.Text(card.Find(".text-gray-dark-6").First())

		info := card.Find(".animes-grid-item-body-info")
		if typ, ok := info.Find(".text-link-gray").First().Attr("href"); ok {
			rec.Type = cardTypes[sites.LastSegment(typ)]
		}
		if year, ok := info.Find(".anime-year a").First().Attr("href"); ok {
			rec.Year, _ = strconv.Atoi(sites.LastSegment(year))
		}
		results = append(results, rec)
	})
	return results, nil
}

// LocateAction returns the absolute URL of the control that adds the title to kind's list.
func (s *Site) LocateAction(page []byte, kind models.WatchlistKind) (string, error) {
	label, ok := actionLabels[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrUnknownAction, kind)
	}

	doc, err := sites.Document(page)
	if err != nil {
		return "", err
	}

	var link string
	doc.Find(".my-list span.list-group-item").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if sites.Text(span) != label {
			return true
		}
		link, _ = span.Attr("data-ajax-url")
		return false
	})
	if link == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrActionInactive, kind)
	}
	return s.cfg.Absolute(link), nil
}

// CountTitles reads the "all" counter of the list page header.
func (s *Site) CountTitles(page []byte) int {
	doc, err := sites.Document(page)
	if err != nil {
		return 0
	}
	count := 0
	doc.Find(".card-header a").Each(func(_ int, a *goquery.Selection) {
		if strings.Contains(a.Text(), listAll) {
			count, _ = strconv.Atoi(sites.Text(a.Find("span").First()))
		}
	})
	return count
}

// Parse extracts the record of a title page.
func (s *Site) Parse(page []byte) (models.LinkedAnimeRecord, error) {
	var rec models.LinkedAnimeRecord

	doc, err := sites.Document(page)
	if err != nil {
		return rec, err
	}
	media, err := sites.Required(doc.Selection, ".media")
	if err != nil {
		return rec, err
	}
	body, err := sites.Required(media, ".media-body")
	if err != nil {
		return rec, err
	}
	info := body.Find(".anime-info").First()

	rec.Name = sites.Text(body.Find(".anime-title h1").First())
	if rec.Name == "" {
		return rec, fmt.Errorf("%w: title has no name", shared.ErrParseFailed)
	}

	body.Find(".anime-title .anime-synonyms li").Each(func(i int, li *goquery.Selection) {
		name := sites.Text(li)
		if i == 0 {
			rec.OriginalName = name
			return
		}
		if name != "" {
			rec.OtherNames = append(rec.OtherNames, name)
		}
	})

	if src, ok := media.Find(".anime-poster img").First().Attr("src"); ok {
		rec.Poster = s.cfg.Absolute(src)
	}

	if dd := term(info, "Тип"); dd != nil {
		rec.Type = infoTypes[sites.Text(dd)]
	}
	if dd := term(info, "Жанр"); dd != nil {
		dd.Find("a").Each(func(_ int, a *goquery.Selection) {
			if g, ok := a.Attr("title"); ok && g != "" {
				rec.Genres = append(rec.Genres, g)
			}
		})
	}
	if dd := term(info, "Эпизоды"); dd != nil {
		rec.EpCount = parseEpisodes(sites.Text(dd))
	}
	if dd := term(info, "Сезон"); dd != nil {
		rec.Year, _ = sites.FirstNumber(dd.Find("a").First().Text())
	}

	rec.Status = models.StatusFinished
	if dd := term(info, "Статус"); dd != nil {
		if st, ok := statuses[sites.Text(dd.Find("a").First())]; ok {
			rec.Status = st
		}
	}

	rec.Link = sites.Canonical(doc)
	return rec, nil
}

// term returns the description that follows the dt labelled name.
func term(info *goquery.Selection, name string) *goquery.Selection {
	var dd *goquery.Selection
	info.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if strings.TrimSuffix(sites.Text(dt), ":") != name {
			return true
		}
		dd = dt.Next()
		return false
	})
	if dd == nil || dd.Length() == 0 {
		return nil
	}
	return dd
}

// parseEpisodes reads "aired / total" values, preferring the total.
func parseEpisodes(value string) *int {
	parts := strings.Split(value, "/")
	if n, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
		return models.IntPtr(n)
	}
	if len(parts) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			return models.IntPtr(n)
		}
	}
	return nil
}
