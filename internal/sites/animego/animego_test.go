package animego

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
	tu "github.com/desertthunder/wlsync/internal/testing"
)

const homePage = `<html><body>
<nav><div class="login"><a href="/user/Ab"><span class="text-nowrap"> Ab </span></a></div></nav>
</body></html>`

const searchPage = `<html><body>
<div class="animes-grid">
  <div class="animes-grid-item-body">
    <div class="card-title"><a href="https://animego.org/anime/tetrad-smerti-95" title="Тетрадь смерти">Тетрадь смерти</a></div>
    <div class="text-gray-dark-6">Death Note</div>
    <div class="animes-grid-item-body-info">
      <a class="text-link-gray" href="/anime/type/tv">ТВ Сериал</a>
      <span class="anime-year"><a href="/anime/season/2006">2006</a></span>
    </div>
  </div>
  <div class="animes-grid-item-body">
    <div class="card-title"><a href="/anime/tetrad-smerti-film-1" title="Тетрадь смерти: Фильм">Тетрадь смерти: Фильм</a></div>
    <div class="text-gray-dark-6">Death Note: Relight</div>
    <div class="animes-grid-item-body-info">
      <a class="text-link-gray" href="/anime/type/movie">Фильм</a>
      <span class="anime-year"><a href="/anime/season/2007">2007</a></span>
    </div>
  </div>
  <div class="animes-grid-item-body"><div class="card-title">no link</div></div>
</div>
</body></html>`

const titlePage = `<html>
<head><link rel="canonical" href="https://animego.org/anime/tetrad-smerti-95"></head>
<body>
<div class="media">
  <div class="anime-poster"><img src="https://animego.org/media/poster.jpg"></div>
  <div class="media-body">
    <div class="anime-title">
      <h1>Тетрадь смерти</h1>
      <ul class="anime-synonyms"><li>Death Note</li><li>Desu Nōto</li><li>デスノート</li></ul>
    </div>
    <dl class="anime-info">
      <dt>Тип</dt><dd>ТВ Сериал</dd>
      <dt>Эпизоды</dt><dd>37 / 37</dd>
      <dt>Статус</dt><dd><a href="/anime/status/released">Вышел</a></dd>
      <dt>Жанр</dt><dd><a href="/anime/genre/detective" title="Детектив">Детектив</a>, <a href="/anime/genre/thriller" title="Триллер">Триллер</a></dd>
      <dt>Сезон</dt><dd><a href="/anime/season/2006/autumn">Осень 2006</a></dd>
    </dl>
    <div class="my-list">
      <span class="list-group-item" data-ajax-url="/my/anime/95/watching">Смотрю</span>
      <span class="list-group-item" data-ajax-url="/my/anime/95/completed">Просмотрено</span>
    </div>
  </div>
</div>
</body></html>`

func newSite(t *testing.T) *Site {
	t.Helper()
	s, ok := New().(*Site)
	if !ok {
		t.Fatal("New() did not return *Site")
	}
	return s
}

func TestSite(t *testing.T) {
	t.Run("implements target", func(t *testing.T) {
		var _ sites.Target = newSite(t)
		var _ sites.Preparer = newSite(t)
	})

	t.Run("Prepare", func(t *testing.T) {
		t.Run("derives user number", func(t *testing.T) {
			s := newSite(t)
			f := tu.NewMockFetcher(map[string]string{GeneralURL: homePage})
			if err := s.Prepare(context.Background(), f); err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			if s.Config().Username != "Ab" {
				t.Errorf("Username = %q", s.Config().Username)
			}
			if s.Config().UserNum != "6598" {
				t.Errorf("UserNum = %q, want 6598", s.Config().UserNum)
			}
			if s.ListURL() != "https://animego.org/user/Ab/mylist/anime" {
				t.Errorf("ListURL() = %q", s.ListURL())
			}
			reqs := f.Calls("GET", GeneralURL)
			if len(reqs) != 1 || !reqs[0].NoSave || !reqs[0].Reload {
				t.Errorf("requests = %+v", reqs)
			}
		})

		t.Run("not signed in", func(t *testing.T) {
			f := tu.NewMockFetcher(map[string]string{GeneralURL: `<html><body></body></html>`})
			err := newSite(t).Prepare(context.Background(), f)
			if !errors.Is(err, shared.ErrModuleNotReady) {
				t.Errorf("Prepare() error = %v, want ErrModuleNotReady", err)
			}
		})

		t.Run("fetch failure", func(t *testing.T) {
			err := newSite(t).Prepare(context.Background(), tu.NewMockFetcher(nil))
			if !errors.Is(err, shared.ErrModuleNotReady) {
				t.Errorf("Prepare() error = %v, want ErrModuleNotReady", err)
			}
		})
	})

	t.Run("SearchURL", func(t *testing.T) {
		tests := map[string]string{
			"Death Note: Relight": "https://animego.org/search/anime?q=Death%20Note%3A%20Relight",
			"Fate/Zero & Co+":     "https://animego.org/search/anime?q=Fate%2FZero%20%26%20Co%2B",
		}
		for query, want := range tests {
			if got := newSite(t).SearchURL(query); got != want {
				t.Errorf("SearchURL(%q) = %q, want %q", query, got, want)
			}
		}
	})

	t.Run("ParseSearchResults", func(t *testing.T) {
		results, err := newSite(t).ParseSearchResults([]byte(searchPage))
		if err != nil {
			t.Fatalf("ParseSearchResults() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}

		first := results[0]
		if first.Name != "Тетрадь смерти" || first.OriginalName != "Death Note" ||
			first.Type != models.TypeTV || first.Year != 2006 ||
			first.Link != "https://animego.org/anime/tetrad-smerti-95" {
			t.Errorf("results[0] = %+v", first)
		}

		second := results[1]
		if second.Type != models.TypeMovie || second.Year != 2007 ||
			second.Link != "https://animego.org/anime/tetrad-smerti-film-1" {
			t.Errorf("results[1] = %+v", second)
		}
	})

	t.Run("ParseSearchResults empty page", func(t *testing.T) {
		results, err := newSite(t).ParseSearchResults([]byte(`<html></html>`))
		if err != nil || len(results) != 0 {
			t.Errorf("ParseSearchResults() = %v, %v", results, err)
		}
	})

	t.Run("LocateAction", func(t *testing.T) {
		s := newSite(t)
		tests := []struct {
			kind    models.WatchlistKind
			want    string
			wantErr error
		}{
			{models.KindWatch, "https://animego.org/my/anime/95/watching", nil},
			{models.KindViewed, "https://animego.org/my/anime/95/completed", nil},
			{models.KindDesired, "", shared.ErrActionInactive},
			{models.KindFavorites, "", shared.ErrUnknownAction},
		}
		for _, tt := range tests {
			t.Run(string(tt.kind), func(t *testing.T) {
				got, err := s.LocateAction([]byte(titlePage), tt.kind)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("LocateAction() error = %v, want %v", err, tt.wantErr)
					}
					return
				}
				if err != nil || got != tt.want {
					t.Errorf("LocateAction() = %q, %v", got, err)
				}
			})
		}
	})

	t.Run("SupportsAction", func(t *testing.T) {
		s := newSite(t)
		if s.SupportsAction(models.KindFavorites) {
			t.Error("favorites should be unsupported")
		}
		for _, kind := range []models.WatchlistKind{models.KindWatch, models.KindDelayed, models.KindReviewed} {
			if !s.SupportsAction(kind) {
				t.Errorf("%s should be supported", kind)
			}
		}
	})

	t.Run("Parse", func(t *testing.T) {
		rec, err := newSite(t).Parse([]byte(titlePage))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		want := models.AnimeRecord{
			Poster:       "https://animego.org/media/poster.jpg",
			Name:         "Тетрадь смерти",
			OriginalName: "Death Note",
			OtherNames:   []string{"Desu Nōto", "デスノート"},
			Type:         models.TypeTV,
			Genres:       []string{"Детектив", "Триллер"},
			EpCount:      models.IntPtr(37),
			Year:         2006,
			Status:       models.StatusFinished,
		}
		if !rec.Equal(want) {
			t.Errorf("Parse() = %+v, want %+v", rec.AnimeRecord, want)
		}
		if rec.Link != "https://animego.org/anime/tetrad-smerti-95" {
			t.Errorf("Link = %q", rec.Link)
		}
	})

	t.Run("Parse defaults status", func(t *testing.T) {
		page := `<html><body><div class="media"><div class="media-body">
<div class="anime-title"><h1>X</h1></div><dl class="anime-info"></dl></div></div></body></html>`
		rec, err := newSite(t).Parse([]byte(page))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if rec.Status != models.StatusFinished || rec.EpCount != nil {
			t.Errorf("Parse() = %+v", rec)
		}
	})

	t.Run("CountTitles", func(t *testing.T) {
		page := `<div class="card-header"><a href="#">Смотрю <span>4</span></a><a href="#">Все <span>17</span></a></div>`
		if n := newSite(t).CountTitles([]byte(page)); n != 17 {
			t.Errorf("CountTitles() = %d, want 17", n)
		}
	})
}

func TestParseEpisodes(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"12 / 24", models.IntPtr(24)},
		{"12 / ?", models.IntPtr(12)},
		{"24", models.IntPtr(24)},
		{"?", nil},
	}
	for _, tt := range tests {
		got := parseEpisodes(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("parseEpisodes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
