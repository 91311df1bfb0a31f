package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"
)

// RegionalSite is one Indian-language lyrics site: its search page and the
// selector of the first result link.
type RegionalSite struct {
	Name       string
	SearchURL  string
	Param      string
	ResultLink string
}

// DefaultRegionalSites lists the sites tried for regional queries.
var DefaultRegionalSites = []RegionalSite{
	{Name: "LyricsBGM", SearchURL: "https://www.lyricsbgm.com/", Param: "s", ResultLink: ".post-title a"},
	{Name: "HindiLyrics", SearchURL: "https://www.hindilyrics.net/search.php", Param: "search", ResultLink: ".search_results a"},
	{Name: "LyricsBogie", SearchURL: "https://www.lyricsbogie.com/search", Param: "q", ResultLink: ".entry-title a"},
	{Name: "LyricsBell", SearchURL: "https://www.lyricsbell.com/", Param: "s", ResultLink: ".entry-title a"},
}

var regionalNoise = regexp.MustCompile(`(?s)(Click to share|Please share|Join us on|Follow us|Source:).*`)

// Regional searches Indian-language lyrics sites in order.
type Regional struct {
	scraper
	sites []RegionalSite
	log   *slog.Logger
}

func NewRegional(sites []RegionalSite, timeout time.Duration, log *slog.Logger) *Regional {
	if len(sites) == 0 {
		sites = DefaultRegionalSites
	}
	if log == nil {
		log = slog.Default()
	}

	return &Regional{
		scraper: scraper{client: newHTTPClient(timeout)},
		sites:   sites,
		log:     log.With("component", "lyrics.regional"),
	}
}

func (r *Regional) Name() string {
	return "regional"
}

func (r *Regional) Find(ctx context.Context, query string) (Song, error) {
	headers := map[string]string{"Accept-Language": "en-US,en;q=0.9,hi;q=0.8"}

	for _, site := range r.sites {
		if err := ctx.Err(); err != nil {
			return Song{}, err
		}

		search, err := r.document(ctx, site.SearchURL+"?"+url.Values{site.Param: {query}}.Encode(), headers)
		if err != nil {
			r.log.Debug("Regional search failed", "site", site.Name, "error", err)
			continue
		}

		link, ok := search.Find(site.ResultLink).First().Attr("href")
		if !ok || link == "" {
			continue
		}

		page, err := r.document(ctx, link, headers)
		if err != nil {
			r.log.Debug("Regional page failed", "site", site.Name, "error", err)
			continue
		}

		text := regionalNoise.ReplaceAllString(pageText(page), "")
		if len(text) <= minLyricsLength {
			continue
		}

		return Song{
			Title:  query,
			Artist: "Unknown Artist",
			URL:    link,
			Lyrics: FormatStanzaSpacing(text),
			Source: site.Name,
		}, nil
	}

	return Song{}, fmt.Errorf("%w: no regional site matched", ErrNotFound)
}
