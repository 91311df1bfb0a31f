package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultGoogleSearchURL     = "https://www.google.com/search"
	defaultDuckDuckGoSearchURL = "https://html.duckduckgo.com/html/"
	maxLinkedPages             = 2
)

var googleLyricsSelectors = []string{
	".ujudUb",
	"[data-lyricid]",
	".kp-wholepage .TzHB6b.cLjAic.LMRCfc",
	".hwc",
}

var lyricsHosts = []string{"lyric", "azlyrics.com", "musixmatch", "lyrics.com", "lyricsbogie", "lyricsbgm", "lyricsted", "lyricsbell"}

var blockedHosts = []string{"google", "youtube", "facebook", "twitter", "instagram"}

// WebSearch finds lyrics through a search engine results page: the engine's
// own lyrics panel when present, otherwise the first linked lyrics sites.
type WebSearch struct {
	scraper
	name      string
	searchURL string
	panel     []string
	links     string
	log       *slog.Logger
}

// NewGoogle searches google.com.
func NewGoogle(searchURL string, timeout time.Duration, log *slog.Logger) *WebSearch {
	if searchURL == "" {
		searchURL = defaultGoogleSearchURL
	}

	return newWebSearch("google", searchURL, googleLyricsSelectors, "a", timeout, log)
}

// NewDuckDuckGo searches the HTML-only DuckDuckGo frontend.
func NewDuckDuckGo(searchURL string, timeout time.Duration, log *slog.Logger) *WebSearch {
	if searchURL == "" {
		searchURL = defaultDuckDuckGoSearchURL
	}

	return newWebSearch("duckduckgo", searchURL, nil, ".result__a", timeout, log)
}

func newWebSearch(name string, searchURL string, panel []string, links string, timeout time.Duration, log *slog.Logger) *WebSearch {
	if log == nil {
		log = slog.Default()
	}

	return &WebSearch{
		scraper:   scraper{client: newHTTPClient(timeout)},
		name:      name,
		searchURL: searchURL,
		panel:     panel,
		links:     links,
		log:       log.With("component", "lyrics."+name),
	}
}

func (w *WebSearch) Name() string {
	return w.name
}

func (w *WebSearch) Find(ctx context.Context, query string) (Song, error) {
	doc, err := w.document(ctx, w.searchURL+"?q="+url.QueryEscape(searchQuery(query)), nil)
	if err != nil {
		return Song{}, err
	}

	song := Song{Title: query, Artist: "Unknown Artist", Source: w.name}

	if text := w.panelText(doc); text != "" {
		song.Lyrics = FormatStanzaSpacing(text)
		return song, nil
	}

	for _, link := range w.lyricsLinks(doc) {
		page, err := w.document(ctx, link, nil)
		if err != nil {
			w.log.Debug("Lyrics page failed", "url", link, "error", err)
			continue
		}
		if text := pageText(page); text != "" {
			song.URL = link
			song.Lyrics = FormatStanzaSpacing(text)
			return song, nil
		}
	}

	return Song{}, fmt.Errorf("%w: %s found no lyrics pages", ErrNotFound, w.name)
}

func (w *WebSearch) panelText(doc *goquery.Document) string {
	for _, selector := range w.panel {
		var b strings.Builder
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := blockText(s); len(text) > 100 {
				b.WriteString(text)
				b.WriteString("\n")
			}
		})
		if b.Len() > 0 {
			return b.String()
		}
	}

	return ""
}

func (w *WebSearch) lyricsLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find(w.links).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.ToLower(s.Text())
		if !containsAny(href, lyricsHosts) && !strings.Contains(text, "lyric") {
			return true
		}

		target := unwrapRedirect(href)
		if target == "" || containsAny(target, blockedHosts) {
			return true
		}

		links = append(links, target)
		return len(links) < maxLinkedPages
	})

	return links
}

// unwrapRedirect resolves Google /url?q= and DuckDuckGo uddg= redirect links.
func unwrapRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	query := parsed.Query()
	if target := query.Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(parsed.Path, "/url") {
		return query.Get("q")
	}
	if !parsed.IsAbs() {
		return ""
	}

	return href
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}

	return false
}
