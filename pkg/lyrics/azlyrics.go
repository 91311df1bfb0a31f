package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultAZLyricsSearchURL = "https://search.azlyrics.com/search.php"

var azArtistPattern = regexp.MustCompile(`(?i)by:\s*(.*?)$`)

// AZLyrics searches azlyrics.com and reads the unclassed lyrics block.
type AZLyrics struct {
	scraper
	searchURL string
	log       *slog.Logger
}

func NewAZLyrics(searchURL string, timeout time.Duration, log *slog.Logger) *AZLyrics {
	if searchURL == "" {
		searchURL = defaultAZLyricsSearchURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &AZLyrics{
		scraper:   scraper{client: newHTTPClient(timeout)},
		searchURL: searchURL,
		log:       log.With("component", "lyrics.azlyrics"),
	}
}

func (a *AZLyrics) Name() string {
	return "azlyrics"
}

func (a *AZLyrics) Find(ctx context.Context, query string) (Song, error) {
	target := a.searchURL + "?q=" + url.QueryEscape(strings.Join(strings.Fields(query), "+"))
	doc, err := a.document(ctx, target, nil)
	if err != nil {
		return Song{}, err
	}

	var song Song
	doc.Find("table.table-condensed").First().Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.Find("td a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}

		song = Song{Title: title, Artist: "Unknown Artist", URL: href}
		if match := azArtistPattern.FindStringSubmatch(strings.TrimSpace(row.Find("td").Eq(1).Text())); match != nil {
			song.Artist = strings.TrimSpace(match[1])
		}
		return false
	})
	if song.URL == "" {
		return Song{}, ErrNotFound
	}

	page, err := a.document(ctx, song.URL, nil)
	if err != nil {
		return Song{}, err
	}

	text := azLyricsBlock(page)
	if text == "" {
		return Song{}, fmt.Errorf("%w: no lyrics block on %s", ErrNotFound, song.URL)
	}
	song.Lyrics = FormatStanzaSpacing(text)
	song.Source = a.Name()

	return song, nil
}

// azLyricsBlock returns the longest unclassed div following the ringtone
// banner.
func azLyricsBlock(doc *goquery.Document) string {
	var best string
	doc.Find(".ringtone").NextAllFiltered("div").Each(func(_ int, s *goquery.Selection) {
		if _, hasClass := s.Attr("class"); hasClass {
			return
		}
		if text := blockText(s); len(text) > 100 && len(text) > len(best) {
			best = text
		}
	})

	return best
}
