package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultGeniusBaseURL = "https://api.genius.com"

// Genius searches the Genius API and scrapes the song page for lyrics.
type Genius struct {
	scraper
	baseURL string
	token   string
	log     *slog.Logger
}

func NewGenius(baseURL string, token string, timeout time.Duration, log *slog.Logger) *Genius {
	if baseURL == "" {
		baseURL = defaultGeniusBaseURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Genius{
		scraper: scraper{client: newHTTPClient(timeout)},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		log:     log.With("component", "lyrics.genius"),
	}
}

func (g *Genius) Name() string {
	return "genius"
}

type geniusSearchResponse struct {
	Meta struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"meta"`
	Response struct {
		Hits []struct {
			Result geniusSong `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type geniusSong struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	ReleaseDate   string `json:"release_date_for_display"`
	PrimaryArtist struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
	Album *struct {
		Name string `json:"name"`
	} `json:"album"`
}

func (s geniusSong) song() Song {
	song := Song{
		Title:       s.Title,
		Artist:      s.PrimaryArtist.Name,
		ReleaseDate: s.ReleaseDate,
		URL:         s.URL,
	}
	if s.Album != nil {
		song.Album = s.Album.Name
	}

	return song
}

// Find searches with the enhanced query first, then the raw query, then the
// raw query with "lyrics" appended, and scrapes the best hit.
func (g *Genius) Find(ctx context.Context, query string) (Song, error) {
	if g.token == "" {
		return Song{}, errors.New("genius token is not configured")
	}

	candidates := []string{EnhanceQuery(query), query}
	if !strings.Contains(strings.ToLower(query), "lyrics") {
		candidates = append(candidates, query+" lyrics")
	}

	var hits []geniusSong
	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true

		found, err := g.search(ctx, candidate)
		if err != nil {
			return Song{}, err
		}
		if len(found) > 0 {
			hits = found
			break
		}
		g.log.Debug("No Genius hits", "query", candidate)
	}
	if len(hits) == 0 {
		return Song{}, ErrNotFound
	}

	if IsRegional(query) {
		hits = preferRegional(hits)
	}

	song := hits[0].song()
	text, err := g.scrape(ctx, song.URL)
	if err != nil {
		return Song{}, err
	}
	song.Lyrics = text
	song.Source = g.Name()

	return song, nil
}

func preferRegional(hits []geniusSong) []geniusSong {
	var regional []geniusSong
	for _, hit := range hits {
		if regionalArtistPattern.MatchString(hit.PrimaryArtist.Name) || regionalTitlePattern.MatchString(hit.Title) {
			regional = append(regional, hit)
		}
	}
	if len(regional) == 0 {
		return hits
	}

	return regional
}

func (g *Genius) search(ctx context.Context, query string) ([]geniusSong, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.token).
		SetQueryParam("q", query).
		Get(g.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("genius search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("genius search: status %d", resp.StatusCode())
	}

	var decoded geniusSearchResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("decode genius search: %w", err)
	}

	songs := make([]geniusSong, 0, len(decoded.Response.Hits))
	for _, hit := range decoded.Response.Hits {
		songs = append(songs, hit.Result)
	}

	return songs, nil
}

var preloadedState = regexp.MustCompile(`window\.__PRELOADED_STATE__ = JSON\.parse\('(.+?)'\)`)

func (g *Genius) scrape(ctx context.Context, url string) (string, error) {
	doc, err := g.document(ctx, url, map[string]string{
		"Cache-Control": "no-cache",
		"Pragma":        "no-cache",
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	doc.Find(`[data-lyrics-container="true"]`).Each(func(_ int, s *goquery.Selection) {
		b.WriteString(blockText(s))
		b.WriteString("\n")
	})

	text := strings.TrimSpace(b.String())
	if text == "" {
		text = blockText(doc.Find(".lyrics").First())
	}
	if text == "" {
		text = preloadedLyrics(doc)
	}
	if text == "" {
		return "", fmt.Errorf("%w: no lyrics container on %s", ErrNotFound, url)
	}

	return FormatStanzaSpacing(text), nil
}

func preloadedLyrics(doc *goquery.Document) string {
	var text string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		match := preloadedState.FindStringSubmatch(s.Text())
		if match == nil {
			return true
		}

		var state struct {
			SongPage struct {
				LyricsData struct {
					Body struct {
						Plain string `json:"plain"`
					} `json:"body"`
				} `json:"lyricsData"`
			} `json:"songPage"`
		}
		if err := json.Unmarshal([]byte(strings.ReplaceAll(match[1], `\`, "")), &state); err != nil {
			return true
		}
		text = state.SongPage.LyricsData.Body.Plain
		return text == ""
	})

	return text
}

// Ping checks the configured token against the search endpoint and returns a
// human-readable report.
func (g *Genius) Ping(ctx context.Context) (string, error) {
	if g.token == "" {
		return "", errors.New("API test failed!\n• Problem: No Genius API token configured\n• Solution: Set GENIUS_API_TOKEN")
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.token).
		SetQueryParam("q", "test").
		Get(g.baseURL + "/search")
	if err != nil {
		return "", fmt.Errorf("API test failed!\n• Problem: Network connection issue\n• Message: %v", err)
	}

	switch resp.StatusCode() {
	case 200:
	case 401:
		return "", errors.New("API test failed!\n• Status: 401\n• Problem: Authentication failed - Invalid API token\n• Solution: Get a new API token from https://genius.com/api-clients")
	case 403:
		return "", errors.New("API test failed!\n• Status: 403\n• Problem: Permission denied\n• Solution: Check API token permissions")
	case 404:
		return "", errors.New("API test failed!\n• Status: 404\n• Problem: API endpoint not found\n• Solution: Check genius_base_url")
	case 429:
		return "", errors.New("API test failed!\n• Status: 429\n• Problem: Rate limit exceeded\n• Solution: Wait before making more requests")
	default:
		return "", fmt.Errorf("API test failed!\n• Status: %d\n• Response data: %s", resp.StatusCode(), resp.String())
	}

	var decoded geniusSearchResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return fmt.Sprintf("Connection received but with unexpected response:\n• Status: %d", resp.StatusCode()), nil
	}

	message := decoded.Meta.Message
	if message == "" {
		message = "OK"
	}

	return fmt.Sprintf("Connection successful!\n• Status: %d\n• API Status: %d\n• Message: %s\n• Results found: %d\n• Token valid: Yes",
		resp.StatusCode(), decoded.Meta.Status, message, len(decoded.Response.Hits)), nil
}
