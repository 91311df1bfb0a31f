package lyrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when no source produced lyrics.
var ErrNotFound = errors.New("lyrics not found")

// Song is a lyrics lookup result.
type Song struct {
	Title       string
	Artist      string
	Album       string
	ReleaseDate string
	URL         string
	Lyrics      string
	Source      string
}

// Source finds lyrics for a free-text query.
type Source interface {
	Name() string
	Find(ctx context.Context, query string) (Song, error)
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var browserHeaders = map[string]string{
	"User-Agent":                browserUserAgent,
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Referer":                   "https://www.google.com/",
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
}

// minLyricsLength is the shortest page text accepted as lyrics.
const minLyricsLength = 200

func newHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeaders(browserHeaders)
}

// scraper loads and parses HTML pages.
type scraper struct {
	client *resty.Client
}

func (s scraper) document(ctx context.Context, url string, headers map[string]string) (*goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).SetHeaders(headers).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	return doc, nil
}

var contentSelectors = []string{
	".lyricbox",
	".songLyricsV14",
	".lyrics",
	".mxm-lyrics",
	".entry-content",
	".post-content",
	".lyric-content",
	".main-page",
	".main-content",
	".content-text",
	`[class*="lyric"]`,
	`[class*="Lyric"]`,
	".entry",
	"article",
	".main",
}

// pageText returns the first content block that looks like lyrics.
func pageText(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		block := doc.Find(selector).First()
		if block.Length() == 0 {
			continue
		}

		text := blockText(block)
		if len(text) > minLyricsLength {
			return text
		}
	}

	return ""
}

// blockText extracts the visible text of a block, keeping line breaks.
func blockText(block *goquery.Selection) string {
	block = block.Clone()
	block.Find("script, style, .adsbygoogle, .ads, ins, iframe, .sharedaddy").Remove()
	block.Find("br").ReplaceWithHtml("\n")

	return strings.TrimSpace(block.Text())
}
