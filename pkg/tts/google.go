package tts

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGoogleURL = "https://translate.google.com/translate_tts"
	// googleMaxChunk is the longest text the endpoint accepts per request.
	googleMaxChunk = 100
)

// Google uses the public translate speech endpoint. Long text is split at
// word boundaries and the MP3 segments are concatenated.
type Google struct {
	client  *resty.Client
	baseURL string
}

func NewGoogle(baseURL string, timeout time.Duration) *Google {
	if baseURL == "" {
		baseURL = defaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36").
		SetHeader("Referer", "https://translate.google.com/")

	return &Google{client: client, baseURL: baseURL}
}

func (g *Google) Name() string {
	return "google"
}

func (g *Google) Synthesize(ctx context.Context, text string, lang string) (Audio, error) {
	if lang == "" {
		lang = "en"
	}

	parts := splitText(text, googleMaxChunk)
	if len(parts) == 0 {
		return Audio{}, ErrEmptyText
	}

	var out bytes.Buffer
	for i, part := range parts {
		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ie":      "UTF-8",
				"client":  "tw-ob",
				"tl":      lang,
				"q":       part,
				"total":   strconv.Itoa(len(parts)),
				"idx":     strconv.Itoa(i),
				"textlen": strconv.Itoa(utf8.RuneCountInString(part)),
			}).
			Get(g.baseURL)
		if err != nil {
			return Audio{}, fmt.Errorf("google tts: %w", err)
		}
		if resp.IsError() {
			return Audio{}, fmt.Errorf("google tts: status %d for language %q", resp.StatusCode(), lang)
		}
		if ct := resp.Header().Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "audio/") {
			return Audio{}, fmt.Errorf("google tts: unexpected content type %q", ct)
		}
		out.Write(resp.Body())
	}

	return Audio{Data: out.Bytes(), MimeType: "audio/mpeg", Provider: g.Name()}, nil
}

// splitText breaks text into pieces of at most max runes, preferring word
// boundaries. Words longer than max are cut.
func splitText(text string, max int) []string {
	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > max {
			flush()
			parts = append(parts, string(runes[:max]))
			runes = runes[max:]
		}

		n := len(runes)
		if currentLen > 0 && currentLen+1+n > max {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(string(runes))
		currentLen += n
	}
	flush()

	return parts
}
