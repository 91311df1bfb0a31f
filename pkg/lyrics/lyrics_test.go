package lyrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"konoha/pkg/config"
	"konoha/pkg/logger"
)

func TestFormatStanzaSpacing(t *testing.T) {
	t.Parallel()

	in := "[Verse 1]\r\nline one\r\nline two\n\n\n\n[Chorus]\nsing it\n   \nagain"
	got := FormatStanzaSpacing(in)

	assert.Equal(t, "[Verse 1]\nline one\nline two\n\n[Chorus]\nsing it\n\nagain", got)
	assert.Empty(t, FormatStanzaSpacing(""))
}

func TestFormatBoldsSectionsAndOptionalFields(t *testing.T) {
	t.Parallel()

	out := Format(Song{Title: "Blue Bird", Artist: "Ikimono-gakari", Lyrics: "[Chorus]\nhabataitara"})
	assert.True(t, strings.HasPrefix(out, "*🎵 Blue Bird*\n*👤 Ikimono-gakari*\n\n"))
	assert.Contains(t, out, "*[Chorus]*\nhabataitara")
	assert.NotContains(t, out, "Album")
	assert.True(t, strings.HasSuffix(out, "📜 Source: Lyrics Finder"))

	withAlbum := Format(Song{Title: "x", Artist: "y", Album: "Naruto OST", ReleaseDate: "2008", Lyrics: "z"})
	assert.Contains(t, withAlbum, "💿 Album: *Naruto OST*")
	assert.Contains(t, withAlbum, "📅 Released: *2008*")
}

func TestChunk(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, Chunk("short", 10))

	text := strings.Repeat("ä", 25)
	chunks := Chunk(text, 10)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0], "(Lyrics continued in next message...)")
	assert.Contains(t, chunks[1], "(Continued in next message...)")
	assert.Contains(t, chunks[2], "*End of lyrics* 🎵")
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
	}
	assert.True(t, strings.HasPrefix(chunks[2], strings.Repeat("ä", 5)+"\n"))
}

func TestEnhanceQuery(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Blue":               "Eiffel 65 blue",
		"believer":           "Imagine Dragons believer",
		"Shape of You":       "Shape of You",
		"tum hi ho":          "Arijit Singh Tum Hi Ho Aashiqui 2",
		"raatan lambiyan":    "Jubin Nautiyal Raatan Lambiyan Shershaah",
		"some arijit track":  "some arijit track",
		"Ed Sheeran - Happy": "Ed Sheeran - Happy",
	}
	for in, want := range tests {
		assert.Equal(t, want, EnhanceQuery(in), in)
	}
}

func TestIsRegional(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRegional("kesariya"))
	assert.True(t, IsRegional("तुम ही हो"))
	assert.False(t, IsRegional("Shape of You"))
	assert.False(t, IsRegional(""))
}

const lyricsHTML = `<html><body>
<div data-lyrics-container="true">[Verse 1]<br>Hello from the other side<br>I must have called</div>
<div data-lyrics-container="true">[Chorus]<br>Hello from the outside</div>
</body></html>`

func TestGeniusFindScrapesBestHit(t *testing.T) {
	t.Parallel()

	var queries []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		queries = append(queries, r.URL.Query().Get("q"))
		if r.URL.Query().Get("q") != "Adele hello" {
			fmt.Fprint(w, `{"meta":{"status":200},"response":{"hits":[]}}`)
			return
		}
		fmt.Fprintf(w, `{"meta":{"status":200},"response":{"hits":[{"result":{"id":1,"title":"Hello","url":"%s/adele-hello-lyrics","primary_artist":{"name":"Adele"},"album":{"name":"25"}}}]}}`, server.URL)
	})
	mux.HandleFunc("/adele-hello-lyrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, lyricsHTML)
	})

	genius := NewGenius(server.URL, "secret", time.Second, logger.Discard())
	song, err := genius.Find(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"Adele hello"}, queries)
	assert.Equal(t, "Hello", song.Title)
	assert.Equal(t, "Adele", song.Artist)
	assert.Equal(t, "25", song.Album)
	assert.Equal(t, "genius", song.Source)
	assert.Contains(t, song.Lyrics, "[Verse 1]\nHello from the other side\nI must have called")
	assert.Contains(t, song.Lyrics, "\n\n[Chorus]\nHello from the outside")
}

func TestGeniusFindFallsBackToRawQueries(t *testing.T) {
	t.Parallel()

	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"meta":{"status":200},"response":{"hits":[]}}`)
	}))
	t.Cleanup(server.Close)

	genius := NewGenius(server.URL, "secret", time.Second, logger.Discard())
	_, err := genius.Find(context.Background(), "blue")

	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"Eiffel 65 blue", "blue", "blue lyrics"}, queries)
}

func TestGeniusPing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"meta":{"status":200},"response":{"hits":[{"result":{"title":"a"}},{"result":{"title":"b"}}]}}`)
	}))
	t.Cleanup(server.Close)

	report, err := NewGenius(server.URL, "good", time.Second, logger.Discard()).Ping(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report, "Connection successful!")
	assert.Contains(t, report, "• Results found: 2")

	_, err = NewGenius(server.URL, "bad", time.Second, logger.Discard()).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API token")
}

func TestWebSearchFollowsLyricsLinks(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("Believer, believer\nPain, you made me a believer\n\n", 6)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Imagine Dragons believer lyrics", r.URL.Query().Get("q"))
		fmt.Fprintf(w, `<a href="https://youtube.com/watch?v=x">video</a><a href="/url?q=%s/believer-lyrics&sa=U">Believer Lyrics</a>`, server.URL)
	})
	mux.HandleFunc("/believer-lyrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<div class="lyrics">%s</div>`, body)
	})

	google := NewGoogle(server.URL+"/search", time.Second, logger.Discard())
	song, err := google.Find(context.Background(), "believer")
	require.NoError(t, err)

	assert.Equal(t, "google", song.Source)
	assert.Equal(t, server.URL+"/believer-lyrics", song.URL)
	assert.Contains(t, song.Lyrics, "Pain, you made me a believer")
}

func TestUnwrapRedirect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://lyrics.example/a", unwrapRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Flyrics.example%2Fa&rut=1"))
	assert.Equal(t, "https://lyrics.example/b", unwrapRedirect("/url?q=https://lyrics.example/b&sa=U"))
	assert.Equal(t, "", unwrapRedirect("/relative/path"))
}

type stubSource struct {
	name  string
	song  Song
	err   error
	calls *[]string
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Find(context.Context, string) (Song, error) {
	*s.calls = append(*s.calls, s.name)
	return s.song, s.err
}

func TestFinderOrderAndFallback(t *testing.T) {
	t.Parallel()

	var calls []string
	failing := stubSource{name: "genius", err: errors.New("status 403"), calls: &calls}
	empty := stubSource{name: "azlyrics", song: Song{Title: "x"}, calls: &calls}
	working := stubSource{name: "google", song: Song{Lyrics: "la la"}, calls: &calls}

	finder := NewFinder([]Source{failing, nil, empty, working}, time.Second, logger.Discard())
	song, err := finder.Find(context.Background(), "  some song ")
	require.NoError(t, err)

	assert.Equal(t, []string{"genius", "azlyrics", "google"}, calls)
	assert.Equal(t, "some song", song.Title)
	assert.Equal(t, "Unknown Artist", song.Artist)
}

func TestFinderTriesRegionalFirst(t *testing.T) {
	t.Parallel()

	finder := NewFinder([]Source{
		NewGenius("", "", time.Second, logger.Discard()),
		NewRegional(nil, time.Second, logger.Discard()),
	}, time.Second, logger.Discard())

	order := finder.order("kesariya")
	require.Len(t, order, 2)
	assert.Equal(t, "regional", order[0].Name())
	assert.Equal(t, "genius", finder.order("hello")[0].Name())
}

func TestFinderAllFail(t *testing.T) {
	t.Parallel()

	var calls []string
	finder := NewFinder([]Source{stubSource{name: "a", err: errors.New("boom"), calls: &calls}}, time.Second, logger.Discard())

	_, err := finder.Find(context.Background(), "nothing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "a: boom")

	_, err = finder.Find(context.Background(), "   ")
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	finder, err := FromConfig(config.Default().Lyrics, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, finder.sources, 5)
	assert.NotNil(t, finder.genius)

	_, err = FromConfig(config.LyricsConfig{Sources: []string{"lyricwiki"}}, logger.Discard())
	require.Error(t, err)
}
