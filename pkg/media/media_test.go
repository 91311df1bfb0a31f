package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"konoha/pkg/logger"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want LinkKind
	}{
		{url: "https://youtube.com/shorts/abcd1234XYZ", want: LinkYouTubeShorts},
		{url: "https://www.youtube.com/shorts/abcd1234XYZ?feature=share", want: LinkYouTubeShorts},
		{url: "https://youtu.be/dQw4w9WgXcQ", want: LinkYouTube},
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: LinkYouTube},
		{url: "https://www.instagram.com/reel/Cabc_123-x/", want: LinkInstagramReels},
		{url: "https://m.instagram.com/p/Cabc123/", want: LinkInstagramReels},
		{url: "https://example.com/video.mp4", want: LinkUnknown},
		{url: "https://youtube.com/shorts/short", want: LinkUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.url); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractIDs(t *testing.T) {
	t.Parallel()

	if id, ok := YouTubeID("https://youtu.be/dQw4w9WgXcQ?t=3"); !ok || id != "dQw4w9WgXcQ" {
		t.Fatalf("YouTubeID = %q, %v", id, ok)
	}
	if id, ok := InstagramID("https://www.instagram.com/reel/Cabc_123-x/"); !ok || id != "Cabc_123-x" {
		t.Fatalf("InstagramID = %q, %v", id, ok)
	}
}

type stubFetcher struct {
	name    string
	content string
	err     error
	calls   int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(_ context.Context, req Request) (Result, error) {
	s.calls++
	if s.err != nil {
		return Result{}, s.err
	}
	if err := os.WriteFile(req.OutputPath, []byte(s.content), 0o600); err != nil {
		return Result{}, err
	}
	return Result{Path: req.OutputPath, Title: s.name}, nil
}

func TestFallbackUsesSecondFetcher(t *testing.T) {
	t.Parallel()

	primary := &stubFetcher{name: "yt-dlp", err: errors.New("executable not found")}
	secondary := &stubFetcher{name: "library", content: "video"}
	fallback := NewFallback(logger.Discard(), primary, nil, secondary)

	out := filepath.Join(t.TempDir(), "clip.mp4")
	result, err := fallback.Fetch(context.Background(), Request{URL: "https://youtu.be/dQw4w9WgXcQ", OutputPath: out})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if result.Title != "library" || primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("result = %+v, calls = %d/%d", result, primary.calls, secondary.calls)
	}
}

func TestFallbackRejectsEmptyFiles(t *testing.T) {
	t.Parallel()

	empty := &stubFetcher{name: "yt-dlp", content: ""}
	fallback := NewFallback(logger.Discard(), empty)

	out := filepath.Join(t.TempDir(), "clip.mp4")
	_, err := fallback.Fetch(context.Background(), Request{URL: "https://youtu.be/dQw4w9WgXcQ", OutputPath: out})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected empty output removed, stat err = %v", statErr)
	}
}

func TestFallbackJoinsErrors(t *testing.T) {
	t.Parallel()

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	fallback := NewFallback(logger.Discard(), &stubFetcher{name: "a", err: errA}, &stubFetcher{name: "b", err: errB})

	_, err := fallback.Fetch(context.Background(), Request{OutputPath: filepath.Join(t.TempDir(), "x")})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestYTDLPFetchBuildsShortsArguments(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "clip.mp4")
	var calls [][]string
	y := NewYTDLP(YTDLPConfig{Path: "yt-dlp", VideoTimeout: time.Second}, logger.Discard())
	y.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, args)
		if slices.Contains(args, "--dump-json") {
			return []byte(`{"id":"abcd1234XYZ","title":"Blue Bird","uploader":"Ikimono","duration":12.5}` + "\n"), nil
		}
		return nil, os.WriteFile(out, []byte("mp4"), 0o600)
	}

	result, err := y.Fetch(context.Background(), Request{URL: "https://youtube.com/shorts/abcd1234XYZ", Kind: KindVideo, OutputPath: out})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if result.Title != "Blue Bird" || result.Duration != 12500*time.Millisecond || result.Size != 3 {
		t.Fatalf("result = %+v", result)
	}

	download := calls[len(calls)-1]
	if download[1] != shortsFormat {
		t.Fatalf("format = %q, want %q", download[1], shortsFormat)
	}
	for _, flag := range []string{"--no-playlist", "--no-warnings", "--force-overwrites"} {
		if !slices.Contains(download, flag) {
			t.Fatalf("missing flag %s in %v", flag, download)
		}
	}
}

func TestYTDLPSearch(t *testing.T) {
	t.Parallel()

	y := NewYTDLP(YTDLPConfig{}, logger.Discard())
	y.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[len(args)-1] != "ytsearch1:naruto blue bird" {
			t.Errorf("unexpected target %q", args[len(args)-1])
		}
		return []byte("WARNING: noise\n" + `{"id":"aJRu5ltxXjc","title":"Blue Bird","thumbnail":"https://i.ytimg.com/x.jpg","duration":220}`), nil
	}

	result, err := y.Search(context.Background(), "naruto blue bird")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if result.URL != "https://www.youtube.com/watch?v=aJRu5ltxXjc" || result.Duration != 220*time.Second {
		t.Fatalf("result = %+v", result)
	}
}

func TestYTDLPSearchNoResults(t *testing.T) {
	t.Parallel()

	y := NewYTDLP(YTDLPConfig{}, logger.Discard())
	y.run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }

	if _, err := y.Search(context.Background(), "zzzz"); !errors.Is(err, ErrNoResults) {
		t.Fatalf("Search error = %v, want ErrNoResults", err)
	}
}

func TestFFmpegMP3Arguments(t *testing.T) {
	t.Parallel()

	ff := NewFFmpeg("ffmpeg", time.Second, logger.Discard())
	var got []string
	ff.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		got = args
		return nil, nil
	}

	if err := ff.ToMP3(context.Background(), "in.webm", "out.mp3"); err != nil {
		t.Fatalf("ToMP3 error: %v", err)
	}
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "-acodec libmp3lame -b:a 128k out.mp3") {
		t.Fatalf("args = %q", joined)
	}
}

func TestHTTPGetterRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/thumb.jpg" {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	getter := NewHTTPGetter(time.Second, 1024)
	body, contentType, err := getter.Get(context.Background(), server.URL+"/thumb.jpg")
	if err != nil || string(body) != "jpeg" || contentType != "image/jpeg" {
		t.Fatalf("Get = %q, %q, %v", body, contentType, err)
	}

	if _, _, err := getter.Get(context.Background(), server.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}
