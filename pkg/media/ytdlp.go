package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	shortsFormat  = "best[height<=720][ext=mp4]/best[ext=mp4]/best"
	defaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	audioFormat   = "bestaudio/best"
)

// runner executes an external program and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 300 {
			detail = detail[len(detail)-300:]
		}
		if detail != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, detail)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}

	return stdout.Bytes(), nil
}

// YTDLP downloads through the yt-dlp executable.
type YTDLP struct {
	path         string
	ffmpeg       *FFmpeg
	videoTimeout time.Duration
	audioTimeout time.Duration
	run          runner
	log          *slog.Logger
}

// YTDLPConfig configures the yt-dlp fetcher.
type YTDLPConfig struct {
	Path         string
	FFmpeg       *FFmpeg
	VideoTimeout time.Duration
	AudioTimeout time.Duration
}

func NewYTDLP(cfg YTDLPConfig, log *slog.Logger) *YTDLP {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 60 * time.Second
	}
	if cfg.AudioTimeout <= 0 {
		cfg.AudioTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &YTDLP{
		path:         cfg.Path,
		ffmpeg:       cfg.FFmpeg,
		videoTimeout: cfg.VideoTimeout,
		audioTimeout: cfg.AudioTimeout,
		run:          execRunner,
		log:          log.With("component", "media.ytdlp"),
	}
}

func (y *YTDLP) Name() string {
	return "yt-dlp"
}

// Available reports whether the executable can be found.
func (y *YTDLP) Available() bool {
	_, err := exec.LookPath(y.path)
	return err == nil
}

type videoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
}

func (v videoInfo) result(path string) Result {
	return Result{
		Path:         path,
		Title:        v.Title,
		Uploader:     v.Uploader,
		ThumbnailURL: v.Thumbnail,
		Duration:     time.Duration(v.Duration * float64(time.Second)),
	}
}

// Fetch downloads a video, or an mp3 when req.Kind is KindAudio.
func (y *YTDLP) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.Kind == KindAudio {
		return y.fetchAudio(ctx, req)
	}

	ctx, cancel := context.WithTimeout(ctx, y.videoTimeout)
	defer cancel()

	info, err := y.info(ctx, req.URL)
	if err != nil {
		y.log.Debug("Video info unavailable", "url", req.URL, "error", err)
	}

	format := defaultFormat
	if Classify(req.URL) == LinkYouTubeShorts {
		format = shortsFormat
	}

	args := []string{
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--force-overwrites",
		"-o", req.OutputPath,
		req.URL,
	}
	if _, err := y.run(ctx, y.path, args...); err != nil {
		return Result{}, err
	}

	result := info.result(req.OutputPath)
	if stat, err := os.Stat(req.OutputPath); err == nil {
		result.Size = stat.Size()
	}

	return result, nil
}

func (y *YTDLP) fetchAudio(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, y.audioTimeout)
	defer cancel()

	info, err := y.info(ctx, req.URL)
	if err != nil {
		y.log.Debug("Audio info unavailable", "url", req.URL, "error", err)
	}

	rawPath := req.OutputPath + ".src"
	defer os.Remove(rawPath)

	args := []string{
		"-f", audioFormat,
		"--no-playlist",
		"--no-warnings",
		"--force-overwrites",
		"-o", rawPath,
		req.URL,
	}
	if _, err := y.run(ctx, y.path, args...); err != nil {
		return Result{}, err
	}

	if y.ffmpeg == nil {
		return Result{}, errors.New("ffmpeg is required for audio conversion")
	}
	if err := y.ffmpeg.ToMP3(ctx, rawPath, req.OutputPath); err != nil {
		return Result{}, err
	}

	return info.result(req.OutputPath), nil
}

func (y *YTDLP) info(ctx context.Context, target string) (videoInfo, error) {
	out, err := y.run(ctx, y.path, "--dump-json", "--no-playlist", "--no-warnings", "--skip-download", target)
	if err != nil {
		return videoInfo{}, err
	}

	return firstInfo(out)
}

// SearchResult is the top hit of a YouTube search.
type SearchResult struct {
	ID           string
	Title        string
	URL          string
	ThumbnailURL string
	Duration     time.Duration
	Uploader     string
}

// Search returns the first YouTube result for query.
func (y *YTDLP) Search(ctx context.Context, query string) (SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, y.audioTimeout)
	defer cancel()

	info, err := y.info(ctx, "ytsearch1:"+query)
	if err != nil {
		return SearchResult{}, err
	}
	if info.ID == "" {
		return SearchResult{}, ErrNoResults
	}

	url := info.WebpageURL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + info.ID
	}

	return SearchResult{
		ID:           info.ID,
		Title:        info.Title,
		URL:          url,
		ThumbnailURL: info.Thumbnail,
		Duration:     time.Duration(info.Duration * float64(time.Second)),
		Uploader:     info.Uploader,
	}, nil
}

// ErrNoResults is returned when a search finds nothing.
var ErrNoResults = errors.New("no results")

// firstInfo decodes the first JSON object of yt-dlp --dump-json output.
func firstInfo(out []byte) (videoInfo, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var info videoInfo
		if err := json.Unmarshal(line, &info); err != nil {
			return videoInfo{}, fmt.Errorf("decode yt-dlp info: %w", err)
		}
		return info, nil
	}
	if err := scanner.Err(); err != nil {
		return videoInfo{}, fmt.Errorf("read yt-dlp info: %w", err)
	}

	return videoInfo{}, ErrNoResults
}
