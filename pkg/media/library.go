package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

// Library downloads YouTube media in-process. It is the fallback when the
// yt-dlp executable is missing or fails, and cannot handle Instagram.
type Library struct {
	client  *youtube.Client
	ffmpeg  *FFmpeg
	timeout time.Duration
	log     *slog.Logger
}

func NewLibrary(ffmpeg *FFmpeg, timeout time.Duration, log *slog.Logger) *Library {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Library{
		client:  &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
		ffmpeg:  ffmpeg,
		timeout: timeout,
		log:     log.With("component", "media.library"),
	}
}

func (l *Library) Name() string {
	return "youtube-library"
}

func (l *Library) Fetch(ctx context.Context, req Request) (Result, error) {
	kind := Classify(req.URL)
	if kind != LinkYouTube && kind != LinkYouTubeShorts {
		return Result{}, fmt.Errorf("%w: library supports YouTube only", ErrUnsupportedURL)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	video, err := l.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return Result{}, fmt.Errorf("get video: %w", err)
	}

	format, err := pickFormat(video.Formats, req.Kind)
	if err != nil {
		return Result{}, err
	}

	target := req.OutputPath
	if req.Kind == KindAudio {
		target = req.OutputPath + ".src"
		defer os.Remove(target)
	}

	if err := l.download(ctx, video, format, target); err != nil {
		return Result{}, err
	}

	if req.Kind == KindAudio {
		if l.ffmpeg == nil {
			return Result{}, fmt.Errorf("ffmpeg is required for audio conversion")
		}
		if err := l.ffmpeg.ToMP3(ctx, target, req.OutputPath); err != nil {
			return Result{}, err
		}
	}

	result := Result{
		Path:     req.OutputPath,
		Title:    video.Title,
		Uploader: video.Author,
		Duration: video.Duration,
	}
	if len(video.Thumbnails) > 0 {
		result.ThumbnailURL = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	if stat, err := os.Stat(req.OutputPath); err == nil {
		result.Size = stat.Size()
	}

	return result, nil
}

func (l *Library) download(ctx context.Context, video *youtube.Video, format *youtube.Format, path string) error {
	stream, _, err := l.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		return fmt.Errorf("copy stream: %w", err)
	}

	return nil
}

// pickFormat prefers muxed mp4 for video and the best audio-only stream for
// audio.
func pickFormat(formats youtube.FormatList, kind Kind) (*youtube.Format, error) {
	var candidates youtube.FormatList
	if kind == KindAudio {
		candidates = formats.Select(func(f youtube.Format) bool {
			return strings.HasPrefix(f.MimeType, "audio/")
		})
	} else {
		candidates = formats.Type("video/mp4").WithAudioChannels().Select(func(f youtube.Format) bool {
			return f.Height == 0 || f.Height <= 720
		})
		if len(candidates) == 0 {
			candidates = formats.WithAudioChannels()
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no %s format available", kind)
	}

	candidates.Sort()
	return &candidates[0], nil
}
