package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// FFmpeg wraps the ffmpeg executable for the conversions the bot needs.
type FFmpeg struct {
	path    string
	timeout time.Duration
	run     runner
	log     *slog.Logger
}

func NewFFmpeg(path string, timeout time.Duration, log *slog.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &FFmpeg{path: path, timeout: timeout, run: execRunner, log: log.With("component", "media.ffmpeg")}
}

// Available reports whether the executable can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

// ToMP3 transcodes any audio input to 128k MP3.
func (f *FFmpeg) ToMP3(ctx context.Context, in string, out string) error {
	return f.exec(ctx, "-y", "-i", in, "-vn", "-acodec", "libmp3lame", "-b:a", "128k", out)
}

// ToVoiceNote transcodes audio to mono Opus in an Ogg container, the format
// voice notes are played from.
func (f *FFmpeg) ToVoiceNote(ctx context.Context, in string, out string) error {
	return f.exec(ctx, "-y", "-i", in, "-vn", "-c:a", "libopus", "-b:a", "64k", "-ac", "1", "-ar", "48000", "-f", "ogg", out)
}

// ImageToWebP scales an image into a 512x512 transparent canvas.
func (f *FFmpeg) ImageToWebP(ctx context.Context, in string, out string) error {
	return f.exec(ctx, "-y", "-i", in,
		"-vf", stickerFilter(0),
		"-vcodec", "libwebp", "-lossless", "0", "-q:v", "75", "-preset", "default", "-loop", "0", "-an", "-vsync", "0",
		out)
}

// VideoToWebP converts the first seconds of a video into an animated sticker.
func (f *FFmpeg) VideoToWebP(ctx context.Context, in string, out string, maxSeconds int) error {
	if maxSeconds <= 0 {
		maxSeconds = 10
	}

	return f.exec(ctx, "-y", "-i", in,
		"-t", strconv.Itoa(maxSeconds),
		"-vf", stickerFilter(10),
		"-vcodec", "libwebp", "-lossless", "0", "-q:v", "50", "-preset", "default", "-loop", "0", "-an", "-vsync", "0",
		out)
}

// ExtractFrame grabs one JPEG frame to use as a video thumbnail.
func (f *FFmpeg) ExtractFrame(ctx context.Context, in string, out string) error {
	return f.exec(ctx, "-y", "-ss", "00:00:01", "-i", in, "-frames:v", "1", "-vf", "scale=320:-2", out)
}

func stickerFilter(fps int) string {
	filter := "scale=512:512:force_original_aspect_ratio=decrease,format=rgba,pad=512:512:(ow-iw)/2:(oh-ih)/2:color=#00000000"
	if fps > 0 {
		filter = "fps=" + strconv.Itoa(fps) + "," + filter
	}

	return filter
}

func (f *FFmpeg) exec(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	_, err := f.run(ctx, f.path, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	f.log.Debug("ffmpeg finished", "duration_ms", time.Since(start).Milliseconds(), "error", err)

	return err
}
