package sticker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sunshineplan/imgconv"

	"konoha/pkg/bus"
	"konoha/pkg/workspace"
)

// Size is the edge length of a sticker canvas.
const Size = 512

// MaxVideoSeconds caps animated stickers.
const MaxVideoSeconds = 10

// ErrUnsupportedMedia is returned for attachments that cannot become
// stickers.
var ErrUnsupportedMedia = errors.New("only images and videos can become stickers")

// Converter encodes WebP files. *media.FFmpeg implements it.
type Converter interface {
	ImageToWebP(ctx context.Context, in string, out string) error
	VideoToWebP(ctx context.Context, in string, out string, maxSeconds int) error
}

// Maker turns images and videos into tagged WebP stickers. Videos are cut
// to MaxVideoSeconds.
type Maker struct {
	converter Converter
	scratch   *workspace.Scratch
	meta      Metadata
	log       *slog.Logger
}

func NewMaker(converter Converter, scratch *workspace.Scratch, meta Metadata, log *slog.Logger) *Maker {
	if log == nil {
		log = slog.Default()
	}

	return &Maker{
		converter: converter,
		scratch:   scratch,
		meta:      meta,
		log:       log.With("component", "sticker"),
	}
}

// Make converts media into a sticker attachment.
func (m *Maker) Make(ctx context.Context, media bus.Media) (bus.Media, error) {
	if len(media.Data) == 0 {
		return bus.Media{}, ErrUnsupportedMedia
	}

	startedAt := time.Now()
	var (
		webp []byte
		err  error
	)
	switch {
	case isVideo(media):
		webp, err = m.fromVideo(ctx, media.Data)
	case media.Kind == bus.MediaImage || media.Kind == bus.MediaSticker || strings.HasPrefix(media.MimeType, "image/"):
		webp, err = m.fromImage(ctx, media.Data)
	default:
		return bus.Media{}, ErrUnsupportedMedia
	}
	if err != nil {
		return bus.Media{}, err
	}

	exif, err := BuildExif(m.meta)
	if err != nil {
		return bus.Media{}, err
	}
	tagged, err := InjectExif(webp, exif)
	if err != nil {
		return bus.Media{}, fmt.Errorf("tag sticker: %w", err)
	}

	m.log.Debug("Sticker created", "kind", media.Kind, "bytes", len(tagged), "duration_ms", time.Since(startedAt).Milliseconds())

	return bus.Media{
		Kind:     bus.MediaSticker,
		Data:     tagged,
		MimeType: "image/webp",
		Animated: isAnimated(tagged),
	}, nil
}

func isVideo(media bus.Media) bool {
	return media.Kind == bus.MediaVideo ||
		strings.HasPrefix(media.MimeType, "video/") ||
		media.MimeType == "image/gif"
}

// fromImage letterboxes the image onto a transparent square canvas before
// encoding.
func (m *Maker) fromImage(ctx context.Context, data []byte) ([]byte, error) {
	src, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	canvas := imaging.PasteCenter(
		imaging.New(Size, Size, color.NRGBA{}),
		imaging.Fit(src, Size, Size, imaging.Lanczos),
	)

	png, err := m.scratch.File("sticker-src", ".png")
	if err != nil {
		return nil, err
	}
	defer png.Release()

	if err := imaging.Save(canvas, png.Path); err != nil {
		return nil, fmt.Errorf("save sticker canvas: %w", err)
	}

	return m.encode(func(out string) error {
		return m.converter.ImageToWebP(ctx, png.Path, out)
	})
}

func (m *Maker) fromVideo(ctx context.Context, data []byte) ([]byte, error) {
	src, err := m.scratch.File("sticker-src", ".mp4")
	if err != nil {
		return nil, err
	}
	defer src.Release()

	if err := os.WriteFile(src.Path, data, 0o600); err != nil {
		return nil, workspace.NormalizeIOError(err, "write sticker source")
	}

	return m.encode(func(out string) error {
		return m.converter.VideoToWebP(ctx, src.Path, out, MaxVideoSeconds)
	})
}

func (m *Maker) encode(convert func(out string) error) ([]byte, error) {
	out, err := m.scratch.File("sticker", ".webp")
	if err != nil {
		return nil, err
	}
	defer out.Release()

	if err := convert(out.Path); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}

	webp, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, workspace.NormalizeIOError(err, "read sticker")
	}
	if len(webp) == 0 {
		return nil, errors.New("encode webp: empty output")
	}

	return webp, nil
}
