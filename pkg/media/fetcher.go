package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Kind selects what a fetch should produce.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Request describes one download. OutputPath is where the final file must
// be written; the caller owns and removes it.
type Request struct {
	URL        string
	Kind       Kind
	OutputPath string
}

// Result is a completed download.
type Result struct {
	Path         string
	Title        string
	Uploader     string
	ThumbnailURL string
	Duration     time.Duration
	Size         int64
}

// Fetcher downloads media for a URL.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, req Request) (Result, error)
}

// Fallback tries each fetcher in order until one produces a non-empty file.
type Fallback struct {
	fetchers []Fetcher
	log      *slog.Logger
}

func NewFallback(log *slog.Logger, fetchers ...Fetcher) *Fallback {
	if log == nil {
		log = slog.Default()
	}

	active := make([]Fetcher, 0, len(fetchers))
	for _, fetcher := range fetchers {
		if fetcher != nil {
			active = append(active, fetcher)
		}
	}

	return &Fallback{fetchers: active, log: log.With("component", "media.fallback")}
}

func (f *Fallback) Name() string {
	return "fallback"
}

func (f *Fallback) Fetch(ctx context.Context, req Request) (Result, error) {
	if len(f.fetchers) == 0 {
		return Result{}, errors.New("no media fetchers configured")
	}

	var errs []error
	for _, fetcher := range f.fetchers {
		result, err := fetcher.Fetch(ctx, req)
		if err == nil {
			err = verifyFile(result.Path)
		}
		if err == nil {
			return result, nil
		}

		f.log.Warn("Media fetch failed", "fetcher", fetcher.Name(), "url", req.URL, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", fetcher.Name(), err))
		_ = os.Remove(req.OutputPath)

		if ctx.Err() != nil {
			break
		}
	}

	return Result{}, errors.Join(errs...)
}

// verifyFile checks that a download produced a non-empty file.
func verifyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("downloaded file is empty")
	}

	return nil
}
