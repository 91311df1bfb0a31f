package lyrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"konoha/pkg/config"
)

// Finder tries sources in order until one returns lyrics. Each source gets
// its own timeout so a slow site cannot stall the chain.
type Finder struct {
	sources []Source
	timeout time.Duration
	log     *slog.Logger
	genius  *Genius
}

func NewFinder(sources []Source, timeout time.Duration, log *slog.Logger) *Finder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	f := &Finder{timeout: timeout, log: log.With("component", "lyrics")}
	for _, source := range sources {
		if source == nil {
			continue
		}
		if genius, ok := source.(*Genius); ok {
			f.genius = genius
		}
		f.sources = append(f.sources, source)
	}

	return f
}

// FromConfig builds the source chain named in cfg.Sources.
func FromConfig(cfg config.LyricsConfig, log *slog.Logger) (*Finder, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var sources []Source
	for _, name := range cfg.Sources {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "genius":
			sources = append(sources, NewGenius(cfg.GeniusBaseURL, cfg.GeniusToken, timeout, log))
		case "azlyrics":
			sources = append(sources, NewAZLyrics("", timeout, log))
		case "google":
			sources = append(sources, NewGoogle("", timeout, log))
		case "duckduckgo":
			sources = append(sources, NewDuckDuckGo("", timeout, log))
		case "regional":
			sources = append(sources, NewRegional(nil, timeout, log))
		default:
			return nil, fmt.Errorf("unknown lyrics source %q", name)
		}
	}

	return NewFinder(sources, timeout, log), nil
}

// Find returns the first song any source resolves. Regional queries try the
// regional source first.
func (f *Finder) Find(ctx context.Context, query string) (Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Song{}, errors.New("empty query")
	}

	var errs []error
	for _, source := range f.order(query) {
		song, err := f.try(ctx, source, query)
		if err == nil {
			return song, nil
		}
		if ctx.Err() != nil {
			return Song{}, ctx.Err()
		}

		f.log.Debug("Lyrics source failed", "source", source.Name(), "query", query, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
	}

	return Song{}, fmt.Errorf("%w: %w", ErrNotFound, errors.Join(errs...))
}

func (f *Finder) try(ctx context.Context, source Source, query string) (Song, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	song, err := source.Find(ctx, query)
	if err != nil {
		return Song{}, err
	}
	if strings.TrimSpace(song.Lyrics) == "" {
		return Song{}, ErrNotFound
	}
	if song.Title == "" {
		song.Title = query
	}
	if song.Artist == "" {
		song.Artist = "Unknown Artist"
	}

	return song, nil
}

func (f *Finder) order(query string) []Source {
	if !IsRegional(query) {
		return f.sources
	}

	ordered := make([]Source, 0, len(f.sources))
	for _, source := range f.sources {
		if _, ok := source.(*Regional); ok {
			ordered = append(ordered, source)
		}
	}
	for _, source := range f.sources {
		if _, ok := source.(*Regional); !ok {
			ordered = append(ordered, source)
		}
	}

	return ordered
}

// Ping tests the Genius API connection when a Genius source is configured.
func (f *Finder) Ping(ctx context.Context) (string, error) {
	if f.genius == nil {
		return "", errors.New("API test failed!\n• Problem: Genius source is not enabled")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return f.genius.Ping(ctx)
}
