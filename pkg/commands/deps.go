// Package commands holds the built-in chat commands and the manifest the
// registry loads them from.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"konoha/pkg/bus"
	"konoha/pkg/command"
	"konoha/pkg/config"
	"konoha/pkg/lyrics"
	"konoha/pkg/media"
	"konoha/pkg/tts"
	"konoha/pkg/workspace"
)

// LyricsFinder resolves song lyrics. *lyrics.Finder implements it.
type LyricsFinder interface {
	Find(ctx context.Context, query string) (lyrics.Song, error)
	Ping(ctx context.Context) (string, error)
}

// VoiceConverter turns audio files into voice notes. *media.FFmpeg
// implements it.
type VoiceConverter interface {
	ToVoiceNote(ctx context.Context, in string, out string) error
}

// Searcher finds a video for free text. *media.YTDLP implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (media.SearchResult, error)
}

// Getter downloads small remote assets. *media.HTTPGetter implements it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// StickerMaker converts attachments to stickers. *sticker.Maker implements
// it.
type StickerMaker interface {
	Make(ctx context.Context, media bus.Media) (bus.Media, error)
}

// Deps are the collaborators the built-in commands share. Commands whose
// dependencies are missing are skipped at load time.
type Deps struct {
	Config   *config.Config
	Registry *command.Registry
	Lyrics   LyricsFinder
	Speech   tts.Synthesizer
	Voice    VoiceConverter
	Videos   media.Fetcher
	Audio    media.Fetcher
	Search   Searcher
	HTTP     Getter
	Stickers StickerMaker
	Scratch  *workspace.Scratch
	Log      *slog.Logger

	// Rand and Now are replaced in tests.
	Rand *rand.Rand
	Now  func() time.Time
}

func (d *Deps) log() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}

	return d.Log
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}

	return d.Now()
}

// pick returns a random element of options.
func (d *Deps) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	if d.Rand == nil {
		return options[rand.IntN(len(options))]
	}

	return options[d.Rand.IntN(len(options))]
}

var errMissingDependency = errors.New("missing dependency")

// outText is an unquoted text message into the current chat.
func outText(text string) bus.OutboundMessage {
	return bus.OutboundMessage{Content: text}
}
