package cmd

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"konoha/pkg/bus"
	"konoha/pkg/command"
	"konoha/pkg/commands"
	"konoha/pkg/config"
	"konoha/pkg/lyrics"
	"konoha/pkg/media"
	"konoha/pkg/sticker"
	"konoha/pkg/tts"
	"konoha/pkg/workspace"
)

const (
	implicitCommand  = "shortsvideo"
	scratchRetention = time.Hour
)

// buildRouter wires the command collaborators, loads the manifest and
// returns the router every channel shares.
func buildRouter(cfg *config.Config, events *bus.MessageBus, log *slog.Logger) (*command.Router, *command.Registry, error) {
	scratch, err := workspace.NewScratch(cfg.Storage.TempDir)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare scratch directory: %w", err)
	}
	if removed, err := scratch.Sweep(scratchRetention); err != nil {
		log.Warn("Failed to sweep scratch directory", "root", scratch.Root(), "error", err)
	} else if removed > 0 {
		log.Info("Removed stale scratch files", "count", removed)
	}

	videoTimeout := time.Duration(cfg.Media.VideoTimeoutSeconds) * time.Second
	audioTimeout := time.Duration(cfg.Media.AudioTimeoutSeconds) * time.Second

	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegPath, audioTimeout, log)
	ytdlp := media.NewYTDLP(media.YTDLPConfig{
		Path:         cfg.Media.YTDLPPath,
		FFmpeg:       ffmpeg,
		VideoTimeout: videoTimeout,
		AudioTimeout: audioTimeout,
	}, log)
	if !ytdlp.Available() {
		log.Warn("yt-dlp not found, falling back to the built-in YouTube downloader", "path", cfg.Media.YTDLPPath)
	}
	if !ffmpeg.Available() {
		log.Warn("ffmpeg not found, audio conversion and video stickers are unavailable", "path", cfg.Media.FFmpegPath)
	}
	fetcher := media.NewFallback(log, ytdlp, media.NewLibrary(ffmpeg, videoTimeout, log))

	finder, err := lyrics.FromConfig(cfg.Lyrics, log)
	if err != nil {
		return nil, nil, fmt.Errorf("configure lyrics: %w", err)
	}

	registry := command.NewRegistry(log)
	deps := &commands.Deps{
		Config:   cfg,
		Registry: registry,
		Lyrics:   finder,
		Voice:    ffmpeg,
		Videos:   fetcher,
		Audio:    fetcher,
		Search:   ytdlp,
		HTTP:     media.NewHTTPGetter(0, 0),
		Stickers: sticker.NewMaker(ffmpeg, scratch, sticker.Metadata{
			PackName:  cfg.Sticker.PackName,
			Publisher: cfg.Sticker.Publisher,
		}, log),
		Scratch: scratch,
		Log:     log,
	}
	if speech, err := tts.FromConfig(cfg.TTS, log); err != nil {
		log.Warn("Speech synthesis disabled", "error", err)
	} else {
		deps.Speech = speech
	}

	registry.Load(commands.Manifest(deps))

	router, err := command.NewRouter(command.RouterConfig{
		Registry:        registry,
		Prefix:          cfg.Bot.Prefix,
		ImplicitCommand: implicitCommand,
		ClassifyURL:     media.IsSupportedVideoURL,
		IsOwner:         ownerCheck(cfg, log),
		Events:          events,
		Log:             log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build router: %w", err)
	}

	return router, registry, nil
}

// ownerCheck accepts the bot's own account, the configured owner number and
// anyone recorded in the owner file at pairing time.
func ownerCheck(cfg *config.Config, log *slog.Logger) func(bus.InboundMessage) bool {
	configured := digitsOnly(cfg.Bot.OwnerNumber)
	ownerFile := cfg.Storage.OwnerFile()

	return func(in bus.InboundMessage) bool {
		if in.FromSelf {
			return true
		}

		number := command.UserPart(in.SenderID)
		if number == "" {
			return false
		}
		if configured != "" && number == configured {
			return true
		}

		owners, err := config.ReadOwners(ownerFile)
		if err != nil {
			log.Warn("Failed to read owner file", "path", ownerFile, "error", err)
			return false
		}
		return slices.Contains(owners, number)
	}
}

func digitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}
