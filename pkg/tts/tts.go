package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"konoha/pkg/config"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("text is empty")

// Audio is synthesized speech, MP3 encoded.
type Audio struct {
	Data     []byte
	MimeType string
	Provider string
}

// Duration decodes the MP3 stream to measure its playback length. Zero means
// the stream could not be decoded.
func (a Audio) Duration() time.Duration {
	dec, err := mp3.NewDecoder(bytes.NewReader(a.Data))
	if err != nil || dec.SampleRate() <= 0 {
		return 0
	}

	// go-mp3 always decodes to 16-bit stereo.
	samples := dec.Length() / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate())
}

// Synthesizer turns text into speech for one language.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, lang string) (Audio, error)
}

// Chain tries synthesizers in order until one succeeds.
type Chain struct {
	providers []Synthesizer
	log       *slog.Logger
}

func NewChain(log *slog.Logger, providers ...Synthesizer) *Chain {
	if log == nil {
		log = slog.Default()
	}

	c := &Chain{log: log.With("component", "tts")}
	for _, provider := range providers {
		if provider != nil {
			c.providers = append(c.providers, provider)
		}
	}

	return c
}

// FromConfig builds the provider chain named in cfg.Providers. Providers
// that lack credentials are skipped.
func FromConfig(cfg config.TTSConfig, log *slog.Logger) (*Chain, error) {
	var providers []Synthesizer
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "google":
			providers = append(providers, NewGoogle("", 0))
		case "openai":
			if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
				continue
			}
			providers = append(providers, NewOpenAI(cfg.OpenAI))
		default:
			return nil, fmt.Errorf("unknown tts provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, errors.New("no tts provider is available")
	}

	return NewChain(log, providers...), nil
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Synthesize(ctx context.Context, text string, lang string) (Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Audio{}, ErrEmptyText
	}

	var errs []error
	for _, provider := range c.providers {
		startedAt := time.Now()
		audio, err := provider.Synthesize(ctx, text, lang)
		if err == nil && len(audio.Data) == 0 {
			err = errors.New("empty audio")
		}
		if err != nil {
			c.log.Debug("Speech provider failed", "provider", provider.Name(), "lang", lang, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if audio.Provider == "" {
			audio.Provider = provider.Name()
		}
		c.log.Debug("Speech synthesized", "provider", audio.Provider, "lang", lang, "bytes", len(audio.Data), "duration_ms", time.Since(startedAt).Milliseconds())
		return audio, nil
	}

	return Audio{}, errors.Join(errs...)
}
