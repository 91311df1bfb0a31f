package tts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"konoha/pkg/config"
)

// OpenAI synthesizes speech through the audio speech endpoint. The model
// detects the language from the text, so lang is ignored.
type OpenAI struct {
	client         osdk.Client
	model          string
	voice          string
	requestTimeout time.Duration
}

func NewOpenAI(cfg config.OpenAITTSConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	model := cfg.Model
	if model == "" {
		model = osdk.SpeechModelTTS1
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(osdk.AudioSpeechNewParamsVoiceAlloy)
	}

	return &OpenAI{
		client:         osdk.NewClient(opts...),
		model:          model,
		voice:          voice,
		requestTimeout: requestTimeout,
	}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Synthesize(ctx context.Context, text string, _ string) (Audio, error) {
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	resp, err := o.client.Audio.Speech.New(ctx, osdk.AudioSpeechNewParams{
		Input:          text,
		Model:          o.model,
		Voice:          osdk.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: osdk.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("read openai speech: %w", err)
	}

	return Audio{Data: data, MimeType: "audio/mpeg", Provider: o.Name()}, nil
}
