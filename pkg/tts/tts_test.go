package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"konoha/pkg/config"
	"konoha/pkg/logger"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	parts := splitText("one two three four", 9)
	assert.Equal(t, []string{"one two", "three", "four"}, parts)

	long := strings.Repeat("あ", 25)
	parts = splitText("hi "+long, 10)
	assert.Equal(t, []string{"hi", strings.Repeat("あ", 10), strings.Repeat("あ", 10), strings.Repeat("あ", 5)}, parts)
	for _, part := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(part), 10)
	}

	assert.Empty(t, splitText("   ", 10))
}

func TestGoogleSynthesizeConcatenatesChunks(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("idx")+"/"+q.Get("total")+":"+q.Get("tl"))
		mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	t.Cleanup(server.Close)

	text := strings.TrimSpace(strings.Repeat("dattebayo ", 15))
	audio, err := NewGoogle(server.URL, time.Second).Synthesize(context.Background(), text, "ja")
	require.NoError(t, err)

	assert.Equal(t, "[0][1]", string(audio.Data))
	assert.Equal(t, "google", audio.Provider)
	assert.Equal(t, []string{"0/2:ja", "1/2:ja"}, seen)
}

func TestGoogleSynthesizeRejectsBadLanguage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	_, err := NewGoogle(server.URL, time.Second).Synthesize(context.Background(), "hello", "zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"zz"`)
}

type fakeSynth struct {
	name  string
	data  string
	err   error
	calls int
}

func (f *fakeSynth) Name() string { return f.name }

func (f *fakeSynth) Synthesize(context.Context, string, string) (Audio, error) {
	f.calls++
	if f.err != nil {
		return Audio{}, f.err
	}
	return Audio{Data: []byte(f.data)}, nil
}

func TestChainFallsThrough(t *testing.T) {
	t.Parallel()

	broken := &fakeSynth{name: "google", err: errors.New("blocked")}
	silent := &fakeSynth{name: "empty"}
	working := &fakeSynth{name: "openai", data: "mp3"}

	audio, err := NewChain(logger.Discard(), broken, nil, silent, working).Synthesize(context.Background(), " hi ", "en")
	require.NoError(t, err)
	assert.Equal(t, "openai", audio.Provider)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, silent.calls)
}

func TestChainErrors(t *testing.T) {
	t.Parallel()

	errA := errors.New("a down")
	chain := NewChain(logger.Discard(), &fakeSynth{name: "a", err: errA})

	_, err := chain.Synthesize(context.Background(), "hello", "en")
	require.ErrorIs(t, err, errA)

	_, err = chain.Synthesize(context.Background(), "   ", "en")
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestFromConfigSkipsOpenAIWithoutKey(t *testing.T) {
	t.Parallel()

	chain, err := FromConfig(config.Default().TTS, logger.Discard())
	require.NoError(t, err)
	require.Len(t, chain.providers, 1)
	assert.Equal(t, "google", chain.providers[0].Name())

	cfg := config.Default().TTS
	cfg.OpenAI.APIKey = "sk-test"
	chain, err = FromConfig(cfg, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, chain.providers, 2)

	_, err = FromConfig(config.TTSConfig{Providers: []string{"polly"}}, logger.Discard())
	require.Error(t, err)

	_, err = FromConfig(config.TTSConfig{Providers: []string{"openai"}}, logger.Discard())
	require.Error(t, err)
}

func TestCleanTextAndLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hello world", CleanText("Hello 👋  world 🌍"))
	assert.Equal(t, 3, Length("a👍🏽b"))
}

func TestDurationOfUndecodableAudio(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Audio{Data: []byte("not mp3")}.Duration())
}
