package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"konoha/pkg/logger"
)

func noop(context.Context, *Message, DispatchContext) error { return nil }

func testManifest() []Factory {
	return []Factory{
		Static(Descriptor{Name: "ping", Description: "Check latency", Handler: noop}),
		Static(Descriptor{Name: "Sing", Aliases: []string{"song"}, Handler: noop}),
		Static(Descriptor{Name: "shortsvideo", Aliases: []string{"shorts", "reel", "REELS"}, Handler: noop}),
	}
}

func TestLookupIsCaseInsensitiveForNamesAndAliases(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	stats := reg.Load(testManifest())
	require.Equal(t, LoadStats{Loaded: 3}, stats)

	for _, key := range []string{"ping", "PING", "sing", "Song", "shortsvideo", "Shorts", "reel", "reels"} {
		desc, ok := reg.Lookup(key)
		require.True(t, ok, "lookup %q", key)

		primary, ok := reg.Lookup(desc.Name)
		require.True(t, ok)
		assert.Equal(t, primary.Name, desc.Name, "alias %q resolves to its primary", key)
	}

	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadSkipsBrokenFactories(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	stats := reg.Load([]Factory{
		func() (Descriptor, error) { return Descriptor{}, errors.New("missing binary") },
		func() (Descriptor, error) { panic("boom") },
		Static(Descriptor{Name: "nohandler"}),
		Static(Descriptor{Name: ""}),
		nil,
		Static(Descriptor{Name: "ping", Handler: noop}),
	})

	assert.Equal(t, LoadStats{Loaded: 1, Skipped: 5}, stats)
	_, ok := reg.Lookup("ping")
	assert.True(t, ok)
}

func TestFirstRegistrationWinsOnCollision(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	stats := reg.Load([]Factory{
		Static(Descriptor{Name: "song", Description: "first", Handler: noop}),
		Static(Descriptor{Name: "sing", Aliases: []string{"song", "play"}, Handler: noop}),
		Static(Descriptor{Name: "SONG", Description: "duplicate", Handler: noop}),
	})

	assert.Equal(t, LoadStats{Loaded: 2, Skipped: 1}, stats)

	desc, ok := reg.Lookup("song")
	require.True(t, ok)
	assert.Equal(t, "first", desc.Description)

	sing, ok := reg.Lookup("play")
	require.True(t, ok)
	assert.Equal(t, "sing", sing.Name)
	assert.Equal(t, []string{"play"}, sing.Aliases)
}

func TestListIsSorted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	reg.Load(testManifest())

	names := make([]string, 0)
	for _, desc := range reg.List() {
		names = append(names, desc.Name)
	}
	assert.Equal(t, []string{"ping", "shortsvideo", "sing"}, names)
	assert.Equal(t, 3, reg.Len())
}

func TestReloadResolvesIdentically(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	reg.Load(testManifest())

	keys := []string{"ping", "sing", "song", "shortsvideo", "shorts", "reel", "reels"}
	before := make(map[string]string, len(keys))
	for _, key := range keys {
		desc, _ := reg.Lookup(key)
		before[key] = desc.Name
	}

	reg.Reload()

	for _, key := range keys {
		desc, ok := reg.Lookup(key)
		require.True(t, ok)
		assert.Equal(t, before[key], desc.Name, "key %q", key)
	}
}

func TestReloadIsAtomicForReaders(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	reg.Load(testManifest())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	failures := make(chan string, 1)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := reg.Lookup("song"); !ok {
					select {
					case failures <- "song missing during reload":
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		reg.Reload()
	}
	close(stop)
	wg.Wait()

	select {
	case failure := <-failures:
		t.Fatal(failure)
	default:
	}
}

func TestFindReportsUnknownCommands(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(logger.Discard())
	reg.Load(testManifest())

	desc, err := reg.Find("SONG")
	require.NoError(t, err)
	assert.Equal(t, "sing", desc.Name)

	_, err = reg.Find("rasengan")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `"rasengan"`)
}
