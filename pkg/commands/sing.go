package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"konoha/pkg/bus"
	"konoha/pkg/command"
	"konoha/pkg/media"
	"konoha/pkg/workspace"
)

func (d *Deps) singCommand() (command.Descriptor, error) {
	switch {
	case d.Search == nil:
		return command.Descriptor{}, missing("sing", "searcher")
	case d.Audio == nil:
		return command.Descriptor{}, missing("sing", "audio fetcher")
	case d.Scratch == nil:
		return command.Descriptor{}, missing("sing", "scratch space")
	}

	return command.Descriptor{
		Name:        "sing",
		Aliases:     []string{"song"},
		Description: "Search and play a song from YouTube",
		Usage:       ".sing <song name>",
		Handler:     d.sing,
	}, nil
}

func (d *Deps) sing(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	query := dc.Text
	if query == "" {
		_, err := msg.Reply(ctx, fmt.Sprintf("Please provide a song name to search.\nExample: %ssing Naruto Blue Bird", dc.Prefix))
		return err
	}

	status, err := msg.StartStatus(ctx, fmt.Sprintf("🔍 Searching for \"%s\"...", query))
	if err != nil {
		d.log().Warn("Sing status failed", "chat_id", msg.ChatID, "error", err)
	}

	if err := d.singTrack(ctx, msg, status, query); err != nil {
		d.log().Error("Sing failed", "query", query, "error", err)
		_, err = msg.Reply(ctx, fmt.Sprintf("❌ An error occurred: %s\n\nPlease try again later.", err))
		return err
	}

	return nil
}

func (d *Deps) singTrack(ctx context.Context, msg *command.Message, status *command.Status, query string) error {
	hit, err := d.Search.Search(ctx, query)
	if errors.Is(err, media.ErrNoResults) {
		return status.Update(ctx, fmt.Sprintf("❌ No results found for \"%s\". Please try a different search.", query))
	}
	if err != nil {
		return err
	}

	d.progress(ctx, status, fmt.Sprintf("🎧 Found: *%s*\n\n⏳ Downloading and processing audio...", hit.Title))

	out, err := d.Scratch.File("song", ".mp3")
	if err != nil {
		return err
	}
	defer out.Release()

	if _, err := d.Audio.Fetch(ctx, media.Request{URL: hit.URL, Kind: media.KindAudio, OutputPath: out.Path}); err != nil {
		return err
	}

	d.progress(ctx, status, fmt.Sprintf("✅ Downloaded: *%s*\n\n📥 Fetching thumbnail...", hit.Title))
	thumb := d.thumbnail(ctx, hit.ThumbnailURL)

	d.progress(ctx, status, fmt.Sprintf("🎵 Preparing to send: *%s*", hit.Title))

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return workspace.NormalizeIOError(err, "read song")
	}

	audio := bus.Media{
		Kind:      bus.MediaAudio,
		Data:      data,
		MimeType:  "audio/mpeg",
		FileName:  hit.Title + ".mp3",
		Seconds:   uint32(hit.Duration.Seconds()),
		Thumbnail: thumb,
	}
	if _, err := msg.Send(ctx, d.withPreview(bus.OutboundMessage{Media: &audio}, hit.Title, hit.URL)); err != nil {
		return err
	}

	d.progress(ctx, status, fmt.Sprintf("✅ Successfully sent: *%s*\nEnjoy your music! 🎵", hit.Title))
	return nil
}
