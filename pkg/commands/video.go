package commands

import (
	"context"
	"fmt"
	"os"

	"konoha/pkg/bus"
	"konoha/pkg/command"
	"konoha/pkg/media"
	"konoha/pkg/workspace"
)

func (d *Deps) shortsVideoCommand() (command.Descriptor, error) {
	if d.Videos == nil {
		return command.Descriptor{}, missing("shortsvideo", "video fetcher")
	}
	if d.Scratch == nil {
		return command.Descriptor{}, missing("shortsvideo", "scratch space")
	}

	return command.Descriptor{
		Name:        "shortsvideo",
		Aliases:     []string{"shorts", "reel", "reels"},
		Description: "Download YouTube Shorts or Instagram Reels",
		Usage:       ".shortsvideo <shorts/reels URL>",
		Handler:     d.shortsVideo,
	}, nil
}

func (d *Deps) shortsVideo(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	url := dc.Arg(0)
	if url == "" {
		_, err := msg.Reply(ctx, fmt.Sprintf("Please provide a YouTube Shorts or Instagram Reels URL.\nExample: %sshortsvideo https://youtube.com/shorts/abcd1234", dc.Prefix))
		return err
	}

	status, err := msg.StartStatus(ctx, "📥 Processing video link...")
	if err != nil {
		d.log().Warn("Video status failed", "chat_id", msg.ChatID, "error", err)
	}

	kind := media.Classify(url)
	if kind == media.LinkUnknown {
		return status.Update(ctx, "❌ Invalid link. Only YouTube Shorts and Instagram Reels are supported.")
	}
	d.progress(ctx, status, "🔍 Valid link detected! Downloading video...")

	out, err := d.Scratch.File("video", ".mp4")
	if err != nil {
		return err
	}
	defer out.Release()

	result, err := d.Videos.Fetch(ctx, media.Request{URL: url, Kind: media.KindVideo, OutputPath: out.Path})
	if err == nil {
		err = d.checkVideoSize(out.Path)
	}
	if err != nil {
		d.log().Warn("Video download failed", "url", url, "kind", kind, "error", err)
		if kind == media.LinkInstagramReels {
			return status.Update(ctx, "❌ Failed to download Instagram reel: "+err.Error())
		}
		return status.Update(ctx, "❌ Failed to download video: "+err.Error())
	}

	d.progress(ctx, status, "✅ Download complete! Sending video...")

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return workspace.NormalizeIOError(err, "read video")
	}

	title := result.Title
	if title == "" {
		title = "Video"
	}
	video := bus.Media{
		Kind:      bus.MediaVideo,
		Data:      data,
		MimeType:  "video/mp4",
		FileName:  title + ".mp4",
		Caption:   "✅ " + title,
		Seconds:   uint32(result.Duration.Seconds()),
		Thumbnail: d.thumbnail(ctx, result.ThumbnailURL),
	}
	if _, err := msg.Send(ctx, d.withPreview(bus.OutboundMessage{Media: &video}, title, url)); err != nil {
		return err
	}

	d.progress(ctx, status, "✅ Video sent successfully!")
	return nil
}

func (d *Deps) checkVideoSize(path string) error {
	if d.Config == nil || d.Config.Media.MaxVideoBytes <= 0 {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		return workspace.NormalizeIOError(err, "stat video")
	}
	if stat.Size() > d.Config.Media.MaxVideoBytes {
		return fmt.Errorf("video is %d MB, the limit is %d MB", stat.Size()>>20, d.Config.Media.MaxVideoBytes>>20)
	}

	return nil
}

// thumbnail fetches a preview image. Failures only cost the preview.
func (d *Deps) thumbnail(ctx context.Context, url string) []byte {
	if url == "" || d.HTTP == nil {
		return nil
	}

	data, _, err := d.HTTP.Get(ctx, url)
	if err != nil {
		d.log().Debug("Thumbnail fetch failed", "url", url, "error", err)
		return nil
	}

	return data
}

// withPreview attaches a link preview card when the media has a thumbnail.
func (d *Deps) withPreview(out bus.OutboundMessage, title string, url string) bus.OutboundMessage {
	if out.Media == nil || len(out.Media.Thumbnail) == 0 {
		return out
	}

	body := "Konoha Bot"
	if d.Config != nil && d.Config.Bot.Name != "" {
		body = d.Config.Bot.Name
	}
	out.Metadata = map[string]string{
		bus.MetaPreviewTitle: title,
		bus.MetaPreviewBody:  body,
		bus.MetaPreviewURL:   url,
	}

	return out
}
