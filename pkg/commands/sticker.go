package commands

import (
	"context"
	"errors"
	"fmt"

	"konoha/pkg/channel"
	"konoha/pkg/command"
	"konoha/pkg/sticker"
)

func (d *Deps) stickerCommand() (command.Descriptor, error) {
	if d.Stickers == nil {
		return command.Descriptor{}, missing("sticker", "sticker maker")
	}

	return command.Descriptor{
		Name:        "sticker",
		Aliases:     []string{"s", "stiker"},
		Description: "Turn an image or short video into a sticker",
		Usage:       ".sticker (send with or reply to an image or video)",
		Handler:     d.sticker,
	}, nil
}

var unsupportedStickerText = fmt.Sprintf("❌ Only images and videos can become stickers. Videos are trimmed to the first %d seconds.", sticker.MaxVideoSeconds)

func (d *Deps) sticker(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	src, err := msg.Download(ctx)
	if errors.Is(err, channel.ErrNoMedia) {
		_, err = msg.Reply(ctx, "❌ Send an image or a short video with "+dc.Prefix+"sticker as caption, or reply to one.")
		return err
	}
	if err != nil {
		return err
	}

	out, err := d.Stickers.Make(ctx, src)
	if errors.Is(err, sticker.ErrUnsupportedMedia) {
		_, err = msg.Reply(ctx, unsupportedStickerText)
		return err
	}
	if err != nil {
		return err
	}

	_, err = msg.ReplyMedia(ctx, out)
	return err
}
