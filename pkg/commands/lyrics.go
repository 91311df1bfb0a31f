package commands

import (
	"context"
	"fmt"

	"konoha/pkg/command"
	"konoha/pkg/lyrics"
)

const lyricsNotFound = "*❌ Lyrics Not Found*\n\nCouldn't find lyrics for \"%s\".\n\n*Tips to improve your search:*\n• Try providing both artist and title: _\"Artist - Song Title\"_\n• Check spelling of artist and song names\n• Try using more popular song titles"

func (d *Deps) lyricsCommand() (command.Descriptor, error) {
	if d.Lyrics == nil {
		return command.Descriptor{}, missing("lyrics", "lyrics finder")
	}

	return command.Descriptor{
		Name:        "lyrics",
		Description: "Get lyrics for a song using Genius API",
		Usage:       ".lyrics <song name>",
		Handler:     d.lyrics,
	}, nil
}

func (d *Deps) lyrics(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	query := dc.Text

	if query == "test-api" {
		return d.lyricsPing(ctx, msg)
	}
	if query == "" {
		_, err := msg.Reply(ctx, fmt.Sprintf("*🎵 Lyrics Command*\n\n❌ Please provide a song name.\n\n*Usage:* %[1]slyrics <song name>\n*Example:* %[1]slyrics Shape of You\n\n💡 *Tip:* For better results, include both artist and song title: \"%[1]slyrics Ed Sheeran - Shape of You\"\n\n🧪 *Debug:* Use \"%[1]slyrics test-api\" to check API connectivity", dc.Prefix))
		return err
	}

	status, err := msg.StartStatus(ctx, fmt.Sprintf("*🔍 Lyric Search Initiated*\n\n_Searching for lyrics of_ \"*%s*\"...\n\n_Please wait a moment while I find the perfect lyrics for you_ 🎵", query))
	if err != nil {
		d.log().Warn("Lyrics status failed", "chat_id", msg.ChatID, "error", err)
	}
	d.progress(ctx, status, fmt.Sprintf("*🔍 Searching Music Database*\n\n_Looking for_ \"*%s*\" _in the music archives..._\n\n⏳ Please wait a moment...", query))

	song, err := d.Lyrics.Find(ctx, query)
	if err != nil {
		d.log().Info("Lyrics not found", "query", query, "error", err)
		return status.Update(ctx, fmt.Sprintf(lyricsNotFound, query))
	}

	d.progress(ctx, status, fmt.Sprintf("*🎵 Song Found!*\n\n📝 Title: *%s*\n👤 Artist: *%s*\n\n_Preparing lyrics..._", song.Title, song.Artist))

	chunks := lyrics.Chunk(lyrics.Format(song), lyrics.MaxMessageLength)
	if err := status.Update(ctx, chunks[0]); err != nil {
		return err
	}
	for _, chunk := range chunks[1:] {
		if _, err := msg.Send(ctx, outText(chunk)); err != nil {
			return err
		}
	}

	return nil
}

func (d *Deps) lyricsPing(ctx context.Context, msg *command.Message) error {
	if _, err := msg.Reply(ctx, "🧪 *Testing Genius API connection...*"); err != nil {
		return err
	}

	report, err := d.Lyrics.Ping(ctx)
	if err != nil {
		_, err = msg.Reply(ctx, "❌ *Genius API Test Failed:*\n\n"+err.Error())
		return err
	}

	_, err = msg.Reply(ctx, "✅ *Genius API Test Results:*\n\n"+report)
	return err
}

// progress moves a status message forward. Intermediate updates are best
// effort.
func (d *Deps) progress(ctx context.Context, status *command.Status, text string) {
	if err := status.Update(ctx, text); err != nil {
		d.log().Debug("Status update failed", "error", err)
	}
}
