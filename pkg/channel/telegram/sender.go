package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
)

// api is the part of *telego.Bot a conversation uses.
type api interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	SendVoice(ctx context.Context, params *telego.SendVoiceParams) (*telego.Message, error)
	SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error)
	SendSticker(ctx context.Context, params *telego.SendStickerParams) (*telego.Message, error)
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
	GetChatAdministrators(ctx context.Context, params *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error)
}

// conversation replies into the chat of one inbound message.
type conversation struct {
	api      api
	chatID   int64
	origin   *telego.Message
	log      *slog.Logger
	download func(url string) ([]byte, error)
}

var (
	_ channel.Sender          = (*conversation)(nil)
	_ channel.GroupResolver   = (*conversation)(nil)
	_ channel.MediaDownloader = (*conversation)(nil)
)

func (c *conversation) Send(ctx context.Context, out bus.OutboundMessage) (bus.MessageRef, error) {
	chatID := c.chatID
	if out.ChatID != "" {
		parsed, err := strconv.ParseInt(out.ChatID, 10, 64)
		if err != nil {
			return bus.MessageRef{}, fmt.Errorf("parse chat id %q: %w", out.ChatID, err)
		}
		chatID = parsed
	}

	if out.Edit != nil && !out.Edit.IsZero() {
		messageID, err := strconv.Atoi(out.Edit.ID)
		if err != nil {
			return bus.MessageRef{}, fmt.Errorf("parse message id %q: %w", out.Edit.ID, err)
		}
		if _, err := c.api.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
			Text:      out.Content,
		}); err != nil {
			return bus.MessageRef{}, fmt.Errorf("edit message: %w", err)
		}
		return *out.Edit, nil
	}

	var reply *telego.ReplyParameters
	if id, err := strconv.Atoi(out.QuoteID); err == nil && out.QuoteID != "" {
		reply = &telego.ReplyParameters{MessageID: id, AllowSendingWithoutReply: true}
	}

	var (
		sent *telego.Message
		err  error
	)
	if out.Media == nil {
		params := tu.Message(tu.ID(chatID), out.Content)
		params.ReplyParameters = reply
		sent, err = c.api.SendMessage(ctx, params)
	} else {
		sent, err = c.sendMedia(ctx, chatID, out, reply)
	}
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("send message: %w", err)
	}

	ref := bus.MessageRef{Channel: channelName, ChatID: strconv.FormatInt(chatID, 10)}
	if sent != nil {
		ref.ID = strconv.Itoa(sent.MessageID)
	}
	return ref, nil
}

func (c *conversation) sendMedia(ctx context.Context, chatID int64, out bus.OutboundMessage, reply *telego.ReplyParameters) (*telego.Message, error) {
	media := out.Media
	caption := media.Caption
	if caption == "" {
		caption = out.Content
	}
	if link := out.Metadata[bus.MetaPreviewURL]; link != "" && caption != "" {
		caption += "\n" + link
	}
	file := tu.File(tu.NameReader(bytes.NewReader(media.Data), fileName(media)))
	id := tu.ID(chatID)

	switch media.Kind {
	case bus.MediaImage:
		params := tu.Photo(id, file).WithCaption(caption)
		params.ReplyParameters = reply
		return c.api.SendPhoto(ctx, params)
	case bus.MediaVideo:
		params := tu.Video(id, file).WithCaption(caption)
		params.Duration = int(media.Seconds)
		params.ReplyParameters = reply
		return c.api.SendVideo(ctx, params)
	case bus.MediaAudio:
		if media.PTT {
			params := tu.Voice(id, file).WithCaption(caption)
			params.Duration = int(media.Seconds)
			params.ReplyParameters = reply
			return c.api.SendVoice(ctx, params)
		}
		params := tu.Audio(id, file).WithCaption(caption)
		params.Duration = int(media.Seconds)
		params.ReplyParameters = reply
		return c.api.SendAudio(ctx, params)
	case bus.MediaSticker:
		params := tu.Sticker(id, file)
		params.ReplyParameters = reply
		return c.api.SendSticker(ctx, params)
	default:
		params := tu.Document(id, file).WithCaption(caption)
		params.ReplyParameters = reply
		return c.api.SendDocument(ctx, params)
	}
}

func fileName(media *bus.Media) string {
	if media.FileName != "" {
		return media.FileName
	}

	switch media.Kind {
	case bus.MediaImage:
		return "image.jpg"
	case bus.MediaVideo:
		return "video.mp4"
	case bus.MediaAudio:
		if media.PTT {
			return "voice.ogg"
		}
		return "audio.mp3"
	case bus.MediaSticker:
		return "sticker.webp"
	default:
		return "file"
	}
}

// DownloadMedia fetches the attachment of the inbound message or of the
// message it replies to.
func (c *conversation) DownloadMedia(ctx context.Context) (bus.Media, error) {
	if c.origin == nil {
		return bus.Media{}, channel.ErrNoMedia
	}

	fileID, media, ok := attachment(c.origin)
	if !ok && c.origin.ReplyToMessage != nil {
		fileID, media, ok = attachment(c.origin.ReplyToMessage)
	}
	if !ok {
		return bus.Media{}, channel.ErrNoMedia
	}

	file, err := c.api.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return bus.Media{}, fmt.Errorf("resolve file: %w", err)
	}

	download := c.download
	if download == nil {
		download = tu.DownloadFile
	}
	data, err := download(c.api.FileDownloadURL(file.FilePath))
	if err != nil {
		return bus.Media{}, fmt.Errorf("download %s: %w", media.Kind, err)
	}
	media.Data = data

	return media, nil
}

func attachment(message *telego.Message) (string, bus.Media, bool) {
	switch {
	case len(message.Photo) > 0:
		largest := message.Photo[len(message.Photo)-1]
		return largest.FileID, bus.Media{Kind: bus.MediaImage, MimeType: "image/jpeg"}, true
	case message.Video != nil:
		return message.Video.FileID, bus.Media{Kind: bus.MediaVideo, MimeType: message.Video.MimeType, Seconds: uint32(message.Video.Duration)}, true
	case message.Sticker != nil:
		return message.Sticker.FileID, bus.Media{Kind: bus.MediaSticker, MimeType: "image/webp", Animated: message.Sticker.IsAnimated || message.Sticker.IsVideo}, true
	case message.Voice != nil:
		return message.Voice.FileID, bus.Media{Kind: bus.MediaAudio, MimeType: message.Voice.MimeType, PTT: true, Seconds: uint32(message.Voice.Duration)}, true
	case message.Document != nil:
		return message.Document.FileID, bus.Media{Kind: bus.MediaDocument, MimeType: message.Document.MimeType, FileName: message.Document.FileName}, true
	default:
		return "", bus.Media{}, false
	}
}

func (c *conversation) GroupInfo(ctx context.Context, chatID string) (bus.GroupInfo, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return bus.GroupInfo{}, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}

	chat, err := c.api.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(id)})
	if err != nil {
		return bus.GroupInfo{}, fmt.Errorf("fetch chat: %w", err)
	}
	if chat.Type != telego.ChatTypeGroup && chat.Type != telego.ChatTypeSupergroup {
		return bus.GroupInfo{}, errors.New("not a group chat")
	}

	info := bus.GroupInfo{ID: chatID, Name: chat.Title}
	admins, err := c.api.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: tu.ID(id)})
	if err != nil {
		c.log.Debug("Failed to list chat administrators", "chat_id", chatID, "error", err)
		return info, nil
	}
	for _, member := range admins {
		user := strconv.FormatInt(member.MemberUser().ID, 10)
		info.Admins = append(info.Admins, user)
		info.Participants = append(info.Participants, user)
	}

	return info, nil
}
