package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
)

const stickerSide = 512

// client is the part of *whatsmeow.Client the channel drives.
type client interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	GenerateMessageID() types.MessageID
	BuildEdit(chat types.JID, id types.MessageID, newContent *waE2E.Message) *waE2E.Message
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
	GetGroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error)
}

// conversation sends into the chat of one inbound message and can quote it.
type conversation struct {
	client  client
	chat    types.JID
	origin  *events.Message
	limiter *rate.Limiter
	sent    *SentLog
	log     *slog.Logger
}

var (
	_ channel.Sender          = (*conversation)(nil)
	_ channel.GroupResolver   = (*conversation)(nil)
	_ channel.MediaDownloader = (*conversation)(nil)
)

func (c *conversation) Send(ctx context.Context, out bus.OutboundMessage) (bus.MessageRef, error) {
	chat := c.chat
	if out.ChatID != "" {
		parsed, err := types.ParseJID(out.ChatID)
		if err != nil {
			return bus.MessageRef{}, fmt.Errorf("parse chat id %q: %w", out.ChatID, err)
		}
		chat = parsed
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return bus.MessageRef{}, err
		}
	}

	if out.Edit != nil && !out.Edit.IsZero() {
		edit := c.client.BuildEdit(chat, out.Edit.ID, &waE2E.Message{Conversation: proto.String(out.Content)})
		if _, err := c.client.SendMessage(ctx, chat, edit); err != nil {
			return bus.MessageRef{}, fmt.Errorf("edit message: %w", err)
		}
		return *out.Edit, nil
	}

	msg, err := c.build(ctx, out)
	if err != nil {
		return bus.MessageRef{}, err
	}

	id := c.client.GenerateMessageID()
	c.sent.Add(id)
	resp, err := c.client.SendMessage(ctx, chat, msg, whatsmeow.SendRequestExtra{ID: id})
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	if resp.ID != "" {
		id = resp.ID
	}
	c.log.Debug("Sent message", "chat_id", chat.String(), "message_id", id, "media", out.Media != nil)

	return bus.MessageRef{Channel: channelName, ChatID: chat.String(), ID: id}, nil
}

func (c *conversation) build(ctx context.Context, out bus.OutboundMessage) (*waE2E.Message, error) {
	ci := c.contextFor(out)

	if out.Media == nil {
		if ci == nil {
			return &waE2E.Message{Conversation: proto.String(out.Content)}, nil
		}
		return &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(out.Content),
			ContextInfo: ci,
		}}, nil
	}

	media := *out.Media
	if media.Caption == "" {
		media.Caption = out.Content
	}

	up, err := c.client.Upload(ctx, media.Data, uploadType(media.Kind))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", media.Kind, err)
	}

	return mediaMessage(&media, up, ci), nil
}

// contextFor builds quoting, mention and link preview context. It returns nil
// when the message needs none of them.
func (c *conversation) contextFor(out bus.OutboundMessage) *waE2E.ContextInfo {
	var ci *waE2E.ContextInfo
	ensure := func() *waE2E.ContextInfo {
		if ci == nil {
			ci = &waE2E.ContextInfo{}
		}
		return ci
	}

	if out.QuoteID != "" {
		info := ensure()
		info.StanzaID = proto.String(out.QuoteID)
		if c.origin != nil && c.origin.Info.ID == out.QuoteID {
			info.Participant = proto.String(c.origin.Info.Sender.ToNonAD().String())
			info.QuotedMessage = c.origin.Message
		}
	}
	if len(out.Mentions) > 0 {
		ensure().MentionedJID = out.Mentions
	}
	if title := out.Metadata[bus.MetaPreviewTitle]; title != "" && out.Media != nil {
		ensure().ExternalAdReply = &waE2E.ContextInfo_ExternalAdReplyInfo{
			Title:                 proto.String(title),
			Body:                  proto.String(out.Metadata[bus.MetaPreviewBody]),
			MediaType:             waE2E.ContextInfo_ExternalAdReplyInfo_IMAGE.Enum(),
			Thumbnail:             out.Media.Thumbnail,
			SourceURL:             proto.String(out.Metadata[bus.MetaPreviewURL]),
			RenderLargerThumbnail: proto.Bool(true),
		}
	}

	return ci
}

func uploadType(kind bus.MediaKind) whatsmeow.MediaType {
	switch kind {
	case bus.MediaImage, bus.MediaSticker:
		return whatsmeow.MediaImage
	case bus.MediaVideo:
		return whatsmeow.MediaVideo
	case bus.MediaAudio:
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func mediaMessage(media *bus.Media, up whatsmeow.UploadResponse, ci *waE2E.ContextInfo) *waE2E.Message {
	var caption *string
	if media.Caption != "" {
		caption = proto.String(media.Caption)
	}

	switch media.Kind {
	case bus.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       caption,
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			JPEGThumbnail: media.Thumbnail,
			ContextInfo:   ci,
		}}
	case bus.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       caption,
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Seconds:       proto.Uint32(media.Seconds),
			JPEGThumbnail: media.Thumbnail,
			ContextInfo:   ci,
		}}
	case bus.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Seconds:       proto.Uint32(media.Seconds),
			PTT:           proto.Bool(media.PTT),
			ContextInfo:   ci,
		}}
	case bus.MediaSticker:
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Width:         proto.Uint32(stickerSide),
			Height:        proto.Uint32(stickerSide),
			IsAnimated:    proto.Bool(media.Animated),
			ContextInfo:   ci,
		}}
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       caption,
			Title:         proto.String(media.FileName),
			FileName:      proto.String(media.FileName),
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   ci,
		}}
	}
}

// DownloadMedia fetches the attachment of the inbound message, or of the
// message it quotes when it has none of its own.
func (c *conversation) DownloadMedia(ctx context.Context) (bus.Media, error) {
	if c.origin == nil || c.origin.Message == nil {
		return bus.Media{}, channel.ErrNoMedia
	}

	target, media, ok := downloadable(c.origin.Message)
	if !ok {
		ci := contextInfo(c.origin.Message)
		if ci == nil || ci.GetQuotedMessage() == nil {
			return bus.Media{}, channel.ErrNoMedia
		}
		target, media, ok = downloadable(ci.GetQuotedMessage())
		if !ok {
			return bus.Media{}, channel.ErrNoMedia
		}
	}

	data, err := c.client.Download(ctx, target)
	if err != nil {
		return bus.Media{}, fmt.Errorf("download %s: %w", media.Kind, err)
	}
	media.Data = data

	return media, nil
}

func downloadable(msg *waE2E.Message) (whatsmeow.DownloadableMessage, bus.Media, bool) {
	switch {
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		return img, bus.Media{Kind: bus.MediaImage, MimeType: img.GetMimetype(), Caption: img.GetCaption()}, true
	case msg.GetVideoMessage() != nil:
		vid := msg.GetVideoMessage()
		return vid, bus.Media{Kind: bus.MediaVideo, MimeType: vid.GetMimetype(), Caption: vid.GetCaption(), Seconds: vid.GetSeconds()}, true
	case msg.GetStickerMessage() != nil:
		st := msg.GetStickerMessage()
		return st, bus.Media{Kind: bus.MediaSticker, MimeType: st.GetMimetype(), Animated: st.GetIsAnimated()}, true
	case msg.GetAudioMessage() != nil:
		au := msg.GetAudioMessage()
		return au, bus.Media{Kind: bus.MediaAudio, MimeType: au.GetMimetype(), Seconds: au.GetSeconds(), PTT: au.GetPTT()}, true
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		return doc, bus.Media{Kind: bus.MediaDocument, MimeType: doc.GetMimetype(), FileName: doc.GetFileName()}, true
	default:
		return nil, bus.Media{}, false
	}
}

func (c *conversation) GroupInfo(ctx context.Context, chatID string) (bus.GroupInfo, error) {
	return groupInfo(ctx, c.client, chatID)
}

func groupInfo(ctx context.Context, cl client, chatID string) (bus.GroupInfo, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return bus.GroupInfo{}, fmt.Errorf("parse group id %q: %w", chatID, err)
	}
	if jid.Server != types.GroupServer {
		return bus.GroupInfo{}, errors.New("not a group chat")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gi, err := cl.GetGroupInfo(ctx, jid)
	if err != nil {
		return bus.GroupInfo{}, fmt.Errorf("fetch group info: %w", err)
	}

	info := bus.GroupInfo{ID: jid.String(), Name: gi.Name}
	for _, p := range gi.Participants {
		id := p.JID.ToNonAD().String()
		info.Participants = append(info.Participants, id)
		if p.IsAdmin || p.IsSuperAdmin {
			info.Admins = append(info.Admins, id)
		}
	}

	return info, nil
}
