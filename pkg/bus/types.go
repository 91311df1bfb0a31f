package bus

import "time"

// MediaKind names the payload type of an outbound attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
)

// InboundMessage is one normalized chat message. It is built once per
// inbound event and never mutated afterwards.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	ID        string            `json:"id"`
	ChatID    string            `json:"chat_id"`
	SenderID  string            `json:"sender_id"`
	PushName  string            `json:"push_name,omitempty"`
	IsGroup   bool              `json:"is_group"`
	FromSelf  bool              `json:"from_self"`
	Content   string            `json:"content"`
	RawType   string            `json:"raw_type"`
	Timestamp time.Time         `json:"timestamp"`
	QuotedID  string            `json:"quoted_id,omitempty"`
	Mentions  []string          `json:"mentions,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is one message to send, or an edit of a previous one when
// Edit is set.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Media    *Media            `json:"media,omitempty"`
	Edit     *MessageRef       `json:"edit,omitempty"`
	QuoteID  string            `json:"quote_id,omitempty"`
	Mentions []string          `json:"mentions,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Media is an attachment carried by an outbound message or downloaded from
// an inbound one.
type Media struct {
	Kind      MediaKind `json:"kind"`
	Data      []byte    `json:"-"`
	MimeType  string    `json:"mime_type"`
	FileName  string    `json:"file_name,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	PTT       bool      `json:"ptt,omitempty"`
	Seconds   uint32    `json:"seconds,omitempty"`
	Animated  bool      `json:"animated,omitempty"`
	Thumbnail []byte    `json:"-"`
}

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	ID      string `json:"id"`
}

// IsZero reports whether the reference points at nothing.
func (r MessageRef) IsZero() bool {
	return r.ID == ""
}

// GroupInfo is the lazily fetched context of a group chat.
type GroupInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants,omitempty"`
	Admins       []string `json:"admins,omitempty"`
}

// Outbound metadata keys understood by channels that can render a link
// preview card (title, body and source URL) above a media message. The card
// image is Media.Thumbnail.
const (
	MetaPreviewTitle = "preview_title"
	MetaPreviewBody  = "preview_body"
	MetaPreviewURL   = "preview_url"
)
