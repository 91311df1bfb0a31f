package channel

import (
	"context"
	"errors"

	"konoha/pkg/bus"
)

// ErrNoMedia is returned when a message and its quoted message carry no
// downloadable attachment.
var ErrNoMedia = errors.New("message has no media")

// Sender delivers outbound messages for one conversation.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error)
}

// GroupResolver is implemented by senders that can describe group chats.
type GroupResolver interface {
	GroupInfo(ctx context.Context, chatID string) (bus.GroupInfo, error)
}

// MediaDownloader is implemented by senders that can fetch the attachment of
// the inbound message, or of the message it quotes.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context) (bus.Media, error)
}

// Handler processes one normalized inbound message. Replies go through the
// sender bound to the message's conversation.
type Handler func(context.Context, bus.InboundMessage, Sender) error

// Adapter bridges one external transport (for example WhatsApp) into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
