package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
)

// Message is a normalized inbound message bound to the sender of its
// conversation. It is owned by one dispatch and dropped afterwards.
type Message struct {
	bus.InboundMessage
	sender channel.Sender
}

func NewMessage(in bus.InboundMessage, sender channel.Sender) *Message {
	return &Message{InboundMessage: in, sender: sender}
}

// Reply sends text quoting the original message.
func (m *Message) Reply(ctx context.Context, text string) (bus.MessageRef, error) {
	return m.Send(ctx, bus.OutboundMessage{Content: text, QuoteID: m.ID})
}

// ReplyMedia sends an attachment quoting the original message.
func (m *Message) ReplyMedia(ctx context.Context, media bus.Media) (bus.MessageRef, error) {
	return m.Send(ctx, bus.OutboundMessage{Media: &media, QuoteID: m.ID})
}

// Send delivers a message into the originating chat.
func (m *Message) Send(ctx context.Context, out bus.OutboundMessage) (bus.MessageRef, error) {
	if m.sender == nil {
		return bus.MessageRef{}, errors.New("message has no sender")
	}
	if out.Channel == "" {
		out.Channel = m.Channel
	}
	if out.ChatID == "" {
		out.ChatID = m.ChatID
	}

	return m.sender.Send(ctx, out)
}

// Edit replaces the text of a message sent earlier in this chat.
func (m *Message) Edit(ctx context.Context, ref bus.MessageRef, text string) error {
	if ref.IsZero() {
		return errors.New("edit target is empty")
	}

	_, err := m.Send(ctx, bus.OutboundMessage{ChatID: ref.ChatID, Content: text, Edit: &ref})
	return err
}

// Download fetches the attachment of this message or of the message it quotes.
func (m *Message) Download(ctx context.Context) (bus.Media, error) {
	downloader, ok := m.sender.(channel.MediaDownloader)
	if !ok {
		return bus.Media{}, channel.ErrNoMedia
	}

	return downloader.DownloadMedia(ctx)
}

// Group resolves metadata of the group this message was sent in.
func (m *Message) Group(ctx context.Context) (bus.GroupInfo, error) {
	if !m.IsGroup {
		return bus.GroupInfo{}, errors.New("not a group chat")
	}
	resolver, ok := m.sender.(channel.GroupResolver)
	if !ok {
		return bus.GroupInfo{}, fmt.Errorf("channel %s cannot resolve groups", m.Channel)
	}

	return resolver.GroupInfo(ctx, m.ChatID)
}

// SenderNumber returns the user part of the sender id.
func (m *Message) SenderNumber() string {
	return UserPart(m.SenderID)
}

// UserPart strips the server and device suffixes from a protocol id such as
// 15551234567:12@s.whatsapp.net.
func UserPart(id string) string {
	user, _, _ := strings.Cut(id, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

// Status is a single progress message that long-running handlers update in
// place. When an edit fails a fresh reply takes over.
type Status struct {
	msg *Message
	ref bus.MessageRef
}

// StartStatus sends the first progress text. A failed send still returns a
// usable Status that will retry as a new reply on the next update.
func (m *Message) StartStatus(ctx context.Context, text string) (*Status, error) {
	ref, err := m.Reply(ctx, text)
	return &Status{msg: m, ref: ref}, err
}

// Update edits the progress message, falling back to a new reply.
func (s *Status) Update(ctx context.Context, text string) error {
	if !s.ref.IsZero() {
		if err := s.msg.Edit(ctx, s.ref, text); err == nil {
			return nil
		}
	}

	ref, err := s.msg.Reply(ctx, text)
	if err != nil {
		return err
	}
	s.ref = ref

	return nil
}

// Ref returns the message currently holding the progress text.
func (s *Status) Ref() bus.MessageRef {
	return s.ref
}
