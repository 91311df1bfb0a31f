package whatsapp

import (
	"strings"
	"sync"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"konoha/pkg/bus"
)

// Drop explains why an inbound event produced no message.
type Drop int

const (
	Keep Drop = iota
	DropNoPayload
	DropProtocol
	DropStatus
	DropDuplicate
)

func (d Drop) String() string {
	switch d {
	case Keep:
		return "keep"
	case DropNoPayload:
		return "no_payload"
	case DropProtocol:
		return "protocol"
	case DropStatus:
		return "status_broadcast"
	case DropDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

const (
	metaSelfID    = "self_id"
	metaQuotedRaw = "quoted_type"
)

// Normalizer turns whatsmeow message events into bus messages.
type Normalizer struct {
	// Self returns the bot's own account id, empty before pairing.
	Self func() types.JID
	// Sent holds ids generated by this process; their echoes are skipped.
	Sent *SentLog
}

// Normalize builds the inbound message for evt, or reports why it was dropped.
func (n Normalizer) Normalize(evt *events.Message) (bus.InboundMessage, Drop) {
	if evt == nil || evt.Message == nil {
		return bus.InboundMessage{}, DropNoPayload
	}
	if evt.Message.GetProtocolMessage() != nil || (evt.Message.GetSenderKeyDistributionMessage() != nil && isEmptyPayload(evt.Message)) {
		return bus.InboundMessage{}, DropProtocol
	}
	if evt.Info.Chat == types.StatusBroadcastJID {
		return bus.InboundMessage{}, DropStatus
	}
	if evt.Info.IsFromMe && n.Sent.Contains(evt.Info.ID) {
		return bus.InboundMessage{}, DropDuplicate
	}

	self := types.EmptyJID
	if n.Self != nil {
		self = n.Self().ToNonAD()
	}

	content, rawType := extractBody(evt.Message)
	in := bus.InboundMessage{
		Channel:   channelName,
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		SenderID:  resolveSender(evt.Info, self).String(),
		PushName:  evt.Info.PushName,
		IsGroup:   evt.Info.IsGroup,
		FromSelf:  evt.Info.IsFromMe,
		Content:   strings.TrimSpace(content),
		RawType:   rawType,
		Timestamp: evt.Info.Timestamp,
	}

	meta := map[string]string{}
	if !self.IsEmpty() {
		meta[metaSelfID] = self.String()
	}
	if ci := contextInfo(evt.Message); ci != nil {
		in.QuotedID = ci.GetStanzaID()
		in.Mentions = ci.GetMentionedJID()
		if quoted := ci.GetQuotedMessage(); quoted != nil {
			_, meta[metaQuotedRaw] = extractBody(quoted)
		}
	}
	if len(meta) > 0 {
		in.Metadata = meta
	}

	return in, Keep
}

// resolveSender picks who the message is attributed to: the bot itself for
// own messages, the participant in groups, otherwise the chat.
func resolveSender(info types.MessageInfo, self types.JID) types.JID {
	switch {
	case info.IsFromMe && !self.IsEmpty():
		return self
	case info.IsGroup:
		return info.Sender.ToNonAD()
	default:
		return info.Chat
	}
}

// extractBody returns the text a message carries and the name of the payload
// variant it came from. Unknown variants carry no text.
func extractBody(msg *waE2E.Message) (string, string) {
	switch {
	case msg.Conversation != nil:
		return msg.GetConversation(), "conversation"
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetText(), "extendedTextMessage"
	case msg.ImageMessage != nil:
		return msg.GetImageMessage().GetCaption(), "imageMessage"
	case msg.VideoMessage != nil:
		return msg.GetVideoMessage().GetCaption(), "videoMessage"
	case msg.ButtonsResponseMessage != nil:
		return msg.GetButtonsResponseMessage().GetSelectedButtonID(), "buttonsResponseMessage"
	case msg.ListResponseMessage != nil:
		return msg.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID(), "listResponseMessage"
	case msg.TemplateButtonReplyMessage != nil:
		return msg.GetTemplateButtonReplyMessage().GetSelectedID(), "templateButtonReplyMessage"
	case msg.DocumentMessage != nil:
		return msg.GetDocumentMessage().GetCaption(), "documentMessage"
	case msg.AudioMessage != nil:
		return "", "audioMessage"
	case msg.StickerMessage != nil:
		return "", "stickerMessage"
	default:
		return "", "unknown"
	}
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.ImageMessage != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.VideoMessage != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.AudioMessage != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case msg.DocumentMessage != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.StickerMessage != nil:
		return msg.GetStickerMessage().GetContextInfo()
	default:
		return nil
	}
}

// isEmptyPayload reports whether a message has nothing besides key
// distribution material.
func isEmptyPayload(msg *waE2E.Message) bool {
	_, rawType := extractBody(msg)
	return rawType == "unknown"
}

const sentLogSize = 512

// SentLog remembers the most recent message ids this process generated.
type SentLog struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
}

func NewSentLog() *SentLog {
	return &SentLog{ids: make(map[string]struct{}, sentLogSize)}
}

func (l *SentLog) Add(id string) {
	if l == nil || id == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[id]; ok {
		return
	}
	if len(l.order) == sentLogSize {
		delete(l.ids, l.order[0])
		l.order = l.order[1:]
	}
	l.ids[id] = struct{}{}
	l.order = append(l.order, id)
}

func (l *SentLog) Contains(id string) bool {
	if l == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}
