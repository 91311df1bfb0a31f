package whatsapp

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var (
	botJID     = types.JID{User: "15550001111", Device: 7, Server: types.DefaultUserServer}
	userJID    = types.NewJID("15552223333", types.DefaultUserServer)
	memberJID  = types.JID{User: "15554445555", Device: 3, Server: types.DefaultUserServer}
	groupJID   = types.NewJID("120363000000000001", types.GroupServer)
	sampleTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
)

func directMessage(id string, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: userJID, Sender: userJID},
			ID:            id,
			PushName:      "Naruto",
			Timestamp:     sampleTime,
		},
		Message: msg,
	}
}

func groupMessage(id string, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: groupJID, Sender: memberJID, IsGroup: true},
			ID:            id,
			PushName:      "Sakura",
			Timestamp:     sampleTime,
		},
		Message: msg,
	}
}

func testNormalizer(sent *SentLog) Normalizer {
	return Normalizer{Self: func() types.JID { return botJID }, Sent: sent}
}

func TestNormalizeExtractsBodyPerVariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		msg     *waE2E.Message
		body    string
		rawType string
	}{
		{"conversation", &waE2E.Message{Conversation: proto.String(" .ping ")}, ".ping", "conversation"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String(".lyrics Blue Bird")}}, ".lyrics Blue Bird", "extendedTextMessage"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String(".sticker")}}, ".sticker", "imageMessage"},
		{"video caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String(".s")}}, ".s", "videoMessage"},
		{"button reply", &waE2E.Message{ButtonsResponseMessage: &waE2E.ButtonsResponseMessage{SelectedButtonID: proto.String(".menu")}}, ".menu", "buttonsResponseMessage"},
		{"list reply", &waE2E.Message{ListResponseMessage: &waE2E.ListResponseMessage{
			SingleSelectReply: &waE2E.ListResponseMessage_SingleSelectReply{SelectedRowID: proto.String(".info")},
		}}, ".info", "listResponseMessage"},
		{"template reply", &waE2E.Message{TemplateButtonReplyMessage: &waE2E.TemplateButtonReplyMessage{SelectedID: proto.String(".help")}}, ".help", "templateButtonReplyMessage"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{PTT: proto.Bool(true)}}, "", "audioMessage"},
		{"unknown", &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("🔥")}}, "", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in, drop := testNormalizer(nil).Normalize(directMessage("3EB0AA", tc.msg))
			require.Equal(t, Keep, drop)
			assert.Equal(t, tc.body, in.Content)
			assert.Equal(t, tc.rawType, in.RawType)
		})
	}
}

func TestNormalizeDropsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	sent := NewSentLog()
	sent.Add("3EB0OWN")

	noPayload := directMessage("A1", nil)
	protocol := directMessage("A2", &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{Type: waE2E.ProtocolMessage_REVOKE.Enum()}})
	keyOnly := groupMessage("A3", &waE2E.Message{SenderKeyDistributionMessage: &waE2E.SenderKeyDistributionMessage{GroupID: proto.String(groupJID.String())}})
	status := directMessage("A4", &waE2E.Message{Conversation: proto.String("story")})
	status.Info.Chat = types.StatusBroadcastJID
	echo := directMessage("3EB0OWN", &waE2E.Message{Conversation: proto.String(".ping")})
	echo.Info.IsFromMe = true

	cases := map[string]struct {
		evt  *events.Message
		want Drop
	}{
		"nil event":  {nil, DropNoPayload},
		"no payload": {noPayload, DropNoPayload},
		"protocol":   {protocol, DropProtocol},
		"key only":   {keyOnly, DropProtocol},
		"status":     {status, DropStatus},
		"own echo":   {echo, DropDuplicate},
	}

	for name, tc := range cases {
		in, drop := testNormalizer(sent).Normalize(tc.evt)
		assert.Equal(t, tc.want, drop, name)
		assert.Empty(t, in.ID, name)
	}
}

func TestNormalizeKeepsOwnMessagesNotSentByProcess(t *testing.T) {
	t.Parallel()

	evt := directMessage("3EB0TYPED", &waE2E.Message{Conversation: proto.String(".reload")})
	evt.Info.IsFromMe = true

	in, drop := testNormalizer(NewSentLog()).Normalize(evt)
	require.Equal(t, Keep, drop)
	assert.True(t, in.FromSelf)
	assert.Equal(t, botJID.ToNonAD().String(), in.SenderID)
}

func TestNormalizeResolvesSender(t *testing.T) {
	t.Parallel()

	direct, _ := testNormalizer(nil).Normalize(directMessage("B1", &waE2E.Message{Conversation: proto.String("hi")}))
	assert.Equal(t, userJID.String(), direct.SenderID)
	assert.Equal(t, userJID.String(), direct.ChatID)
	assert.False(t, direct.IsGroup)

	group, _ := testNormalizer(nil).Normalize(groupMessage("B2", &waE2E.Message{Conversation: proto.String("hi")}))
	assert.Equal(t, "15554445555@s.whatsapp.net", group.SenderID)
	assert.Equal(t, groupJID.String(), group.ChatID)
	assert.True(t, group.IsGroup)
	assert.Equal(t, "Sakura", group.PushName)
	assert.Equal(t, sampleTime, group.Timestamp)
	assert.Equal(t, channelName, group.Channel)
	assert.Equal(t, botJID.ToNonAD().String(), group.Metadata[metaSelfID])
}

func TestNormalizeReadsQuoteAndMentions(t *testing.T) {
	t.Parallel()

	msg := &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text: proto.String(".sticker"),
		ContextInfo: &waE2E.ContextInfo{
			StanzaID:      proto.String("QUOTED1"),
			MentionedJID:  []string{userJID.String()},
			QuotedMessage: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Mimetype: proto.String("image/jpeg")}},
		},
	}}

	in, drop := testNormalizer(nil).Normalize(groupMessage("C1", msg))
	require.Equal(t, Keep, drop)
	assert.Equal(t, "QUOTED1", in.QuotedID)
	assert.Equal(t, []string{userJID.String()}, in.Mentions)
	assert.Equal(t, "imageMessage", in.Metadata[metaQuotedRaw])
}

func TestSentLogEvictsOldest(t *testing.T) {
	t.Parallel()

	log := NewSentLog()
	log.Add("first")
	for i := 0; i < sentLogSize; i++ {
		log.Add(fmt.Sprintf("id-%d", i))
	}

	assert.False(t, log.Contains("first"))
	assert.True(t, log.Contains("id-0"))
	assert.True(t, log.Contains(fmt.Sprintf("id-%d", sentLogSize-1)))
	assert.False(t, (*SentLog)(nil).Contains("id-0"))
}
