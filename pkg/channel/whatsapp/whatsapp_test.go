package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
	"konoha/pkg/logger"
)

type sentMessage struct {
	to  types.JID
	msg *waE2E.Message
	id  types.MessageID
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sentMessage
	uploads  []whatsmeow.MediaType
	reads    []types.MessageID
	nextID   int
	sendErr  error
	group    *types.GroupInfo
	groupErr error
}

func (f *fakeClient) SendMessage(_ context.Context, to types.JID, msg *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return whatsmeow.SendResponse{}, f.sendErr
	}
	var id types.MessageID
	if len(extra) > 0 {
		id = extra[0].ID
	}
	f.sent = append(f.sent, sentMessage{to: to, msg: msg, id: id})
	return whatsmeow.SendResponse{ID: id, Timestamp: sampleTime}, nil
}

func (f *fakeClient) GenerateMessageID() types.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("3EB0GEN%02d", f.nextID)
}

func (f *fakeClient) BuildEdit(chat types.JID, id types.MessageID, newContent *waE2E.Message) *waE2E.Message {
	return &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Key:           &waCommon.MessageKey{RemoteJID: proto.String(chat.String()), ID: proto.String(id), FromMe: proto.Bool(true)},
		Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
		EditedMessage: newContent,
	}}
}

func (f *fakeClient) Upload(_ context.Context, data []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, appInfo)
	return whatsmeow.UploadResponse{
		URL:        "https://mmg.whatsapp.net/upload",
		DirectPath: "/v/t62/upload",
		MediaKey:   []byte("key"),
		FileLength: uint64(len(data)),
	}, nil
}

func (f *fakeClient) Download(_ context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return []byte("bytes:" + msg.GetDirectPath()), nil
}

func (f *fakeClient) GetGroupInfo(_ context.Context, jid types.JID) (*types.GroupInfo, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.group, nil
}

func (f *fakeClient) MarkRead(_ context.Context, ids []types.MessageID, _ time.Time, _, _ types.JID, _ ...types.ReceiptType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, ids...)
	return nil
}

func (f *fakeClient) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestAdapter(t *testing.T, mutate func(*config.Config)) (*Adapter, *bus.MessageBus) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.SessionDir = filepath.Join(t.TempDir(), "session")
	cfg.Channels.WhatsApp.SendRatePerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	adapter, err := NewAdapter(Options{
		Config: cfg,
		Events: mb,
		Log:    logger.Discard(),
		Prompt: func(context.Context, string) (string, error) { return "", errors.New("no prompt in tests") },
		Out:    &bytes.Buffer{},
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Now:    func() time.Time { return sampleTime },
	})
	require.NoError(t, err)
	return adapter, mb
}

func TestNewAdapterRejectsUnknownPairing(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Channels.WhatsApp.Pairing = "smoke-signal"

	_, err := NewAdapter(Options{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smoke-signal")

	_, err = NewAdapter(Options{})
	require.Error(t, err)
}

func TestSendQuotesOriginalMessage(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	origin := groupMessage("ORIG1", &waE2E.Message{Conversation: proto.String(".ping")})
	conv := adapter.conversation(cl, groupJID, origin)

	ref, err := conv.Send(context.Background(), bus.OutboundMessage{Content: "pong", QuoteID: "ORIG1"})
	require.NoError(t, err)
	assert.Equal(t, bus.MessageRef{Channel: channelName, ChatID: groupJID.String(), ID: "3EB0GEN01"}, ref)

	sent := cl.messages()
	require.Len(t, sent, 1)
	ext := sent[0].msg.GetExtendedTextMessage()
	require.NotNil(t, ext)
	assert.Equal(t, "pong", ext.GetText())
	assert.Equal(t, "ORIG1", ext.GetContextInfo().GetStanzaID())
	assert.Equal(t, "15554445555@s.whatsapp.net", ext.GetContextInfo().GetParticipant())
	assert.Equal(t, ".ping", ext.GetContextInfo().GetQuotedMessage().GetConversation())
	assert.True(t, adapter.sent.Contains("3EB0GEN01"))
}

func TestSendPlainTextWithoutContext(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	conv := adapter.conversation(cl, userJID, nil)

	_, err := conv.Send(context.Background(), bus.OutboundMessage{Content: "hello"})
	require.NoError(t, err)

	sent := cl.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].msg.GetConversation())
	assert.Nil(t, sent[0].msg.GetExtendedTextMessage())
}

func TestSendEditReturnsOriginalRef(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	conv := adapter.conversation(cl, userJID, nil)
	target := bus.MessageRef{Channel: channelName, ChatID: userJID.String(), ID: "3EB0STATUS"}

	ref, err := conv.Send(context.Background(), bus.OutboundMessage{ChatID: userJID.String(), Content: "🏓 Pong!", Edit: &target})
	require.NoError(t, err)
	assert.Equal(t, target, ref)

	sent := cl.messages()
	require.Len(t, sent, 1)
	pm := sent[0].msg.GetProtocolMessage()
	require.NotNil(t, pm)
	assert.Equal(t, "3EB0STATUS", pm.GetKey().GetID())
	assert.Equal(t, "🏓 Pong!", pm.GetEditedMessage().GetConversation())
}

func TestSendMediaBuildsTypedMessages(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	conv := adapter.conversation(cl, userJID, nil)
	ctx := context.Background()

	_, err := conv.Send(ctx, bus.OutboundMessage{Media: &bus.Media{Kind: bus.MediaAudio, Data: []byte("ogg"), MimeType: "audio/ogg; codecs=opus", PTT: true, Seconds: 3}})
	require.NoError(t, err)
	_, err = conv.Send(ctx, bus.OutboundMessage{Media: &bus.Media{Kind: bus.MediaSticker, Data: []byte("webp"), MimeType: "image/webp", Animated: true}})
	require.NoError(t, err)
	_, err = conv.Send(ctx, bus.OutboundMessage{Content: "menu", Media: &bus.Media{Kind: bus.MediaImage, Data: []byte("jpg"), MimeType: "image/jpeg"}})
	require.NoError(t, err)

	sent := cl.messages()
	require.Len(t, sent, 3)

	audio := sent[0].msg.GetAudioMessage()
	require.NotNil(t, audio)
	assert.True(t, audio.GetPTT())
	assert.Equal(t, uint32(3), audio.GetSeconds())
	assert.Equal(t, uint64(3), audio.GetFileLength())

	st := sent[1].msg.GetStickerMessage()
	require.NotNil(t, st)
	assert.True(t, st.GetIsAnimated())
	assert.Equal(t, uint32(512), st.GetWidth())

	img := sent[2].msg.GetImageMessage()
	require.NotNil(t, img)
	assert.Equal(t, "menu", img.GetCaption())
	assert.Equal(t, "/v/t62/upload", img.GetDirectPath())

	assert.Equal(t, []whatsmeow.MediaType{whatsmeow.MediaAudio, whatsmeow.MediaImage, whatsmeow.MediaImage}, cl.uploads)
}

func TestSendRendersLinkPreview(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	conv := adapter.conversation(cl, userJID, nil)

	_, err := conv.Send(context.Background(), bus.OutboundMessage{
		Media: &bus.Media{Kind: bus.MediaVideo, Data: []byte("mp4"), MimeType: "video/mp4", Caption: "✅ Clip", Thumbnail: []byte("thumb")},
		Metadata: map[string]string{
			bus.MetaPreviewTitle: "Clip",
			bus.MetaPreviewBody:  "Konoha Bot",
			bus.MetaPreviewURL:   "https://youtube.com/shorts/abc",
		},
	})
	require.NoError(t, err)

	video := cl.messages()[0].msg.GetVideoMessage()
	require.NotNil(t, video)
	card := video.GetContextInfo().GetExternalAdReply()
	require.NotNil(t, card)
	assert.Equal(t, "Clip", card.GetTitle())
	assert.Equal(t, "Konoha Bot", card.GetBody())
	assert.Equal(t, "https://youtube.com/shorts/abc", card.GetSourceURL())
	assert.Equal(t, []byte("thumb"), card.GetThumbnail())
	assert.Equal(t, []byte("thumb"), video.GetJPEGThumbnail())
}

func TestDownloadMediaPrefersOwnThenQuoted(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}

	own := directMessage("D1", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Mimetype:   proto.String("image/jpeg"),
		DirectPath: proto.String("/own"),
		Caption:    proto.String(".sticker"),
	}})
	media, err := adapter.conversation(cl, userJID, own).DownloadMedia(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bus.MediaImage, media.Kind)
	assert.Equal(t, []byte("bytes:/own"), media.Data)

	quoted := directMessage("D2", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text: proto.String(".sticker"),
		ContextInfo: &waE2E.ContextInfo{QuotedMessage: &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Mimetype:   proto.String("video/mp4"),
			DirectPath: proto.String("/quoted"),
			Seconds:    proto.Uint32(6),
		}}},
	}})
	media, err = adapter.conversation(cl, userJID, quoted).DownloadMedia(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bus.MediaVideo, media.Kind)
	assert.Equal(t, uint32(6), media.Seconds)
	assert.Equal(t, []byte("bytes:/quoted"), media.Data)

	text := directMessage("D3", &waE2E.Message{Conversation: proto.String(".sticker")})
	_, err = adapter.conversation(cl, userJID, text).DownloadMedia(context.Background())
	assert.ErrorIs(t, err, channel.ErrNoMedia)
}

func TestGroupInfoListsAdmins(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{group: &types.GroupInfo{
		JID:       groupJID,
		GroupName: types.GroupName{Name: "Hidden Leaf"},
		Participants: []types.GroupParticipant{
			{JID: memberJID, IsAdmin: true},
			{JID: userJID},
		},
	}}

	info, err := adapter.conversation(cl, groupJID, nil).GroupInfo(context.Background(), groupJID.String())
	require.NoError(t, err)
	assert.Equal(t, "Hidden Leaf", info.Name)
	assert.Equal(t, []string{"15554445555@s.whatsapp.net", userJID.String()}, info.Participants)
	assert.Equal(t, []string{"15554445555@s.whatsapp.net"}, info.Admins)

	_, err = adapter.conversation(cl, userJID, nil).GroupInfo(context.Background(), userJID.String())
	assert.Error(t, err)
}

func TestHandleMessageRunsHandlerAndReportsFailure(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	var got []bus.InboundMessage
	handler := func(ctx context.Context, in bus.InboundMessage, sender channel.Sender) error {
		got = append(got, in)
		return errors.New("boom")
	}

	evt := directMessage("E1", &waE2E.Message{Conversation: proto.String(".ping")})
	adapter.handleMessage(context.Background(), cl, Normalizer{Sent: adapter.sent}, handler, evt)

	require.Len(t, got, 1)
	assert.Equal(t, ".ping", got[0].Content)
	sent := cl.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, jutsuFailedText, sent[0].msg.GetConversation())
}

func TestHandleMessageRecoversFromPanics(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	handler := func(context.Context, bus.InboundMessage, channel.Sender) error { panic("kaboom") }

	assert.NotPanics(t, func() {
		adapter.handleMessage(context.Background(), cl, Normalizer{}, handler, directMessage("E2", &waE2E.Message{Conversation: proto.String(".x")}))
	})
}

func TestHandleMessageReadsStatusWhenEnabled(t *testing.T) {
	t.Parallel()

	status := func(id string) *events.Message {
		evt := directMessage(id, &waE2E.Message{Conversation: proto.String("story")})
		evt.Info.Chat = types.StatusBroadcastJID
		return evt
	}
	called := false
	handler := func(context.Context, bus.InboundMessage, channel.Sender) error { called = true; return nil }

	on, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	on.handleMessage(context.Background(), cl, Normalizer{}, handler, status("S1"))
	assert.Equal(t, []types.MessageID{"S1"}, cl.reads)

	off, _ := newTestAdapter(t, func(cfg *config.Config) { cfg.Features.AutoReadStatus = false })
	quiet := &fakeClient{}
	off.handleMessage(context.Background(), quiet, Normalizer{}, handler, status("S2"))
	assert.Empty(t, quiet.reads)

	assert.False(t, called)
}

func TestGreetWelcomesAndSaysGoodbye(t *testing.T) {
	t.Parallel()

	adapter, mb := newTestAdapter(t, nil)
	sub, cancel := mb.SubscribeEvents(context.Background(), 4)
	defer cancel()

	cl := &fakeClient{group: &types.GroupInfo{JID: groupJID, GroupName: types.GroupName{Name: "Hidden Leaf"}}}
	adapter.greet(context.Background(), cl, &events.GroupInfo{
		JID:   groupJID,
		Join:  []types.JID{memberJID},
		Leave: []types.JID{userJID},
	})

	sent := cl.messages()
	require.Len(t, sent, 2)

	welcome := sent[0].msg.GetExtendedTextMessage()
	require.NotNil(t, welcome)
	assert.Contains(t, welcome.GetText(), "@15554445555")
	assert.Contains(t, welcome.GetText(), "Hidden Leaf")
	assert.Equal(t, []string{"15554445555@s.whatsapp.net"}, welcome.GetContextInfo().GetMentionedJID())

	goodbye := sent[1].msg.GetExtendedTextMessage()
	require.NotNil(t, goodbye)
	assert.Contains(t, goodbye.GetText(), "@15552223333")

	select {
	case evt := <-sub:
		assert.Equal(t, bus.EventGroupParticipants, evt.Type)
		assert.Equal(t, "1", evt.Payload["joined"])
		assert.Equal(t, "1", evt.Payload["left"])
	case <-time.After(time.Second):
		t.Fatal("expected group participants event")
	}
}

func TestGreetRespectsToggles(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, func(cfg *config.Config) {
		cfg.Features.Welcome = false
		cfg.Features.Goodbye = false
	})
	cl := &fakeClient{group: &types.GroupInfo{JID: groupJID}}
	adapter.greet(context.Background(), cl, &events.GroupInfo{JID: groupJID, Join: []types.JID{memberJID}})
	assert.Empty(t, cl.messages())

	failing, _ := newTestAdapter(t, nil)
	broken := &fakeClient{groupErr: errors.New("not in group")}
	failing.greet(context.Background(), broken, &events.GroupInfo{JID: groupJID, Join: []types.JID{memberJID}})
	assert.Empty(t, broken.messages())
}

func TestAnnounceMessagesOwnAccount(t *testing.T) {
	t.Parallel()

	adapter, _ := newTestAdapter(t, nil)
	cl := &fakeClient{}
	adapter.announce(context.Background(), cl, botJID)

	sent := cl.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, botJID.ToNonAD(), sent[0].to)
	text := sent[0].msg.GetConversation()
	assert.Contains(t, text, "Konoha Bot v1.2.4")
	assert.Contains(t, text, sampleTime.Format(startupTimeLayout))

	empty := &fakeClient{}
	adapter.announce(context.Background(), empty, types.EmptyJID)
	assert.Empty(t, empty.messages())
}

func TestGreetingTemplatesCycle(t *testing.T) {
	t.Parallel()

	for i := range welcomeTemplates {
		text := welcomeText(i, "Hidden Leaf", "15550001111")
		assert.Contains(t, text, "@15550001111")
		assert.Contains(t, text, "Hidden Leaf")
	}
	for i := range goodbyeTemplates {
		assert.Contains(t, goodbyeText(i, "15550001111"), "@15550001111 has")
	}
	assert.Equal(t, welcomeText(0, "g", "n"), welcomeText(len(welcomeTemplates), "g", "n"))
	assert.Contains(t, startupText(0, "Konoha Bot", "9.9.9", "!", sampleTime), "*!help*")
}

func TestSetStatePublishesConnectionEvents(t *testing.T) {
	t.Parallel()

	adapter, mb := newTestAdapter(t, nil)
	sub, cancel := mb.SubscribeEvents(context.Background(), 2)
	defer cancel()

	adapter.setState(context.Background(), StateOpen)
	assert.Equal(t, string(StateOpen), adapter.ConnectionState())

	select {
	case evt := <-sub:
		assert.Equal(t, bus.EventConnectionState, evt.Type)
		assert.Equal(t, "open", evt.Payload["state"])
	case <-time.After(time.Second):
		t.Fatal("expected connection state event")
	}
}
