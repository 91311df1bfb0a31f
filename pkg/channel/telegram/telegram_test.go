package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
	"konoha/pkg/logger"
)

type fakeAPI struct {
	nextID   int
	texts    []*telego.SendMessageParams
	edits    []*telego.EditMessageTextParams
	photos   []*telego.SendPhotoParams
	voices   []*telego.SendVoiceParams
	stickers []*telego.SendStickerParams
	chat     *telego.ChatFullInfo
	admins   []telego.ChatMember
	files    map[string]string
}

func (f *fakeAPI) message() *telego.Message {
	f.nextID++
	return &telego.Message{MessageID: 100 + f.nextID}
}

func (f *fakeAPI) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.texts = append(f.texts, params)
	return f.message(), nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	f.edits = append(f.edits, params)
	return &telego.Message{MessageID: params.MessageID}, nil
}

func (f *fakeAPI) SendPhoto(_ context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	f.photos = append(f.photos, params)
	return f.message(), nil
}

func (f *fakeAPI) SendVideo(context.Context, *telego.SendVideoParams) (*telego.Message, error) {
	return f.message(), nil
}

func (f *fakeAPI) SendVoice(_ context.Context, params *telego.SendVoiceParams) (*telego.Message, error) {
	f.voices = append(f.voices, params)
	return f.message(), nil
}

func (f *fakeAPI) SendAudio(context.Context, *telego.SendAudioParams) (*telego.Message, error) {
	return f.message(), nil
}

func (f *fakeAPI) SendSticker(_ context.Context, params *telego.SendStickerParams) (*telego.Message, error) {
	f.stickers = append(f.stickers, params)
	return f.message(), nil
}

func (f *fakeAPI) SendDocument(context.Context, *telego.SendDocumentParams) (*telego.Message, error) {
	return f.message(), nil
}

func (f *fakeAPI) GetFile(_ context.Context, params *telego.GetFileParams) (*telego.File, error) {
	path, ok := f.files[params.FileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return &telego.File{FileID: params.FileID, FilePath: path}, nil
}

func (f *fakeAPI) FileDownloadURL(filepath string) string {
	return "https://files.example/" + filepath
}

func (f *fakeAPI) GetChat(context.Context, *telego.GetChatParams) (*telego.ChatFullInfo, error) {
	if f.chat == nil {
		return nil, errors.New("chat not found")
	}
	return f.chat, nil
}

func (f *fakeAPI) GetChatAdministrators(context.Context, *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error) {
	return f.admins, nil
}

func newConversation(fake *fakeAPI, origin *telego.Message) *conversation {
	return &conversation{
		api:    fake,
		chatID: -1001,
		origin: origin,
		log:    logger.Discard(),
		download: func(url string) ([]byte, error) {
			return []byte(url), nil
		},
	}
}

func TestNewAdapterRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter(config.TelegramConfig{}, nil)
	require.EqualError(t, err, "channels.telegram.token is required")

	adapter, err := NewAdapter(config.TelegramConfig{Token: " 123:abc "}, nil)
	require.NoError(t, err)
	assert.Equal(t, channelName, adapter.Name())
}

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if _, ok := allowed["456"]; !ok {
		t.Fatal("allowFromSet missing 456")
	}
}

func TestSenderAllowed(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}}
	if !adapter.senderAllowed("1") {
		t.Fatal("expected sender 1 to be allowed")
	}
	if adapter.senderAllowed("2") {
		t.Fatal("expected sender 2 to be denied")
	}

	adapter.allowFrom = nil
	if !adapter.senderAllowed("any") {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestPreviewText(t *testing.T) {
	short := " hello "
	if got := previewText(short); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", messagePreviewLimit+20)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("previewText long len = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	_, ok := normalize(nil)
	assert.False(t, ok)
	_, ok = normalize(&telego.Message{Text: "orphan"})
	assert.False(t, ok)

	in, ok := normalize(&telego.Message{
		MessageID:      7,
		Date:           1700000000,
		Chat:           telego.Chat{ID: -1001, Type: telego.ChatTypeSupergroup},
		From:           &telego.User{ID: 42, FirstName: "Rock", LastName: "Lee"},
		Photo:          []telego.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		Caption:        " .sticker ",
		ReplyToMessage: &telego.Message{MessageID: 5},
	})
	require.True(t, ok)
	assert.Equal(t, "7", in.ID)
	assert.Equal(t, "-1001", in.ChatID)
	assert.Equal(t, "42", in.SenderID)
	assert.Equal(t, "Rock Lee", in.PushName)
	assert.True(t, in.IsGroup)
	assert.Equal(t, ".sticker", in.Content)
	assert.Equal(t, "imageMessage", in.RawType)
	assert.Equal(t, "5", in.QuotedID)
	assert.NotNil(t, in.Metadata)
}

func TestSendTextQuotesAndEdits(t *testing.T) {
	t.Parallel()

	fake := &fakeAPI{}
	conv := newConversation(fake, nil)

	ref, err := conv.Send(context.Background(), bus.OutboundMessage{Content: "🏓 Pinging...", QuoteID: "7"})
	require.NoError(t, err)
	assert.Equal(t, bus.MessageRef{Channel: channelName, ChatID: "-1001", ID: "101"}, ref)
	require.Len(t, fake.texts, 1)
	require.NotNil(t, fake.texts[0].ReplyParameters)
	assert.Equal(t, 7, fake.texts[0].ReplyParameters.MessageID)

	edited, err := conv.Send(context.Background(), bus.OutboundMessage{Content: "🏓 Pong!", Edit: &ref})
	require.NoError(t, err)
	assert.Equal(t, ref, edited)
	require.Len(t, fake.edits, 1)
	assert.Equal(t, 101, fake.edits[0].MessageID)
	assert.Equal(t, "🏓 Pong!", fake.edits[0].Text)

	_, err = conv.Send(context.Background(), bus.OutboundMessage{Content: "x", Edit: &bus.MessageRef{ID: "abc"}})
	assert.Error(t, err)
}

func TestSendMediaPicksMethod(t *testing.T) {
	t.Parallel()

	fake := &fakeAPI{}
	conv := newConversation(fake, nil)
	ctx := context.Background()

	_, err := conv.Send(ctx, bus.OutboundMessage{Content: "menu", Media: &bus.Media{Kind: bus.MediaImage, Data: []byte("jpg")}})
	require.NoError(t, err)
	_, err = conv.Send(ctx, bus.OutboundMessage{Media: &bus.Media{Kind: bus.MediaAudio, Data: []byte("ogg"), PTT: true, Seconds: 4}})
	require.NoError(t, err)
	_, err = conv.Send(ctx, bus.OutboundMessage{Media: &bus.Media{Kind: bus.MediaSticker, Data: []byte("webp")}})
	require.NoError(t, err)

	require.Len(t, fake.photos, 1)
	assert.Equal(t, "menu", fake.photos[0].Caption)
	require.Len(t, fake.voices, 1)
	assert.Equal(t, 4, fake.voices[0].Duration)
	require.Len(t, fake.stickers, 1)
	assert.Empty(t, fake.texts)
}

func TestDownloadMediaFallsBackToReply(t *testing.T) {
	t.Parallel()

	fake := &fakeAPI{files: map[string]string{"vid": "videos/clip.mp4"}}
	origin := &telego.Message{
		Text:           ".sticker",
		ReplyToMessage: &telego.Message{Video: &telego.Video{FileID: "vid", MimeType: "video/mp4", Duration: 6}},
	}

	media, err := newConversation(fake, origin).DownloadMedia(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bus.MediaVideo, media.Kind)
	assert.Equal(t, uint32(6), media.Seconds)
	assert.Equal(t, []byte("https://files.example/videos/clip.mp4"), media.Data)

	_, err = newConversation(fake, &telego.Message{Text: ".sticker"}).DownloadMedia(context.Background())
	assert.ErrorIs(t, err, channel.ErrNoMedia)
}

func TestGroupInfoListsAdministrators(t *testing.T) {
	t.Parallel()

	fake := &fakeAPI{
		chat:   &telego.ChatFullInfo{ID: -1001, Type: telego.ChatTypeSupergroup, Title: "Hidden Leaf"},
		admins: []telego.ChatMember{&telego.ChatMemberOwner{Status: telego.MemberStatusCreator, User: telego.User{ID: 42}}},
	}

	info, err := newConversation(fake, nil).GroupInfo(context.Background(), "-1001")
	require.NoError(t, err)
	assert.Equal(t, "Hidden Leaf", info.Name)
	assert.Equal(t, []string{"42"}, info.Admins)

	fake.chat = &telego.ChatFullInfo{ID: 42, Type: telego.ChatTypePrivate}
	_, err = newConversation(fake, nil).GroupInfo(context.Background(), "42")
	assert.Error(t, err)
}
