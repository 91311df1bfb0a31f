package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
)

type editRejectingSender struct {
	recordingSender
}

func (s *editRejectingSender) Send(ctx context.Context, out bus.OutboundMessage) (bus.MessageRef, error) {
	if out.Edit != nil {
		return bus.MessageRef{}, errors.New("edit window expired")
	}
	return s.recordingSender.Send(ctx, out)
}

func TestStatusUpdateEditsInPlace(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	msg := NewMessage(inbound(".lyrics x"), sender)

	status, err := msg.StartStatus(context.Background(), "searching")
	require.NoError(t, err)
	require.NoError(t, status.Update(context.Background(), "found"))

	sent := sender.messages()
	require.Len(t, sent, 2)
	require.NotNil(t, sent[1].Edit)
	assert.Equal(t, status.Ref().ID, sent[1].Edit.ID)
	assert.Equal(t, "found", sent[1].Content)
}

func TestStatusUpdateFallsBackToReply(t *testing.T) {
	t.Parallel()

	sender := &editRejectingSender{}
	msg := NewMessage(inbound(".sing x"), sender)

	status, err := msg.StartStatus(context.Background(), "searching")
	require.NoError(t, err)
	first := status.Ref()

	require.NoError(t, status.Update(context.Background(), "downloading"))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Nil(t, sent[1].Edit)
	assert.Equal(t, "ABCD1234", sent[1].QuoteID)
	assert.NotEqual(t, first.ID, status.Ref().ID)
}

func TestDownloadWithoutSupport(t *testing.T) {
	t.Parallel()

	msg := NewMessage(inbound(".sticker"), &editRejectingSender{})
	if _, err := msg.Download(context.Background()); !errors.Is(err, channel.ErrNoMedia) {
		t.Fatalf("Download error = %v, want ErrNoMedia", err)
	}
}

func TestUserPart(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		"15551234567:12@s.whatsapp.net": "15551234567",
		"15551234567@s.whatsapp.net":    "15551234567",
		"120363@g.us":                   "120363",
		"42":                            "42",
	} {
		if got := UserPart(input); got != want {
			t.Fatalf("UserPart(%q) = %q, want %q", input, got, want)
		}
	}
}
