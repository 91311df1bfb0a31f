package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

// Adapter bridges Telegram updates into the bot's normalized messages.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		if _, err := url.Parse(proxy); err != nil {
			return nil, fmt.Errorf("channels.telegram.proxy: %w", err)
		}
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards messages through the shared channel handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	var opts []telego.BotOption
	if proxy := strings.TrimSpace(a.cfg.Proxy); proxy != "" {
		proxyURL, _ := url.Parse(proxy)
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token), opts...)
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := normalize(update.Message)
			if !ok {
				continue
			}
			if !a.senderAllowed(inbound.SenderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", inbound.SenderID)
				continue
			}
			inbound.Metadata["update_id"] = strconv.Itoa(update.UpdateID)

			go a.handle(ctx, bot, handler, inbound, update.Message)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, bot *telego.Bot, handler channel.Handler, inbound bus.InboundMessage, origin *telego.Message) {
	defer func() {
		if recovered := recover(); recovered != nil {
			a.log.Error("Message handling panicked", "chat_id", inbound.ChatID, "panic", recovered)
		}
	}()

	a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", previewText(inbound.Content))

	stopTyping := a.startTypingIndicator(ctx, bot, origin.Chat.ID)
	defer stopTyping()

	conv := &conversation{api: bot, chatID: origin.Chat.ID, origin: origin, log: a.log}
	if err := handler(ctx, inbound, conv); err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", inbound.ChatID, "error", err)
	}
}

// normalize maps a Telegram message onto the bot's inbound shape. It reports
// false for updates that carry no message or no sender.
func normalize(message *telego.Message) (bus.InboundMessage, bool) {
	if message == nil || message.From == nil {
		return bus.InboundMessage{}, false
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}

	inbound := bus.InboundMessage{
		Channel:   channelName,
		ID:        strconv.Itoa(message.MessageID),
		ChatID:    strconv.FormatInt(message.Chat.ID, 10),
		SenderID:  strconv.FormatInt(message.From.ID, 10),
		PushName:  strings.TrimSpace(message.From.FirstName + " " + message.From.LastName),
		IsGroup:   message.Chat.Type == telego.ChatTypeGroup || message.Chat.Type == telego.ChatTypeSupergroup,
		Content:   strings.TrimSpace(content),
		RawType:   rawType(message),
		Timestamp: time.Unix(message.Date, 0),
		Metadata:  map[string]string{},
	}
	if reply := message.ReplyToMessage; reply != nil {
		inbound.QuotedID = strconv.Itoa(reply.MessageID)
	}

	return inbound, true
}

func rawType(message *telego.Message) string {
	switch {
	case len(message.Photo) > 0:
		return "imageMessage"
	case message.Video != nil:
		return "videoMessage"
	case message.Sticker != nil:
		return "stickerMessage"
	case message.Voice != nil || message.Audio != nil:
		return "audioMessage"
	case message.Document != nil:
		return "documentMessage"
	case message.Text != "":
		return "conversation"
	default:
		return "unknown"
	}
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
