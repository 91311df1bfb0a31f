package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
	"konoha/pkg/logger"
	"konoha/pkg/ui/chat"
)

const channelName = "whatsapp"

const jutsuFailedText = "❌ *Jutsu Failed!*\n\nEven the greatest ninjas make mistakes. The technique encountered a forbidden barrier. Please try again later! 🍃"

// Options configures the WhatsApp adapter.
type Options struct {
	Config *config.Config
	Events *bus.MessageBus
	Log    *slog.Logger
	// Mobile requests the mobile api, which pairing codes do not support.
	Mobile bool
	// Prompt asks for the phone number on first run. Defaults to a TUI input
	// on terminals and plain line reads otherwise.
	Prompt Prompter
	Out    io.Writer
	Rand   *rand.Rand
	Now    func() time.Time
}

// Adapter runs one WhatsApp multi-device session under a Supervisor.
type Adapter struct {
	cfg     *config.Config
	events  *bus.MessageBus
	log     *slog.Logger
	mobile  bool
	prompt  Prompter
	out     io.Writer
	pickN   func(int) int
	now     func() time.Time
	sent    *SentLog
	limiter *rate.Limiter

	mu    sync.RWMutex
	state State
}

// NewAdapter validates configuration and constructs the adapter.
func NewAdapter(opts Options) (*Adapter, error) {
	if opts.Config == nil {
		return nil, errors.New("whatsapp adapter requires config")
	}
	cfg := opts.Config.Channels.WhatsApp
	switch cfg.Pairing {
	case "", PairingCode, PairingQR:
	default:
		return nil, fmt.Errorf("channels.whatsapp.pairing must be %q or %q, got %q", PairingCode, PairingQR, cfg.Pairing)
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	prompt := opts.Prompt
	if prompt == nil {
		prompt = defaultPrompter(out)
	}
	pickN := rand.IntN
	if opts.Rand != nil {
		pickN = opts.Rand.IntN
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	limit := rate.Inf
	if cfg.SendRatePerSecond > 0 {
		limit = rate.Limit(cfg.SendRatePerSecond)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	return &Adapter{
		cfg:     opts.Config,
		events:  opts.Events,
		log:     log.With("component", "channel.whatsapp"),
		mobile:  opts.Mobile,
		prompt:  prompt,
		out:     out,
		pickN:   pickN,
		now:     now,
		sent:    NewSentLog(),
		limiter: rate.NewLimiter(limit, burst),
		state:   StateDisconnected,
	}, nil
}

func defaultPrompter(out io.Writer) Prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return func(ctx context.Context, label string) (string, error) {
			return chat.AskLine(ctx, label, "+1234567890")
		}
	}
	return LinePrompter(os.Stdin, out)
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// ConnectionState reports the supervisor state for health checks.
func (a *Adapter) ConnectionState() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return string(a.state)
}

// Run pairs the device if needed, connects, and serves messages until ctx
// ends or the supervisor gives up. Terminal outcomes are *ExitError.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	sessionDir := a.cfg.Storage.SessionDir
	container, device, err := OpenDevice(ctx, sessionDir, a.log)
	if err != nil {
		return err
	}
	defer container.Close()

	cl := whatsmeow.NewClient(device, logger.WhatsApp(a.log, "Client"))
	cl.EnableAutoReconnect = false

	var phone string
	if cl.Store.ID == nil {
		if phone, err = a.preparePairing(ctx, cl); err != nil {
			return err
		}
	} else {
		a.log.Info("✅ Existing session found, reconnecting...")
	}

	self := func() types.JID {
		if cl.Store.ID == nil {
			return types.EmptyJID
		}
		return *cl.Store.ID
	}

	sup := NewSupervisor(SupervisorConfig{
		MaxAttempts: a.cfg.Supervisor.MaxReconnectAttempts,
		Delay:       a.cfg.Supervisor.ReconnectDelay(),
		Connect:     cl.Connect,
		OnOpen: func() {
			go func() {
				if err := cl.SendPresence(ctx, types.PresenceAvailable); err != nil {
					a.log.Debug("Failed to send presence", "error", err)
				}
				a.announce(ctx, cl, self())
			}()
		},
		OnState:     func(st State) { a.setState(ctx, st) },
		WipeSession: func() error { return WipeSession(sessionDir) },
		Log:         a.log,
	})

	normalizer := Normalizer{Self: self, Sent: a.sent}
	cl.AddEventHandler(func(evt any) {
		switch v := evt.(type) {
		case *events.Connected:
			a.log.Info("Connected to WhatsApp", "jid", self().String())
			sup.Opened()
		case *events.Disconnected:
			sup.Closed("disconnected", false)
		case *events.StreamReplaced:
			sup.Closed("stream replaced", false)
		case *events.ConnectFailure:
			sup.Closed(fmt.Sprint(v.Reason), v.Reason.IsLoggedOut())
		case *events.LoggedOut:
			sup.Closed("logged out", true)
		case *events.PairSuccess:
			a.log.Info("Device paired", "jid", v.ID.String())
			a.rememberOwner(v.ID.User)
		case *events.Message:
			go a.handleMessage(ctx, cl, normalizer, handler, v)
		case *events.GroupInfo:
			go a.greet(ctx, cl, v)
		}
	})

	sup.Start()

	if phone != "" {
		if !cl.IsConnected() {
			cl.Disconnect()
			return &ExitError{Code: 1, Reason: "could not connect to request a pairing code"}
		}
		if err := a.requestCode(ctx, cl, phone); err != nil {
			cl.Disconnect()
			return &ExitError{Code: 1, Reason: err.Error()}
		}
	}

	select {
	case <-ctx.Done():
		cl.Disconnect()
		a.setState(context.Background(), StateDisconnected)
		return nil
	case exit := <-sup.Done():
		cl.Disconnect()
		return exit
	}
}

// preparePairing readies an unpaired client: a QR watcher, or the phone
// number for a pairing code requested after connecting.
func (a *Adapter) preparePairing(ctx context.Context, cl *whatsmeow.Client) (string, error) {
	if a.cfg.Channels.WhatsApp.Pairing == PairingQR {
		qrChan, err := cl.GetQRChannel(ctx)
		if err != nil {
			return "", fmt.Errorf("open qr channel: %w", err)
		}
		go a.watchQR(qrChan)
		return "", nil
	}

	if a.mobile {
		return "", ErrMobilePairing
	}

	phone, err := a.askPhone(ctx)
	if errors.Is(err, ErrInvalidPhone) {
		return "", &ExitError{Code: 1, Reason: err.Error()}
	}
	return phone, err
}

func (a *Adapter) conversation(cl client, chat types.JID, origin *events.Message) *conversation {
	return &conversation{
		client:  cl,
		chat:    chat,
		origin:  origin,
		limiter: a.limiter,
		sent:    a.sent,
		log:     a.log,
	}
}

// handleMessage runs one inbound event through the normalizer and handler.
// Nothing escapes it.
func (a *Adapter) handleMessage(ctx context.Context, cl statusClient, normalizer Normalizer, handler channel.Handler, evt *events.Message) {
	defer func() {
		if recovered := recover(); recovered != nil {
			a.log.Error("Message handling panicked", "message_id", evt.Info.ID, "panic", recovered)
		}
	}()

	in, drop := normalizer.Normalize(evt)
	switch drop {
	case Keep:
	case DropStatus:
		a.readStatus(ctx, cl, evt)
		return
	default:
		a.log.Debug("Dropped message", "message_id", evt.Info.ID, "reason", drop.String())
		return
	}

	conv := a.conversation(cl, evt.Info.Chat, evt)
	if err := handler(ctx, in, conv); err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", in.ChatID, "message_id", in.ID, "error", err)
		if _, err := conv.Send(ctx, bus.OutboundMessage{Content: jutsuFailedText}); err != nil {
			a.log.Error("Failed to send failure notice", "chat_id", in.ChatID, "error", err)
		}
	}
}

// statusClient adds receipts to the sending surface.
type statusClient interface {
	client
	MarkRead(ctx context.Context, ids []types.MessageID, timestamp time.Time, chat, sender types.JID, receiptTypeExtra ...types.ReceiptType) error
}

// readStatus acknowledges a status broadcast when auto-read is on.
func (a *Adapter) readStatus(ctx context.Context, cl statusClient, evt *events.Message) {
	if !a.cfg.Features.AutoReadStatus {
		return
	}

	if err := cl.MarkRead(ctx, []types.MessageID{evt.Info.ID}, a.now(), evt.Info.Chat, evt.Info.Sender); err != nil {
		a.log.Debug("Failed to mark status read", "message_id", evt.Info.ID, "error", err)
		return
	}
	a.log.Debug("Status marked read", "message_id", evt.Info.ID, "sender", evt.Info.Sender.String())
}

// greet welcomes joined members and says goodbye to departed ones.
func (a *Adapter) greet(ctx context.Context, cl client, evt *events.GroupInfo) {
	features := a.cfg.Features
	welcome := features.Welcome && len(evt.Join) > 0
	goodbye := features.Goodbye && len(evt.Leave) > 0
	if !welcome && !goodbye {
		return
	}

	info, err := groupInfo(ctx, cl, evt.JID.String())
	if err != nil {
		a.log.Warn("Failed to fetch group metadata", "group", evt.JID.String(), "error", err)
		return
	}

	conv := a.conversation(cl, evt.JID, nil)
	if welcome {
		text := welcomeText(a.pickN(len(welcomeTemplates)), info.Name, evt.Join[0].User)
		if _, err := conv.Send(ctx, bus.OutboundMessage{Content: text, Mentions: jidStrings(evt.Join)}); err != nil {
			a.log.Error("Failed to send welcome message", "group", info.Name, "error", err)
		}
	}
	if goodbye {
		text := goodbyeText(a.pickN(len(goodbyeTemplates)), evt.Leave[0].User)
		if _, err := conv.Send(ctx, bus.OutboundMessage{Content: text, Mentions: jidStrings(evt.Leave)}); err != nil {
			a.log.Error("Failed to send goodbye message", "group", info.Name, "error", err)
		}
	}

	a.events.PublishEvent(ctx, bus.Event{
		Type:    bus.EventGroupParticipants,
		Channel: channelName,
		ChatID:  evt.JID.String(),
		Payload: map[string]string{
			"group":  info.Name,
			"joined": strconv.Itoa(len(evt.Join)),
			"left":   strconv.Itoa(len(evt.Leave)),
		},
	})
}

// announce sends the startup notice to the bot's own account.
func (a *Adapter) announce(ctx context.Context, cl client, self types.JID) {
	if self.IsEmpty() {
		return
	}

	bot := a.cfg.Bot
	text := startupText(a.pickN(len(startupTemplates)), bot.Name, bot.Version, bot.Prefix, a.now())
	if _, err := a.conversation(cl, self.ToNonAD(), nil).Send(ctx, bus.OutboundMessage{Content: text}); err != nil {
		a.log.Warn("Error sending startup message", "error", err)
	}

	a.log.Info(fmt.Sprintf("[ %s v%s ]", bot.Name, bot.Version))
	a.log.Info(bot.ThemeEmoji + " The Will of Fire Burns Bright! Bot is Ready! ✅")
}

func (a *Adapter) rememberOwner(number string) {
	if number == "" {
		return
	}
	if err := config.WriteOwners(a.cfg.Storage.OwnerFile(), number); err != nil {
		a.log.Error("Failed to record owner", "error", err)
	}
}

func (a *Adapter) setState(ctx context.Context, st State) {
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()

	a.events.PublishEvent(ctx, bus.Event{
		Type:    bus.EventConnectionState,
		Channel: channelName,
		Payload: map[string]string{"state": string(st)},
	})
}

func jidStrings(jids []types.JID) []string {
	out := make([]string, 0, len(jids))
	for _, jid := range jids {
		out = append(out, jid.ToNonAD().String())
	}
	return out
}
