package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
)

const groupLookupTimeout = 5 * time.Second

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s]+`)
	urlInvalidChars  = regexp.MustCompile(`[^a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]`)
	defaultNotFound  = "Command *%s* not found. Use *%shelp* to see available commands."
	defaultErrorText = "Error executing command: %s"
)

// RouterConfig wires the router to the registry and its collaborators.
type RouterConfig struct {
	Registry *Registry
	Prefix   string
	// ImplicitCommand is dispatched for the first bare URL accepted by
	// ClassifyURL in an unprefixed message.
	ImplicitCommand string
	ClassifyURL     func(string) bool
	// IsOwner decides who may run owner-only commands.
	IsOwner func(bus.InboundMessage) bool
	Events  *bus.MessageBus
	Log     *slog.Logger
}

// Router resolves normalized messages to commands and runs them. Nothing a
// handler does escapes Handle.
type Router struct {
	cfg RouterConfig
	log *slog.Logger
	now func() time.Time
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("router requires a registry")
	}
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("router requires a prefix")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.IsOwner == nil {
		cfg.IsOwner = func(in bus.InboundMessage) bool { return in.FromSelf }
	}

	return &Router{
		cfg: cfg,
		log: cfg.Log.With("component", "command.router"),
		now: time.Now,
	}, nil
}

// Handle is the channel.Handler entry point.
func (r *Router) Handle(ctx context.Context, in bus.InboundMessage, sender channel.Sender) error {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.Error("Dispatch panicked", "chat_id", in.ChatID, "message_id", in.ID, "panic", recovered)
		}
	}()

	r.Route(ctx, NewMessage(in, sender))
	return nil
}

// Route dispatches one message: prefixed command, implicit URL trigger, or
// nothing.
func (r *Router) Route(ctx context.Context, msg *Message) {
	name, args, ok := Parse(r.cfg.Prefix, msg.Content)
	if !ok {
		if !strings.HasPrefix(msg.Content, r.cfg.Prefix) {
			r.routeImplicit(ctx, msg)
		}
		return
	}

	desc, found := r.cfg.Registry.Lookup(name)
	if !found {
		r.publish(ctx, msg, bus.EventCommandNotFound, name, "")
		r.log.Debug("Command not found", "command", name, "chat_id", msg.ChatID)
		if _, err := msg.Reply(ctx, fmt.Sprintf(defaultNotFound, name, r.cfg.Prefix)); err != nil {
			r.log.Warn("Failed to send not-found reply", "command", name, "error", err)
		}
		return
	}

	if desc.OwnerOnly && !r.cfg.IsOwner(msg.InboundMessage) {
		if _, err := msg.Reply(ctx, "❌ This command is only available to the bot owner."); err != nil {
			r.log.Warn("Failed to send owner-only reply", "command", desc.Name, "error", err)
		}
		return
	}

	dc := DispatchContext{
		Prefix:     r.cfg.Prefix,
		Command:    name,
		Args:       args,
		Text:       strings.Join(args, " "),
		ReceivedAt: r.now(),
	}
	r.enrichGroup(ctx, msg, &dc)
	r.dispatch(ctx, desc, msg, dc)
}

func (r *Router) routeImplicit(ctx context.Context, msg *Message) {
	if r.cfg.ImplicitCommand == "" || r.cfg.ClassifyURL == nil {
		return
	}

	url := FirstMatchingURL(msg.Content, r.cfg.ClassifyURL)
	if url == "" {
		return
	}

	desc, found := r.cfg.Registry.Lookup(r.cfg.ImplicitCommand)
	if !found {
		r.log.Warn("Implicit command is not registered", "command", r.cfg.ImplicitCommand)
		return
	}

	r.log.Info("Implicit trigger", "command", desc.Name, "url", url, "chat_id", msg.ChatID)
	r.publish(ctx, msg, bus.EventImplicitTrigger, desc.Name, "")

	dc := DispatchContext{
		Prefix:     r.cfg.Prefix,
		Command:    desc.Name,
		Args:       []string{url},
		Text:       url,
		Implicit:   true,
		ReceivedAt: r.now(),
	}
	r.enrichGroup(ctx, msg, &dc)
	r.dispatch(ctx, desc, msg, dc)
}

func (r *Router) dispatch(ctx context.Context, desc Descriptor, msg *Message, dc DispatchContext) {
	r.publish(ctx, msg, bus.EventCommandDispatched, desc.Name, "")
	r.log.Info("Dispatching command", "command", desc.Name, "chat_id", msg.ChatID, "sender_id", msg.SenderID, "implicit", dc.Implicit)

	start := r.now()
	err := invoke(ctx, desc, msg, dc)
	duration := r.now().Sub(start)

	if err == nil {
		r.publish(ctx, msg, bus.EventCommandCompleted, desc.Name, "")
		r.log.Debug("Command completed", "command", desc.Name, "duration_ms", duration.Milliseconds())
		return
	}

	r.publish(ctx, msg, bus.EventCommandFailed, desc.Name, err.Error())
	r.log.Error("Command failed", "command", desc.Name, "chat_id", msg.ChatID, "implicit", dc.Implicit, "duration_ms", duration.Milliseconds(), "error", err)

	if dc.Implicit {
		return
	}
	if _, replyErr := msg.Reply(ctx, fmt.Sprintf(defaultErrorText, err.Error())); replyErr != nil {
		r.log.Warn("Failed to send error reply", "command", desc.Name, "error", replyErr)
	}
}

// invoke runs a handler, turning panics into errors.
func invoke(ctx context.Context, desc Descriptor, msg *Message, dc DispatchContext) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%v", recovered)
		}
	}()

	return desc.Handler(ctx, msg, dc)
}

// enrichGroup attaches group metadata. Lookup failures leave an empty group
// context rather than blocking the dispatch.
func (r *Router) enrichGroup(ctx context.Context, msg *Message, dc *DispatchContext) {
	if !msg.IsGroup {
		return
	}

	dc.Group = &bus.GroupInfo{ID: msg.ChatID}

	lookupCtx, cancel := context.WithTimeout(ctx, groupLookupTimeout)
	defer cancel()

	info, err := msg.Group(lookupCtx)
	if err != nil {
		r.log.Debug("Group lookup failed", "chat_id", msg.ChatID, "error", err)
		return
	}

	dc.Group = &info
	dc.IsAdmin = slices.Contains(info.Admins, UserPart(msg.SenderID))
	if self := msg.Metadata["self_id"]; self != "" {
		dc.IsBotAdmin = slices.Contains(info.Admins, UserPart(self))
	}
}

func (r *Router) publish(ctx context.Context, msg *Message, eventType bus.EventType, command string, errText string) {
	r.cfg.Events.PublishEvent(ctx, bus.Event{
		Type:      eventType,
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		Command:   command,
		Error:     errText,
	})
}

// ExtractURLs returns the HTTP(S) URLs in text, stripped of characters that
// cannot appear in a URL.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		cleaned := urlInvalidChars.ReplaceAllString(match, "")
		if cleaned == "" {
			continue
		}
		urls = append(urls, cleaned)
	}

	return urls
}

// FirstMatchingURL returns the first well-formed URL in text accepted by
// classify, or "".
func FirstMatchingURL(text string, classify func(string) bool) string {
	for _, url := range ExtractURLs(text) {
		if !govalidator.IsURL(url) {
			continue
		}
		if classify(url) {
			return url
		}
	}

	return ""
}
