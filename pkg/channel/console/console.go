package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
	"konoha/pkg/ui/chat"
)

const (
	channelName = "console"
	chatID      = "console"
	senderID    = "operator@console"
)

// Options configures the console adapter.
type Options struct {
	Bot config.BotConfig
	Log *slog.Logger
	In  io.Reader
	Out io.Writer
	// Interactive forces the chat window on or off. When nil it is used only
	// if In is a terminal.
	Interactive *bool
}

// Adapter feeds lines typed on the local terminal through the bot. The
// operator counts as the bot's own account.
type Adapter struct {
	bot         config.BotConfig
	log         *slog.Logger
	in          io.Reader
	out         io.Writer
	interactive bool
	seq         atomic.Int64
}

func NewAdapter(opts Options) *Adapter {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	interactive := false
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	} else if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	return &Adapter{
		bot:         opts.Bot,
		log:         log.With("component", "channel.console"),
		in:          in,
		out:         out,
		interactive: interactive,
	}
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run serves the terminal until ctx ends, the operator quits, or input runs out.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	if a.interactive {
		return a.runChat(ctx, handler)
	}
	return a.runLines(ctx, handler)
}

func (a *Adapter) runChat(ctx context.Context, handler channel.Handler) error {
	var console *chat.Console
	submit := func(ctx context.Context, line string) error {
		return handler(ctx, a.inbound(line), &sender{adapter: a, post: func(text string) {
			console.Post(chat.Entry{Role: chat.RoleBot, Content: text})
		}})
	}

	console = chat.NewConsole(ctx, submit, chat.Info{
		Name:    a.bot.Name,
		Version: a.bot.Version,
		Prefix:  a.bot.Prefix,
	}, a.out)
	a.log.Info("Console channel started", "mode", "chat")
	return console.Run()
}

func (a *Adapter) runLines(ctx context.Context, handler channel.Handler) error {
	a.log.Info("Console channel started", "mode", "lines")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	out := &sender{adapter: a, post: func(text string) {
		fmt.Fprintln(a.out, text)
	}}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read console input: %w", err)
					}
				default:
				}
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := handler(ctx, a.inbound(line), out); err != nil {
				a.log.Error("Failed to process console input", "error", err)
				fmt.Fprintln(a.out, "error: "+err.Error())
			}
		}
	}
}

func (a *Adapter) inbound(line string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   channelName,
		ID:        a.nextID(),
		ChatID:    chatID,
		SenderID:  senderID,
		PushName:  "Operator",
		FromSelf:  true,
		Content:   strings.TrimSpace(line),
		RawType:   "conversation",
		Timestamp: time.Now(),
	}
}

func (a *Adapter) nextID() string {
	return "console-" + strconv.FormatInt(a.seq.Add(1), 10)
}

// sender renders outbound messages as text for the terminal.
type sender struct {
	adapter *Adapter
	post    func(string)
}

func (s *sender) Send(_ context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	s.post(Render(msg))

	if msg.Edit != nil && !msg.Edit.IsZero() {
		return *msg.Edit, nil
	}
	return bus.MessageRef{Channel: channelName, ChatID: chatID, ID: s.adapter.nextID()}, nil
}

// Render turns an outbound message into the text shown on the terminal.
func Render(msg bus.OutboundMessage) string {
	var parts []string
	if msg.Edit != nil {
		parts = append(parts, "✏️ (edited)")
	}

	if media := msg.Media; media != nil {
		label := fmt.Sprintf("[%s %s, %d bytes]", media.Kind, displayMime(media.MimeType), len(media.Data))
		if media.FileName != "" {
			label = fmt.Sprintf("[%s %s, %d bytes]", media.Kind, media.FileName, len(media.Data))
		}
		parts = append(parts, label)
		if caption := firstNonEmpty(media.Caption, msg.Content); caption != "" {
			parts = append(parts, caption)
		}
	} else if msg.Content != "" {
		parts = append(parts, msg.Content)
	}

	if url := msg.Metadata[bus.MetaPreviewURL]; url != "" {
		parts = append(parts, "🔗 "+url)
	}

	return strings.Join(parts, "\n")
}

func displayMime(mime string) string {
	if mime == "" {
		return "attachment"
	}
	return mime
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
