package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sunshineplan/imgconv"

	"konoha/pkg/bus"
	"konoha/pkg/command"
)

var helpGreetings = []string{
	"May the Will of Fire burn brightly within you!",
	"Believe it! Here are the jutsu you can use!",
	"A great shinobi masters many techniques!",
	"Your ninja way begins with these commands!",
	"As the Hokage would say: Knowledge is power!",
}

type menuSection struct {
	category string
	web      string
	mobile   string
}

var menuSections = []menuSection{
	{category: command.CategoryGeneral, web: "┏━━━❀ *GENERAL COMMANDS* ❀━━━┓", mobile: "🌐 *GENERAL COMMANDS:*"},
	{category: command.CategoryMedia, web: "┏━━━❀ *MEDIA COMMANDS* ❀━━━┓", mobile: "🎨 *MEDIA COMMANDS:*"},
	{category: command.CategoryAdmin, web: "┏━━━❀ *ADMIN COMMANDS* ❀━━━┓", mobile: "🛡️ *ADMIN COMMANDS:*"},
	{category: command.CategoryGame, web: "┏━━━❀ *GAME COMMANDS* ❀━━━┓", mobile: "🎮 *GAME COMMANDS:*"},
}

const menuDescriptionWidth = 40

func (d *Deps) helpCommand() (command.Descriptor, error) {
	if d.Registry == nil {
		return command.Descriptor{}, missing("help", "registry")
	}
	if d.Config == nil {
		return command.Descriptor{}, missing("help", "config")
	}

	return command.Descriptor{
		Name:        "help",
		Aliases:     []string{"menu"},
		Description: "Shows a list of all available jutsu (commands)",
		Usage:       ".help [jutsu name]",
		Handler:     d.help,
	}, nil
}

func (d *Deps) help(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	if name := dc.Arg(0); name != "" {
		_, err := msg.Reply(ctx, d.commandCard(strings.ToLower(name), dc.Prefix))
		return err
	}

	var caption string
	if command.ClassifyClient(msg.ID, d.Config.Help.ClientForm) == command.ClientWeb {
		caption = d.webMenu(dc.Prefix)
	} else {
		caption = d.mobileMenu(dc.Prefix)
	}

	image, err := d.helpImage()
	if err != nil {
		d.log().Debug("Help image unavailable", "path", d.Config.Help.ImagePath, "error", err)
	}
	if image != nil {
		image.Caption = caption
		_, sendErr := msg.Send(ctx, bus.OutboundMessage{Media: image})
		if sendErr == nil {
			return nil
		}
		d.log().Warn("Help menu image failed, sending text", "chat_id", msg.ChatID, "error", sendErr)
	}

	_, err = msg.Reply(ctx, caption)
	return err
}

func (d *Deps) commandCard(name string, prefix string) string {
	desc, err := d.Registry.Find(name)
	if errors.Is(err, command.ErrNotFound) {
		return fmt.Sprintf("*❌ FORBIDDEN JUTSU!*\n\nThe jutsu *%s* is not in our scroll archives. Train with *%shelp* to see all available techniques.", name, prefix)
	}

	description := desc.Description
	if description == "" {
		description = "Ancient jutsu, details lost in time"
	}
	usage := desc.Usage
	if usage == "" {
		usage = prefix + desc.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "┏━━━⦿ *%s%s* ⦿━━━┓\n\n", prefix, desc.Name)
	fmt.Fprintf(&b, "❖ *Description:*\n   %s\n\n", description)
	fmt.Fprintf(&b, "❖ *Usage:*\n   %s\n\n", usage)
	b.WriteString("┗━━━━━━━━━━━━━━━━┛\n\n")
	b.WriteString("💫 *May the Will of Fire guide your path!*")

	return b.String()
}

// menu buckets the visible commands. Owner-only commands stay hidden.
func (d *Deps) menu() map[string][]command.Descriptor {
	visible := make([]command.Descriptor, 0, d.Registry.Len())
	for _, desc := range d.Registry.List() {
		if !desc.OwnerOnly {
			visible = append(visible, desc)
		}
	}

	return command.Categorize(visible)
}

func (d *Deps) webMenu(prefix string) string {
	bot := d.Config.Bot
	groups := d.menu()

	var b strings.Builder
	b.WriteString("🌟 *WHATSAPP BOT* 🌟\n\n")
	b.WriteString("┏━━━✧✧✧✧✧✧━━━━━━━━━━━┓\n")
	fmt.Fprintf(&b, "┃  🍃 *%s* 🍃  ┃\n", strings.ToUpper(bot.Name))
	fmt.Fprintf(&b, "┃  Version: %s       ┃\n", bot.Version)
	fmt.Fprintf(&b, "┃  Made By %s   ┃\n", bot.Owner)
	b.WriteString("┗━━━✧✧✧✧✧✧━━━━━━━━━━━┛\n\n")
	b.WriteString(d.pick(helpGreetings) + "\n\n")
	fmt.Fprintf(&b, "*For command details:* _%shelp [command]_\n\n", prefix)

	for _, section := range menuSections {
		descs := groups[section.category]
		if len(descs) == 0 {
			continue
		}

		b.WriteString(section.web + "\n\n")
		for _, desc := range descs {
			fmt.Fprintf(&b, "  ⚡ *%s%s*\n", prefix, desc.Name)
			fmt.Fprintf(&b, "     _%s_\n\n", truncate(describe(desc), menuDescriptionWidth))
		}
		b.WriteString("┗━━━━━━━━━━━━━━━━━━━━━━━━━━━━━┛\n\n")
	}

	b.WriteString("┏━━━✦ *SPECIAL FEATURES* ✦━━━┓\n\n")
	b.WriteString("  🎬 Auto-download YT Shorts - Just paste any YouTube Shorts link\n")
	b.WriteString("  📱 Auto-download IG Reels - Simply share Instagram Reel links\n")
	b.WriteString("  🎵 Lyrics with Genius API - Search for any song lyrics\n")
	b.WriteString("  💬 Group management tools - Control your groups effectively\n")
	b.WriteString("\n┗━━━━━━━━━━━━━━━━━━━━━━━━━━━┛\n\n")
	fmt.Fprintf(&b, "✨ *Using WhatsApp Web gives you the best experience with %s!* 🍃", bot.Name)

	return b.String()
}

func (d *Deps) mobileMenu(prefix string) string {
	bot := d.Config.Bot
	groups := d.menu()

	var b strings.Builder
	fmt.Fprintf(&b, "🔰 *%s* 🔰\n", strings.ToUpper(bot.Name))
	fmt.Fprintf(&b, "Version: %s\n\n", bot.Version)
	b.WriteString(d.pick(helpGreetings) + "\n\n")

	for _, section := range menuSections {
		descs := groups[section.category]
		if len(descs) == 0 {
			continue
		}

		b.WriteString(section.mobile + "\n")
		for _, desc := range descs {
			fmt.Fprintf(&b, "➤ %s%s\n", prefix, desc.Name)
		}
		b.WriteString("\n")
	}

	b.WriteString("✨ *SPECIAL FEATURES:*\n")
	b.WriteString("• Auto-download YT Shorts & IG Reels\n")
	b.WriteString("• Lyrics with Genius API\n")
	b.WriteString("• Group management tools\n\n")
	fmt.Fprintf(&b, "For details: _%shelp [command]_\n\n", prefix)
	b.WriteString("💫 *Train hard, grow stronger!* 🍃")

	return b.String()
}

func describe(desc command.Descriptor) string {
	if desc.Description == "" {
		return "No description available"
	}

	return desc.Description
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}

	return string(runes[:width]) + "..."
}

// helpImage loads the configured menu picture with a small JPEG preview.
// A nil result without error means no image is configured.
func (d *Deps) helpImage() (*bus.Media, error) {
	path := d.Config.Help.ImagePath
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode help image: %w", err)
	}

	var thumb bytes.Buffer
	if err := imaging.Encode(&thumb, imaging.Thumbnail(img, 72, 72, imaging.Lanczos), imaging.JPEG); err != nil {
		return nil, fmt.Errorf("encode help thumbnail: %w", err)
	}

	return &bus.Media{
		Kind:      bus.MediaImage,
		Data:      data,
		MimeType:  http.DetectContentType(data),
		Thumbnail: thumb.Bytes(),
	}, nil
}
