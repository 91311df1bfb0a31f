package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"

	"konoha/pkg/command"
)

var readBuildInfo = debug.ReadBuildInfo

type credit struct {
	path string
	desc string
}

var majorCredits = []credit{
	{path: "go.mau.fi/whatsmeow", desc: "WhatsApp Web API"},
	{path: "github.com/kkdai/youtube/v2", desc: "YouTube downloading"},
	{path: "github.com/openai/openai-go/v3", desc: "OpenAI Text-to-Speech"},
	{path: "github.com/go-resty/resty/v2", desc: "HTTP client"},
	{path: "github.com/PuerkitoBio/goquery", desc: "Lyrics scraping"},
	{path: "github.com/disintegration/imaging", desc: "Image processing"},
	{path: "github.com/charmbracelet/log", desc: "Terminal styling"},
	{path: "github.com/spf13/cobra", desc: "Command line"},
}

// additionalCredits are the remaining direct requirements of the module.
// Build info also lists transitive modules, which stay out of the reply.
var additionalCredits = []string{
	"github.com/asaskevich/govalidator",
	"github.com/charmbracelet/bubbles",
	"github.com/charmbracelet/bubbletea",
	"github.com/charmbracelet/lipgloss",
	"github.com/forPelevin/gomoji",
	"github.com/google/uuid",
	"github.com/gorilla/websocket",
	"github.com/hajimehoshi/go-mp3",
	"github.com/joho/godotenv",
	"github.com/mattn/go-sqlite3",
	"github.com/mdp/qrterminal",
	"github.com/mymmrac/telego",
	"github.com/nyaruka/phonenumbers",
	"github.com/rivo/uniseg",
	"github.com/skip2/go-qrcode",
	"github.com/sunshineplan/imgconv",
	"golang.org/x/term",
	"golang.org/x/time",
	"google.golang.org/protobuf",
	"gopkg.in/yaml.v3",
}

const infoErrorText = "❌ An error occurred while fetching bot information."

func (d *Deps) infoCommand() (command.Descriptor, error) {
	if d.Config == nil {
		return command.Descriptor{}, missing("info", "config")
	}

	return command.Descriptor{
		Name:        "info",
		Description: "Show bot information and credits",
		Usage:       ".info",
		Handler:     d.info,
	}, nil
}

func (d *Deps) info(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	build, ok := readBuildInfo()
	if !ok {
		d.log().Error("Build info unavailable")
		_, err := msg.Reply(ctx, infoErrorText)
		return err
	}

	_, err := msg.Reply(ctx, d.infoText(build, dc.Prefix))
	return err
}

func (d *Deps) infoText(build *debug.BuildInfo, prefix string) string {
	bot := d.Config.Bot
	versions := make(map[string]string, len(build.Deps))
	for _, dep := range build.Deps {
		version := dep.Version
		if dep.Replace != nil {
			version = dep.Replace.Version
		}
		versions[dep.Path] = version
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*🤖 %s INFO 🤖*\n\n", strings.ToUpper(bot.Name))
	fmt.Fprintf(&b, "*Provider:* %s\n", reverse(bot.Owner))
	fmt.Fprintf(&b, "*Version:* %s\n", bot.Version)
	fmt.Fprintf(&b, "*Runtime:* %s\n\n", build.GoVersion)

	b.WriteString("*📚 CREDITS & DEPENDENCIES 📚*\n")
	b.WriteString("_This bot wouldn't be possible without these amazing projects:_\n\n")
	major := make(map[string]bool, len(majorCredits))
	for _, c := range majorCredits {
		major[c.path] = true
		fmt.Fprintf(&b, "• *%s* %s - _%s_\n", c.path, versions[c.path], c.desc)
	}

	b.WriteString("\n*Additional Dependencies:*\n")
	for _, path := range additionalCredits {
		version, linked := versions[path]
		if !linked || major[path] {
			continue
		}
		fmt.Fprintf(&b, "• *%s* %s\n", path, version)
	}

	b.WriteString("\n*💻 USAGE INFO 💻*\n")
	fmt.Fprintf(&b, "Type *%shelp* to see available commands\n\n", prefix)
	fmt.Fprintf(&b, "Thanks for using %s! 🍃", bot.Name)

	return b.String()
}

func reverse(text string) string {
	runes := []rune(text)
	slices.Reverse(runes)
	return string(runes)
}
