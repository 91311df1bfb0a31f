package whatsapp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal"
	"github.com/nyaruka/phonenumbers"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
)

const (
	PairingCode = "code"
	PairingQR   = "qr"

	minPhoneDigits = 10
	qrImageSize    = 256
	qrFileName     = "qr.png"

	invalidPhoneText = "❌ Invalid phone number format. Please restart the bot and try again."
	phonePrompt      = "📱 Please enter your full WhatsApp number:\n(include country code, e.g., +1234567890): "
)

var (
	// ErrInvalidPhone is returned for numbers that cannot be paired.
	ErrInvalidPhone = errors.New("invalid phone number format")
	// ErrMobilePairing rejects the mobile api while pairing codes are in use.
	ErrMobilePairing = errors.New("Cannot use pairing code with mobile api")
)

// Prompter asks the operator for one line of input.
type Prompter func(ctx context.Context, label string) (string, error)

// LinePrompter reads answers line by line from r, echoing the label to w.
func LinePrompter(r io.Reader, w io.Writer) Prompter {
	reader := bufio.NewReader(r)
	return func(ctx context.Context, label string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(w, label)
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
}

// CleanPhone strips formatting from a typed number and checks that it is a
// dialable international number. The result has digits only.
func CleanPhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if len(digits) < minPhoneDigits {
		return "", ErrInvalidPhone
	}

	parsed, err := phonenumbers.Parse("+"+digits, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidPhone
	}

	return digits, nil
}

// FormatPairingCode groups a pairing code in blocks of four.
func FormatPairingCode(code string) string {
	plain := strings.ReplaceAll(strings.TrimSpace(code), "-", "")
	var blocks []string
	for len(plain) > 4 {
		blocks = append(blocks, plain[:4])
		plain = plain[4:]
	}
	blocks = append(blocks, plain)
	return strings.Join(blocks, "-")
}

func displayPhone(digits string) string {
	parsed, err := phonenumbers.Parse("+"+digits, "")
	if err != nil {
		return "+" + digits
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
}

var (
	bannerRule  = lipgloss.NewStyle().Foreground(lipgloss.Color("44"))
	bannerWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("222"))
	bannerCode  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	bannerError = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func rule() string {
	return bannerRule.Render(strings.Repeat("=", 50))
}

func renderPairingIntro() string {
	return strings.Join([]string{
		rule(),
		bannerWarn.Render("🔄 No WhatsApp session found or session expired"),
		bannerWarn.Render("📱 Please link your WhatsApp account using a pairing code"),
		rule(),
	}, "\n")
}

func renderPairingCode(code string) string {
	return strings.Join([]string{
		rule(),
		bannerCode.Render("✅ YOUR WHATSAPP PAIRING CODE: " + FormatPairingCode(code)),
		bannerWarn.Render("\n📋 Instructions:\n1. Open WhatsApp on your phone\n2. Go to Settings > Linked Devices > Link a Device\n3. When prompted, enter the code above\n4. Keep this window open until connection is established"),
		rule(),
	}, "\n")
}

// askPhone prompts until a number is typed and validates it.
func (a *Adapter) askPhone(ctx context.Context) (string, error) {
	fmt.Fprintln(a.out, renderPairingIntro())

	answer, err := a.prompt(ctx, phonePrompt)
	if err != nil {
		return "", err
	}

	phone, err := CleanPhone(answer)
	if err != nil {
		fmt.Fprintln(a.out, bannerError.Render(invalidPhoneText))
		return "", err
	}

	fmt.Fprintln(a.out, bannerWarn.Render(fmt.Sprintf("\n⏳ Generating pairing code for: %s\n", displayPhone(phone))))
	return phone, nil
}

// requestCode asks the server for a linking code once the socket is up and
// records the number as owner.
func (a *Adapter) requestCode(ctx context.Context, cl *whatsmeow.Client, phone string) error {
	code, err := cl.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		fmt.Fprintln(a.out, bannerError.Render("❌ Failed to generate pairing code. Please check your connection or phone number format."))
		return fmt.Errorf("request pairing code: %w", err)
	}

	fmt.Fprintln(a.out, renderPairingCode(code))
	a.rememberOwner(phone)
	return nil
}

// watchQR renders every login code the server rotates through until the
// channel closes.
func (a *Adapter) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	pngPath := filepath.Join(a.cfg.Storage.DataDir, qrFileName)
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			fmt.Fprintln(a.out, bannerWarn.Render("📱 Scan this QR code with WhatsApp (Linked Devices > Link a Device):"))
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, a.out)
			if err := writeQRImage(evt.Code, pngPath); err != nil {
				a.log.Warn("Failed to write QR image", "path", pngPath, "error", err)
			} else {
				a.log.Info("QR code saved", "path", pngPath)
			}
		case "success":
			a.log.Info("QR pairing succeeded")
			_ = os.Remove(pngPath)
		case "timeout":
			a.log.Error("QR pairing timed out")
		default:
			a.log.Warn("QR pairing event", "event", evt.Event, "error", evt.Error)
		}
	}
}

func writeQRImage(code string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return qrcode.WriteFile(code, qrcode.Medium, qrImageSize, path)
}
