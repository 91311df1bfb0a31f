package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"konoha/pkg/bus"
	"konoha/pkg/command"
	"konoha/pkg/tts"
	"konoha/pkg/workspace"
)

const (
	sayFallbackLang   = "en"
	sayLangPrefix     = "lang:"
	voiceNoteMimeType = "audio/ogg; codecs=opus"
)

func (d *Deps) sayCommand() (command.Descriptor, error) {
	if d.Speech == nil {
		return command.Descriptor{}, missing("say", "speech synthesizer")
	}
	if d.Config == nil {
		return command.Descriptor{}, missing("say", "config")
	}

	return command.Descriptor{
		Name:        "say",
		Description: "Convert text to speech and send as a voice note",
		Usage:       ".say <text> [lang:language-code]",
		Handler:     d.say,
	}, nil
}

// parseSay splits lang:xx tokens from the words to speak. The last language
// token wins.
func parseSay(args []string, defaultLang string) (text string, lang string) {
	lang = defaultLang
	words := make([]string, 0, len(args))
	for _, arg := range args {
		if code, ok := strings.CutPrefix(arg, sayLangPrefix); ok {
			lang = strings.ToLower(code)
			continue
		}
		words = append(words, arg)
	}

	return strings.Join(words, " "), lang
}

func (d *Deps) say(ctx context.Context, msg *command.Message, dc command.DispatchContext) error {
	cfg := d.Config.TTS
	raw, lang := parseSay(dc.Args, cfg.DefaultLang)
	text := tts.CleanText(raw)

	if text == "" {
		_, err := msg.Reply(ctx, fmt.Sprintf("*🔊 Text-to-Speech Command*\n\n❌ Please provide some text to convert to speech.\n\n*Usage:* %[1]ssay <text> [lang:language-code]\n*Example:* %[1]ssay Hello, this is a test message!\n*Example with language:* %[1]ssay Hola, ¿cómo estás? lang:es", dc.Prefix))
		return err
	}
	if tts.Length(raw) > cfg.MaxChars {
		_, err := msg.Reply(ctx, fmt.Sprintf("❌ Text too long! Please limit your text to %d characters.", cfg.MaxChars))
		return err
	}

	audio, err := d.Speech.Synthesize(ctx, text, lang)
	if err == nil {
		return d.sendVoice(ctx, msg, audio)
	}
	d.log().Warn("Speech synthesis failed", "lang", lang, "error", err)

	if lang == sayFallbackLang {
		_, err = msg.Reply(ctx, "❌ *Error generating speech*\n\nPlease try again with a shorter text.")
		return err
	}

	if _, err := msg.Reply(ctx, fmt.Sprintf("⚠️ Failed with language \"%s\". Trying with English instead...", lang)); err != nil {
		return err
	}

	audio, err = d.Speech.Synthesize(ctx, text, sayFallbackLang)
	if err != nil {
		d.log().Warn("Speech synthesis fallback failed", "error", err)
		_, err = msg.Reply(ctx, "❌ *Error generating speech*\n\nPlease try again with a shorter text or different language.")
		return err
	}

	return d.sendVoice(ctx, msg, audio)
}

// sendVoice delivers speech as a voice note, transcoded to Opus when a
// converter is available and as plain MP3 otherwise.
func (d *Deps) sendVoice(ctx context.Context, msg *command.Message, audio tts.Audio) error {
	note := bus.Media{
		Kind:     bus.MediaAudio,
		Data:     audio.Data,
		MimeType: "audio/mpeg",
		FileName: fmt.Sprintf("tts-%d.mp3", d.now().UnixMilli()),
		PTT:      true,
		Seconds:  uint32(audio.Duration() / time.Second),
	}

	if d.Voice != nil && d.Scratch != nil {
		opus, err := d.toVoiceNote(ctx, audio.Data)
		if err == nil {
			note.Data = opus
			note.MimeType = voiceNoteMimeType
			note.FileName = strings.TrimSuffix(note.FileName, ".mp3") + ".ogg"
		} else {
			d.log().Warn("Voice note conversion failed, sending mp3", "error", err)
		}
	}

	_, err := msg.Send(ctx, bus.OutboundMessage{Media: &note})
	return err
}

func (d *Deps) toVoiceNote(ctx context.Context, mp3 []byte) ([]byte, error) {
	src, err := d.Scratch.File("speech", ".mp3")
	if err != nil {
		return nil, err
	}
	defer src.Release()

	dst, err := d.Scratch.File("speech", ".ogg")
	if err != nil {
		return nil, err
	}
	defer dst.Release()

	if err := os.WriteFile(src.Path, mp3, 0o600); err != nil {
		return nil, workspace.NormalizeIOError(err, "write speech")
	}
	if err := d.Voice.ToVoiceNote(ctx, src.Path, dst.Path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dst.Path)
	if err != nil {
		return nil, workspace.NormalizeIOError(err, "read voice note")
	}

	return data, nil
}
