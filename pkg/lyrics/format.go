package lyrics

import (
	"regexp"
	"strings"
)

// MaxMessageLength is the largest chunk sent in one chat message.
const MaxMessageLength = 4000

const divider = "───────────────"

var (
	sectionHeader = regexp.MustCompile(`\[([^\]]+)\]`)
	blankLines    = regexp.MustCompile(`\n\s*\n`)
	excessNewline = regexp.MustCompile(`\n{3,}`)
)

// FormatStanzaSpacing normalizes line endings, starts a stanza at every
// section header such as [Chorus] and separates stanzas by one blank line.
func FormatStanzaSpacing(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = sectionHeader.ReplaceAllString(text, "\n\n[$1]")

	stanzas := blankLines.Split(text, -1)
	kept := stanzas[:0]
	for _, stanza := range stanzas {
		if stanza = strings.TrimSpace(stanza); stanza != "" {
			kept = append(kept, stanza)
		}
	}

	text = strings.Join(kept, "\n\n")
	return strings.TrimSpace(excessNewline.ReplaceAllString(text, "\n\n"))
}

// Format renders a song for chat with bold section headers.
func Format(song Song) string {
	var b strings.Builder
	b.WriteString("*🎵 " + song.Title + "*\n")
	b.WriteString("*👤 " + song.Artist + "*")
	if song.Album != "" {
		b.WriteString("\n💿 Album: *" + song.Album + "*")
	}
	if song.ReleaseDate != "" {
		b.WriteString("\n📅 Released: *" + song.ReleaseDate + "*")
	}
	b.WriteString("\n\n" + divider + "\n\n")
	b.WriteString(sectionHeader.ReplaceAllString(song.Lyrics, "*[$1]*"))
	b.WriteString("\n\n" + divider + "\n\n📜 Source: Lyrics Finder")

	return b.String()
}

// Chunk splits text into pieces of at most max runes. Every piece but the
// last carries a continuation marker and the last closes the lyrics.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}

	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += max {
		end := min(start+max, len(runes))
		piece := string(runes[start:end])

		switch {
		case start == 0:
			piece += "\n\n" + divider + "\n*(Lyrics continued in next message...)*"
		case end < len(runes):
			piece += "\n\n" + divider + "\n*(Continued in next message...)*"
		default:
			piece += "\n\n" + divider + "\n*End of lyrics* 🎵"
		}
		chunks = append(chunks, piece)
	}

	return chunks
}
