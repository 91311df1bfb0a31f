package tts

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// CleanText removes emoji, which speech engines read out by name, and
// collapses whitespace.
func CleanText(text string) string {
	return strings.Join(strings.Fields(gomoji.RemoveEmojis(text)), " ")
}

// Length counts user-perceived characters.
func Length(text string) int {
	return uniseg.GraphemeClusterCount(text)
}
