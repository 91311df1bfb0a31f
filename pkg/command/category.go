package command

import (
	"strings"
)

// Display groups for the help menu. The grouping is cosmetic and may
// misclassify.
const (
	CategoryGeneral = "general"
	CategoryAdmin   = "admin"
	CategoryMedia   = "media"
	CategoryGame    = "game"
)

var (
	gameKeywords  = []string{"tictactoe", "game", "8ball"}
	mediaKeywords = []string{"sticker", "image", "meme", "blur", "take", "emoji"}
	adminKeywords = []string{"admin", "promote", "demote", "kick", "mute", "unmute", "warn"}
)

// CategoryOf groups a descriptor for display. An explicit Category wins;
// otherwise game names, then media names or descriptions, then admin names or
// descriptions are matched by substring.
func CategoryOf(desc Descriptor) string {
	if category := strings.ToLower(strings.TrimSpace(desc.Category)); category != "" {
		return category
	}

	name := strings.ToLower(desc.Name)
	description := strings.ToLower(desc.Description)

	switch {
	case containsAny(name, gameKeywords):
		return CategoryGame
	case containsAny(name, mediaKeywords) || containsAny(description, mediaKeywords):
		return CategoryMedia
	case containsAny(name, adminKeywords) || containsAny(description, adminKeywords):
		return CategoryAdmin
	default:
		return CategoryGeneral
	}
}

// Categorize buckets descriptors by CategoryOf, preserving input order.
func Categorize(descs []Descriptor) map[string][]Descriptor {
	out := make(map[string][]Descriptor)
	for _, desc := range descs {
		category := CategoryOf(desc)
		out[category] = append(out[category], desc)
	}

	return out
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}

// ClientForm is the guessed form factor of the client that sent a message.
type ClientForm string

const (
	ClientWeb    ClientForm = "web"
	ClientMobile ClientForm = "mobile"
)

// ClassifyClient guesses the sender's client from the message id. The
// protocol does not report it, so this is an estimate:
// ids containing "3EB0" or longer than 20 characters count as mobile,
// anything else as web. An empty id is mobile. override ("web" or "mobile")
// bypasses the guess; "auto" or "" keeps it.
func ClassifyClient(messageID string, override string) ClientForm {
	switch ClientForm(strings.ToLower(strings.TrimSpace(override))) {
	case ClientWeb:
		return ClientWeb
	case ClientMobile:
		return ClientMobile
	}

	if messageID == "" {
		return ClientMobile
	}
	if strings.Contains(messageID, "3EB0") || len(messageID) > 20 {
		return ClientMobile
	}

	return ClientWeb
}
