package whatsapp

import (
	"fmt"
	"time"
)

const startupTimeLayout = "1/2/2006, 3:04:05 PM"

var welcomeTemplates = []string{
	"🍃 *Welcome to %[1]s!* 🍃\n\nGreetings @%[2]s, a new shinobi has joined our ranks! May your time here be filled with friendship and growth. Remember, in the words of Kakashi: \"Those who break the rules are scum, but those who abandon their friends are worse than scum.\" 🥷",
	"✨ *A new ninja arrives at %[1]s!* ✨\n\nHey @%[2]s, welcome to our village! We're glad to have your talents among us. Remember that true strength comes from protecting what's precious to you! 🌟",
	"🌀 *%[1]s has a new member!* 🌀\n\n@%[2]s has entered the chat! Another brave soul joins our ranks. As Naruto would say, \"I'm not gonna run away, I never go back on my word! That's my nindo: my ninja way!\" 🔥",
}

var goodbyeTemplates = []string{
	"🍃 @%s has left the village. May your journey be safe, and your path lead you back to us someday. 🌙",
	"🌊 @%s has departed on a new mission. Remember that bonds formed here remain even across great distances. Until we meet again! 🥷",
	"🔮 @%s has chosen a different path. As Itachi once said, \"Every shinobi's life is different... but there are things we all share.\" May your way forward be bright! ✨",
}

var startupTemplates = []string{
	"🍃 *%[1]s v%[2]s Successfully Awakened!* 🍃\n\n⏰ Time: %[3]s\n\n✨ *\"I'm going to be the Hokage of WhatsApp bots!\"* ✨\n\nYour loyal ninja assistant is ready to serve. Use *%[4]shelp* to see available jutsu!",
	"🌀 *Summoning Jutsu: %[1]s v%[2]s!* 🌀\n\n⏰ Summoned at: %[3]s\n\n🔥 *\"That is my ninja way!\"* 🔥\n\nThis ninja tool is now at your command. The Will of Fire burns strong!",
	"⚡ *%[1]s v%[2]s has entered Sage Mode!* ⚡\n\n⏰ Chakra synchronized at: %[3]s\n\n🍜 *\"I never go back on my word, that's my nindo!\"* 🍜\n\nYour WhatsApp ninja is ready to assist. Believe it!",
}

// welcomeText greets the first of the joined members by number.
func welcomeText(pick int, group string, number string) string {
	return fmt.Sprintf(welcomeTemplates[pick%len(welcomeTemplates)], group, number)
}

func goodbyeText(pick int, number string) string {
	return fmt.Sprintf(goodbyeTemplates[pick%len(goodbyeTemplates)], number)
}

func startupText(pick int, name string, version string, prefix string, at time.Time) string {
	return fmt.Sprintf(startupTemplates[pick%len(startupTemplates)], name, version, at.Format(startupTimeLayout), prefix)
}
