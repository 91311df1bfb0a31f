package commands

import (
	"context"
	"fmt"

	"konoha/pkg/command"
)

var pingOpeners = []string{
	"⚡ Testing ninja reflexes...",
	"🍃 Sending chakra pulse...",
	"🔄 Summoning response jutsu...",
	"🌀 Creating Rasengan...",
	"👁️ Activating Sharingan...",
}

var pingResults = []string{
	"*⚡ LIGHTNING FAST!*\n\n*Speed:* %dms\n*Status:* Hidden leaf ninjas online and ready! 🍃",
	"*💨 WHOOSH!*\n\n*Reaction time:* %dms\n*Chakra levels:* Fully charged and operational! ✨",
	"*🔥 HOT RESPONSE!*\n\n*Jutsu speed:* %dms\n*Konoha Bot:* Ready for your commands, sensei! 🥷",
	"*🌟 NINJA SPEED!*\n\n*Response time:* %dms\n*Konoha network:* Strong as the will of fire! 🔥",
	"*🎯 TARGET HIT!*\n\n*Precision:* %dms\n*System:* All systems operational, Hokage-sama! 📶",
}

const pingFallback = "*🍃 I'm here!*\n\n*Konoha Bot* is online and ready to assist you! 🥷"

func (d *Deps) pingCommand() (command.Descriptor, error) {
	return command.Descriptor{
		Name:        "ping",
		Description: "Check if the bot is online",
		Usage:       ".ping",
		Handler:     d.ping,
	}, nil
}

// ping measures the round trip of the first send and edits the result into
// that message.
func (d *Deps) ping(ctx context.Context, msg *command.Message, _ command.DispatchContext) error {
	start := d.now()
	ref, err := msg.Reply(ctx, d.pick(pingOpeners))
	if err != nil {
		d.log().Warn("Ping opener failed", "chat_id", msg.ChatID, "error", err)
		_, err = msg.Send(ctx, outText(pingFallback))
		return err
	}

	result := fmt.Sprintf(d.pick(pingResults), d.now().Sub(start).Milliseconds())
	if err := msg.Edit(ctx, ref, result); err == nil {
		return nil
	}

	_, err = msg.Reply(ctx, result)
	return err
}
