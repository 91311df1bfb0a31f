package commands

import (
	"context"
	"fmt"

	"konoha/pkg/command"
)

func (d *Deps) reloadCommand() (command.Descriptor, error) {
	if d.Registry == nil {
		return command.Descriptor{}, missing("reload", "registry")
	}

	return command.Descriptor{
		Name:        "reload",
		Description: "Rebuild the command table",
		Usage:       ".reload",
		Category:    command.CategoryAdmin,
		OwnerOnly:   true,
		Handler:     d.reload,
	}, nil
}

func (d *Deps) reload(ctx context.Context, msg *command.Message, _ command.DispatchContext) error {
	stats := d.Registry.Reload()
	d.log().Info("Commands reloaded", "loaded", stats.Loaded, "skipped", stats.Skipped, "requested_by", msg.SenderID)

	_, err := msg.Reply(ctx, fmt.Sprintf("♻️ *Jutsu scrolls reloaded!*\n\n• Loaded: %d\n• Skipped: %d", stats.Loaded, stats.Skipped))
	return err
}
