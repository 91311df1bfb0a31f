package commands

import (
	"fmt"

	"konoha/pkg/command"
)

// Manifest lists the built-in command factories in registration order.
func Manifest(deps *Deps) []command.Factory {
	return []command.Factory{
		deps.helpCommand,
		deps.infoCommand,
		deps.pingCommand,
		deps.lyricsCommand,
		deps.sayCommand,
		deps.shortsVideoCommand,
		deps.singCommand,
		deps.stickerCommand,
		deps.reloadCommand,
	}
}

func missing(command string, dep string) error {
	return fmt.Errorf("%s: %w: %s", command, errMissingDependency, dep)
}
