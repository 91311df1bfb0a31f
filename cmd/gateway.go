package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/channel/console"
	"konoha/pkg/channel/telegram"
	"konoha/pkg/channel/whatsapp"
	"konoha/pkg/config"
)

const (
	whatsappChannelName = "whatsapp"
	telegramChannelName = "telegram"
)

func enabledAdapters(cfg *config.Config, events *bus.MessageBus, log *slog.Logger, mobile bool) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 3)

	if cfg.Channels.WhatsApp.Enabled {
		adapter, err := whatsapp.NewAdapter(whatsapp.Options{
			Config: cfg,
			Events: events,
			Log:    log,
			Mobile: mobile,
		})
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", whatsappChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Console.Enabled {
		adapters = append(adapters, console.NewAdapter(console.Options{Bot: cfg.Bot, Log: log}))
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
