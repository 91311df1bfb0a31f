package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"konoha/pkg/bus"
	"konoha/pkg/channel/whatsapp"
	"konoha/pkg/config"
	"konoha/pkg/gateway"
	"konoha/pkg/logger"
)

type flags struct {
	configPath string
	mobile     bool
	qr         bool
	console    bool
}

var rootFlags flags

var rootCmd = &cobra.Command{
	Use:           "konoha",
	Short:         "Run the Konoha WhatsApp bot",
	Long:          "Connects to WhatsApp as a linked device and answers prefixed commands in chats and groups.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), rootFlags)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&rootFlags.configPath, "config", "c", "", "path to a YAML or JSON config file")
	rootCmd.Flags().BoolVar(&rootFlags.mobile, "mobile", false, "use the mobile api (cannot be combined with pairing codes)")
	rootCmd.Flags().BoolVar(&rootFlags.qr, "qr", false, "pair by scanning a QR code instead of entering a pairing code")
	rootCmd.Flags().BoolVar(&rootFlags.console, "console", false, "chat with the bot in this terminal instead of WhatsApp")
}

// Execute runs the root command and exits with the session's exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *whatsapp.ExitError
	if errors.As(err, &exit) {
		if exit.Code != 0 {
			fmt.Fprintln(os.Stderr, exit.Error())
		}
		os.Exit(exit.Code)
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	log := slog.Default().With("component", "cmd.root")

	events := bus.NewMessageBus()
	defer events.Close()

	router, registry, err := buildRouter(cfg, events, appLogger)
	if err != nil {
		return err
	}

	adapters, err := enabledAdapters(cfg, events, appLogger, f.mobile)
	if err != nil {
		return err
	}

	svc, err := gateway.NewService(cfg, adapters, router.Handle, events, appLogger)
	if err != nil {
		return fmt.Errorf("initialize gateway service: %w", err)
	}

	log.Info("Starting bot",
		"name", cfg.Bot.Name,
		"version", cfg.Bot.Version,
		"prefix", cfg.Bot.Prefix,
		"commands", registry.Len(),
		"channels", enabledChannelNames(adapters),
	)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("Bot stopped")
	return nil
}

// loadConfig reads the config and applies command-line overrides.
func loadConfig(f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFlags(cfg *config.Config, f flags) {
	if f.qr {
		cfg.Channels.WhatsApp.Pairing = whatsapp.PairingQR
	}
	if f.console {
		cfg.Channels.Console.Enabled = true
		cfg.Channels.WhatsApp.Enabled = false
	}
}
