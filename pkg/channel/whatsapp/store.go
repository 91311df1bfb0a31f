package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"konoha/pkg/logger"
)

const storeFileName = "whatsmeow.db"

// OpenDevice opens the session store under sessionDir and returns its first
// device, creating a fresh unpaired one when none exists.
func OpenDevice(ctx context.Context, sessionDir string, log *slog.Logger) (*sqlstore.Container, *store.Device, error) {
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create session directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(sessionDir, storeFileName))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, logger.WhatsApp(log, "Database"))
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("load device: %w", err)
	}

	return container, device, nil
}

// WipeSession deletes every credential stored under sessionDir.
func WipeSession(sessionDir string) error {
	if sessionDir == "" || sessionDir == "/" {
		return fmt.Errorf("refusing to remove session directory %q", sessionDir)
	}
	if err := os.RemoveAll(sessionDir); err != nil {
		return fmt.Errorf("remove session directory: %w", err)
	}

	return nil
}
