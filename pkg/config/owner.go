package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// ReadOwners loads the owner registry. A missing file yields no owners.
func ReadOwners(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read owner file: %w", err)
	}

	var owners []string
	if err := json.Unmarshal(content, &owners); err != nil {
		return nil, fmt.Errorf("parse owner file: %w", err)
	}

	return owners, nil
}

// WriteOwners replaces the owner registry with the given numbers.
func WriteOwners(path string, owners ...string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create owner directory: %w", err)
	}

	content, err := json.Marshal(slices.Compact(owners))
	if err != nil {
		return fmt.Errorf("encode owner file: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write owner file: %w", err)
	}

	return nil
}
