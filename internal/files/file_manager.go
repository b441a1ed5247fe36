package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileManager fetches files users sent to the bot.
type FileManager interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// SaveTemp writes data into dir and returns the path and a cleanup that
// removes it again.
func SaveTemp(dir, name string, data []byte) (string, func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to save file: %w", err)
	}
	cleanup := func() {
		_ = os.Remove(path)
	}
	return path, cleanup, nil
}
