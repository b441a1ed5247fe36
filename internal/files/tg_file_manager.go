package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"newscard/internal/bot"
)

type telegramFileManager struct {
	client     bot.Bot
	httpClient *http.Client
	maxBytes   int64
}

func NewTelegramFileManager(client bot.Bot, maxBytes int64, timeout time.Duration) FileManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &telegramFileManager{
		client:     client,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

func (fm *telegramFileManager) Download(ctx context.Context, fileID string) ([]byte, error) {
	tf, err := fm.client.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("GetFile error: %w", err)
	}
	if tf == nil || tf.FilePath == "" {
		return nil, fmt.Errorf("invalid file info from telegram for id %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fm.client.FileDownloadURL(tf.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := fm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: status %s, body: %s", resp.Status, string(body))
	}

	var r io.Reader = resp.Body
	if fm.maxBytes > 0 {
		// one extra byte tells an oversized file from one of exactly maxBytes
		r = io.LimitReader(resp.Body, fm.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded file: %w", err)
	}
	if fm.maxBytes > 0 && int64(len(data)) > fm.maxBytes {
		return nil, fmt.Errorf("file %s is larger than %d bytes", fileID, fm.maxBytes)
	}
	return data, nil
}
