package bot

import (
	"context"

	"github.com/mymmrac/telego"
)

// File is the Telegram metadata of an uploaded file.
type File struct {
	FileID   string
	FilePath string
}

type Bot interface {
	Start(ctx context.Context, handler func(context.Context, telego.Update)) error

	SendText(ctx context.Context, chatID int64, text string) error
	// SendKeyboard sends text with a one-time reply keyboard, one button per
	// label and one row per slice.
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
	SendPhoto(ctx context.Context, chatID int64, filePath string) error
	SendDocument(ctx context.Context, chatID int64, filePath string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendFileAuto(ctx context.Context, chatID int64, filePath string) error

	GetFile(ctx context.Context, fileID string) (*File, error)
	FileDownloadURL(filePath string) string
}
