// Package channels connects messaging transports to the assistant:
// inbound events flow through the Processor, outbound messages go
// through a Dispatcher. Telegram is the only transport today.
package channels

import (
	"context"
	"strings"

	"github.com/avramovic/golabot/internal/store"
)

// ChannelTelegram is the channel_type recorded on persisted messages.
const ChannelTelegram = store.ChannelTelegram

// Attachment is a file the user sent along with a message. Kind is a
// coarse media class ("image", "video", "audio", "voice message",
// "file") used when describing the attachment to the model.
type Attachment struct {
	FileID   string
	FileName string
	Kind     string
}

// ClassifyAttachment maps a file name to a coarse media class.
func ClassifyAttachment(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return "file"
	}
	switch strings.ToLower(name[dot+1:]) {
	case "jpg", "jpeg", "png", "gif", "webp", "bmp", "heic":
		return "image"
	case "mp4", "mov", "mkv", "avi", "webm":
		return "video"
	case "mp3", "ogg", "oga", "wav", "flac", "m4a", "opus":
		return "audio"
	default:
		return "file"
	}
}

// InboundEvent is one transport-neutral incoming message.
type InboundEvent struct {
	// UUID is the channel-native message id, used for deduplication.
	UUID string

	ChatID    int64
	SenderID  int64
	FirstName string
	LastName  string
	Username  string

	Text       string
	Attachment *Attachment
}

// Dispatcher sends outbound traffic on a transport. Implemented by the
// Telegram channel; faked in tests.
type Dispatcher interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64)
	SendFile(ctx context.Context, chatID int64, path, caption string) error

	// DownloadAttachment fetches a file into destDir and returns the
	// local path.
	DownloadAttachment(ctx context.Context, fileID, destDir string) (string, error)
}
