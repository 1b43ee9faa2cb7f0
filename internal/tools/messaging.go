package tools

import (
	"os"
	"strconv"

	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// NotifyInput is the input for notify_user.
type NotifyInput struct {
	Text string `json:"text"`
}

// SendFileInput is the input for send_file.
type SendFileInput struct {
	Path    string `json:"path"`
	Caption string `json:"caption,omitempty"`
}

// MessagingOutput is the output of notify_user and send_file.
type MessagingOutput struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// registerNotifyUser defines notify_user. Task sessions only: in live
// chat the reply itself reaches the user, so the tool would duplicate it.
func registerNotifyUser(g *genkit.Genkit, reg *Registry) ai.ToolRef {
	return genkit.DefineTool(g, "notify_user",
		"Send a message to the user's chat immediately. Use during scheduled task runs to deliver results or alerts; the task output itself does not reach the user unless the task's destination is 'user'.",
		func(ctx *ai.ToolContext, input NotifyInput) (MessagingOutput, error) {
			if reg.Notifier == nil {
				return MessagingOutput{Error: reg.fail(ctx, "notify_user", "no channel connected")}, nil
			}
			if input.Text == "" {
				return MessagingOutput{Error: reg.fail(ctx, "notify_user", "text is required")}, nil
			}
			if err := reg.Notifier.NotifyUser(ctx, input.Text); err != nil {
				return MessagingOutput{Error: reg.fail(ctx, "notify_user", err.Error())}, nil
			}

			// Record the delivery in the owner's transcript so later
			// chat turns can reference it.
			if chatID := reg.Store.Settings().GetInt64(ctx, store.SettingChatID, 0); chatID != 0 {
				msg := &store.Message{
					Role:                  store.RoleAssistant,
					Contents:              input.Text,
					UUID:                  uuid.NewString(),
					ChannelType:           store.ChannelTelegram,
					ChannelConversationID: strconv.FormatInt(chatID, 10),
				}
				if err := reg.Store.InsertMessage(ctx, msg); err != nil {
					reg.Logger.Warn("failed to persist notify_user delivery", "error", err)
				}
			}
			return MessagingOutput{Message: "delivered"}, nil
		},
	)
}

func registerSendFile(g *genkit.Genkit, reg *Registry) ai.ToolRef {
	return genkit.DefineTool(g, "send_file",
		"Send a local file from this machine to the user's chat, with an optional caption.",
		func(ctx *ai.ToolContext, input SendFileInput) (MessagingOutput, error) {
			if reg.Notifier == nil {
				return MessagingOutput{Error: reg.fail(ctx, "send_file", "no channel connected")}, nil
			}
			if input.Path == "" {
				return MessagingOutput{Error: reg.fail(ctx, "send_file", "path is required")}, nil
			}
			if info, err := os.Stat(input.Path); err != nil {
				return MessagingOutput{Error: reg.fail(ctx, "send_file", err.Error())}, nil
			} else if info.IsDir() {
				return MessagingOutput{Error: reg.fail(ctx, "send_file", "path is a directory")}, nil
			}
			if err := reg.Notifier.SendFile(ctx, input.Path, input.Caption); err != nil {
				return MessagingOutput{Error: reg.fail(ctx, "send_file", err.Error())}, nil
			}
			return MessagingOutput{Message: "file sent"}, nil
		},
	)
}
