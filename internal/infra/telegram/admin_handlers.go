package telegram

import (
	"context"

	"reminder_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers /sync, which re-publishes the command menu.
// Only adminTelegramID may run it; 0 means nobody can.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminTelegramID int64, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/sync", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sync",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		if !isAdmin(adminTelegramID, c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(renderer.T(lang, app.MsgNotAuthorized))
		}

		if err := c.Bot().SetCommands(Commands); err != nil {
			handlerLogger.WithError(err).Error("Failed to sync bot commands")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		handlerLogger.WithField("commands", len(Commands)).Info("Bot commands synced")
		return c.Send(renderer.T(lang, app.MsgCommandsSynced, len(Commands)))
	})
}

func isAdmin(adminTelegramID, senderID int64) bool {
	return adminTelegramID != 0 && senderID == adminTelegramID
}
