// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Commands is the command menu shown by Telegram clients.
var Commands = []telebot.Command{
	{Text: "remind", Description: "Set a reminder"},
	{Text: "reminders", Description: "List pending reminders"},
	{Text: "reminder_remove", Description: "Remove a reminder"},
	{Text: "birthday_set", Description: "Remember a birthday"},
	{Text: "birthdays", Description: "List birthdays"},
	{Text: "birthday_remove", Description: "Forget a birthday"},
	{Text: "birthday_leap", Description: "Feb 29 birthdays in common years"},
	{Text: "birthday_early", Description: "Early birthday notification"},
	{Text: "note", Description: "Save a note"},
	{Text: "notes", Description: "List notes"},
	{Text: "note_read", Description: "Show a note"},
	{Text: "note_remove", Description: "Delete a note"},
	{Text: "todo", Description: "Add a task"},
	{Text: "todos", Description: "List tasks"},
	{Text: "todo_done", Description: "Mark a task as done"},
	{Text: "todo_remove", Description: "Delete a task"},
	{Text: "timezone", Description: "Show or set your UTC offset"},
	{Text: "language", Description: "Change language"},
	{Text: "help", Description: "Show help"},
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	settingsService *app.SettingsService,
	renderer *app.Renderer,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		u, lang := senderContext(ctx, c, settingsService, renderer, logCtx)
		return sendHTML(c, renderer.T(lang, app.MsgWelcome, user.ZoneName(u.TimezoneOffset)))
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /help command")

		_, lang := senderContext(ctx, c, settingsService, renderer, logCtx)
		return c.Send(renderer.T(lang, app.MsgHelp))
	})
}

// senderContext loads the sender, registering them on first contact. A storage
// failure degrades to defaults so the command can still answer.
func senderContext(ctx context.Context, c telebot.Context, settingsService *app.SettingsService, renderer *app.Renderer, logCtx *logrus.Entry) (*user.User, string) {
	u, err := settingsService.Get(ctx, c.Sender().ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load sender settings")
		u = &user.User{ID: c.Sender().ID}
	}
	return u, renderer.Lang(u)
}

func sendHTML(c telebot.Context, text string, opts ...any) error {
	// Send options must come first; a later *SendOptions replaces an earlier markup.
	all := append([]any{&telebot.SendOptions{ParseMode: telebot.ModeHTML, DisableWebPagePreview: true}}, opts...)
	return c.Send(text, all...)
}
