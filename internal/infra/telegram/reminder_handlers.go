package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/reminder"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const removeReminderPrefix = "rem_del_"

// RegisterReminderHandlers registers /remind, /reminders, /reminder_remove and
// the inline remove buttons attached to the reminder list.
func RegisterReminderHandlers(ctx context.Context, b *telebot.Bot, reminderService *app.ReminderService, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/remind", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/remind",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		u, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		when, text := splitWhen(c.Message().Payload)
		sourceRef := ""
		if reply := c.Message().ReplyTo; reply != nil {
			if text == "" {
				text = reply.Text
				if text == "" {
					text = reply.Caption
				}
			}
			sourceRef = messageLink(reply)
		}
		if when == "" {
			return c.Send(renderer.T(lang, app.MsgReminderUsage))
		}

		r, err := reminderService.Create(ctx, c.Sender().ID, when, text, sourceRef)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrInvalidWhen):
				return c.Send(err.Error())
			case errors.Is(err, app.ErrNotFutureTime):
				return c.Send(renderer.T(lang, app.MsgReminderNotFuture))
			case errors.Is(err, app.ErrEmptyReminderText):
				return c.Send(renderer.T(lang, app.MsgReminderEmpty))
			case errors.Is(err, app.ErrReminderTextTooLong):
				return c.Send(renderer.T(lang, app.MsgReminderTooLong))
			default:
				handlerLogger.WithError(err).Error("Failed to create reminder")
				return c.Send(renderer.T(lang, app.MsgGenericError))
			}
		}

		handlerLogger.WithFields(logrus.Fields{"reminder_id": r.ID, "scheduled_at": r.ScheduledAt}).Info("Reminder created")
		return c.Send(renderer.T(lang, app.MsgReminderCreated, r.ID, app.FormatLocal(r.ScheduledAt, u)))
	})

	b.Handle("/reminders", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reminders",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		u, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		reminders, err := reminderService.List(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list reminders")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		if len(reminders) == 0 {
			return c.Send(renderer.T(lang, app.MsgNoReminders))
		}

		var response strings.Builder
		response.WriteString(renderer.T(lang, app.MsgRemindersHeader))
		markup := &telebot.ReplyMarkup{}
		var rows []telebot.Row
		for _, r := range reminders {
			response.WriteString(fmt.Sprintf("\n#%d  %s\n%s\n", r.ID, html.EscapeString(app.FormatLocal(r.ScheduledAt, u)), html.EscapeString(truncate(r.Text, 80))))
			rows = append(rows, markup.Row(markup.Data(fmt.Sprintf("🗑 #%d", r.ID), "", removeReminderPrefix+strconv.FormatInt(r.ID, 10))))
		}
		markup.Inline(rows...)
		return sendHTML(c, response.String(), markup)
	})

	b.Handle("/reminder_remove", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reminder_remove",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) != 1 {
			return c.Send(renderer.T(lang, app.MsgReminderRemoveUsage))
		}
		reminderID, err := parseID(args[0])
		if err != nil {
			return c.Send(renderer.T(lang, app.MsgReminderRemoveUsage))
		}
		return c.Send(removeReminder(ctx, reminderService, renderer, lang, c.Sender().ID, reminderID, handlerLogger))
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := strings.TrimSpace(c.Callback().Data)
		if !strings.HasPrefix(data, removeReminderPrefix) {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond()
		}

		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "callback_remove_reminder",
			"sender_id": c.Sender().ID,
		})
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		reminderIDStr := strings.TrimPrefix(data, removeReminderPrefix)
		reminderID, err := strconv.ParseInt(reminderIDStr, 10, 64)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("invalid reminder ID '%s' in callback: %w", reminderIDStr, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: renderer.T(lang, app.MsgGenericError)})
		}
		return c.Respond(&telebot.CallbackResponse{Text: removeReminder(ctx, reminderService, renderer, lang, c.Sender().ID, reminderID, handlerLogger)})
	})
}

func removeReminder(ctx context.Context, reminderService *app.ReminderService, renderer *app.Renderer, lang string, senderID, reminderID int64, handlerLogger *logrus.Entry) string {
	handlerLogger = handlerLogger.WithField("reminder_id", reminderID)
	err := reminderService.Remove(ctx, senderID, reminderID)
	switch {
	case err == nil:
		handlerLogger.Info("Reminder removed")
		return renderer.T(lang, app.MsgReminderRemoved, reminderID)
	case errors.Is(err, reminder.ErrReminderNotFound), errors.Is(err, app.ErrReminderNotOwned):
		handlerLogger.WithError(err).Warn("Reminder not removable by sender")
		return renderer.T(lang, app.MsgReminderNotFound, reminderID)
	default:
		handlerLogger.WithError(err).Error("Failed to remove reminder")
		return renderer.T(lang, app.MsgGenericError)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
