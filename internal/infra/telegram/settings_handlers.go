package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterSettingsHandlers registers /timezone and /language.
func RegisterSettingsHandlers(ctx context.Context, b *telebot.Bot, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/timezone", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/timezone",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		u, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) == 0 {
			return c.Send(renderer.T(lang, app.MsgTimezoneCurrent, user.ZoneName(u.TimezoneOffset), localNow(u)))
		}
		if len(args) != 1 {
			return c.Send(renderer.T(lang, app.MsgTimezoneUsage))
		}

		offset, err := parseOffset(args[0])
		if err != nil {
			handlerLogger.WithError(err).Warn("Invalid timezone argument")
			return c.Send(renderer.T(lang, app.MsgTimezoneUsage))
		}

		u, err = settingsService.SetTimezone(ctx, c.Sender().ID, offset)
		if err != nil {
			if errors.Is(err, user.ErrInvalidOffset) {
				return c.Send(renderer.T(lang, app.MsgTimezoneUsage))
			}
			handlerLogger.WithError(err).Error("Failed to update timezone")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		handlerLogger.WithField("timezone_offset", offset).Info("Timezone updated")
		return c.Send(renderer.T(lang, app.MsgTimezoneSet, user.ZoneName(u.TimezoneOffset), localNow(u)))
	})

	b.Handle("/language", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/language",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) != 1 {
			return c.Send(renderer.T(lang, app.MsgLanguageUsage))
		}

		u, err := settingsService.SetLanguage(ctx, c.Sender().ID, strings.ToLower(args[0]))
		if err != nil {
			if errors.Is(err, app.ErrUnsupportedLanguage) {
				return c.Send(renderer.T(lang, app.MsgLanguageUsage))
			}
			handlerLogger.WithError(err).Error("Failed to update language")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		handlerLogger.WithField("language", u.Language.String).Info("Language updated")
		return c.Send(renderer.T(renderer.Lang(u), app.MsgLanguageSet))
	})
}

func localNow(u *user.User) string {
	return time.Now().In(u.Location()).Format("15:04")
}
