package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/birthday"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBirthdayHandlers registers the /birthday_* commands. Every command
// that names a birthday accepts a reply to the subject's message, a free-text
// name, or nothing for the sender's own birthday.
func RegisterBirthdayHandlers(ctx context.Context, b *telebot.Bot, birthdayService *app.BirthdayService, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/birthday_set", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/birthday_set",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) < 1 {
			return c.Send(renderer.T(lang, app.MsgBirthdaySetUsage))
		}
		month, day, err := parseDayMonth(args[0])
		if err != nil {
			handlerLogger.WithError(err).Warn("Invalid date argument")
			return c.Send(renderer.T(lang, app.MsgBirthdaySetUsage))
		}
		subject := resolveSubject(c.Message(), c.Sender(), strings.Join(args[1:], " "))
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"subject": subject.String(), "month": month, "day": day})

		bd, created, err := birthdayService.Set(ctx, c.Sender().ID, subject, month, day)
		if err != nil {
			switch {
			case errors.Is(err, birthday.ErrInvalidDate):
				return c.Send(renderer.T(lang, app.MsgBirthdayInvalidDate))
			case errors.Is(err, birthday.ErrInvalidSubject):
				return c.Send(renderer.T(lang, app.MsgBirthdayBadSubject))
			default:
				handlerLogger.WithError(err).Error("Failed to save birthday")
				return c.Send(renderer.T(lang, app.MsgGenericError))
			}
		}

		key := app.MsgBirthdayUpdated
		if created {
			key = app.MsgBirthdayCreated
		}
		handlerLogger.WithFields(logrus.Fields{"birthday_id": bd.ID, "created": created}).Info("Birthday saved")
		text := renderer.T(lang, key, renderer.SubjectHTML(bd.Subject), fmt.Sprintf("%02d.%02d", bd.Day, bd.Month))
		if bd.IsLeapDay() && bd.LeapPolicy == birthday.LeapPolicyUnset {
			text += "\n\n" + renderer.T(lang, app.MsgBirthdayLeapHint)
		}
		return sendHTML(c, text)
	})

	b.Handle("/birthdays", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/birthdays",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		upcoming, err := birthdayService.List(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list birthdays")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		if len(upcoming) == 0 {
			return c.Send(renderer.T(lang, app.MsgNoBirthdays))
		}

		var response strings.Builder
		response.WriteString(renderer.T(lang, app.MsgBirthdaysHeader))
		for _, ub := range upcoming {
			response.WriteString(fmt.Sprintf("\n• %s  %s", renderer.SubjectHTML(ub.Birthday.Subject), app.FormatDate(ub.Next)))
			if ub.Birthday.EarlyNotifyDays > 0 {
				response.WriteString(fmt.Sprintf("  (-%d)", ub.Birthday.EarlyNotifyDays))
			}
		}
		return sendHTML(c, response.String())
	})

	b.Handle("/birthday_remove", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/birthday_remove",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		subject := resolveSubject(c.Message(), c.Sender(), c.Message().Payload)
		err := birthdayService.Remove(ctx, c.Sender().ID, subject)
		switch {
		case err == nil:
			handlerLogger.WithField("subject", subject.String()).Info("Birthday removed")
			return sendHTML(c, renderer.T(lang, app.MsgBirthdayRemoved, renderer.SubjectHTML(subject)))
		case errors.Is(err, birthday.ErrBirthdayNotFound):
			return sendHTML(c, renderer.T(lang, app.MsgBirthdayNotFound, renderer.SubjectHTML(subject)))
		default:
			handlerLogger.WithError(err).Error("Failed to remove birthday")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})

	b.Handle("/birthday_leap", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/birthday_leap",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) < 1 {
			return c.Send(renderer.T(lang, app.MsgLeapUsage))
		}
		policy, err := parseLeapPolicy(args[0])
		if err != nil {
			return c.Send(renderer.T(lang, app.MsgLeapUsage))
		}
		subject := resolveSubject(c.Message(), c.Sender(), strings.Join(args[1:], " "))

		err = birthdayService.SetLeapPolicy(ctx, c.Sender().ID, subject, policy)
		switch {
		case err == nil:
			handlerLogger.WithFields(logrus.Fields{"subject": subject.String(), "policy": policy}).Info("Leap policy updated")
			return sendHTML(c, renderer.T(lang, app.MsgLeapSet, renderer.SubjectHTML(subject)))
		case errors.Is(err, birthday.ErrBirthdayNotFound):
			return sendHTML(c, renderer.T(lang, app.MsgBirthdayNotFound, renderer.SubjectHTML(subject)))
		case errors.Is(err, app.ErrNotLeapDay):
			return c.Send(renderer.T(lang, app.MsgLeapNotLeapDay))
		default:
			handlerLogger.WithError(err).Error("Failed to update leap policy")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})

	b.Handle("/birthday_early", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/birthday_early",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) < 1 {
			return c.Send(renderer.T(lang, app.MsgEarlyUsage))
		}
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return c.Send(renderer.T(lang, app.MsgEarlyUsage))
		}
		subject := resolveSubject(c.Message(), c.Sender(), strings.Join(args[1:], " "))

		err = birthdayService.SetEarlyNotify(ctx, c.Sender().ID, subject, days)
		switch {
		case err == nil && days == 0:
			return sendHTML(c, renderer.T(lang, app.MsgEarlyDisabled, renderer.SubjectHTML(subject)))
		case err == nil:
			handlerLogger.WithFields(logrus.Fields{"subject": subject.String(), "days": days}).Info("Early notification updated")
			return sendHTML(c, renderer.T(lang, app.MsgEarlySet, days, renderer.SubjectHTML(subject)))
		case errors.Is(err, birthday.ErrInvalidEarlyNotifyDays):
			return c.Send(renderer.T(lang, app.MsgEarlyUsage))
		case errors.Is(err, birthday.ErrBirthdayNotFound):
			return sendHTML(c, renderer.T(lang, app.MsgBirthdayNotFound, renderer.SubjectHTML(subject)))
		default:
			handlerLogger.WithError(err).Error("Failed to update early notification")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})
}
