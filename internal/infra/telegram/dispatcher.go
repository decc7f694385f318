package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/notification"
	dtelegram "reminder_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// Dispatcher delivers notifications as HTML messages to the owner's private
// chat. Sends share one rate limiter so a birthday sweep over many users stays
// under Telegram's global limit.
type Dispatcher struct {
	client  dtelegram.Client
	limiter *rate.Limiter
	logger  *logrus.Entry
}

var _ notification.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(client dtelegram.Client, ratePerSec float64, logger *logrus.Entry) *Dispatcher {
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:  logger,
	}
}

// Deliver reports whether Telegram accepted the message. It never panics and
// retries at most once, after a flood-control wait.
func (d *Dispatcher) Deliver(ctx context.Context, userID int64, msg notification.Message) (ok bool) {
	logCtx := d.logger.WithFields(logrus.Fields{"user_id": userID, "kind": msg.Kind})
	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("panic", r).Error("Recovered from panic while sending notification")
			ok = false
		}
	}()

	err := d.send(ctx, userID, msg.Text())

	var flood telebot.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		wait := time.Duration(flood.RetryAfter) * time.Second
		logCtx.WithField("retry_after", wait).Warn("Telegram flood control hit, waiting before retry")
		select {
		case <-ctx.Done():
			logCtx.WithError(ctx.Err()).Error("Gave up waiting for flood control")
			return false
		case <-time.After(wait):
		}
		err = d.send(ctx, userID, msg.Text())
	}

	switch {
	case err == nil:
		logCtx.Debug("Notification delivered")
		return true
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrChatNotFound),
		errors.Is(err, telebot.ErrUserIsDeactivated):
		logCtx.WithError(err).Warn("Recipient is unreachable")
	default:
		logCtx.WithError(err).Error("Failed to send notification")
	}
	return false
}

func (d *Dispatcher) send(ctx context.Context, userID int64, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return d.client.SendMessage(userID, text, &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	})
}
