// internal/infra/telegram/client.go
package telegram

import (
	"unicode/utf8"

	dtelegram "reminder_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

var _ dtelegram.Client = (*TelebotAdapter)(nil)

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to chatID. Oversized text is rejected locally so a
// long reminder fails fast instead of costing an API round trip.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if utf8.RuneCountInString(text) > dtelegram.MaxMessageLength {
		return dtelegram.ErrMessageTooLong
	}
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(chatID), text, options) // Private chat ID equals the user ID
	return err
}
