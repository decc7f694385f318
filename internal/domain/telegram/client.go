package telegram

import (
	"errors"

	"gopkg.in/telebot.v3"
)

// MaxMessageLength is Telegram's limit for one text message, in UTF-8 characters
// after entity parsing. Markup is counted too.
const MaxMessageLength = 4096

var ErrMessageTooLong = errors.New("telegram message exceeds 4096 characters")

// Client sends text to a private chat. The notification dispatcher depends on
// it rather than on *telebot.Bot.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
