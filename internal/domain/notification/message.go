// internal/domain/notification/message.go
package notification

import "context"

// Kind identifies which scheduler produced a message.
type Kind string

const (
	KindReminder      Kind = "REMINDER"
	KindBirthday      Kind = "BIRTHDAY"
	KindBirthdayEarly Kind = "BIRTHDAY_EARLY"
)

// Message is a rendered notification ready for delivery.
// Body is Telegram HTML.
type Message struct {
	Kind  Kind
	Title string
	Body  string
}

// Text joins the title and body the way they are sent to the chat.
func (m Message) Text() string {
	if m.Title == "" {
		return m.Body
	}
	if m.Body == "" {
		return "<b>" + m.Title + "</b>"
	}
	return "<b>" + m.Title + "</b>\n\n" + m.Body
}

// Dispatcher attempts delivery of a message to a user.
// Deliver returns false when the recipient could not be reached and never panics.
type Dispatcher interface {
	Deliver(ctx context.Context, userID int64, msg Message) bool
}
