package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/user"

	"gopkg.in/telebot.v3"
)

var errBadArgument = errors.New("bad argument")

var (
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})$`)
	dateWhenRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s`)
)

// parseDayMonth accepts DD.MM or DD/MM. Range checks are left to the birthday domain.
func parseDayMonth(s string) (month, day int, err error) {
	m := dayMonthRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q is not DD.MM", errBadArgument, s)
	}
	day, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	return month, day, nil
}

// parseOffset accepts "+3", "-5", "3" and "UTC+3".
func parseOffset(s string) (int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimPrefix(s, "UTC")
	s = strings.TrimPrefix(s, "GMT")
	if s == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an hour offset", errBadArgument, s)
	}
	if err := user.ValidateOffset(offset); err != nil {
		return 0, err
	}
	return offset, nil
}

func parseLeapPolicy(s string) (birthday.LeapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mar1", "march1", "03.01":
		return birthday.LeapPolicyMar1, nil
	case "feb28", "february28", "28.02":
		return birthday.LeapPolicyFeb28, nil
	case "off", "none", "leap":
		return birthday.LeapPolicySuppressed, nil
	default:
		return "", birthday.ErrInvalidLeapPolicy
	}
}

// splitWhen cuts the time expression off the front of a /remind payload.
// A calendar date takes two tokens; everything else takes one. The text keeps
// its original line breaks.
func splitWhen(payload string) (when, text string) {
	payload = strings.TrimSpace(payload)
	tokens := 1
	if dateWhenRe.MatchString(payload) {
		tokens = 2
	}

	rest := payload
	for i := 0; i < tokens && rest != ""; i++ {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			rest = ""
			break
		}
		rest = rest[idx:]
	}
	when = strings.Join(strings.Fields(strings.TrimSuffix(payload, rest)), " ")
	return when, strings.TrimSpace(rest)
}

// resolveSubject picks whose birthday a command is about: the author of the
// replied-to message, the free-text name, or the sender themself.
func resolveSubject(msg *telebot.Message, sender *telebot.User, name string) birthday.Subject {
	if msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && !msg.ReplyTo.Sender.IsBot {
		return birthday.UserSubject(msg.ReplyTo.Sender.ID)
	}
	if name = strings.TrimSpace(name); name != "" {
		return birthday.NameSubject(name)
	}
	return birthday.UserSubject(sender.ID)
}

// messageLink returns a t.me link to msg, or "" when the chat has no public
// or member-visible message links (private chats and basic groups).
func messageLink(msg *telebot.Message) string {
	if msg == nil || msg.Chat == nil {
		return ""
	}
	switch msg.Chat.Type {
	case telebot.ChatSuperGroup, telebot.ChatChannel, telebot.ChatChannelPrivate:
	default:
		return ""
	}
	if msg.Chat.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", msg.Chat.Username, msg.ID)
	}
	internalID := strings.TrimPrefix(strconv.FormatInt(msg.Chat.ID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", internalID, msg.ID)
}

// parseID accepts a positive id with an optional leading "#".
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not an id", errBadArgument, s)
	}
	return id, nil
}

// splitNote reads a /note payload: the first line is the title and the rest
// is the content. A single line is content without a title.
func splitNote(payload string) (title, content string) {
	payload = strings.TrimSpace(payload)
	first, rest, found := strings.Cut(payload, "\n")
	if !found {
		return "", payload
	}
	return strings.TrimSpace(first), strings.TrimSpace(rest)
}
