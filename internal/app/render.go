package app

import (
	"fmt"
	"html"
	"time"

	"reminder_bot/internal/domain/birthday"
	"reminder_bot/internal/domain/notification"
	"reminder_bot/internal/domain/reminder"
	"reminder_bot/internal/domain/user"
)

const (
	LanguageEnglish = "en"
	LanguageRussian = "ru"
)

// Message keys used by the renderer and the command handlers.
const (
	MsgReminderTitle      = "reminder_title"
	MsgReminderSource     = "reminder_source"
	MsgBirthdayTitle      = "birthday_title"
	MsgBirthdayBody       = "birthday_body"
	MsgEarlyBirthdayTitle = "early_birthday_title"
	MsgEarlyBirthdayBody  = "early_birthday_body"

	MsgWelcome             = "welcome"
	MsgHelp                = "help"
	MsgGenericError        = "generic_error"
	MsgReminderUsage       = "reminder_usage"
	MsgReminderCreated     = "reminder_created"
	MsgReminderNotFuture   = "reminder_not_future"
	MsgReminderEmpty       = "reminder_empty"
	MsgReminderTooLong     = "reminder_too_long"
	MsgReminderNotFound    = "reminder_not_found"
	MsgReminderRemoved     = "reminder_removed"
	MsgReminderRemoveUsage = "reminder_remove_usage"
	MsgNoReminders         = "no_reminders"
	MsgRemindersHeader     = "reminders_header"
	MsgBirthdaySetUsage    = "birthday_set_usage"
	MsgBirthdayCreated     = "birthday_created"
	MsgBirthdayUpdated     = "birthday_updated"
	MsgBirthdayLeapHint    = "birthday_leap_hint"
	MsgBirthdayInvalidDate = "birthday_invalid_date"
	MsgBirthdayBadSubject  = "birthday_bad_subject"
	MsgBirthdayNotFound    = "birthday_not_found"
	MsgBirthdayRemoved     = "birthday_removed"
	MsgBirthdayRemoveUsage = "birthday_remove_usage"
	MsgNoBirthdays         = "no_birthdays"
	MsgBirthdaysHeader     = "birthdays_header"
	MsgLeapUsage           = "leap_usage"
	MsgLeapSet             = "leap_set"
	MsgLeapNotLeapDay      = "leap_not_leap_day"
	MsgEarlyUsage          = "early_usage"
	MsgEarlySet            = "early_set"
	MsgEarlyDisabled       = "early_disabled"
	MsgTimezoneUsage       = "timezone_usage"
	MsgTimezoneCurrent     = "timezone_current"
	MsgTimezoneSet         = "timezone_set"
	MsgLanguageUsage       = "language_usage"
	MsgLanguageSet         = "language_set"
	MsgNoteUntitled        = "note_untitled"
	MsgNoteUsage           = "note_usage"
	MsgNoteCreated         = "note_created"
	MsgNoteEmpty           = "note_empty"
	MsgNoteTooLong         = "note_too_long"
	MsgNoteNotFound        = "note_not_found"
	MsgNoteRemoved         = "note_removed"
	MsgNoteReadUsage       = "note_read_usage"
	MsgNoteRemoveUsage     = "note_remove_usage"
	MsgNoNotes             = "no_notes"
	MsgNotesHeader         = "notes_header"
	MsgTodoUsage           = "todo_usage"
	MsgTodoCreated         = "todo_created"
	MsgTodoEmpty           = "todo_empty"
	MsgTodoTooLong         = "todo_too_long"
	MsgTodoNotFound        = "todo_not_found"
	MsgTodoDone            = "todo_done"
	MsgTodoRemoved         = "todo_removed"
	MsgTodoDoneUsage       = "todo_done_usage"
	MsgTodoRemoveUsage     = "todo_remove_usage"
	MsgNoTasks             = "no_tasks"
	MsgTasksHeader         = "tasks_header"
	MsgNotAuthorized       = "not_authorized"
	MsgCommandsSynced      = "commands_synced"
)

var translations = map[string]map[string]string{
	LanguageEnglish: {
		MsgReminderTitle:      "⏰ Reminder",
		MsgReminderSource:     "Original message",
		MsgBirthdayTitle:      "🎂 Birthday",
		MsgBirthdayBody:       "Today is %s's birthday!",
		MsgEarlyBirthdayTitle: "📅 Upcoming birthday",
		MsgEarlyBirthdayBody:  "%s's birthday is on %s (in %d days).",

		MsgWelcome:             "Hi! I can remind you about things and never let you forget a birthday.\nYour timezone is %s. Send /help to see what I can do.",
		MsgHelp:                "/remind <when> <text> - set a reminder (90m, 2h30m, 3d, 18:00 or 2025-12-31 18:00)\n/reminders - list pending reminders\n/reminder_remove <id> - remove a reminder\n/birthday_set <DD.MM> [name] - remember a birthday (reply to a message to use its author)\n/birthdays - list birthdays\n/birthday_remove [name] - forget a birthday\n/birthday_leap <mar1|feb28|off> [name] - choose when a Feb 29 birthday is celebrated in common years\n/birthday_early <days> [name] - get notified days before a birthday (0 disables)\n/timezone [offset] - show or set your UTC offset, e.g. /timezone +3\n/language <en|ru> - change language\n/note [title] - save a note (title on the first line, text below; reply to a message to save it)\n/notes - list notes\n/note_read <id> - show a note\n/note_remove <id> - delete a note\n/todo <text> - add a task (or reply to a message)\n/todos [all] - list open tasks, or all of them\n/todo_done <id> - mark a task as done\n/todo_remove <id> - delete a task",
		MsgGenericError:        "Something went wrong, please try again later.",
		MsgReminderUsage:       "Usage: /remind <when> <text>",
		MsgReminderCreated:     "Reminder #%d set for %s.",
		MsgReminderNotFuture:   "That time is already in the past.",
		MsgReminderEmpty:       "The reminder text is empty.",
		MsgReminderTooLong:     "The reminder text is too long.",
		MsgReminderNotFound:    "Reminder #%d not found.",
		MsgReminderRemoved:     "Reminder #%d removed.",
		MsgReminderRemoveUsage: "Usage: /reminder_remove <id>",
		MsgNoReminders:         "You have no pending reminders.",
		MsgRemindersHeader:     "Your reminders:",
		MsgBirthdaySetUsage:    "Usage: /birthday_set <DD.MM> [name], or reply to someone's message with /birthday_set <DD.MM>",
		MsgBirthdayCreated:     "Birthday of %s saved: %s.",
		MsgBirthdayUpdated:     "Birthday of %s moved to %s.",
		MsgBirthdayLeapHint:    "This birthday is on February 29. Use /birthday_leap to choose when to be notified in common years; by default you will only be notified in leap years.",
		MsgBirthdayInvalidDate: "That date does not exist.",
		MsgBirthdayBadSubject:  "Tell me whose birthday it is: a name, or reply to their message.",
		MsgBirthdayNotFound:    "No birthday saved for %s.",
		MsgBirthdayRemoved:     "Birthday of %s removed.",
		MsgBirthdayRemoveUsage: "Usage: /birthday_remove [name], or reply to someone's message",
		MsgNoBirthdays:         "You have no saved birthdays.",
		MsgBirthdaysHeader:     "Upcoming birthdays:",
		MsgLeapUsage:           "Usage: /birthday_leap <mar1|feb28|off> [name]",
		MsgLeapSet:             "Leap year setting for %s updated.",
		MsgLeapNotLeapDay:      "That birthday is not on February 29.",
		MsgEarlyUsage:          "Usage: /birthday_early <days 0-365> [name]",
		MsgEarlySet:            "You will be notified %d days before the birthday of %s.",
		MsgEarlyDisabled:       "Early notification for %s disabled.",
		MsgTimezoneUsage:       "Usage: /timezone <offset from -12 to +14>, e.g. /timezone +3",
		MsgTimezoneCurrent:     "Your timezone is %s. Local time: %s.",
		MsgTimezoneSet:         "Timezone set to %s. Local time: %s.",
		MsgLanguageUsage:       "Usage: /language <en|ru>",
		MsgLanguageSet:         "Language updated.",
		MsgNoteUntitled:        "Untitled",
		MsgNoteUsage:           "Usage: /note [title] with the text on the next lines, or reply to a message with /note [title]",
		MsgNoteCreated:         "Note #%d saved: %s",
		MsgNoteEmpty:           "The note is empty.",
		MsgNoteTooLong:         "The note or its title is too long.",
		MsgNoteNotFound:        "Note #%d not found.",
		MsgNoteRemoved:         "Note %s deleted.",
		MsgNoteReadUsage:       "Usage: /note_read <id>",
		MsgNoteRemoveUsage:     "Usage: /note_remove <id>",
		MsgNoNotes:             "You have no notes.",
		MsgNotesHeader:         "Your notes:",
		MsgTodoUsage:           "Usage: /todo <text>, or reply to a message with /todo",
		MsgTodoCreated:         "Added to your to-do list: %s",
		MsgTodoEmpty:           "The task is empty.",
		MsgTodoTooLong:         "The task is too long.",
		MsgTodoNotFound:        "Task #%d not found.",
		MsgTodoDone:            "Done: %s",
		MsgTodoRemoved:         "Removed from your to-do list: %s",
		MsgTodoDoneUsage:       "Usage: /todo_done <id>",
		MsgTodoRemoveUsage:     "Usage: /todo_remove <id>",
		MsgNoTasks:             "Your to-do list is empty.",
		MsgTasksHeader:         "Your to-do list:",
		MsgNotAuthorized:       "You are not allowed to run this command.",
		MsgCommandsSynced:      "Synced %d commands.",
	},
	LanguageRussian: {
		MsgReminderTitle:      "⏰ Напоминание",
		MsgReminderSource:     "Исходное сообщение",
		MsgBirthdayTitle:      "🎂 День рождения",
		MsgBirthdayBody:       "Сегодня день рождения у %s!",
		MsgEarlyBirthdayTitle: "📅 Скоро день рождения",
		MsgEarlyBirthdayBody:  "День рождения %s будет %s (через %d дн.).",

		MsgWelcome:             "Привет! Я напомню о делах и не дам забыть ни один день рождения.\nВаш часовой пояс: %s. Отправьте /help, чтобы узнать, что я умею.",
		MsgHelp:                "/remind <когда> <текст> - создать напоминание (90m, 2h30m, 3d, 18:00 или 2025-12-31 18:00)\n/reminders - список напоминаний\n/reminder_remove <id> - удалить напоминание\n/birthday_set <ДД.ММ> [имя] - запомнить день рождения (ответом на сообщение - для его автора)\n/birthdays - список дней рождения\n/birthday_remove [имя] - удалить день рождения\n/birthday_leap <mar1|feb28|off> [имя] - когда поздравлять родившихся 29 февраля в невисокосные годы\n/birthday_early <дни> [имя] - предупредить за несколько дней (0 - выключить)\n/timezone [смещение] - показать или задать смещение от UTC, например /timezone +3\n/language <en|ru> - сменить язык\n/note [заголовок] - сохранить заметку (заголовок в первой строке, текст ниже; ответом на сообщение - сохранить его)\n/notes - список заметок\n/note_read <id> - показать заметку\n/note_remove <id> - удалить заметку\n/todo <текст> - добавить задачу (или ответом на сообщение)\n/todos [all] - открытые задачи или все\n/todo_done <id> - отметить задачу выполненной\n/todo_remove <id> - удалить задачу",
		MsgGenericError:        "Произошла ошибка, попробуйте позже.",
		MsgReminderUsage:       "Используйте: /remind <когда> <текст>",
		MsgReminderCreated:     "Напоминание #%d установлено на %s.",
		MsgReminderNotFuture:   "Это время уже прошло.",
		MsgReminderEmpty:       "Текст напоминания пуст.",
		MsgReminderTooLong:     "Текст напоминания слишком длинный.",
		MsgReminderNotFound:    "Напоминание #%d не найдено.",
		MsgReminderRemoved:     "Напоминание #%d удалено.",
		MsgReminderRemoveUsage: "Используйте: /reminder_remove <id>",
		MsgNoReminders:         "У вас нет активных напоминаний.",
		MsgRemindersHeader:     "Ваши напоминания:",
		MsgBirthdaySetUsage:    "Используйте: /birthday_set <ДД.ММ> [имя] или ответьте на сообщение человека командой /birthday_set <ДД.ММ>",
		MsgBirthdayCreated:     "День рождения %s сохранён: %s.",
		MsgBirthdayUpdated:     "День рождения %s перенесён на %s.",
		MsgBirthdayLeapHint:    "Этот день рождения приходится на 29 февраля. Командой /birthday_leap выберите, когда поздравлять в невисокосные годы; по умолчанию уведомление будет только в високосные.",
		MsgBirthdayInvalidDate: "Такой даты не существует.",
		MsgBirthdayBadSubject:  "Укажите, чей это день рождения: имя или ответ на сообщение человека.",
		MsgBirthdayNotFound:    "День рождения %s не найден.",
		MsgBirthdayRemoved:     "День рождения %s удалён.",
		MsgBirthdayRemoveUsage: "Используйте: /birthday_remove [имя] или ответьте на сообщение человека",
		MsgNoBirthdays:         "У вас нет сохранённых дней рождения.",
		MsgBirthdaysHeader:     "Ближайшие дни рождения:",
		MsgLeapUsage:           "Используйте: /birthday_leap <mar1|feb28|off> [имя]",
		MsgLeapSet:             "Настройка високосного года для %s обновлена.",
		MsgLeapNotLeapDay:      "Этот день рождения не 29 февраля.",
		MsgEarlyUsage:          "Используйте: /birthday_early <дни 0-365> [имя]",
		MsgEarlySet:            "Я предупрежу за %d дн. до дня рождения %s.",
		MsgEarlyDisabled:       "Раннее уведомление для %s выключено.",
		MsgTimezoneUsage:       "Используйте: /timezone <смещение от -12 до +14>, например /timezone +3",
		MsgTimezoneCurrent:     "Ваш часовой пояс: %s. Местное время: %s.",
		MsgTimezoneSet:         "Часовой пояс изменён на %s. Местное время: %s.",
		MsgLanguageUsage:       "Используйте: /language <en|ru>",
		MsgLanguageSet:         "Язык изменён.",
		MsgNoteUntitled:        "Без названия",
		MsgNoteUsage:           "Используйте: /note [заголовок] и текст на следующих строках, или ответьте на сообщение командой /note [заголовок]",
		MsgNoteCreated:         "Заметка #%d сохранена: %s",
		MsgNoteEmpty:           "Заметка пуста.",
		MsgNoteTooLong:         "Заметка или её заголовок слишком длинные.",
		MsgNoteNotFound:        "Заметка #%d не найдена.",
		MsgNoteRemoved:         "Заметка %s удалена.",
		MsgNoteReadUsage:       "Используйте: /note_read <id>",
		MsgNoteRemoveUsage:     "Используйте: /note_remove <id>",
		MsgNoNotes:             "У вас нет заметок.",
		MsgNotesHeader:         "Ваши заметки:",
		MsgTodoUsage:           "Используйте: /todo <текст> или ответьте на сообщение командой /todo",
		MsgTodoCreated:         "Добавлено в список дел: %s",
		MsgTodoEmpty:           "Задача пуста.",
		MsgTodoTooLong:         "Задача слишком длинная.",
		MsgTodoNotFound:        "Задача #%d не найдена.",
		MsgTodoDone:            "Выполнено: %s",
		MsgTodoRemoved:         "Удалено из списка дел: %s",
		MsgTodoDoneUsage:       "Используйте: /todo_done <id>",
		MsgTodoRemoveUsage:     "Используйте: /todo_remove <id>",
		MsgNoTasks:             "Список дел пуст.",
		MsgTasksHeader:         "Ваш список дел:",
		MsgNotAuthorized:       "У вас нет прав для выполнения этой команды.",
		MsgCommandsSynced:      "Синхронизировано команд: %d.",
	},
}

func SupportedLanguage(lang string) bool {
	_, ok := translations[lang]
	return ok
}

// Renderer builds localized Telegram HTML for notifications and replies.
type Renderer struct {
	defaultLanguage string
}

func NewRenderer(defaultLanguage string) *Renderer {
	if !SupportedLanguage(defaultLanguage) {
		defaultLanguage = LanguageEnglish
	}
	return &Renderer{defaultLanguage: defaultLanguage}
}

// Lang picks the user's language, falling back to the configured default.
func (r *Renderer) Lang(u *user.User) string {
	lang := u.LanguageOr(r.defaultLanguage)
	if !SupportedLanguage(lang) {
		return r.defaultLanguage
	}
	return lang
}

// T formats the message key in lang. Missing keys fall back to English.
func (r *Renderer) T(lang, key string, args ...any) string {
	format, ok := translations[lang][key]
	if !ok {
		format, ok = translations[LanguageEnglish][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// SubjectHTML renders a birthday subject, linking known users.
func (r *Renderer) SubjectHTML(s birthday.Subject) string {
	if s.IsUser() {
		return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, s.UserID, html.EscapeString(s.String()))
	}
	return "<b>" + html.EscapeString(s.Name) + "</b>"
}

func (r *Renderer) Reminder(rem *reminder.Reminder, owner *user.User) notification.Message {
	lang := r.Lang(owner)
	body := html.EscapeString(rem.Text)
	if rem.SourceRef.Valid && rem.SourceRef.String != "" {
		body += fmt.Sprintf("\n\n<a href=\"%s\">%s</a>", html.EscapeString(rem.SourceRef.String), r.T(lang, MsgReminderSource))
	}
	return notification.Message{
		Kind:  notification.KindReminder,
		Title: r.T(lang, MsgReminderTitle),
		Body:  body,
	}
}

func (r *Renderer) Birthday(b *birthday.Birthday, owner *user.User) notification.Message {
	lang := r.Lang(owner)
	return notification.Message{
		Kind:  notification.KindBirthday,
		Title: r.T(lang, MsgBirthdayTitle),
		Body:  r.T(lang, MsgBirthdayBody, r.SubjectHTML(b.Subject)),
	}
}

func (r *Renderer) EarlyBirthday(b *birthday.Birthday, owner *user.User, target time.Time) notification.Message {
	lang := r.Lang(owner)
	return notification.Message{
		Kind:  notification.KindBirthdayEarly,
		Title: r.T(lang, MsgEarlyBirthdayTitle),
		Body:  r.T(lang, MsgEarlyBirthdayBody, r.SubjectHTML(b.Subject), FormatDate(target), b.EarlyNotifyDays),
	}
}

// FormatDate renders a day and month as DD.MM.
func FormatDate(t time.Time) string {
	return t.Format("02.01")
}

// FormatLocal renders an instant in the user's offset.
func FormatLocal(t time.Time, u *user.User) string {
	return t.In(u.Location()).Format("2006-01-02 15:04") + " (" + user.ZoneName(u.TimezoneOffset) + ")"
}
