package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/note"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterNoteHandlers registers /note, /notes, /note_read and /note_remove.
func RegisterNoteHandlers(ctx context.Context, b *telebot.Bot, noteService *app.NoteService, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/note", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/note",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		title, content := splitNote(c.Message().Payload)
		if reply := c.Message().ReplyTo; reply != nil {
			// The replied-to message is the content; the whole payload is the title.
			title = strings.TrimSpace(c.Message().Payload)
			content = reply.Text
			if content == "" {
				content = reply.Caption
			}
		}
		if strings.TrimSpace(content) == "" {
			return c.Send(renderer.T(lang, app.MsgNoteUsage))
		}

		n, err := noteService.Write(ctx, c.Sender().ID, title, content, renderer.T(lang, app.MsgNoteUntitled))
		if err != nil {
			switch {
			case errors.Is(err, app.ErrEmptyNoteContent):
				return c.Send(renderer.T(lang, app.MsgNoteEmpty))
			case errors.Is(err, app.ErrNoteTitleTooLong), errors.Is(err, app.ErrNoteContentTooLong):
				return c.Send(renderer.T(lang, app.MsgNoteTooLong))
			default:
				handlerLogger.WithError(err).Error("Failed to create note")
				return c.Send(renderer.T(lang, app.MsgGenericError))
			}
		}

		handlerLogger.WithField("note_id", n.ID).Info("Note created")
		return c.Send(renderer.T(lang, app.MsgNoteCreated, n.ID, n.Title))
	})

	b.Handle("/notes", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/notes",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		u, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		notes, err := noteService.List(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list notes")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		if len(notes) == 0 {
			return c.Send(renderer.T(lang, app.MsgNoNotes))
		}

		var response strings.Builder
		response.WriteString(renderer.T(lang, app.MsgNotesHeader))
		for _, n := range notes {
			response.WriteString(fmt.Sprintf("\n#%d  <b>%s</b>  %s", n.ID, html.EscapeString(truncate(n.Title, 60)), html.EscapeString(app.FormatLocal(n.CreatedAt, u))))
		}
		return sendHTML(c, response.String())
	})

	b.Handle("/note_read", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/note_read",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) != 1 {
			return c.Send(renderer.T(lang, app.MsgNoteReadUsage))
		}
		noteID, err := parseID(args[0])
		if err != nil {
			return c.Send(renderer.T(lang, app.MsgNoteReadUsage))
		}

		n, err := noteService.Read(ctx, c.Sender().ID, noteID)
		switch {
		case err == nil:
			return sendHTML(c, fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(n.Title), html.EscapeString(n.Content)))
		case errors.Is(err, note.ErrNoteNotFound):
			return c.Send(renderer.T(lang, app.MsgNoteNotFound, noteID))
		default:
			handlerLogger.WithError(err).Error("Failed to read note")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})

	b.Handle("/note_remove", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/note_remove",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		args := c.Args()
		if len(args) != 1 {
			return c.Send(renderer.T(lang, app.MsgNoteRemoveUsage))
		}
		noteID, err := parseID(args[0])
		if err != nil {
			return c.Send(renderer.T(lang, app.MsgNoteRemoveUsage))
		}

		handlerLogger = handlerLogger.WithField("note_id", noteID)
		n, err := noteService.Remove(ctx, c.Sender().ID, noteID)
		switch {
		case err == nil:
			handlerLogger.Info("Note removed")
			return c.Send(renderer.T(lang, app.MsgNoteRemoved, n.Title))
		case errors.Is(err, note.ErrNoteNotFound):
			handlerLogger.WithError(err).Warn("Note not removable by sender")
			return c.Send(renderer.T(lang, app.MsgNoteNotFound, noteID))
		default:
			handlerLogger.WithError(err).Error("Failed to remove note")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})
}
