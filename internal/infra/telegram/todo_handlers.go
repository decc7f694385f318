package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"reminder_bot/internal/app"
	"reminder_bot/internal/domain/todo"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterTodoHandlers registers /todo, /todos, /todo_done and /todo_remove.
func RegisterTodoHandlers(ctx context.Context, b *telebot.Bot, todoService *app.TodoService, settingsService *app.SettingsService, renderer *app.Renderer, baseLogger *logrus.Entry) {
	b.Handle("/todo", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/todo",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		text := strings.TrimSpace(c.Message().Payload)
		if reply := c.Message().ReplyTo; reply != nil && text == "" {
			text = reply.Text
			if text == "" {
				text = reply.Caption
			}
		}
		if strings.TrimSpace(text) == "" {
			return c.Send(renderer.T(lang, app.MsgTodoUsage))
		}

		task, err := todoService.Add(ctx, c.Sender().ID, text)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrEmptyTaskText):
				return c.Send(renderer.T(lang, app.MsgTodoEmpty))
			case errors.Is(err, app.ErrTaskTextTooLong):
				return c.Send(renderer.T(lang, app.MsgTodoTooLong))
			default:
				handlerLogger.WithError(err).Error("Failed to add task")
				return c.Send(renderer.T(lang, app.MsgGenericError))
			}
		}

		handlerLogger.WithField("task_id", task.ID).Info("Task added")
		return c.Send(renderer.T(lang, app.MsgTodoCreated, truncate(task.Text, 80)))
	})

	b.Handle("/todos", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/todos",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		includeDone := strings.EqualFold(strings.TrimSpace(c.Message().Payload), "all")
		tasks, err := todoService.List(ctx, c.Sender().ID, includeDone)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to list tasks")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
		if len(tasks) == 0 {
			return c.Send(renderer.T(lang, app.MsgNoTasks))
		}

		var response strings.Builder
		response.WriteString(renderer.T(lang, app.MsgTasksHeader))
		for _, task := range tasks {
			response.WriteString("\n" + formatTask(task))
		}
		return sendHTML(c, response.String())
	})

	b.Handle("/todo_done", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/todo_done",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		taskID, ok := singleID(c.Args())
		if !ok {
			return c.Send(renderer.T(lang, app.MsgTodoDoneUsage))
		}

		task, err := todoService.Done(ctx, c.Sender().ID, taskID)
		switch {
		case err == nil:
			handlerLogger.WithField("task_id", taskID).Info("Task done")
			return c.Send(renderer.T(lang, app.MsgTodoDone, truncate(task.Text, 80)))
		case errors.Is(err, todo.ErrTaskNotFound):
			return c.Send(renderer.T(lang, app.MsgTodoNotFound, taskID))
		default:
			handlerLogger.WithError(err).Error("Failed to complete task")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})

	b.Handle("/todo_remove", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/todo_remove",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")
		_, lang := senderContext(ctx, c, settingsService, renderer, handlerLogger)

		taskID, ok := singleID(c.Args())
		if !ok {
			return c.Send(renderer.T(lang, app.MsgTodoRemoveUsage))
		}

		task, err := todoService.Remove(ctx, c.Sender().ID, taskID)
		switch {
		case err == nil:
			handlerLogger.WithField("task_id", taskID).Info("Task removed")
			return c.Send(renderer.T(lang, app.MsgTodoRemoved, truncate(task.Text, 80)))
		case errors.Is(err, todo.ErrTaskNotFound):
			return c.Send(renderer.T(lang, app.MsgTodoNotFound, taskID))
		default:
			handlerLogger.WithError(err).Error("Failed to remove task")
			return c.Send(renderer.T(lang, app.MsgGenericError))
		}
	})
}

// formatTask renders one to-do line; finished tasks are struck through.
func formatTask(task *todo.Task) string {
	text := html.EscapeString(truncate(task.Text, 80))
	if task.Done {
		return fmt.Sprintf("#%d  ✅ <s>%s</s>", task.ID, text)
	}
	return fmt.Sprintf("#%d  ▫️ %s", task.ID, text)
}

func singleID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := parseID(args[0])
	return id, err == nil
}
