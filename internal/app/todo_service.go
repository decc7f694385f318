package app

import (
	"context"
	"fmt"
	"strings"

	"reminder_bot/internal/domain/todo"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

var ErrEmptyTaskText = fmt.Errorf("task text is empty")
var ErrTaskTextTooLong = fmt.Errorf("task text is longer than %d characters", todo.MaxTaskTextLength)

type TodoService struct {
	todoRepo todo.Repository
	userRepo user.Repository
	logger   *logrus.Entry
}

func NewTodoService(tr todo.Repository, ur user.Repository, logger *logrus.Entry) *TodoService {
	return &TodoService{
		todoRepo: tr,
		userRepo: ur,
		logger:   logger.WithField("service", "todo"),
	}
}

func (s *TodoService) Add(ctx context.Context, userID int64, text string) (*todo.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTaskText
	}
	if len([]rune(text)) > todo.MaxTaskTextLength {
		return nil, ErrTaskTextTooLong
	}
	if _, err := s.userRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	t := &todo.Task{UserID: userID, Text: text}
	if err := s.todoRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task in repository: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "task_id": t.ID}).Info("Task created")
	return t, nil
}

// Done marks one of userID's tasks as completed. Marking a done task again is a no-op.
func (s *TodoService) Done(ctx context.Context, userID, taskID int64) (*todo.Task, error) {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Done {
		return t, nil
	}
	if err := s.todoRepo.MarkDone(ctx, t.ID); err != nil {
		return nil, err
	}
	t.Done = true
	return t, nil
}

func (s *TodoService) Remove(ctx context.Context, userID, taskID int64) (*todo.Task, error) {
	t, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.todoRepo.Delete(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TodoService) List(ctx context.Context, userID int64, includeDone bool) ([]*todo.Task, error) {
	tasks, err := s.todoRepo.ListByUser(ctx, userID, includeDone)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// owned loads a task and hides tasks that belong to someone else.
func (s *TodoService) owned(ctx context.Context, userID, taskID int64) (*todo.Task, error) {
	t, err := s.todoRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, todo.ErrTaskNotFound
	}
	return t, nil
}
