package todo

import (
	"errors"
	"time"
)

const MaxTaskTextLength = 1000

var ErrTaskNotFound = errors.New("task not found")

// Task is one entry of a user's to-do list.
type Task struct {
	ID        int64
	UserID    int64
	Text      string
	Done      bool
	CreatedAt time.Time
}
