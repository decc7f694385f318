package note

import (
	"errors"
	"time"
)

const (
	MaxTitleLength   = 100
	MaxContentLength = 3500 // Leaves room for the title inside one Telegram message
)

var ErrNoteNotFound = errors.New("note not found")

// Note is a titled piece of free text kept for its owner.
type Note struct {
	ID        int64
	UserID    int64
	Title     string
	Content   string
	CreatedAt time.Time
}
