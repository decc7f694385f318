package app

import (
	"context"
	"fmt"
	"strings"

	"reminder_bot/internal/domain/note"
	"reminder_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

var ErrEmptyNoteContent = fmt.Errorf("note content is empty")
var ErrNoteTitleTooLong = fmt.Errorf("note title is longer than %d characters", note.MaxTitleLength)
var ErrNoteContentTooLong = fmt.Errorf("note content is longer than %d characters", note.MaxContentLength)

type NoteService struct {
	noteRepo note.Repository
	userRepo user.Repository
	logger   *logrus.Entry
}

func NewNoteService(nr note.Repository, ur user.Repository, logger *logrus.Entry) *NoteService {
	return &NoteService{
		noteRepo: nr,
		userRepo: ur,
		logger:   logger.WithField("service", "note"),
	}
}

// Write stores a new note. An empty title falls back to defaultTitle.
func (s *NoteService) Write(ctx context.Context, userID int64, title, content, defaultTitle string) (*note.Note, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		title = defaultTitle
	}
	if content == "" {
		return nil, ErrEmptyNoteContent
	}
	if len([]rune(title)) > note.MaxTitleLength {
		return nil, ErrNoteTitleTooLong
	}
	if len([]rune(content)) > note.MaxContentLength {
		return nil, ErrNoteContentTooLong
	}

	if _, err := s.userRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	n := &note.Note{UserID: userID, Title: title, Content: content}
	if err := s.noteRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create note in repository: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "note_id": n.ID}).Info("Note created")
	return n, nil
}

// Read returns one of userID's notes. Notes of other users look absent.
func (s *NoteService) Read(ctx context.Context, userID, noteID int64) (*note.Note, error) {
	n, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, note.ErrNoteNotFound
	}
	return n, nil
}

func (s *NoteService) Remove(ctx context.Context, userID, noteID int64) (*note.Note, error) {
	n, err := s.Read(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.noteRepo.Delete(ctx, n.ID); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NoteService) List(ctx context.Context, userID int64) ([]*note.Note, error) {
	notes, err := s.noteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}
