// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/driveagent/internal/storage"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleError records a failed exchange so the transcript shows it.
	RoleError Role = "error"
)

// Turn is one entry in the transcript.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Sender sends one message. *Client implements it.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Session is a conversation with an ordered transcript. Safe for
// concurrent use, though exchanges are serialized.
type Session struct {
	sender Sender

	// ask serializes exchanges so turns stay paired.
	ask sync.Mutex

	mu      sync.RWMutex
	id      string
	created time.Time
	files   []string
	turns   []Turn
}

// NewSession starts an empty conversation.
func NewSession(sender Sender) *Session {
	return &Session{
		sender:  sender,
		id:      uuid.New().String(),
		created: time.Now(),
	}
}

// Resume continues a saved transcript.
func Resume(sender Sender, t *storage.Transcript) *Session {
	s := &Session{
		sender:  sender,
		id:      t.ID,
		created: t.CreatedAt,
		files:   append([]string(nil), t.Files...),
	}
	for _, m := range t.Messages {
		s.turns = append(s.turns, Turn{Role: Role(m.Role), Content: m.Content, At: m.Timestamp})
	}
	return s
}

// ID returns the conversation ID used when saving.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetFiles records which files the assistant was given, as reported by
// the sync that preceded this conversation.
func (s *Session) SetFiles(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append([]string(nil), files...)
}

// Files returns the files recorded with SetFiles.
func (s *Session) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.files...)
}

// Ask sends message and records both sides of the exchange. A failed
// exchange records the user turn and an error turn. A blank message
// records nothing.
func (s *Session) Ask(ctx context.Context, message string) (string, error) {
	s.ask.Lock()
	defer s.ask.Unlock()

	reply, err := s.sender.Send(ctx, message)
	if errors.Is(err, ErrEmptyMessage) {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: message, At: time.Now()})
	if err != nil {
		s.turns = append(s.turns, Turn{Role: RoleError, Content: err.Error(), At: time.Now()})
		return "", err
	}
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: reply, At: time.Now()})
	return reply, nil
}

// Turns returns a copy of the transcript in order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Transcript converts the session for storage.
func (s *Session) Transcript() *storage.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &storage.Transcript{
		ID:        s.id,
		CreatedAt: s.created,
		Files:     append([]string(nil), s.files...),
	}
	for _, turn := range s.turns {
		t.Messages = append(t.Messages, storage.Message{
			Role:      string(turn.Role),
			Content:   turn.Content,
			Timestamp: turn.At,
		})
	}
	return t
}

// Save writes the transcript to store. Empty sessions are not saved.
func (s *Session) Save(store *storage.TranscriptStore) error {
	if s.Len() == 0 {
		return nil
	}
	_, err := store.Save(s.Transcript())
	return err
}
