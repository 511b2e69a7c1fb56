package session

import (
	"fmt"
	"time"
)

// mutate runs a read-merge-write cycle under the session's update lock
func (m *Manager) mutate(id string, fn func(*Session) error) (*Session, error) {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("session %s is %s: %w", id, s.Status, ErrInvalidTransition)
	}

	if err := fn(s); err != nil {
		return nil, err
	}
	s.LastActivity = time.Now()

	if err := m.store.Set(id, s); err != nil {
		return nil, fmt.Errorf("store session %s: %w", id, err)
	}
	return s, nil
}

// RecordResponse stores an answer for a question and advances the cursor.
// Answering the same question again replaces the earlier response.
func (m *Manager) RecordResponse(sessionID, questionID, value string) (int, error) {
	s, err := m.mutate(sessionID, func(s *Session) error {
		now := time.Now()
		for i, r := range s.Responses {
			if r.QuestionID == questionID {
				s.Responses[i].Value = value
				s.Responses[i].RecordedAt = now
				return nil
			}
		}
		s.Responses = append(s.Responses, Response{
			QuestionID: questionID,
			Value:      value,
			RecordedAt: now,
		})
		s.CurrentIndex++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.CurrentIndex, nil
}

// AdvanceQuestion moves the cursor past the current question without an answer
func (m *Manager) AdvanceQuestion(sessionID string) (int, error) {
	s, err := m.mutate(sessionID, func(s *Session) error {
		s.CurrentIndex++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.CurrentIndex, nil
}

// CompleteSurvey transitions the session to completed
func (m *Manager) CompleteSurvey(sessionID string) error {
	_, err := m.Transition(sessionID, StatusCompleted)
	return err
}

// AppendTurn appends one conversation turn
func (m *Manager) AppendTurn(sessionID string, role, text string) error {
	_, err := m.mutate(sessionID, func(s *Session) error {
		s.Turns = append(s.Turns, Turn{Role: role, Text: text, At: time.Now()})
		if s.Voice != nil && role == "user" {
			s.Voice.TurnCount++
		}
		return nil
	})
	return err
}
