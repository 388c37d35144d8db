package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. A single
// store-wide mutex makes every operation atomic; all reads hand out deep
// copies so callers never alias store memory across their own awaits.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*domain.Session
	openByQuiz map[string]string // quizID -> open session id
	now        func() time.Time
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*domain.Session),
		openByQuiz: make(map[string]string),
		now:        time.Now,
	}
}

func (s *SessionStore) FindOrCreateWaiting(_ context.Context, quizID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.openByQuiz[quizID]; ok {
		if session, ok := s.sessions[id]; ok {
			return cloneSession(session), nil
		}
	}

	session := &domain.Session{
		ID:              uuid.NewString(),
		QuizID:          quizID,
		Status:          domain.StatusWaiting,
		CurrentQuestion: -1,
		Participants:    []domain.Participant{},
		CreatedAt:       s.now(),
	}
	s.sessions[session.ID] = session
	s.openByQuiz[quizID] = session.ID
	return cloneSession(session), nil
}

func (s *SessionStore) AppendParticipant(_ context.Context, sessionID, name string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}

	participant := domain.Participant{
		ID:       uuid.NewString(),
		Name:     name,
		Answers:  []domain.Answer{},
		JoinedAt: s.now(),
	}
	session.Participants = append(session.Participants, participant)
	return participant, nil
}

func (s *SessionStore) RecordAnswer(_ context.Context, sessionID, participantID string, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	for i := range session.Participants {
		p := &session.Participants[i]
		if p.ID != participantID {
			continue
		}
		if p.HasAnswered(answer.QuestionID) {
			return domain.ErrDuplicateAnswer
		}
		p.Answers = append(p.Answers, answer)
		p.Score += answer.Points
		return nil
	}
	return domain.ErrParticipantNotFound
}

func (s *SessionStore) SetStatus(_ context.Context, sessionID string, status domain.SessionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Status = status
	switch status {
	case domain.StatusActive:
		stamp := at
		session.StartedAt = &stamp
	case domain.StatusCompleted:
		stamp := at
		session.EndedAt = &stamp
		if s.openByQuiz[session.QuizID] == sessionID {
			delete(s.openByQuiz, session.QuizID)
		}
	}
	return nil
}

func (s *SessionStore) SetCurrentQuestion(_ context.Context, sessionID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if index < session.CurrentQuestion {
		return domain.ErrInvalidTransition
	}
	session.CurrentQuestion = index
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func cloneSession(session *domain.Session) domain.Session {
	out := *session
	out.Participants = make([]domain.Participant, len(session.Participants))
	for i, p := range session.Participants {
		cp := p
		cp.Answers = append([]domain.Answer(nil), p.Answers...)
		out.Participants[i] = cp
	}
	if session.StartedAt != nil {
		stamp := *session.StartedAt
		out.StartedAt = &stamp
	}
	if session.EndedAt != nil {
		stamp := *session.EndedAt
		out.EndedAt = &stamp
	}
	return out
}
