package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// maxTxRetries bounds optimistic-transaction retries when many participants
// mutate the same session document in a short window.
const maxTxRetries = 16

// SessionStore keeps session documents as JSON values in Redis:
//   - session:{id}            -> session document
//   - session:open:{quizID}   -> id of the quiz's non-completed session
//
// Find-or-create races are settled by SETNX on the open-session index;
// document mutations run inside WATCH/MULTI transactions so concurrent
// appends and answer records never lose updates.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ app.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, now: time.Now}
}

func (s *SessionStore) FindOrCreateWaiting(ctx context.Context, quizID string) (domain.Session, error) {
	indexKey := s.openKey(quizID)

	session := domain.Session{
		ID:              uuid.NewString(),
		QuizID:          quizID,
		Status:          domain.StatusWaiting,
		CurrentQuestion: -1,
		Participants:    []domain.Participant{},
		CreatedAt:       s.now(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	docKey := s.sessionKey(session.ID)

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		// Document first, index second: the index must never point at a
		// session that a racing joiner cannot read yet.
		if err := s.client.Set(ctx, docKey, data, s.ttl).Err(); err != nil {
			return domain.Session{}, fmt.Errorf("store session: %w", err)
		}
		won, err := s.client.SetNX(ctx, indexKey, session.ID, s.ttl).Result()
		if err != nil {
			return domain.Session{}, fmt.Errorf("claim open session: %w", err)
		}
		if won {
			return session, nil
		}

		// Lost the race; discard the provisional document and read the
		// winner's session.
		_ = s.client.Del(ctx, docKey).Err()
		existingID, err := s.client.Get(ctx, indexKey).Result()
		if errors.Is(err, redis.Nil) {
			// Winner's index vanished between SetNX and Get (completed or
			// expired); claim again.
			continue
		}
		if err != nil {
			return domain.Session{}, fmt.Errorf("resolve open session: %w", err)
		}
		existing, err := s.Get(ctx, existingID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Dangling index: the document it points at expired. Clear it
			// and claim again rather than failing every join for the TTL.
			_ = s.client.Del(ctx, indexKey).Err()
			continue
		}
		return existing, err
	}
	return domain.Session{}, fmt.Errorf("quiz %s: could not settle open session", quizID)
}

func (s *SessionStore) AppendParticipant(ctx context.Context, sessionID, name string) (domain.Participant, error) {
	participant := domain.Participant{
		ID:       uuid.NewString(),
		Name:     name,
		Answers:  []domain.Answer{},
		JoinedAt: s.now(),
	}
	_, err := s.update(ctx, sessionID, func(session *domain.Session) error {
		session.Participants = append(session.Participants, participant)
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

func (s *SessionStore) RecordAnswer(ctx context.Context, sessionID, participantID string, answer domain.Answer) error {
	_, err := s.update(ctx, sessionID, func(session *domain.Session) error {
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
	})
	return err
}

func (s *SessionStore) SetStatus(ctx context.Context, sessionID string, status domain.SessionStatus, at time.Time) error {
	session, err := s.update(ctx, sessionID, func(session *domain.Session) error {
		session.Status = status
		switch status {
		case domain.StatusActive:
			stamp := at
			session.StartedAt = &stamp
		case domain.StatusCompleted:
			stamp := at
			session.EndedAt = &stamp
		}
		return nil
	})
	if err != nil {
		return err
	}
	if status == domain.StatusCompleted {
		// Completed sessions no longer block a new run of the quiz.
		if err := s.client.Del(ctx, s.openKey(session.QuizID)).Err(); err != nil {
			return fmt.Errorf("clear open session index: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) SetCurrentQuestion(ctx context.Context, sessionID string, index int) error {
	_, err := s.update(ctx, sessionID, func(session *domain.Session) error {
		if index < session.CurrentQuestion {
			return domain.ErrInvalidTransition
		}
		session.CurrentQuestion = index
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

// update applies fn to the session document inside an optimistic WATCH
// transaction, retrying on concurrent modification.
func (s *SessionStore) update(ctx context.Context, sessionID string, fn func(*domain.Session) error) (domain.Session, error) {
	key := s.sessionKey(sessionID)
	var out domain.Session

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		var session domain.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if err := fn(&session); err != nil {
			return err
		}

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = session
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		return out, nil
	}
	return domain.Session{}, fmt.Errorf("session %s: too many concurrent updates", sessionID)
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (s *SessionStore) openKey(quizID string) string {
	return "session:open:" + quizID
}
