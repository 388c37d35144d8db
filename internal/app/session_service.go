package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionStore abstracts atomic operations over session documents
// (in-memory, Redis, etc). The store is the source of truth: callers never
// hold a mutable session between their own read and write steps, so every
// mutation here must be atomic under concurrent invocation.
type SessionStore interface {
	// FindOrCreateWaiting returns the quiz's open (non-completed) session,
	// creating a waiting one if none exists. Racing first joiners must
	// observe a single session.
	FindOrCreateWaiting(ctx context.Context, quizID string) (domain.Session, error)
	// AppendParticipant adds a participant and returns it with its new id.
	AppendParticipant(ctx context.Context, sessionID, name string) (domain.Participant, error)
	// RecordAnswer appends the answer to the participant and increments
	// their score in one atomic step. A second answer for the same question
	// fails with domain.ErrDuplicateAnswer.
	RecordAnswer(ctx context.Context, sessionID, participantID string, answer domain.Answer) error
	// SetStatus updates the lifecycle status and stamps the transition time.
	SetStatus(ctx context.Context, sessionID string, status domain.SessionStatus, at time.Time) error
	// SetCurrentQuestion advances the question index. Rewinding fails with
	// domain.ErrInvalidTransition.
	SetCurrentQuestion(ctx context.Context, sessionID string, index int) error
	// Get returns a point-in-time snapshot of the session.
	Get(ctx context.Context, sessionID string) (domain.Session, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error)
}

// SessionService drives the waiting -> active -> completed lifecycle. It is
// stateless: every operation validates against a fresh store snapshot.
type SessionService struct {
	sessions SessionStore
	quizzes  QuizRepository
	now      func() time.Time
}

func NewSessionService(store SessionStore, quizzes QuizRepository) *SessionService {
	return &SessionService{sessions: store, quizzes: quizzes, now: time.Now}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store SessionStore, quizzes QuizRepository, now func() time.Time) *SessionService {
	return &SessionService{sessions: store, quizzes: quizzes, now: now}
}

// JoinResult is returned to a participant after entering a session.
type JoinResult struct {
	SessionID     string
	ParticipantID string
	QuizID        string
	QuizTitle     string
	Participants  []domain.Participant
}

// HostView is returned to a host connecting to its quiz's session.
type HostView struct {
	Quiz    domain.Quiz
	Session domain.Session
}

// QuestionStart describes a question that just opened for answers.
type QuestionStart struct {
	Index    int
	Question domain.QuestionView
	// Deadline is how long the gateway should wait before firing the
	// timeout: the question's limit plus a grace buffer for network jitter.
	Deadline time.Duration
}

// AnswerOutcome summarizes a recorded answer plus the fresh leaderboard.
type AnswerOutcome struct {
	Correct     bool
	Points      int
	Leaderboard []domain.LeaderboardEntry
}

// QuestionEnd carries the reveal and leaderboard for a closed question.
type QuestionEnd struct {
	Index            int
	CorrectOptionIDs []string
	Leaderboard      []domain.LeaderboardEntry
}

// Join resolves a quiz by join code, finds or creates its open session, and
// appends the participant. Joining an active or completed session is allowed
// for visibility; the new participant simply cannot answer past questions.
func (s *SessionService) Join(ctx context.Context, joinCode, participantName string) (JoinResult, error) {
	if joinCode == "" || participantName == "" {
		return JoinResult{}, domain.ErrValidation
	}

	quiz, err := s.quizzes.GetQuizByJoinCode(ctx, joinCode)
	if err != nil {
		return JoinResult{}, err
	}

	session, err := s.sessions.FindOrCreateWaiting(ctx, quiz.ID)
	if err != nil {
		return JoinResult{}, err
	}

	participant, err := s.sessions.AppendParticipant(ctx, session.ID, participantName)
	if err != nil {
		return JoinResult{}, err
	}

	session, err = s.sessions.Get(ctx, session.ID)
	if err != nil {
		return JoinResult{}, err
	}

	return JoinResult{
		SessionID:     session.ID,
		ParticipantID: participant.ID,
		QuizID:        quiz.ID,
		QuizTitle:     quiz.Title,
		Participants:  session.Participants,
	}, nil
}

// HostConnect resolves the quiz and its open session for a host screen. The
// full quiz, correct flags included, is returned; hosts own the content.
func (s *SessionService) HostConnect(ctx context.Context, joinCode string) (HostView, error) {
	if joinCode == "" {
		return HostView{}, domain.ErrValidation
	}

	quiz, err := s.quizzes.GetQuizByJoinCode(ctx, joinCode)
	if err != nil {
		return HostView{}, err
	}

	session, err := s.sessions.FindOrCreateWaiting(ctx, quiz.ID)
	if err != nil {
		return HostView{}, err
	}
	return HostView{Quiz: quiz, Session: session}, nil
}

// StartQuiz moves a waiting session to active. The quiz must have at least
// one question.
func (s *SessionService) StartQuiz(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return domain.ErrQuestionNotFound
	}

	return s.sessions.SetStatus(ctx, sessionID, domain.StatusActive, s.now())
}

// StartQuestion opens the question at index for answers. The index must be
// in range and must not rewind past questions.
func (s *SessionService) StartQuestion(ctx context.Context, sessionID string, index int, grace time.Duration) (QuestionStart, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return QuestionStart{}, err
	}
	if session.Status != domain.StatusActive {
		return QuestionStart{}, domain.ErrInvalidTransition
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return QuestionStart{}, err
	}
	question, ok := quiz.QuestionAt(index)
	if !ok {
		return QuestionStart{}, domain.ErrQuestionNotFound
	}

	if err := s.sessions.SetCurrentQuestion(ctx, sessionID, index); err != nil {
		return QuestionStart{}, err
	}

	return QuestionStart{
		Index:    index,
		Question: question.View(),
		Deadline: time.Duration(question.TimeLimit)*time.Second + grace,
	}, nil
}

// SubmitAnswer scores and records an answer for the session's current
// question. Late submissions for an already-advanced question and duplicate
// submissions for the same question are rejected without touching the score.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, participantID, questionID string, selectedOptionIDs []string, timeToAnswer float64) (AnswerOutcome, error) {
	if participantID == "" || questionID == "" {
		return AnswerOutcome{}, domain.ErrValidation
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if session.Status != domain.StatusActive {
		return AnswerOutcome{}, domain.ErrInvalidTransition
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	question, ok := quiz.QuestionAt(session.CurrentQuestion)
	if !ok || question.ID != questionID {
		return AnswerOutcome{}, domain.ErrQuestionNotActive
	}

	elapsed := domain.ClampTimeToAnswer(timeToAnswer, question.TimeLimit)
	correct := domain.IsCorrect(question, selectedOptionIDs)
	points := domain.Points(correct, elapsed, float64(question.TimeLimit))

	answer := domain.Answer{
		QuestionID:        questionID,
		SelectedOptionIDs: selectedOptionIDs,
		TimeToAnswer:      elapsed,
		Correct:           correct,
		Points:            points,
	}
	if err := s.sessions.RecordAnswer(ctx, sessionID, participantID, answer); err != nil {
		return AnswerOutcome{}, err
	}

	// Fresh read so concurrent answers in the same window are reflected.
	session, err = s.sessions.Get(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	return AnswerOutcome{
		Correct:     correct,
		Points:      points,
		Leaderboard: domain.Leaderboard(session.Participants),
	}, nil
}

// QuestionTimeout closes the answer window for the question at index. It
// reads the session fresh; if the host already advanced past index or the
// session left the active state, the timeout is stale and reports ok=false
// so the caller broadcasts nothing. It never advances the question itself.
func (s *SessionService) QuestionTimeout(ctx context.Context, sessionID string, index int) (QuestionEnd, bool, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return QuestionEnd{}, false, err
	}
	if session.Status != domain.StatusActive || session.CurrentQuestion != index {
		return QuestionEnd{}, false, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return QuestionEnd{}, false, err
	}
	question, ok := quiz.QuestionAt(index)
	if !ok {
		return QuestionEnd{}, false, domain.ErrQuestionNotFound
	}

	return QuestionEnd{
		Index:            index,
		CorrectOptionIDs: question.CorrectOptionIDs(),
		Leaderboard:      domain.Leaderboard(session.Participants),
	}, true, nil
}

// EndQuiz completes an active session and returns the final leaderboard.
func (s *SessionService) EndQuiz(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusActive {
		return nil, domain.ErrInvalidTransition
	}

	if err := s.sessions.SetStatus(ctx, sessionID, domain.StatusCompleted, s.now()); err != nil {
		return nil, err
	}

	session, err = s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return domain.Leaderboard(session.Participants), nil
}
