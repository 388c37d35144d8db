package domain

import "errors"

var (
	// ErrQuizNotFound indicates no quiz matches the given id or join code.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuestionNotFound indicates a question id or index is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidTransition is returned for lifecycle operations attempted in
	// the wrong session status, including rewinding the question index.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrQuestionNotActive rejects answers for a question that is not the
	// session's current one (late or premature submissions).
	ErrQuestionNotActive = errors.New("question is not accepting answers")
	// ErrDuplicateAnswer rejects a second submission for the same question.
	ErrDuplicateAnswer = errors.New("answer already recorded for question")
	// ErrValidation covers malformed or missing fields in inbound events.
	ErrValidation = errors.New("invalid request")
)
