package domain

import "time"

// QuestionType discriminates how an answer is validated.
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	MultiSelect  QuestionType = "multi_select"
)

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Option represents a possible answer for a question. Correct is never
// serialized to participants before the question's reveal.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models a timed question. Points is the authored weight; live
// scoring uses the base+speed formula in scoring.go.
type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Options   []Option     `json:"options"`
	TimeLimit int          `json:"timeLimit"` // seconds
	Points    int          `json:"points"`
}

// Quiz is immutable for the duration of a session.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	JoinCode  string     `json:"joinCode"`
	Questions []Question `json:"questions"`
}

// Answer is recorded at most once per (participant, question) pair and is
// immutable afterwards.
type Answer struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	TimeToAnswer      float64  `json:"timeToAnswer"` // seconds, clamped to [0, timeLimit]
	Correct           bool     `json:"correct"`
	Points            int      `json:"points"`
}

// Participant is appended once at join and never removed.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Answers  []Answer  `json:"answers"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session is one live run-through of a quiz. CurrentQuestion is -1 until the
// first question starts and only ever advances.
type Session struct {
	ID              string        `json:"id"`
	QuizID          string        `json:"quizId"`
	Status          SessionStatus `json:"status"`
	CurrentQuestion int           `json:"currentQuestion"`
	Participants    []Participant `json:"participants"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// HasAnswered reports whether the participant already answered the question.
func (p Participant) HasAnswered(questionID string) bool {
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// QuestionAt returns the question at index, or false if out of range.
func (q Quiz) QuestionAt(index int) (Question, bool) {
	if index < 0 || index >= len(q.Questions) {
		return Question{}, false
	}
	return q.Questions[index], true
}

// CorrectOptionIDs lists the ids flagged correct, in option order.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// OptionView is an answer-safe projection of an option.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the client-safe shape broadcast when a question starts.
type QuestionView struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Options   []OptionView `json:"options"`
	TimeLimit int          `json:"timeLimit"`
	Type      QuestionType `json:"type"`
}

// View strips correctness flags for broadcast to participants.
func (q Question) View() QuestionView {
	opts := make([]OptionView, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = OptionView{ID: opt.ID, Text: opt.Text}
	}
	return QuestionView{
		ID:        q.ID,
		Text:      q.Text,
		Options:   opts,
		TimeLimit: q.TimeLimit,
		Type:      q.Type,
	}
}
