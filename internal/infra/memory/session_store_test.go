package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestFindOrCreateWaitingReturnsSameSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	first, err := store.FindOrCreateWaiting(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != domain.StatusWaiting || first.CurrentQuestion != -1 {
		t.Fatalf("unexpected new session %+v", first)
	}

	second, err := store.FindOrCreateWaiting(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same session, got %s and %s", first.ID, second.ID)
	}
}

func TestFindOrCreateWaitingConcurrentFirstJoiners(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	const joiners = 16
	ids := make([]string, joiners)
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := store.FindOrCreateWaiting(ctx, "quiz-1")
			if err != nil {
				t.Errorf("joiner %d: %v", i, err)
				return
			}
			ids[i] = session.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < joiners; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("racing joiners created distinct sessions: %s vs %s", ids[0], ids[i])
		}
	}
}

func TestConcurrentAppendParticipant(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")

	const joiners = 20
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendParticipant(ctx, session.ID, "player"); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Participants) != joiners {
		t.Fatalf("lost appends: got %d participants, want %d", len(got.Participants), joiners)
	}
	seen := make(map[string]struct{})
	for _, p := range got.Participants {
		if _, dup := seen[p.ID]; dup {
			t.Fatalf("duplicate participant id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
}

func TestRecordAnswerOncePerQuestion(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")
	participant, _ := store.AppendParticipant(ctx, session.ID, "Alice")

	answer := domain.Answer{QuestionID: "q1", SelectedOptionIDs: []string{"o1"}, Correct: true, Points: 80}
	if err := store.RecordAnswer(ctx, session.ID, participant.ID, answer); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordAnswer(ctx, session.ID, participant.ID, answer); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	got, _ := store.Get(ctx, session.ID)
	if got.Participants[0].Score != 80 || len(got.Participants[0].Answers) != 1 {
		t.Fatalf("duplicate mutated state: %+v", got.Participants[0])
	}
}

func TestRecordAnswerConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")
	participant, _ := store.AppendParticipant(ctx, session.ID, "Alice")

	answer := domain.Answer{QuestionID: "q1", Points: 100}
	var wg sync.WaitGroup
	var mu sync.Mutex
	recorded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.RecordAnswer(ctx, session.ID, participant.ID, answer); err == nil {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if recorded != 1 {
		t.Fatalf("expected exactly one recorded answer, got %d", recorded)
	}
	got, _ := store.Get(ctx, session.ID)
	if got.Participants[0].Score != 100 {
		t.Fatalf("expected score 100, got %d", got.Participants[0].Score)
	}
}

func TestRecordAnswerUnknownParticipant(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")

	err := store.RecordAnswer(ctx, session.ID, "ghost", domain.Answer{QuestionID: "q1"})
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
}

func TestSetStatusCompletedFreesQuiz(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")

	if err := store.SetStatus(ctx, session.ID, domain.StatusActive, time.Now()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := store.SetStatus(ctx, session.ID, domain.StatusCompleted, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := store.Get(ctx, session.ID)
	if got.StartedAt == nil || got.EndedAt == nil {
		t.Fatalf("expected transition timestamps, got %+v", got)
	}

	// The completed session persists for result reads, but a new run of the
	// quiz gets a fresh session.
	next, err := store.FindOrCreateWaiting(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if next.ID == session.ID {
		t.Fatalf("completed session should not be reused")
	}
}

func TestSetCurrentQuestionMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")

	if err := store.SetCurrentQuestion(ctx, session.ID, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.SetCurrentQuestion(ctx, session.ID, 0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected rewind rejection, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	session, _ := store.FindOrCreateWaiting(ctx, "quiz-1")
	participant, _ := store.AppendParticipant(ctx, session.ID, "Alice")

	snapshot, _ := store.Get(ctx, session.ID)
	snapshot.Participants[0].Score = 999

	got, _ := store.Get(ctx, session.ID)
	if got.Participants[0].Score != 0 {
		t.Fatalf("snapshot mutation leaked into store: %+v", got.Participants[0])
	}
	_ = participant
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if _, err := store.AppendParticipant(ctx, "missing", "Alice"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if err := store.SetStatus(ctx, "missing", domain.StatusActive, time.Now()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}
