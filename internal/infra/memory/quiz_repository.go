package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated DB hits. Quizzes
// are immutable during a session, so a stale-by-TTL copy is safe.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu     sync.RWMutex
	cache  map[string]cachedQuiz
	byCode map[string]string // joinCode -> quizID
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
		byCode: make(map[string]string),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("id:"+quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) GetQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error) {
	r.mu.RLock()
	quizID, ok := r.byCode[joinCode]
	r.mu.RUnlock()
	if ok {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
	}

	result, err, _ := r.sf.Do("code:"+joinCode, func() (interface{}, error) {
		quiz, err := r.loader.LoadQuizByJoinCode(ctx, joinCode)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.Quiz{}, false
}

func (r *QuizRepository) store(quiz domain.Quiz) {
	r.mu.Lock()
	r.cache[quiz.ID] = cachedQuiz{
		quiz:      quiz,
		expiresAt: r.clock().Add(r.ttlWithJitter()),
	}
	if quiz.JoinCode != "" {
		r.byCode[quiz.JoinCode] = quiz.ID
	}
	r.mu.Unlock()
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for
// tests/demos and for running without Postgres).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) LoadQuizByJoinCode(_ context.Context, joinCode string) (domain.Quiz, error) {
	for _, quiz := range l.quizzes {
		if quiz.JoinCode == joinCode {
			return quiz, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
