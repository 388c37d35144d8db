package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error)
}

// QuizRepository caches whole quiz documents in Redis and falls back to a
// loader on cache miss:
//
//	quiz:{quizID}       -> quiz JSON (options keep correct flags; this cache
//	                       is server-side only, clients get stripped views)
//	quiz:code:{code}    -> quizID
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("id:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.fill(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) GetQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error) {
	quizID, err := r.client.Get(ctx, r.codeKey(joinCode)).Result()
	if err == nil {
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return domain.Quiz{}, fmt.Errorf("resolve join code: %w", err)
	}

	result, err, _ := r.sf.Do("code:"+joinCode, func() (interface{}, error) {
		quiz, err := r.loader.LoadQuizByJoinCode(ctx, joinCode)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.fill(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.quizKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// fill is best-effort: a cache write failure just means the next lookup
// falls through to the loader again.
func (r *QuizRepository) fill(ctx context.Context, quiz domain.Quiz) {
	data, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.quizKey(quiz.ID), data, ttl)
	if quiz.JoinCode != "" {
		pipe.Set(ctx, r.codeKey(quiz.JoinCode), quiz.ID, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (r *QuizRepository) quizKey(quizID string) string {
	return "quiz:" + quizID
}

func (r *QuizRepository) codeKey(joinCode string) string {
	return "quiz:code:" + joinCode
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
