package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChallengeStore holds pending MFA login challenges between step one
// (password accepted) and step two (TOTP verified). A challenge is
// single-use and expires after its TTL.
type ChallengeStore interface {
	Put(ctx context.Context, challengeID, userID string, ttl time.Duration) error
	// Take returns the user the challenge belongs to and consumes it.
	Take(ctx context.Context, challengeID string) (string, bool, error)
}

const challengeKeyPrefix = "mfa:challenge:"

type redisChallengeStore struct {
	client *redis.Client
}

// NewRedisChallengeStore backs pending challenges with Redis so step two
// may land on any instance.
func NewRedisChallengeStore(client *redis.Client) ChallengeStore {
	return &redisChallengeStore{client: client}
}

func (s *redisChallengeStore) Put(ctx context.Context, challengeID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, challengeKeyPrefix+challengeID, userID, ttl).Err()
}

func (s *redisChallengeStore) Take(ctx context.Context, challengeID string) (string, bool, error) {
	userID, err := s.client.GetDel(ctx, challengeKeyPrefix+challengeID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

type memoryChallenge struct {
	userID    string
	expiresAt time.Time
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]memoryChallenge
}

// NewMemoryChallengeStore keeps challenges in-process. Used when Redis is
// not configured, and by tests.
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{challenges: make(map[string]memoryChallenge)}
}

func (s *memoryChallengeStore) Put(_ context.Context, challengeID, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challengeID] = memoryChallenge{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *memoryChallengeStore) Take(_ context.Context, challengeID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[challengeID]
	if !ok {
		return "", false, nil
	}
	delete(s.challenges, challengeID)
	if time.Now().After(ch.expiresAt) {
		return "", false, nil
	}
	return ch.userID, true, nil
}
