package withdrawservice

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srvnk/starsbot/pkg/random"
)

var (
	ErrLockedOut   = errors.New("withdrawal requests locked out")
	ErrNoChallenge = errors.New("no active challenge")
	ErrWrongAnswer = errors.New("wrong answer")
)

const (
	maxAttempts     = 3
	lockoutDuration = 10 * time.Minute
)

type challenge struct {
	answer   int
	attempts int
}

// ChallengeStore hands out arithmetic questions and tracks per-user lockouts.
// State is in-memory only; a restart clears it.
type ChallengeStore struct {
	rng random.Source
	now func() time.Time

	mu         sync.Mutex
	challenges map[int64]*challenge
	lockouts   map[int64]time.Time
}

func NewChallengeStore(rng random.Source) *ChallengeStore {
	return &ChallengeStore{
		rng:        rng,
		now:        time.Now,
		challenges: make(map[int64]*challenge),
		lockouts:   make(map[int64]time.Time),
	}
}

// lockedLocked reports an active lockout. Callers hold c.mu.
func (c *ChallengeStore) lockedLocked(userID int64) (time.Duration, bool) {
	until, ok := c.lockouts[userID]
	if !ok {
		return 0, false
	}
	now := c.now()
	if now.After(until) {
		delete(c.lockouts, userID)
		return 0, false
	}
	return until.Sub(now), true
}

// Locked reports whether the user is currently locked out and for how long.
func (c *ChallengeStore) Locked(userID int64) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockedLocked(userID)
}

// NewChallenge issues a fresh question, replacing any unanswered one.
func (c *ChallengeStore) NewChallenge(userID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, locked := c.lockedLocked(userID); locked {
		return "", ErrLockedOut
	}

	a := c.rng.IntN(9) + 1
	b := c.rng.IntN(9) + 1
	c.challenges[userID] = &challenge{answer: a + b}
	return fmt.Sprintf("%d + %d", a, b), nil
}

// SubmitAnswer checks the user's answer. The third wrong answer locks the
// user out for ten minutes; other users are unaffected.
func (c *ChallengeStore) SubmitAnswer(userID int64, answer int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, locked := c.lockedLocked(userID); locked {
		return ErrLockedOut
	}
	ch, ok := c.challenges[userID]
	if !ok {
		return ErrNoChallenge
	}

	if answer == ch.answer {
		delete(c.challenges, userID)
		return nil
	}

	ch.attempts++
	if ch.attempts >= maxAttempts {
		delete(c.challenges, userID)
		c.lockouts[userID] = c.now().Add(lockoutDuration)
		return ErrLockedOut
	}
	return ErrWrongAnswer
}
