package bot

import "sync"

type state int

const (
	stateIdle state = iota
	stateAwaitPromoCode
	stateAwaitBet
	stateAwaitWithdrawAmount
	stateAwaitChallenge
	stateAwaitBroadcast
)

// session is the per-user conversation state between two updates.
type session struct {
	state  state
	game   string
	amount float64
}

type sessionStore struct {
	mu sync.Mutex
	m  map[int64]session
}

func newSessionStore() *sessionStore {
	return &sessionStore{m: make(map[int64]session)}
}

func (s *sessionStore) get(userID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[userID]
}

func (s *sessionStore) set(userID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = sess
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
