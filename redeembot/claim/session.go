package claim

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type State int

const (
	StateAwaitingIdentity State = iota
	StateAwaitingAnswer
	StateResolving
)

// Session holds the per-instance workflow data between interaction steps:
// the challenge id, the chosen pool and any code held for the caller. It is
// keyed by the account id, never encoded into component custom ids.
type Session struct {
	AccountID  string
	PlayerID   string
	Privileged bool

	// TargetCode is set for targeted redemptions of operator-supplied codes.
	// Those bypass the cooldown gate and never touch the pools.
	TargetCode string

	// Reserved is a pool code already drawn (and marked used) that is held
	// across challenge retries so it is redeemed rather than redrawn.
	Reserved string
	Pool     string

	ChallengeID string
	State       State
	StartedAt   time.Time
}

const messageOwnerCacheSize = 1024

// SessionStore tracks in-flight claim sessions. Sessions expire after the
// configured timeout and are swept in the background; an expired session is
// simply discarded, no resources are pinned while a caller thinks.
type SessionStore struct {
	sessions      sync.Map
	messageOwners *lru.Cache
	timeout       time.Duration
}

func NewSessionStore(timeout time.Duration) *SessionStore {
	owners, _ := lru.New(messageOwnerCacheSize)
	return &SessionStore{
		messageOwners: owners,
		timeout:       timeout,
	}
}

// Begin starts a fresh session for the account, replacing any session still
// in flight for it.
func (s *SessionStore) Begin(accountID string, privileged bool, targetCode string) *Session {
	sess := &Session{
		AccountID:  accountID,
		Privileged: privileged,
		TargetCode: targetCode,
		State:      StateAwaitingIdentity,
		StartedAt:  time.Now(),
	}
	s.sessions.Store(accountID, sess)
	return sess
}

func (s *SessionStore) Get(accountID string) (*Session, bool) {
	v, ok := s.sessions.Load(accountID)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	if time.Since(sess.StartedAt) > s.timeout {
		s.sessions.Delete(accountID)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) End(accountID string) {
	s.sessions.Delete(accountID)
}

func (s *SessionStore) RegisterMessageOwner(messageID, accountID string) {
	s.messageOwners.Add(messageID, accountID)
}

func (s *SessionStore) IsMessageOwner(messageID, accountID string) bool {
	owner, ok := s.messageOwners.Get(messageID)
	return ok && owner.(string) == accountID
}

func (s *SessionStore) sweepExpired() {
	now := time.Now()
	s.sessions.Range(func(key, value interface{}) bool {
		if now.Sub(value.(*Session).StartedAt) > s.timeout {
			s.sessions.Delete(key)
		}
		return true
	})
}

func (s *SessionStore) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepExpired()
			}
		}
	}()
}
