/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Seednode/whosetune/internal/metadata"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Enricher looks up display metadata for a submitted item's locator.
type Enricher interface {
	Lookup(ctx context.Context, url string) (metadata.Metadata, bool)
}

type Options struct {
	// Seed drives item selection and admin re-election. Zero picks a
	// random seed.
	Seed int64

	// Enricher is optional; without one items are never enriched.
	Enricher      Enricher
	EnrichTimeout time.Duration

	// OnChange is called with a session id after a mutation that happened
	// outside any caller's request, such as a completed enrichment.
	OnChange func(id string)

	Logf func(format string, args ...any)
	Now  func() time.Time
}

// Store is the registry of live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rng      *rand.Rand

	opts  Options
	tasks sync.WaitGroup
}

func NewStore(opts Options) (*Store, error) {
	if opts.Seed == 0 {
		seed, err := newSeed()
		if err != nil {
			return nil, err
		}
		opts.Seed = seed
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = 5 * time.Second
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		sessions: make(map[string]*session),
		rng:      rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)^0x9e3779b97f4a7c15)),
		opts:     opts,
	}, nil
}

func newSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Wait blocks until every detached enrichment task has finished.
func (s *Store) Wait() {
	s.tasks.Wait()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Exists reports whether a session with this id is live.
func (s *Store) Exists(id string) bool {
	_, ok := s.get(id)
	return ok
}

// Create opens a new session in the lobby with admin as its only member.
func (s *Store) Create(admin string, settings Settings) (string, error) {
	if admin == "" {
		return "", fmt.Errorf("empty username: %w", ErrInvalidInput)
	}
	if !settings.validate() {
		return "", fmt.Errorf("items per member must be at least 1: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.newCodeLocked()
	if err != nil {
		return "", err
	}

	rng := rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
	s.sessions[id] = newSession(id, admin, settings, rng, s.opts.Now())

	s.opts.Logf("GAMES: Created session %s with admin %q", id, admin)

	return id, nil
}

func (s *Store) newCodeLocked() (string, error) {
	for {
		buf := make([]byte, codeLength)
		if _, err := crand.Read(buf); err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		for i := range buf {
			buf[i] = codeChars[int(buf[i])%len(codeChars)]
		}
		id := string(buf)

		if _, exists := s.sessions[id]; !exists {
			return id, nil
		}
	}
}

func (s *Store) get(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// update runs fn with exclusive access to the session. fn must not write
// anything before it has decided to succeed.
func (s *Store) update(id string, fn func(*session) error) error {
	sess, ok := s.get(id)
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess); err != nil {
		return err
	}
	sess.lastActive = s.opts.Now()

	return nil
}

// view runs fn with exclusive access to the session without touching its
// activity timestamp. fn may write fields that are not player activity,
// such as enrichment results.
func (s *Store) view(id string, fn func(*session)) error {
	sess, ok := s.get(id)
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	fn(sess)

	return nil
}

// Reap removes every session that has not been mutated for longer than
// idle and returns their ids.
func (s *Store) Reap(idle time.Duration) []string {
	cutoff := s.opts.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		last := sess.lastActive
		sess.mu.Unlock()

		if last.Before(cutoff) {
			delete(s.sessions, id)
			reaped = append(reaped, id)
			s.opts.Logf("GAMES: Reaped idle session %s", id)
		}
	}

	return reaped
}

func member(sess *session, name string) (*Member, error) {
	m, ok := sess.members[name]
	if !ok {
		return nil, fmt.Errorf("member %q in session %s: %w", name, sess.id, ErrNotFound)
	}
	return m, nil
}

func admin(sess *session, name string) (*Member, error) {
	m, err := member(sess, name)
	if err != nil {
		return nil, err
	}
	if !m.Admin {
		return nil, fmt.Errorf("member %q: %w", name, ErrUnauthorized)
	}
	return m, nil
}
