/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()

	if opts.Seed == 0 {
		opts.Seed = 42
	}

	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Wait)

	return s
}

// newLobby creates a session administered by the first name, with the rest
// joined in order.
func newLobby(t *testing.T, s *Store, perMember int, names ...string) string {
	t.Helper()

	id, err := s.Create(names[0], Settings{ItemsPerMember: perMember})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, n := range names[1:] {
		if err := s.Join(id, n); err != nil {
			t.Fatalf("Join(%q): %v", n, err)
		}
	}

	return id
}

func mustSubmit(t *testing.T, s *Store, id, name string, itemIDs ...string) {
	t.Helper()

	for _, itemID := range itemIDs {
		if _, err := s.Submit(id, name, Item{ID: itemID, URL: "https://example.com/" + itemID}); err != nil {
			t.Fatalf("Submit(%q, %q): %v", name, itemID, err)
		}
	}
}

// inspect returns a deep copy of the session's state.
func inspect(t *testing.T, s *Store, id string) state {
	t.Helper()

	var st state
	if err := s.view(id, func(sess *session) { st = sess.state.clone() }); err != nil {
		t.Fatalf("inspect %s: %v", id, err)
	}

	return st
}

func TestCreate(t *testing.T) {
	s := newTestStore(t, Options{})

	tests := []struct {
		name     string
		admin    string
		settings Settings
		wantErr  error
	}{
		{"valid", "alice", Settings{ItemsPerMember: 2}, nil},
		{"empty admin", "", Settings{ItemsPerMember: 2}, ErrInvalidInput},
		{"zero items", "alice", Settings{ItemsPerMember: 0}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := s.Create(tt.admin, tt.settings)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if len(id) != codeLength {
				t.Errorf("id %q has length %d, want %d", id, len(id), codeLength)
			}
			for _, r := range id {
				if !strings.ContainsRune(codeChars, r) {
					t.Errorf("id %q contains unexpected rune %q", id, r)
				}
			}

			st := inspect(t, s, id)
			if st.phase != PhaseLobby {
				t.Errorf("phase = %s, want %s", st.phase, PhaseLobby)
			}
			m := st.members[tt.admin]
			if m == nil || !m.Admin || !m.Connected {
				t.Errorf("admin member = %+v, want connected admin", m)
			}
		})
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestStore(t, Options{})

	calls := map[string]func() error{
		"join":       func() error { return s.Join("NOPE", "a") },
		"leave":      func() error { return s.Leave("NOPE", "a") },
		"disconnect": func() error { return s.Disconnect("NOPE", "a") },
		"reconnect":  func() error { return s.Reconnect("NOPE", "a") },
		"remove":     func() error { return s.Remove("NOPE", "a", "x") },
		"start":      func() error { return s.StartGame("NOPE", "a") },
		"vote":       func() error { return s.SubmitVote("NOPE", "a", "b") },
		"appreciate": func() error { return s.MarkAppreciation("NOPE", "a") },
		"reveal":     func() error { return s.RevealResults("NOPE", "a") },
		"next":       func() error { return s.NextRound("NOPE", "a") },
		"submit": func() error {
			_, err := s.Submit("NOPE", "a", Item{ID: "x", URL: "u"})
			return err
		},
		"snapshot": func() error {
			_, err := s.Snapshot("NOPE", "a")
			return err
		},
		"nominations": func() error {
			_, err := s.Nominations("NOPE")
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrNotFound) {
				t.Errorf("error = %v, want %v", err, ErrNotFound)
			}
		})
	}
}

func TestReap(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, Options{Now: func() time.Time { return now }})

	stale := newLobby(t, s, 1, "alice")
	now = now.Add(30 * time.Minute)
	fresh := newLobby(t, s, 1, "bob")
	now = now.Add(45 * time.Minute)

	reaped := s.Reap(time.Hour)
	if len(reaped) != 1 || reaped[0] != stale {
		t.Fatalf("Reap() = %v, want [%s]", reaped, stale)
	}
	if s.Exists(stale) {
		t.Errorf("session %s still exists after reap", stale)
	}
	if !s.Exists(fresh) {
		t.Errorf("session %s was reaped early", fresh)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestReapIgnoresReads(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, Options{Now: func() time.Time { return now }})

	id := newLobby(t, s, 1, "alice")
	now = now.Add(2 * time.Hour)

	if _, err := s.Snapshot(id, "alice"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if reaped := s.Reap(time.Hour); len(reaped) != 1 {
		t.Errorf("Reap() = %v, want the idle session", reaped)
	}
}

func TestConcurrentSessions(t *testing.T) {
	s := newTestStore(t, Options{})

	const (
		sessions = 8
		members  = 16
	)

	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = newLobby(t, s, 1, "admin")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for m := range members {
			wg.Add(1)
			go func() {
				defer wg.Done()

				name := fmt.Sprintf("member-%d", m)
				if err := s.Join(id, name); err != nil {
					t.Errorf("Join: %v", err)
					return
				}
				if _, err := s.Submit(id, name, Item{ID: "item", URL: "https://example.com"}); err != nil {
					t.Errorf("Submit: %v", err)
				}
				if err := s.Join(id, name); err != nil {
					t.Errorf("rejoin: %v", err)
				}
			}()
		}
	}
	wg.Wait()

	for _, id := range ids {
		st := inspect(t, s, id)
		if len(st.members) != members+1 || len(st.order) != members+1 {
			t.Errorf("session %s has %d members (%d ordered), want %d", id, len(st.members), len(st.order), members+1)
		}
		for _, name := range st.order {
			if name != "admin" && len(st.members[name].Items) != 1 {
				t.Errorf("member %s has %d items, want 1", name, len(st.members[name].Items))
			}
		}
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", ErrWrongPhase), "wrong_phase"},
		{ErrSelfVote, "self_vote"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
