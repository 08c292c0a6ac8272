/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
)

func admins(st state) []string {
	var out []string
	for _, name := range st.order {
		if st.members[name].Admin {
			out = append(out, name)
		}
	}
	return out
}

func TestJoinIsIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice", "bob")

	if err := s.Disconnect(id, "bob"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if st := inspect(t, s, id); st.members["bob"].Connected {
		t.Fatal("bob still connected after Disconnect")
	}

	if err := s.Join(id, "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	st := inspect(t, s, id)
	if len(st.members) != 2 || len(st.order) != 2 {
		t.Fatalf("members = %d, order = %v, want 2 members", len(st.members), st.order)
	}
	if !st.members["bob"].Connected {
		t.Error("bob not connected after rejoin")
	}
	if st.members["bob"].Admin {
		t.Error("rejoin granted admin")
	}
}

func TestReconnect(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice")

	if err := s.Reconnect(id, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reconnect(unknown) error = %v, want %v", err, ErrNotFound)
	}
	if st := inspect(t, s, id); len(st.members) != 1 {
		t.Fatalf("Reconnect fabricated a member: %v", st.order)
	}

	for range 2 {
		if err := s.Disconnect(id, "alice"); err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
		if err := s.Reconnect(id, "alice"); err != nil {
			t.Fatalf("Reconnect: %v", err)
		}
	}
	if st := inspect(t, s, id); !st.members["alice"].Connected {
		t.Error("alice not connected after Reconnect")
	}
}

func TestLateJoinerIsSpectator(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice", "bob")
	mustSubmit(t, s, id, "alice", "a1")
	mustSubmit(t, s, id, "bob", "b1")

	if err := s.StartGame(id, "alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := s.Join(id, "carol"); err != nil {
		t.Fatalf("Join mid-round: %v", err)
	}

	st := inspect(t, s, id)
	if st.phase != PhaseRoundInProgress {
		t.Errorf("phase = %s, want %s", st.phase, PhaseRoundInProgress)
	}
	if n := len(st.members["carol"].Items); n != 0 {
		t.Errorf("late joiner has %d items", n)
	}
}

func TestLeavePromotesAdmin(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice", "bob", "carol")
	mustSubmit(t, s, id, "alice", "a1", "a2")

	if err := s.Leave(id, "alice"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	st := inspect(t, s, id)
	if _, ok := st.members["alice"]; ok {
		t.Fatal("alice still a member")
	}
	if got := admins(st); len(got) != 1 {
		t.Fatalf("admins = %v, want exactly one", got)
	}

	if err := s.Leave(id, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Leave error = %v, want %v", err, ErrNotFound)
	}
}

func TestLeaveLastMemberOrphansSession(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice")

	if err := s.Leave(id, "alice"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !s.Exists(id) {
		t.Fatal("orphaned session removed from store")
	}
	if st := inspect(t, s, id); len(st.members) != 0 {
		t.Errorf("members = %v, want none", st.order)
	}

	if err := s.Join(id, "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := admins(inspect(t, s, id)); len(got) != 1 || got[0] != "bob" {
		t.Errorf("admins = %v, want [bob]", got)
	}
}

func TestExactlyOneAdmin(t *testing.T) {
	for seed := range uint64(20) {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			s := newTestStore(t, Options{Seed: int64(seed) + 1})
			id := newLobby(t, s, 1, "m0")
			rng := rand.New(rand.NewPCG(seed, seed))

			for step := range 200 {
				name := fmt.Sprintf("m%d", rng.IntN(8))
				if rng.IntN(2) == 0 {
					_ = s.Join(id, name)
				} else {
					_ = s.Leave(id, name)
				}

				st := inspect(t, s, id)
				if len(st.members) == 0 {
					continue
				}
				if got := admins(st); len(got) != 1 {
					t.Fatalf("step %d: admins = %v among %v", step, got, st.order)
				}
			}
		})
	}
}

func TestLeaveDuringRound(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice", "bob", "carol")
	for _, n := range []string{"alice", "bob", "carol"} {
		mustSubmit(t, s, id, n, n+"-1")
	}
	if err := s.StartGame(id, "alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	owner := inspect(t, s, id).round.owner
	var voters []string
	for _, n := range []string{"alice", "bob", "carol"} {
		if n != owner {
			voters = append(voters, n)
		}
	}

	if err := s.SubmitVote(id, voters[0], owner); err != nil {
		t.Fatalf("SubmitVote: %v", err)
	}
	if err := s.MarkAppreciation(id, voters[1]); err != nil {
		t.Fatalf("MarkAppreciation: %v", err)
	}
	if err := s.Leave(id, voters[1]); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	st := inspect(t, s, id)
	if st.phase != PhaseVotesTallied {
		t.Errorf("phase = %s, want %s once the only missing voter left", st.phase, PhaseVotesTallied)
	}
	if st.round.appreciations[voters[1]] {
		t.Error("departed member's appreciation kept")
	}
}
