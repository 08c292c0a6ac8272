/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"errors"
	"reflect"
	"testing"
)

func TestNominate(t *testing.T) {
	st := state{
		order: []string{"alice", "bob", "carol"},
		members: map[string]*Member{
			"alice": {Username: "alice"},
			"bob":   {Username: "bob"},
			"carol": {Username: "carol"},
		},
		leaderboard: map[string]int{"alice": 3, "carol": 1},
		history: []PlayedItemRecord{
			{
				Item:         Item{ID: "a0"},
				Owner:        "alice",
				Appreciators: []string{"bob", "carol"},
				Judgments: []Judgment{
					{Voter: "bob", Guess: "carol", Correct: false},
					{Voter: "carol", Guess: "bob", Correct: false},
				},
			},
			{
				Item:         Item{ID: "b0"},
				Owner:        "bob",
				Appreciators: []string{"carol"},
				Judgments: []Judgment{
					{Voter: "alice", Guess: "bob", Correct: true},
					{Voter: "carol", Guess: "alice", Correct: false},
				},
			},
			{
				Item:         Item{ID: "c0"},
				Owner:        "carol",
				Appreciators: []string{"alice", "bob"},
				Judgments: []Judgment{
					{Voter: "alice", Guess: "carol", Correct: true},
					{Voter: "bob", Guess: "carol", Correct: true},
				},
			},
		},
	}

	got := nominate(&st)

	want := []MemberNomination{
		{Username: "alice", AppreciationsReceived: 2, CorrectGuesses: 2, AppreciationsGiven: 1, Anonymity: 1},
		{Username: "bob", AppreciationsReceived: 1, CorrectGuesses: 1, AppreciationsGiven: 2, Anonymity: 0},
		{Username: "carol", AppreciationsReceived: 2, CorrectGuesses: 0, AppreciationsGiven: 2, Anonymity: 0},
	}
	if !reflect.DeepEqual(got.Members, want) {
		t.Errorf("members =\n%+v\nwant\n%+v", got.Members, want)
	}

	// a0 and c0 tie on two appreciations; the earlier one wins.
	if got.MostAppreciated == nil || got.MostAppreciated.Item.ID != "a0" || got.MostAppreciated.Appreciations != 2 {
		t.Errorf("most appreciated = %+v, want a0 with 2", got.MostAppreciated)
	}

	wantBoard := []Standing{{"alice", 3}, {"bob", 0}, {"carol", 1}}
	if !reflect.DeepEqual(got.Leaderboard, wantBoard) {
		t.Errorf("leaderboard = %+v, want %+v", got.Leaderboard, wantBoard)
	}

	if again := nominate(&st); !reflect.DeepEqual(got, again) {
		t.Error("nominate is not deterministic")
	}
}

func TestNominateEmptyHistory(t *testing.T) {
	st := state{
		order:   []string{"alice"},
		members: map[string]*Member{"alice": {Username: "alice"}},
	}

	got := nominate(&st)
	if got.MostAppreciated != nil {
		t.Errorf("most appreciated = %+v, want none", got.MostAppreciated)
	}
	if len(got.Members) != 1 || got.Members[0] != (MemberNomination{Username: "alice"}) {
		t.Errorf("members = %+v", got.Members)
	}
}

func TestNominationsOnlyWhenFinished(t *testing.T) {
	s := newTestStore(t, Options{})
	id := newLobby(t, s, 1, "alice", "bob")
	mustSubmit(t, s, id, "alice", "a0")
	mustSubmit(t, s, id, "bob", "b0")

	if _, err := s.Nominations(id); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("Nominations in lobby error = %v, want %v", err, ErrWrongPhase)
	}

	if err := s.StartGame(id, "alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	for inspect(t, s, id).phase != PhaseGameFinished {
		st := inspect(t, s, id)
		voter := other([]string{"alice", "bob"}, st.round.owner)
		if err := s.MarkAppreciation(id, voter); err != nil {
			t.Fatalf("MarkAppreciation: %v", err)
		}
		if err := s.SubmitVote(id, voter, st.round.owner); err != nil {
			t.Fatalf("SubmitVote: %v", err)
		}
		if err := s.RevealResults(id, "alice"); err != nil {
			t.Fatalf("RevealResults: %v", err)
		}
		if err := s.NextRound(id, "alice"); err != nil {
			t.Fatalf("NextRound: %v", err)
		}
	}

	first, err := s.Nominations(id)
	if err != nil {
		t.Fatalf("Nominations: %v", err)
	}
	second, err := s.Nominations(id)
	if err != nil {
		t.Fatalf("Nominations: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("nominations changed between calls:\n%+v\n%+v", first, second)
	}

	for _, mn := range first.Members {
		if mn.AppreciationsReceived != 1 || mn.AppreciationsGiven != 1 || mn.CorrectGuesses != 1 {
			t.Errorf("nomination %+v, want one of each", mn)
		}
	}
	for _, sd := range first.Leaderboard {
		if sd.Points != 2 {
			t.Errorf("%s finished with %d points, want 2", sd.Username, sd.Points)
		}
	}
}
