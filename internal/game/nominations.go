/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"slices"
)

// MemberNomination holds the end-of-game counters for one member.
type MemberNomination struct {
	Username              string `json:"username"`
	AppreciationsReceived int    `json:"mostAppreciated"`
	CorrectGuesses        int    `json:"tasteExpert"`
	AppreciationsGiven    int    `json:"musicCollector"`
	Anonymity             int    `json:"mysteryMaster"`
}

// ItemAward names the single most appreciated item of the game.
type ItemAward struct {
	Item          Item   `json:"item"`
	Owner         string `json:"owner"`
	Appreciations int    `json:"appreciations"`
}

type Nominations struct {
	Members         []MemberNomination `json:"players"`
	MostAppreciated *ItemAward         `json:"mostAppreciatedItem,omitempty"`
	Leaderboard     []Standing         `json:"finalLeaderboard"`
}

// Nominations computes the end-of-game awards. Only available once the game
// has finished.
func (s *Store) Nominations(id string) (*Nominations, error) {
	var (
		n     Nominations
		phase Phase
	)
	err := s.view(id, func(sess *session) {
		phase = sess.phase
		if phase == PhaseGameFinished {
			n = nominate(&sess.state)
		}
	})
	if err != nil {
		return nil, err
	}
	if phase != PhaseGameFinished {
		return nil, fmt.Errorf("nominations in %s: %w", phase, ErrWrongPhase)
	}
	return &n, nil
}

// nominate depends only on the history and the member list.
func nominate(st *state) Nominations {
	n := Nominations{
		Members:     make([]MemberNomination, 0, len(st.order)),
		Leaderboard: st.standings(),
	}

	for _, name := range st.order {
		mn := MemberNomination{Username: name}

		for _, rec := range st.history {
			if rec.Owner == name {
				mn.AppreciationsReceived += len(rec.Appreciators)
				if !slices.ContainsFunc(rec.Judgments, func(j Judgment) bool { return j.Correct }) {
					mn.Anonymity++
				}
			}
			if slices.Contains(rec.Appreciators, name) {
				mn.AppreciationsGiven++
			}
			for _, j := range rec.Judgments {
				if j.Voter == name && j.Correct {
					mn.CorrectGuesses++
				}
			}
		}

		n.Members = append(n.Members, mn)
	}

	for _, rec := range st.history {
		if n.MostAppreciated == nil || len(rec.Appreciators) > n.MostAppreciated.Appreciations {
			n.MostAppreciated = &ItemAward{
				Item:          rec.Item,
				Owner:         rec.Owner,
				Appreciations: len(rec.Appreciators),
			}
		}
	}

	return n
}
