/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"slices"
)

// Snapshot is one viewer's redacted copy of a session. It shares no memory
// with the live session and is safe to marshal after the lock is released.
type Snapshot struct {
	ID          string             `json:"id"`
	Members     []MemberView       `json:"players"`
	Settings    Settings           `json:"gameSettings"`
	Phase       Phase              `json:"gamePhase"`
	Round       *RoundView         `json:"currentRoundData,omitempty"`
	PlayedIDs   []string           `json:"playedItemIds"`
	History     []PlayedItemRecord `json:"playedItems"`
	Leaderboard []Standing         `json:"leaderboard"`
}

type MemberView struct {
	Username  string `json:"username"`
	Admin     bool   `json:"isAdmin"`
	Connected bool   `json:"isConnected"`
	Ready     bool   `json:"ready"`
	ItemCount int    `json:"itemCount"`
	Items     []Item `json:"items,omitempty"` // only for the viewer's own entry
}

type RoundView struct {
	Item          Item     `json:"item"`
	Owner         string   `json:"ownerUsername,omitempty"`
	Appreciations []string `json:"appreciations"`
	VotesCast     int      `json:"votesCast"`
	TotalVoters   int      `json:"totalVoters"`
	Vote          string   `json:"myVote,omitempty"`
	Results       *Results `json:"results,omitempty"`
}

type Standing struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// Snapshot projects the session as viewer is allowed to see it. viewer may
// be empty or unknown, in which case nothing private to any member is shown.
func (s *Store) Snapshot(id, viewer string) (*Snapshot, error) {
	var snap Snapshot
	err := s.view(id, func(sess *session) {
		snap = project(&sess.state, viewer)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func project(st *state, viewer string) Snapshot {
	snap := Snapshot{
		ID:          st.id,
		Members:     make([]MemberView, 0, len(st.order)),
		Settings:    st.settings,
		Phase:       st.phase,
		PlayedIDs:   make([]string, 0, len(st.played)),
		History:     make([]PlayedItemRecord, 0, len(st.history)),
		Leaderboard: st.standings(),
	}

	for _, name := range st.order {
		m := st.members[name]
		mv := MemberView{
			Username:  m.Username,
			Admin:     m.Admin,
			Connected: m.Connected,
			Ready:     st.ready(m),
			ItemCount: len(m.Items),
		}
		if name == viewer {
			mv.Items = slices.Clone(m.Items)
		}
		snap.Members = append(snap.Members, mv)
	}

	for id := range st.played {
		snap.PlayedIDs = append(snap.PlayedIDs, id)
	}
	slices.Sort(snap.PlayedIDs)

	for _, rec := range st.history {
		rec.Appreciators = slices.Clone(rec.Appreciators)
		rec.Judgments = slices.Clone(rec.Judgments)
		snap.History = append(snap.History, rec)
	}

	if st.round != nil {
		snap.Round = projectRound(st, viewer)
	}

	return snap
}

func projectRound(st *state, viewer string) *RoundView {
	r := st.round

	rv := &RoundView{
		Item:          r.item,
		Appreciations: make([]string, 0, len(r.appreciations)),
		VotesCast:     st.votesCast(),
		TotalVoters:   len(st.eligible()),
		Vote:          r.votes[viewer],
	}

	for name := range r.appreciations {
		rv.Appreciations = append(rv.Appreciations, name)
	}
	slices.Sort(rv.Appreciations)

	if viewer == r.owner || st.phase.revealed() {
		rv.Owner = r.owner
	}
	if st.phase.revealed() {
		rv.Results = r.results.clone()
	}

	return rv
}

// standings covers every current member in join order; members who never
// scored get zero.
func (st *state) standings() []Standing {
	out := make([]Standing, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, Standing{Username: name, Points: st.leaderboard[name]})
	}
	return out
}
