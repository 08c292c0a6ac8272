/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game holds the authoritative state of every guessing session:
// who is in it, what they submitted, which item is being played, the votes
// and appreciation marks on it, and the history and scores that accumulate
// as rounds are revealed.
//
// All mutations of one session are serialized by that session's lock, so
// many sessions can be driven in parallel while each one behaves as if it
// had a single writer. Rejected operations never leave partial writes.
package game

import (
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Phase is the position of a session in the round state machine.
type Phase string

const (
	PhaseLobby             Phase = "Lobby"
	PhaseRoundInProgress   Phase = "RoundInProgress"
	PhaseVotesTallied      Phase = "VotesTallied"
	PhaseRoundResults      Phase = "RoundResults"
	PhaseAwaitingNextRound Phase = "AwaitingNextRound"
	PhaseGameFinished      Phase = "GameFinished"
)

func (p Phase) rank() int {
	switch p {
	case PhaseLobby:
		return 0
	case PhaseRoundInProgress:
		return 1
	case PhaseVotesTallied:
		return 2
	case PhaseRoundResults:
		return 3
	case PhaseAwaitingNextRound:
		return 4
	case PhaseGameFinished:
		return 5
	default:
		return -1
	}
}

// revealed reports whether round owners and results are public.
func (p Phase) revealed() bool {
	return p.rank() >= PhaseRoundResults.rank()
}

// Settings are the admin-controlled parameters of a session.
type Settings struct {
	ItemsPerMember int `json:"itemsPerMember"`
}

// SettingsPatch is a partial update to Settings; nil fields are left alone.
type SettingsPatch struct {
	ItemsPerMember *int `json:"itemsPerMember,omitempty"`
}

func (s Settings) validate() bool {
	return s.ItemsPerMember >= 1
}

func (s Settings) merge(p SettingsPatch) Settings {
	if p.ItemsPerMember != nil {
		s.ItemsPerMember = *p.ItemsPerMember
	}
	return s
}

// Item is one submission. IDs are only unique within the owner's own list.
type Item struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Fetched   bool   `json:"metadataFetched"`
}

// Member is a participant in a session, keyed by username.
type Member struct {
	Username  string
	Admin     bool
	Connected bool
	Items     []Item
}

func (m *Member) item(id string) int {
	return slices.IndexFunc(m.Items, func(it Item) bool { return it.ID == id })
}

// Judgment is the outcome of one vote.
type Judgment struct {
	Voter   string `json:"voter"`
	Guess   string `json:"guess"`
	Correct bool   `json:"correct"`
}

// Results are computed once per round, at reveal.
type Results struct {
	Owner             string         `json:"correctOwner"`
	Judgments         []Judgment     `json:"votes"`
	Points            map[string]int `json:"pointsAwarded"`
	AppreciationCount int            `json:"appreciationCount"`
	Appreciators      []string       `json:"appreciators"`
}

func (r *Results) clone() *Results {
	if r == nil {
		return nil
	}
	c := *r
	c.Judgments = slices.Clone(r.Judgments)
	c.Points = maps.Clone(r.Points)
	c.Appreciators = slices.Clone(r.Appreciators)
	return &c
}

// PlayedItemRecord is the permanent history entry of a revealed round.
type PlayedItemRecord struct {
	Item         Item       `json:"item"`
	Owner        string     `json:"owner"`
	Appreciators []string   `json:"appreciators"`
	Judgments    []Judgment `json:"votes"`
}

// round is the live, unredacted state of the item being played.
type round struct {
	item          Item
	owner         string
	votes         map[string]string
	appreciations map[string]bool
	results       *Results
}

// state is everything about a session that operations may change. Keeping
// it apart from the lock and the random source lets tests compare it whole.
type state struct {
	id          string
	members     map[string]*Member
	order       []string
	settings    Settings
	phase       Phase
	round       *round
	played      map[string]bool
	history     []PlayedItemRecord
	leaderboard map[string]int
}

func (st *state) clone() state {
	c := *st

	c.members = make(map[string]*Member, len(st.members))
	for name, m := range st.members {
		mc := *m
		mc.Items = slices.Clone(m.Items)
		c.members[name] = &mc
	}
	c.order = slices.Clone(st.order)
	c.played = maps.Clone(st.played)
	c.leaderboard = maps.Clone(st.leaderboard)

	c.history = make([]PlayedItemRecord, len(st.history))
	for i, rec := range st.history {
		rec.Appreciators = slices.Clone(rec.Appreciators)
		rec.Judgments = slices.Clone(rec.Judgments)
		c.history[i] = rec
	}

	if st.round != nil {
		rc := *st.round
		rc.votes = maps.Clone(st.round.votes)
		rc.appreciations = maps.Clone(st.round.appreciations)
		rc.results = st.round.results.clone()
		c.round = &rc
	}

	return c
}

func (st *state) ready(m *Member) bool {
	return len(m.Items) >= st.settings.ItemsPerMember
}

type session struct {
	mu         sync.Mutex
	rng        *rand.Rand
	lastActive time.Time

	state
}

func newSession(id, admin string, settings Settings, rng *rand.Rand, now time.Time) *session {
	return &session{
		rng:        rng,
		lastActive: now,
		state: state{
			id: id,
			members: map[string]*Member{
				admin: {Username: admin, Admin: true, Connected: true},
			},
			order:       []string{admin},
			settings:    settings,
			phase:       PhaseLobby,
			played:      make(map[string]bool),
			leaderboard: make(map[string]int),
		},
	}
}
