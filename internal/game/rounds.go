/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"slices"
)

type pick struct {
	item  Item
	owner string
}

// unplayed lists every item not yet selected, in join order then
// submission order, so a seeded source always yields the same pick.
func (st *state) unplayed() []pick {
	var picks []pick
	for _, name := range st.order {
		for _, it := range st.members[name].Items {
			if !st.played[it.ID] {
				picks = append(picks, pick{item: it, owner: name})
			}
		}
	}
	return picks
}

// beginRoundLocked selects the next item uniformly over all unplayed items,
// or finishes the game when none remain.
func (s *Store) beginRoundLocked(sess *session) {
	picks := sess.unplayed()
	if len(picks) == 0 {
		sess.round = nil
		sess.phase = PhaseGameFinished
		s.opts.Logf("GAMES: Session %s finished after %d rounds", sess.id, len(sess.history))
		return
	}

	p := picks[sess.rng.IntN(len(picks))]
	sess.played[p.item.ID] = true
	sess.round = &round{
		item:          p.item,
		owner:         p.owner,
		votes:         make(map[string]string),
		appreciations: make(map[string]bool),
	}
	sess.phase = PhaseRoundInProgress

	s.opts.Logf("GAMES: Round %d began in %s with item %s", len(sess.history)+1, sess.id, p.item.ID)

	// With nobody but the owner left to vote, the round is tallied as is.
	s.tallyLocked(sess)
}

// ChangeSetting merges patch into the session settings. Admin only, lobby only.
func (s *Store) ChangeSetting(id, name string, patch SettingsPatch) error {
	return s.update(id, func(sess *session) error {
		if _, err := admin(sess, name); err != nil {
			return err
		}
		if sess.phase != PhaseLobby {
			return fmt.Errorf("change settings in %s: %w", sess.phase, ErrWrongPhase)
		}
		merged := sess.settings.merge(patch)
		if !merged.validate() {
			return fmt.Errorf("items per member must be at least 1: %w", ErrInvalidInput)
		}

		sess.settings = merged

		s.opts.Logf("GAMES: Admin %q changed settings of %s to %+v", name, id, merged)

		return nil
	})
}

// StartGame leaves the lobby and begins the first round once every member
// has submitted enough items.
func (s *Store) StartGame(id, name string) error {
	return s.update(id, func(sess *session) error {
		if _, err := admin(sess, name); err != nil {
			return err
		}
		if sess.phase != PhaseLobby {
			return fmt.Errorf("start game in %s: %w", sess.phase, ErrWrongPhase)
		}
		for _, n := range sess.order {
			if !sess.ready(sess.members[n]) {
				return fmt.Errorf("member %q: %w", n, ErrNotReady)
			}
		}

		s.opts.Logf("GAMES: Admin %q started %s", name, id)
		s.beginRoundLocked(sess)

		return nil
	})
}

// MarkAppreciation toggles name's appreciation of the current item.
func (s *Store) MarkAppreciation(id, name string) error {
	return s.update(id, func(sess *session) error {
		if _, err := member(sess, name); err != nil {
			return err
		}
		if sess.phase != PhaseRoundInProgress {
			return fmt.Errorf("appreciate in %s: %w", sess.phase, ErrWrongPhase)
		}
		r := sess.round
		if r == nil {
			return ErrNoActiveRound
		}
		if r.owner == name {
			return ErrOwnerCannotMark
		}

		if r.appreciations[name] {
			delete(r.appreciations, name)
		} else {
			r.appreciations[name] = true
		}

		return nil
	})
}

// SubmitVote records, or replaces, name's guess of the current item's owner.
// The round moves to VotesTallied as soon as every eligible voter has one.
func (s *Store) SubmitVote(id, name, target string) error {
	if name == target {
		return ErrSelfVote
	}

	return s.update(id, func(sess *session) error {
		if _, err := member(sess, name); err != nil {
			return err
		}
		r := sess.round
		if r == nil {
			return ErrNoActiveRound
		}
		if sess.phase != PhaseRoundInProgress {
			return fmt.Errorf("vote in %s: %w", sess.phase, ErrWrongPhase)
		}
		if _, err := member(sess, target); err != nil {
			return err
		}
		if r.owner == name {
			return ErrOwnerCannotVote
		}

		r.votes[name] = target
		s.tallyLocked(sess)

		return nil
	})
}

// eligible lists the members allowed to vote in the current round.
func (st *state) eligible() []string {
	return slices.DeleteFunc(slices.Clone(st.order), func(n string) bool {
		return n == st.round.owner
	})
}

func (st *state) votesCast() int {
	n := 0
	for _, v := range st.eligible() {
		if _, ok := st.round.votes[v]; ok {
			n++
		}
	}
	return n
}

func (s *Store) tallyLocked(sess *session) {
	if sess.votesCast() < len(sess.eligible()) {
		return
	}

	sess.phase = PhaseVotesTallied
	s.opts.Logf("GAMES: All votes are in for %s", sess.id)
}

// RevealResults scores the tallied round and writes it to history. Correct
// guesses earn the voter a point; the owner earns one point per
// appreciation received.
func (s *Store) RevealResults(id, name string) error {
	return s.update(id, func(sess *session) error {
		if _, err := admin(sess, name); err != nil {
			return err
		}
		if sess.phase != PhaseVotesTallied {
			return fmt.Errorf("reveal in %s: %w", sess.phase, ErrWrongPhase)
		}
		r := sess.round
		if r == nil {
			return ErrNoActiveRound
		}

		res := score(r)
		for who, pts := range res.Points {
			sess.leaderboard[who] += pts
		}
		r.results = res

		sess.history = append(sess.history, PlayedItemRecord{
			Item:         r.item,
			Owner:        r.owner,
			Appreciators: slices.Clone(res.Appreciators),
			Judgments:    slices.Clone(res.Judgments),
		})
		sess.phase = PhaseRoundResults

		s.opts.Logf("GAMES: Revealed item %s in %s, owned by %q", r.item.ID, id, r.owner)

		return nil
	})
}

func score(r *round) *Results {
	voters := make([]string, 0, len(r.votes))
	for v := range r.votes {
		voters = append(voters, v)
	}
	slices.Sort(voters)

	appreciators := make([]string, 0, len(r.appreciations))
	for a := range r.appreciations {
		appreciators = append(appreciators, a)
	}
	slices.Sort(appreciators)

	res := &Results{
		Owner:             r.owner,
		Judgments:         make([]Judgment, 0, len(voters)),
		Points:            make(map[string]int),
		AppreciationCount: len(appreciators),
		Appreciators:      appreciators,
	}

	for _, v := range voters {
		correct := r.votes[v] == r.owner
		res.Judgments = append(res.Judgments, Judgment{Voter: v, Guess: r.votes[v], Correct: correct})
		if correct {
			res.Points[v]++
		}
	}
	if len(appreciators) > 0 {
		res.Points[r.owner] += len(appreciators)
	}

	return res
}

// NextRound begins another round after results, or finishes the game when
// every item has been played.
func (s *Store) NextRound(id, name string) error {
	return s.update(id, func(sess *session) error {
		if _, err := admin(sess, name); err != nil {
			return err
		}
		if sess.phase != PhaseRoundResults && sess.phase != PhaseAwaitingNextRound {
			return fmt.Errorf("next round in %s: %w", sess.phase, ErrWrongPhase)
		}

		s.beginRoundLocked(sess)

		return nil
	})
}
