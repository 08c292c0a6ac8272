/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"slices"
)

// Join admits name to the session. A username that is already a member is
// treated as a reconnect. Late joiners enter in any phase with no items; the
// first one into an orphaned session takes admin rights.
func (s *Store) Join(id, name string) error {
	if name == "" {
		return fmt.Errorf("empty username: %w", ErrInvalidInput)
	}

	return s.update(id, func(sess *session) error {
		if m, ok := sess.members[name]; ok {
			m.Connected = true
			s.opts.Logf("GAMES: Member %q reconnected to %s", name, id)
			return nil
		}

		sess.members[name] = &Member{Username: name, Connected: true, Admin: len(sess.members) == 0}
		sess.order = append(sess.order, name)

		s.opts.Logf("GAMES: Member %q joined %s", name, id)

		return nil
	})
}

// Leave removes name and all of their items. If they held admin rights a
// remaining member is promoted uniformly at random. A session left with no
// members stays in the store until reaped.
func (s *Store) Leave(id, name string) error {
	return s.update(id, func(sess *session) error {
		m, err := member(sess, name)
		if err != nil {
			return err
		}

		delete(sess.members, name)
		sess.order = slices.DeleteFunc(sess.order, func(n string) bool { return n == name })

		s.opts.Logf("GAMES: Member %q left %s", name, id)

		if m.Admin && len(sess.order) > 0 {
			heir := sess.members[sess.order[sess.rng.IntN(len(sess.order))]]
			heir.Admin = true
			s.opts.Logf("GAMES: Member %q promoted to admin of %s", heir.Username, id)
		}

		if r := sess.round; r != nil && sess.phase == PhaseRoundInProgress {
			delete(r.votes, name)
			delete(r.appreciations, name)
			s.tallyLocked(sess)
		}

		return nil
	})
}

// Disconnect marks name as no longer connected without removing them.
func (s *Store) Disconnect(id, name string) error {
	return s.setConnected(id, name, false)
}

// Reconnect marks an existing member as connected again.
func (s *Store) Reconnect(id, name string) error {
	return s.setConnected(id, name, true)
}

func (s *Store) setConnected(id, name string, connected bool) error {
	return s.update(id, func(sess *session) error {
		m, err := member(sess, name)
		if err != nil {
			return err
		}
		m.Connected = connected
		return nil
	})
}
