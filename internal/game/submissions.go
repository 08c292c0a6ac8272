/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Submit appends item to name's own list and returns it as stored. An empty
// item id is replaced with a fresh uuid. Enrichment, when configured, runs
// afterwards in the background and never affects the result.
func (s *Store) Submit(id, name string, item Item) (Item, error) {
	if item.URL == "" {
		return Item{}, fmt.Errorf("empty item locator: %w", ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	err := s.update(id, func(sess *session) error {
		m, err := member(sess, name)
		if err != nil {
			return err
		}
		if m.item(item.ID) >= 0 {
			return fmt.Errorf("item %q from %q: %w", item.ID, name, ErrDuplicateItem)
		}

		m.Items = append(m.Items, item)

		s.opts.Logf("GAMES: Member %q submitted item %s to %s", name, item.ID, id)

		return nil
	})
	if err != nil {
		return Item{}, err
	}

	if s.opts.Enricher != nil && !item.Fetched {
		s.tasks.Add(1)
		go s.enrich(id, name, item)
	}

	return item, nil
}

// enrich is detached from the submitting call. Whatever it learns is only
// written if the same item is still in its owner's list.
func (s *Store) enrich(id, name string, item Item) {
	defer s.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.EnrichTimeout)
	defer cancel()

	md, ok := s.opts.Enricher.Lookup(ctx, item.URL)
	if !ok {
		s.opts.Logf("GAMES: No metadata found for item %s in %s", item.ID, id)
		return
	}

	applied := false
	_ = s.view(id, func(sess *session) {
		m, ok := sess.members[name]
		if !ok {
			return
		}
		i := m.item(item.ID)
		if i < 0 || m.Items[i].URL != item.URL {
			return
		}

		m.Items[i].Title = md.Title
		m.Items[i].Artist = md.Artist
		m.Items[i].Thumbnail = md.Thumbnail
		m.Items[i].Fetched = true
		applied = true
	})
	if !applied {
		return
	}

	s.opts.Logf("GAMES: Metadata applied to item %s in %s: %q", item.ID, id, md.Title)

	if s.opts.OnChange != nil {
		s.opts.OnChange(id)
	}
}

// Remove deletes one of name's items. Only allowed in the lobby, so a round
// in flight can never lose its item.
func (s *Store) Remove(id, name, itemID string) error {
	return s.update(id, func(sess *session) error {
		m, err := member(sess, name)
		if err != nil {
			return err
		}
		if sess.phase != PhaseLobby {
			return fmt.Errorf("remove item in %s: %w", sess.phase, ErrWrongPhase)
		}
		i := m.item(itemID)
		if i < 0 {
			return fmt.Errorf("item %q from %q: %w", itemID, name, ErrNotFound)
		}

		m.Items = slices.Delete(m.Items, i, i+1)

		s.opts.Logf("GAMES: Member %q removed item %s from %s", name, itemID, id)

		return nil
	})
}
