package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"crafterDirectory/crafter"
	"crafterDirectory/services/warcraft"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RebuildAll refetches the professions of every registered character and
// rebuilds the item index from scratch. The directory is only replaced when
// every fetch succeeded; a character the game API no longer knows keeps its
// previous data.
func (s *Store) RebuildAll(ctx context.Context) error {
	return s.mutations.submit(ctx, "rebuild", s.rebuildAll)
}

type fetchedProfessions struct {
	professions map[crafter.Profession]crafter.ProfessionData
	items       map[string]crafter.ItemData
}

func (s *Store) rebuildAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RebuildTimeout)
	defer cancel()
	start := s.clock.Now()
	current := s.snapshot()

	var mu sync.Mutex
	results := make(map[crafter.Character]fetchedProfessions, len(current.characters))
	var missing []crafter.Character

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.RebuildParallelism)
	for c := range current.characters {
		g.Go(func() error {
			professions, items, err := s.fetchProfessions(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, crafter.ErrCharacterNotFound) {
				missing = append(missing, c)
				return nil
			}
			if err != nil {
				return err
			}
			results[c] = fetchedProfessions{professions: professions, items: items}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuild aborted, keeping the previous directory: %w", err)
	}

	next := current.clone()
	next.items = make(map[string]crafter.ItemData)
	for c, result := range results {
		next.putCharacter(c, current.characters[c].WithProfessions(result.professions))
		next.mergeItems(result.items)
	}
	for _, c := range missing {
		log.Warn().Str("character", c.String()).Msg("character not found during rebuild, keeping previous data")
		next.mergeItems(current.itemsCraftedBy(c))
	}
	next.rebuiltAt = s.clock.Now()
	s.commit(next)

	log.Info().
		Int("characters", len(next.characters)).
		Int("items", len(next.items)).
		Int("missing", len(missing)).
		Dur("took", s.clock.Since(start)).
		Msg("directory rebuilt")
	return nil
}

// AddCharacter registers c for owner after checking the game API knows it.
// Nothing changes when any step fails.
func (s *Store) AddCharacter(ctx context.Context, owner string, c crafter.Character) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	return s.mutations.submit(ctx, "add", func(ctx context.Context) error {
		current := s.snapshot()
		if existing, ok := current.ownerOf(c); ok {
			return fmt.Errorf("%w: %s belongs to %s", crafter.ErrAlreadyRegistered, c, existing)
		}
		exists, err := s.gateway.CheckCharacterExists(ctx, c)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", crafter.ErrCharacterNotFound, c)
		}
		class, err := s.gateway.FetchCharacterClass(ctx, c)
		if err != nil {
			return err
		}
		professions, items, err := s.fetchProfessions(ctx, c)
		if err != nil {
			return err
		}

		next := current.clone()
		next.putCharacter(c, crafter.CharacterData{Owner: owner, Class: class}.WithProfessions(professions))
		next.mergeItems(items)
		s.commit(next)

		log.Info().Str("owner", owner).Str("character", c.String()).Int("professions", len(professions)).Msg("character added")
		return nil
	})
}

// RefreshCharacter refetches class and professions of a registered
// character and replaces its entries everywhere. Summaries are kept.
func (s *Store) RefreshCharacter(ctx context.Context, c crafter.Character) error {
	return s.mutations.submit(ctx, "refresh", func(ctx context.Context) error {
		current := s.snapshot()
		data, ok := current.characters[c]
		if !ok {
			return fmt.Errorf("%w: %s", crafter.ErrNotRegistered, c)
		}
		class, err := s.gateway.FetchCharacterClass(ctx, c)
		if err != nil {
			return err
		}
		professions, items, err := s.fetchProfessions(ctx, c)
		if err != nil {
			return err
		}

		next := current.clone()
		next.dropCrafter(c)
		updated := data.WithProfessions(professions)
		updated.Class = class
		next.putCharacter(c, updated)
		next.mergeItems(items)
		s.commit(next)

		log.Info().Str("character", c.String()).Msg("character refreshed")
		return nil
	})
}

// RemoveCharacter drops c from every index. Removing an unknown character
// does nothing.
func (s *Store) RemoveCharacter(ctx context.Context, c crafter.Character) error {
	return s.mutations.submit(ctx, "remove", func(ctx context.Context) error {
		current := s.snapshot()
		if _, ok := current.characters[c]; !ok {
			log.Debug().Str("character", c.String()).Msg("remove of unregistered character ignored")
			return nil
		}
		next := current.clone()
		next.removeCharacter(c)
		s.commit(next)

		log.Info().Str("character", c.String()).Msg("character removed")
		return nil
	})
}

// SetSummary replaces the free text note of one profession of c.
func (s *Store) SetSummary(ctx context.Context, c crafter.Character, p crafter.Profession, text string) error {
	summary := crafter.SanitizeSummary(text)
	return s.mutations.submit(ctx, "summary", func(ctx context.Context) error {
		current := s.snapshot()
		data, ok := current.characters[c]
		if !ok {
			return fmt.Errorf("%w: %s", crafter.ErrNotRegistered, c)
		}
		profession, ok := data.Professions[p]
		if !ok {
			return fmt.Errorf("%w: %s has no %s", crafter.ErrProfessionNotFound, c, p)
		}
		if profession.Summary == summary {
			return nil
		}

		next := current.clone()
		updated := next.characters[c]
		profession = updated.Professions[p]
		profession.Summary = summary
		updated.Professions[p] = profession
		s.commit(next)
		return nil
	})
}

func (s *Store) fetchProfessions(ctx context.Context, c crafter.Character) (map[crafter.Profession]crafter.ProfessionData, map[string]crafter.ItemData, error) {
	text, err := s.gateway.FetchProfessions(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return warcraft.ParseProfessions(text, c)
}

func validateOwner(owner string) error {
	if owner == "" || owner != strings.TrimSpace(owner) || strings.ContainsAny(owner, "\t\r\n") {
		return fmt.Errorf("%w: %q", crafter.ErrInvalidOwner, owner)
	}
	return nil
}
