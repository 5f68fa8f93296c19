// Package directory keeps the crafter directory: who owns which characters,
// what those characters can craft and how well.
//
// Reads work on an immutable snapshot and never wait for the network.
// Writes go through a FIFO queue that runs one mutation at a time; each
// mutation publishes a new snapshot and hands it to a separate persistence
// queue that writes the directory file.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crafterDirectory/crafter"
	"crafterDirectory/services/warcraft"
	"crafterDirectory/set"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Schedules struct {
	Servers time.Duration
	Roster  time.Duration
	Rebuild time.Duration
}

type Options struct {
	// Path of the directory file.
	Path string
	// HomeServer characters sort ahead of others with equal rank and skill.
	HomeServer         string
	RankTTL            time.Duration
	RebuildTimeout     time.Duration
	RebuildParallelism int
	Schedules          Schedules
	// Backup is optional.
	Backup Backup
	Clock  clockwork.Clock
}

const (
	DefaultRankTTL            = 24 * time.Hour
	DefaultRebuildTimeout     = 10 * time.Minute
	DefaultRebuildParallelism = 4
	DefaultServersInterval    = 7 * 24 * time.Hour
	DefaultRosterInterval     = 45 * time.Minute
	DefaultRebuildInterval    = 90 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.RankTTL <= 0 {
		o.RankTTL = DefaultRankTTL
	}
	if o.RebuildTimeout <= 0 {
		o.RebuildTimeout = DefaultRebuildTimeout
	}
	if o.RebuildParallelism <= 0 {
		o.RebuildParallelism = DefaultRebuildParallelism
	}
	if o.Schedules.Servers <= 0 {
		o.Schedules.Servers = DefaultServersInterval
	}
	if o.Schedules.Roster <= 0 {
		o.Schedules.Roster = DefaultRosterInterval
	}
	if o.Schedules.Rebuild <= 0 {
		o.Schedules.Rebuild = DefaultRebuildInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Store is the crafter directory. Build one with New and share the pointer.
type Store struct {
	gateway warcraft.Service
	opts    Options
	clock   clockwork.Clock

	current atomic.Pointer[indices]
	servers atomic.Pointer[set.Set[string]]
	roster  atomic.Pointer[set.Set[string]]

	ranks     *rankCache
	mutations *mutationQueue
	persister *persister

	scheduleMu    sync.Mutex
	stopSchedules context.CancelFunc
	scheduleGroup sync.WaitGroup
	closeOnce     sync.Once
}

func New(gateway warcraft.Service, opts Options) (*Store, error) {
	if gateway == nil {
		return nil, fmt.Errorf("directory store needs a gateway")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("directory store needs a file path")
	}
	opts = opts.withDefaults()
	s := &Store{
		gateway:   gateway,
		opts:      opts,
		clock:     opts.Clock,
		ranks:     newRankCache(opts.RankTTL, opts.Clock),
		mutations: newMutationQueue(),
		persister: newPersister(opts.Path, opts.Backup),
	}
	s.current.Store(newIndices())
	s.servers.Store(set.New[string]())
	s.roster.Store(set.New[string]())
	s.persister.start()
	return s, nil
}

// Load replaces the directory with the content of the directory file. Only
// owners, classes and summaries come from the file; skills and items stay
// empty until the next RebuildAll.
func (s *Store) Load(ctx context.Context) error {
	return s.mutations.submit(ctx, "load", func(ctx context.Context) error {
		data, err := s.persister.read(ctx)
		if err != nil {
			return err
		}
		entries, err := crafter.ReadDirectoryFile(bytes.NewReader(data))
		if err != nil {
			return err
		}
		ix := fromOwnerEntries(entries, func(c crafter.Character, reason string) {
			log.Warn().Str("character", c.String()).Msg("skipping directory file entry: " + reason)
		})
		s.current.Store(ix)
		log.Info().
			Int("owners", len(ix.owners)).
			Int("characters", len(ix.characters)).
			Msg("directory file loaded")
		return nil
	})
}

// commit publishes next and queues it for the directory file.
func (s *Store) commit(next *indices) {
	s.current.Store(next)
	s.persister.request(next)
}

func (s *Store) snapshot() *indices {
	return s.current.Load()
}

// NewCharacter builds a Character checked against the current server list.
func (s *Store) NewCharacter(name, server string) (crafter.Character, error) {
	return crafter.NewCharacter(name, server, s.servers.Load())
}

// Items lists every craftable item name in ascending order.
func (s *Store) Items() []string {
	return sortedKeys(s.snapshot().items)
}

func (s *Store) Item(name string) (crafter.ItemData, error) {
	item, ok := s.snapshot().items[name]
	if !ok {
		return crafter.ItemData{}, fmt.Errorf("%w: %s", crafter.ErrItemNotFound, name)
	}
	return item.Clone(), nil
}

func (s *Store) Character(c crafter.Character) (crafter.CharacterData, error) {
	data, ok := s.snapshot().characters[c]
	if !ok {
		return crafter.CharacterData{}, fmt.Errorf("%w: %s", crafter.ErrNotRegistered, c)
	}
	return data.Clone(), nil
}

// CharactersOf lists the characters owned by owner, sorted. Unknown owners
// own nothing.
func (s *Store) CharactersOf(owner string) []crafter.Character {
	return set.SortedFunc(s.snapshot().owners[owner], crafter.CompareCharacters)
}

// WithProfession lists the characters having p, sorted.
func (s *Store) WithProfession(p crafter.Profession) []crafter.Character {
	return set.SortedFunc(s.snapshot().professions[p], crafter.CompareCharacters)
}

func (s *Store) Owners() []string {
	return sortedKeys(s.snapshot().owners)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := slices.AppendSeq(make([]string, 0, len(m)), maps.Keys(m))
	slices.Sort(keys)
	return keys
}

func (s *Store) Servers() []string {
	return set.Sorted(s.servers.Load())
}

func (s *Store) Roster() []string {
	return set.Sorted(s.roster.Load())
}

// IsGuildMember matches name case-insensitively against the guild roster.
func (s *Store) IsGuildMember(name string) bool {
	_, ok := s.roster.Load().Find(func(member string) bool {
		return strings.EqualFold(member, name)
	})
	return ok
}

// Crafters returns everyone who can craft item, best first. Ranks come from
// the cache; with refreshRanks missing ranks are fetched, and a failed fetch
// leaves that rank unknown.
func (s *Store) Crafters(ctx context.Context, item string, refreshRanks bool) ([]crafter.Candidate, error) {
	ix := s.snapshot()
	data, ok := ix.items[item]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crafter.ErrItemNotFound, item)
	}

	candidates := make([]crafter.Candidate, 0, len(data.Crafters))
	for c, recipeID := range data.Crafters {
		candidate := crafter.Candidate{Character: c, RecipeID: recipeID}
		if profession, ok := ix.characters[c].Professions[data.Profession]; ok {
			candidate.Skill = profession.Skill(data.Tier)
		}
		candidates = append(candidates, candidate)
	}
	if refreshRanks {
		s.fetchRanks(ctx, candidates)
	}
	for i := range candidates {
		candidates[i].Rank, _ = s.ranks.get(candidates[i].RecipeID)
	}

	crafter.SortCandidates(candidates, s.opts.HomeServer)
	return candidates, nil
}

// fetchRanks fills the rank cache for every recipe of candidates that is
// missing from it. Failed fetches are logged and skipped.
func (s *Store) fetchRanks(ctx context.Context, candidates []crafter.Candidate) {
	missing := set.New[int]()
	for _, c := range candidates {
		if _, ok := s.ranks.get(c.RecipeID); !ok {
			missing.Add(c.RecipeID)
		}
	}
	var g errgroup.Group
	g.SetLimit(s.opts.RebuildParallelism)
	for _, recipeID := range missing.ToSlice() {
		g.Go(func() error {
			if _, err := s.GetRank(ctx, recipeID); err != nil {
				log.Warn().Err(err).Int("recipe", recipeID).Msg("recipe rank unavailable")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Status summarizes the store for health checks.
type Status struct {
	Owners           int
	Characters       int
	Items            int
	Servers          int
	RosterSize       int
	CachedRanks      int
	PendingMutations int
	RebuiltAt        time.Time
	PersistedAt      time.Time
	PersistError     error
}

func (s *Store) Status() Status {
	ix := s.snapshot()
	persistedAt, persistErr := s.persister.stats()
	return Status{
		Owners:           len(ix.owners),
		Characters:       len(ix.characters),
		Items:            len(ix.items),
		Servers:          s.servers.Load().Size(),
		RosterSize:       s.roster.Load().Size(),
		CachedRanks:      s.ranks.size(),
		PendingMutations: s.mutations.depth(),
		RebuiltAt:        ix.rebuiltAt,
		PersistedAt:      persistedAt,
		PersistError:     persistErr,
	}
}

// Flush waits until every committed mutation is in the directory file.
func (s *Store) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}

// Close stops the schedules, lets queued mutations finish and writes the
// last snapshot. The store rejects mutations afterwards.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.scheduleMu.Lock()
		if s.stopSchedules != nil {
			s.stopSchedules()
		}
		s.scheduleMu.Unlock()
		s.scheduleGroup.Wait()
		s.mutations.close()
		s.persister.close()
	})
}
