package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crafterDirectory/crafter"
	"crafterDirectory/services/warcraft"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	zug  = crafter.Character{Name: "Zug", Server: "Moon Guard"}
	ayla = crafter.Character{Name: "Ayla", Server: "Wyrmrest Accord"}
	grob = crafter.Character{Name: "Grob", Server: "Kel'Thuzad"}

	phial = recipe{Name: "Phial of Tepid Versatility", ID: 370472}
	stew  = recipe{Name: "Yusa's Hearty Stew", ID: 382424}
	flask = recipe{Name: "Flask of Power", ID: 370001}
)

func newTestStore(t *testing.T, gateway *fakeGateway, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "directory.txt")
	}
	s, err := New(gateway, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.RefreshServers(context.Background()))
	return s
}

// requireConsistent checks that every index agrees with the others.
func requireConsistent(t *testing.T, ix *indices) {
	t.Helper()
	for owner, owned := range ix.owners {
		for _, c := range owned.ToSlice() {
			data, ok := ix.characters[c]
			require.True(t, ok, "owned character %s has no data", c)
			require.Equal(t, owner, data.Owner)
		}
	}
	for c, data := range ix.characters {
		require.True(t, ix.owners[data.Owner].Contains(c), "%s missing from owner index", c)
		for p := range data.Professions {
			require.True(t, ix.professions[p].Contains(c), "%s missing from %s index", c, p)
		}
	}
	for p, holders := range ix.professions {
		for _, c := range holders.ToSlice() {
			data, ok := ix.characters[c]
			require.True(t, ok, "%s in %s index has no data", c, p)
			_, ok = data.Professions[p]
			require.True(t, ok, "%s in %s index lacks the profession", c, p)
		}
	}
	for name, item := range ix.items {
		require.NotEmpty(t, item.Crafters, "item %s has no crafters", name)
		for c := range item.Crafters {
			_, ok := ix.characters[c]
			require.True(t, ok, "item %s references unregistered %s", name, c)
		}
	}
}

func TestStore_AddCharacter(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage",
		skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 80, recipes: []recipe{phial}},
		skill{profession: crafter.Cooking, tier: "Dragon Isles Cooking", points: 20, recipes: []recipe{stew}},
	)
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()

	c, err := s.NewCharacter("zug", "moon guard")
	require.NoError(t, err)
	require.Equal(t, zug, c)
	require.NoError(t, s.AddCharacter(ctx, "148239450187", c))

	data, err := s.Character(zug)
	require.NoError(t, err)
	assert.Equal(t, "148239450187", data.Owner)
	assert.Equal(t, "Mage", data.Class)
	assert.Equal(t, 80, data.Professions[crafter.Alchemy].Skill("Dragon Isles Alchemy"))

	assert.Equal(t, []string{phial.Name, stew.Name}, s.Items())
	item, err := s.Item(phial.Name)
	require.NoError(t, err)
	assert.Equal(t, map[crafter.Character]int{zug: phial.ID}, item.Crafters)
	assert.Equal(t, []crafter.Character{zug}, s.CharactersOf("148239450187"))
	assert.Equal(t, []crafter.Character{zug}, s.WithProfession(crafter.Cooking))
	assert.Empty(t, s.WithProfession(crafter.Mining))
	requireConsistent(t, s.snapshot())

	err = s.AddCharacter(ctx, "99", zug)
	require.ErrorIs(t, err, crafter.ErrAlreadyRegistered)
}

func TestStore_AddCharacter_Merges(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 80, recipes: []recipe{phial}})
	gateway.setCharacter(ayla, "Priest", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 95, recipes: []recipe{phial, flask}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()

	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.AddCharacter(ctx, "2", ayla))

	item, err := s.Item(phial.Name)
	require.NoError(t, err)
	assert.Equal(t, map[crafter.Character]int{zug: phial.ID, ayla: phial.ID}, item.Crafters)
	assert.Equal(t, []crafter.Character{ayla, zug}, s.WithProfession(crafter.Alchemy))
	assert.Equal(t, []string{"1", "2"}, s.Owners())
	requireConsistent(t, s.snapshot())
}

func TestStore_AddCharacter_NotFoundLeavesNoTrace(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 80, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.Flush(ctx))

	before := s.snapshot()
	fileBefore, err := os.ReadFile(s.opts.Path)
	require.NoError(t, err)

	err = s.AddCharacter(ctx, "1", grob)
	require.ErrorIs(t, err, crafter.ErrCharacterNotFound)

	assert.Same(t, before, s.snapshot())
	require.NoError(t, s.Flush(ctx))
	fileAfter, err := os.ReadFile(s.opts.Path)
	require.NoError(t, err)
	assert.Equal(t, fileBefore, fileAfter)
}

func TestStore_AddCharacter_TransientFailure(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage")
	gateway.fail(zug, warcraft.ErrServiceDown)
	s := newTestStore(t, gateway, Options{})
	before := s.snapshot()

	err := s.AddCharacter(context.Background(), "1", zug)
	require.ErrorIs(t, err, warcraft.ErrServiceDown)
	assert.Same(t, before, s.snapshot())
}

func TestStore_AddCharacter_InvalidOwner(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), Options{})
	for _, owner := range []string{"", " 1", "1\n2", "a\tb"} {
		err := s.AddCharacter(context.Background(), owner, zug)
		require.ErrorIs(t, err, crafter.ErrInvalidOwner, "owner %q", owner)
	}
}

func TestStore_RemoveCharacter(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 80, recipes: []recipe{phial, flask}})
	gateway.setCharacter(ayla, "Priest", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 95, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.AddCharacter(ctx, "1", ayla))

	require.NoError(t, s.RemoveCharacter(ctx, zug))
	require.NoError(t, s.RemoveCharacter(ctx, zug))

	_, err := s.Character(zug)
	require.ErrorIs(t, err, crafter.ErrNotRegistered)
	for _, name := range s.Items() {
		item, err := s.Item(name)
		require.NoError(t, err)
		assert.NotContains(t, item.Crafters, zug)
	}
	_, err = s.Item(flask.Name)
	require.ErrorIs(t, err, crafter.ErrItemNotFound)
	assert.Equal(t, []crafter.Character{ayla}, s.CharactersOf("1"))
	requireConsistent(t, s.snapshot())

	require.NoError(t, s.RemoveCharacter(ctx, ayla))
	assert.Empty(t, s.Owners())
	assert.Empty(t, s.Items())
}

func TestStore_SummarySurvivesRefresh(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))

	require.NoError(t, s.SetSummary(ctx, zug, crafter.Alchemy, "note"))

	gateway.setCharacter(zug, "Mage",
		skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 90, recipes: []recipe{flask}},
		skill{profession: crafter.Cooking, tier: "Dragon Isles Cooking", points: 5},
	)
	require.NoError(t, s.RefreshCharacter(ctx, zug))

	data, err := s.Character(zug)
	require.NoError(t, err)
	assert.Equal(t, "note", data.Professions[crafter.Alchemy].Summary)
	assert.Equal(t, 90, data.Professions[crafter.Alchemy].Skill("Dragon Isles Alchemy"))
	assert.Equal(t, []string{flask.Name}, s.Items())
	requireConsistent(t, s.snapshot())
}

func TestStore_RefreshCharacter_MalformedPayloadKeepsData(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.SetSummary(ctx, zug, crafter.Alchemy, "note"))
	before := s.snapshot()

	gateway.setPayload(zug, "null")
	require.ErrorIs(t, s.RefreshCharacter(ctx, zug), crafter.ErrFormat)

	assert.Same(t, before, s.snapshot())
	data, err := s.Character(zug)
	require.NoError(t, err)
	assert.Equal(t, "note", data.Professions[crafter.Alchemy].Summary)
	assert.Equal(t, []string{phial.Name}, s.Items())
}

func TestStore_SetSummary_Errors(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))

	require.ErrorIs(t, s.SetSummary(ctx, ayla, crafter.Alchemy, "x"), crafter.ErrNotRegistered)
	require.ErrorIs(t, s.SetSummary(ctx, zug, crafter.Mining, "x"), crafter.ErrProfessionNotFound)

	require.NoError(t, s.SetSummary(ctx, zug, crafter.Alchemy, "  bring\nmats  "))
	data, err := s.Character(zug)
	require.NoError(t, err)
	assert.Equal(t, "bring mats", data.Professions[crafter.Alchemy].Summary)
}

func TestStore_RefreshCharacter_NotRegistered(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), Options{})
	err := s.RefreshCharacter(context.Background(), zug)
	require.ErrorIs(t, err, crafter.ErrNotRegistered)
}

func TestStore_RebuildAll(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	gateway.setCharacter(ayla, "Priest", skill{profession: crafter.Cooking, tier: "Dragon Isles Cooking", points: 10, recipes: []recipe{stew}})
	clock := clockwork.NewFakeClock()
	s := newTestStore(t, gateway, Options{Clock: clock})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.AddCharacter(ctx, "2", ayla))
	require.NoError(t, s.SetSummary(ctx, zug, crafter.Alchemy, "ask first"))

	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 70, recipes: []recipe{flask}})
	gateway.forget(ayla)
	require.NoError(t, s.RebuildAll(ctx))

	data, err := s.Character(zug)
	require.NoError(t, err)
	assert.Equal(t, "ask first", data.Professions[crafter.Alchemy].Summary)
	assert.Equal(t, 70, data.Professions[crafter.Alchemy].Skill("Dragon Isles Alchemy"))
	// ayla is unknown to the API now and keeps its previous items
	assert.Equal(t, []string{flask.Name, stew.Name}, s.Items())
	assert.Equal(t, clock.Now(), s.Status().RebuiltAt)
	requireConsistent(t, s.snapshot())
}

func TestStore_RebuildAll_FailureKeepsPrevious(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	gateway.setCharacter(ayla, "Priest", skill{profession: crafter.Cooking, tier: "Dragon Isles Cooking", points: 10, recipes: []recipe{stew}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	require.NoError(t, s.AddCharacter(ctx, "2", ayla))
	before := s.snapshot()

	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 70, recipes: []recipe{flask}})
	gateway.fail(ayla, errors.New("connection reset"))
	require.Error(t, s.RebuildAll(ctx))
	assert.Same(t, before, s.snapshot())
}

func TestStore_RebuildAll_Timeout(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{RebuildTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))
	before := s.snapshot()

	block := make(chan struct{})
	defer close(block)
	gateway.mu.Lock()
	gateway.block = block
	gateway.mu.Unlock()

	err := s.RebuildAll(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Same(t, before, s.snapshot())
}

func TestStore_MutationsWaitBehindRebuild(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	gateway.setCharacter(ayla, "Priest", skill{profession: crafter.Cooking, tier: "Dragon Isles Cooking", points: 10, recipes: []recipe{stew}})
	s := newTestStore(t, gateway, Options{})
	ctx := context.Background()
	require.NoError(t, s.AddCharacter(ctx, "1", zug))

	block := make(chan struct{})
	gateway.mu.Lock()
	gateway.block = block
	gateway.mu.Unlock()

	rebuilt := make(chan error, 1)
	go func() { rebuilt <- s.RebuildAll(ctx) }()
	require.Eventually(t, func() bool { return s.Status().PendingMutations == 1 }, time.Second, time.Millisecond)

	added := make(chan error, 1)
	go func() { added <- s.AddCharacter(ctx, "2", ayla) }()
	require.Eventually(t, func() bool { return s.Status().PendingMutations == 2 }, time.Second, time.Millisecond)

	// reads keep answering while the queue is busy
	assert.Equal(t, []crafter.Character{zug}, s.CharactersOf("1"))
	_, err := s.Character(ayla)
	require.ErrorIs(t, err, crafter.ErrNotRegistered)

	gateway.mu.Lock()
	gateway.block = nil
	gateway.mu.Unlock()
	close(block)
	require.NoError(t, <-rebuilt)
	require.NoError(t, <-added)

	assert.Equal(t, []string{phial.Name, stew.Name}, s.Items())
	requireConsistent(t, s.snapshot())
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	gateway := newFakeGateway()
	gateway.setCharacter(zug, "Mage", skill{profession: crafter.Alchemy, tier: "Dragon Isles Alchemy", points: 10, recipes: []recipe{phial}})
	s := newTestStore(t, gateway, Options{})
	require.NoError(t, s.AddCharacter(context.Background(), "1", zug))

	item, err := s.Item(phial.Name)
	require.NoError(t, err)
	item.Crafters[ayla] = 1
	data, err := s.Character(zug)
	require.NoError(t, err)
	delete(data.Professions, crafter.Alchemy)

	item, err = s.Item(phial.Name)
	require.NoError(t, err)
	assert.Len(t, item.Crafters, 1)
	data, err = s.Character(zug)
	require.NoError(t, err)
	assert.Contains(t, data.Professions, crafter.Alchemy)
}

func TestStore_NewCharacter_UnknownServer(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), Options{})
	_, err := s.NewCharacter("Zug", "Atlantis")
	require.ErrorIs(t, err, crafter.ErrServerNotFound)
}

func TestStore_Roster(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), Options{})
	require.NoError(t, s.RefreshRoster(context.Background()))
	assert.Equal(t, []string{"Ayla", "Zug"}, s.Roster())
	assert.True(t, s.IsGuildMember("zug"))
	assert.False(t, s.IsGuildMember("Grob"))
	assert.Equal(t, []string{"Kel'Thuzad", "Moon Guard", "Wyrmrest Accord"}, s.Servers())
}

func TestStore_RefreshServers_KeepsPreviousOnError(t *testing.T) {
	gateway := newFakeGateway()
	s := newTestStore(t, gateway, Options{})
	gateway.mu.Lock()
	gateway.servers = `{"realms": "broken"}`
	gateway.mu.Unlock()

	require.ErrorIs(t, s.RefreshServers(context.Background()), crafter.ErrFormat)
	assert.Len(t, s.Servers(), 3)
}

func TestStore_ClosedRejectsMutations(t *testing.T) {
	s, err := New(newFakeGateway(), Options{Path: filepath.Join(t.TempDir(), "directory.txt")})
	require.NoError(t, err)
	s.Close()
	s.Close()
	require.ErrorIs(t, s.RemoveCharacter(context.Background(), zug), ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Path: "x"})
	require.Error(t, err)
	_, err = New(newFakeGateway(), Options{})
	require.Error(t, err)
}
