package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"crafterDirectory/crafter"
	"crafterDirectory/services/warcraft"
)

type recipe struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type skill struct {
	profession crafter.Profession
	tier       string
	points     int
	recipes    []recipe
}

// professionsJSON renders a professions payload the way the game API does.
func professionsJSON(skills ...skill) string {
	type tier struct {
		SkillPoints    int      `json:"skill_points"`
		MaxSkillPoints int      `json:"max_skill_points"`
		Tier           recipe   `json:"tier"`
		KnownRecipes   []recipe `json:"known_recipes,omitempty"`
	}
	type entry struct {
		Profession recipe `json:"profession"`
		Tiers      []tier `json:"tiers"`
	}
	var payload struct {
		Primaries []entry `json:"primaries"`
	}
	for _, s := range skills {
		payload.Primaries = append(payload.Primaries, entry{
			Profession: recipe{Name: string(s.profession), ID: 1},
			Tiers: []tier{{
				SkillPoints:    s.points,
				MaxSkillPoints: 100,
				Tier:           recipe{Name: s.tier, ID: 2},
				KnownRecipes:   s.recipes,
			}},
		})
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// fakeGateway serves canned payloads. Characters without a class are
// unknown to it.
type fakeGateway struct {
	mu          sync.Mutex
	servers     string
	roster      string
	classes     map[crafter.Character]string
	professions map[crafter.Character]string
	errs        map[crafter.Character]error
	ranks       map[int]string
	rankCalls   map[int]int
	// block, when set, holds FetchProfessions until it is closed or ctx ends.
	block chan struct{}
}

var _ warcraft.Service = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		servers:     `{"realms":[{"name":"Moon Guard"},{"name":"Wyrmrest Accord"},{"name":"Kel'Thuzad"}]}`,
		roster:      `{"members":[{"character":{"name":"Zug"}},{"character":{"name":"Ayla"}}]}`,
		classes:     map[crafter.Character]string{},
		professions: map[crafter.Character]string{},
		errs:        map[crafter.Character]error{},
		ranks:       map[int]string{},
		rankCalls:   map[int]int{},
	}
}

func (f *fakeGateway) setCharacter(c crafter.Character, class string, skills ...skill) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classes[c] = class
	f.professions[c] = professionsJSON(skills...)
}

// setPayload replaces the raw professions payload served for c.
func (f *fakeGateway) setPayload(c crafter.Character, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.professions[c] = text
}

func (f *fakeGateway) forget(c crafter.Character) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.classes, c)
	delete(f.professions, c)
}

func (f *fakeGateway) fail(c crafter.Character, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[c] = err
}

func (f *fakeGateway) calls(recipeID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rankCalls[recipeID]
}

func (f *fakeGateway) FetchServerListJSON(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers, nil
}

func (f *fakeGateway) FetchRosterJSON(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roster, nil
}

func (f *fakeGateway) CheckCharacterExists(ctx context.Context, c crafter.Character) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[c]; err != nil {
		return false, err
	}
	_, ok := f.classes[c]
	return ok, nil
}

func (f *fakeGateway) FetchCharacterClass(ctx context.Context, c crafter.Character) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[c]; err != nil {
		return "", err
	}
	class, ok := f.classes[c]
	if !ok {
		return "", fmt.Errorf("%w: %s", crafter.ErrCharacterNotFound, c)
	}
	return class, nil
}

func (f *fakeGateway) FetchProfessions(ctx context.Context, c crafter.Character) (string, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[c]; err != nil {
		return "", err
	}
	text, ok := f.professions[c]
	if !ok {
		return "", fmt.Errorf("%w: %s", crafter.ErrCharacterNotFound, c)
	}
	return text, nil
}

func (f *fakeGateway) FetchRecipeRank(ctx context.Context, recipeID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankCalls[recipeID]++
	text, ok := f.ranks[recipeID]
	if !ok {
		return "", warcraft.ErrServiceDown
	}
	return text, nil
}

// memoryBackup is a Backup kept in memory.
type memoryBackup struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func (b *memoryBackup) Upload(ctx context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[name] = append([]byte(nil), data...)
	b.uploads++
	return nil
}

func (b *memoryBackup) Restore(ctx context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (b *memoryBackup) object(name string) ([]byte, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[name], b.uploads
}
