package directory

import (
	"maps"
	"slices"
	"strings"
	"time"

	"crafterDirectory/crafter"
	"crafterDirectory/set"
)

// indices is one committed snapshot of the directory. A published snapshot
// is never modified; mutations work on a clone and publish it whole.
type indices struct {
	owners      map[string]*set.Set[crafter.Character]
	characters  map[crafter.Character]crafter.CharacterData
	professions map[crafter.Profession]*set.Set[crafter.Character]
	items       map[string]crafter.ItemData
	rebuiltAt   time.Time
}

func newIndices() *indices {
	return &indices{
		owners:      make(map[string]*set.Set[crafter.Character]),
		characters:  make(map[crafter.Character]crafter.CharacterData),
		professions: make(map[crafter.Profession]*set.Set[crafter.Character]),
		items:       make(map[string]crafter.ItemData),
	}
}

func (ix *indices) clone() *indices {
	next := &indices{
		owners:      make(map[string]*set.Set[crafter.Character], len(ix.owners)),
		characters:  make(map[crafter.Character]crafter.CharacterData, len(ix.characters)),
		professions: make(map[crafter.Profession]*set.Set[crafter.Character], len(ix.professions)),
		items:       make(map[string]crafter.ItemData, len(ix.items)),
		rebuiltAt:   ix.rebuiltAt,
	}
	for owner, characters := range ix.owners {
		next.owners[owner] = characters.Clone()
	}
	for c, data := range ix.characters {
		next.characters[c] = data.Clone()
	}
	for p, characters := range ix.professions {
		next.professions[p] = characters.Clone()
	}
	for name, item := range ix.items {
		next.items[name] = item.Clone()
	}
	return next
}

// putCharacter registers c under data.Owner and indexes its professions,
// replacing whatever was stored for c before. Items are left alone.
func (ix *indices) putCharacter(c crafter.Character, data crafter.CharacterData) {
	if previous, ok := ix.characters[c]; ok {
		ix.unindexProfessions(c, previous)
		if previous.Owner != data.Owner {
			ix.removeOwned(previous.Owner, c)
		}
	}
	ix.characters[c] = data
	owned, ok := ix.owners[data.Owner]
	if !ok {
		owned = set.New[crafter.Character]()
		ix.owners[data.Owner] = owned
	}
	owned.Add(c)
	for p := range data.Professions {
		holders, ok := ix.professions[p]
		if !ok {
			holders = set.New[crafter.Character]()
			ix.professions[p] = holders
		}
		holders.Add(c)
	}
}

// removeCharacter drops c from every index and reports whether it was present.
func (ix *indices) removeCharacter(c crafter.Character) bool {
	data, ok := ix.characters[c]
	if !ok {
		return false
	}
	delete(ix.characters, c)
	ix.removeOwned(data.Owner, c)
	ix.unindexProfessions(c, data)
	ix.dropCrafter(c)
	return true
}

func (ix *indices) removeOwned(owner string, c crafter.Character) {
	owned, ok := ix.owners[owner]
	if !ok {
		return
	}
	owned.Remove(c)
	if owned.Size() == 0 {
		delete(ix.owners, owner)
	}
}

func (ix *indices) unindexProfessions(c crafter.Character, data crafter.CharacterData) {
	for p := range data.Professions {
		holders, ok := ix.professions[p]
		if !ok {
			continue
		}
		holders.Remove(c)
		if holders.Size() == 0 {
			delete(ix.professions, p)
		}
	}
}

// dropCrafter removes c from every item and deletes items nobody crafts anymore.
func (ix *indices) dropCrafter(c crafter.Character) {
	for name, item := range ix.items {
		if _, ok := item.Crafters[c]; !ok {
			continue
		}
		delete(item.Crafters, c)
		if len(item.Crafters) == 0 {
			delete(ix.items, name)
		}
	}
}

// mergeItems adds the crafters of fresh to the item index. Profession and
// tier of an existing item are kept.
func (ix *indices) mergeItems(fresh map[string]crafter.ItemData) {
	for name, item := range fresh {
		existing, ok := ix.items[name]
		if !ok {
			ix.items[name] = item.Clone()
			continue
		}
		maps.Copy(existing.Crafters, item.Crafters)
	}
}

// itemsCraftedBy returns the slice of the item index that names c, each
// item carrying c as its only crafter.
func (ix *indices) itemsCraftedBy(c crafter.Character) map[string]crafter.ItemData {
	result := make(map[string]crafter.ItemData)
	for name, item := range ix.items {
		recipe, ok := item.Crafters[c]
		if !ok {
			continue
		}
		item.Crafters = map[crafter.Character]int{c: recipe}
		result[name] = item
	}
	return result
}

// ownerEntries renders the snapshot in directory file order: owners, their
// characters and the professions of each sorted by name.
func (ix *indices) ownerEntries() []crafter.OwnerEntry {
	owners := slices.Sorted(maps.Keys(ix.owners))
	entries := make([]crafter.OwnerEntry, 0, len(owners))
	for _, owner := range owners {
		entry := crafter.OwnerEntry{Owner: owner}
		for _, c := range set.SortedFunc(ix.owners[owner], crafter.CompareCharacters) {
			data := ix.characters[c]
			professions := slices.SortedFunc(maps.Keys(data.Professions), func(a, b crafter.Profession) int {
				return strings.Compare(string(a), string(b))
			})
			summaries := make([]crafter.SummaryEntry, 0, len(professions))
			for _, p := range professions {
				summaries = append(summaries, crafter.SummaryEntry{Profession: p, Summary: data.Professions[p].Summary})
			}
			entry.Characters = append(entry.Characters, crafter.CharacterEntry{
				Class:       data.Class,
				Character:   c,
				Professions: summaries,
			})
		}
		entries = append(entries, entry)
	}
	return entries
}

// fromOwnerEntries builds a snapshot from a parsed directory file. Skills and
// items are unknown until the first rebuild.
func fromOwnerEntries(entries []crafter.OwnerEntry, warn func(c crafter.Character, reason string)) *indices {
	ix := newIndices()
	for _, owner := range entries {
		for _, entry := range owner.Characters {
			if _, ok := ix.characters[entry.Character]; ok {
				warn(entry.Character, "listed more than once")
				continue
			}
			data := crafter.CharacterData{
				Owner:       owner.Owner,
				Class:       entry.Class,
				Professions: make(map[crafter.Profession]crafter.ProfessionData, len(entry.Professions)),
			}
			for _, p := range entry.Professions {
				data.Professions[p.Profession] = crafter.ProfessionData{
					Profession: p.Profession,
					Summary:    p.Summary,
					Tiers:      map[string]crafter.TierSkill{},
				}
			}
			ix.putCharacter(entry.Character, data)
		}
	}
	return ix
}

// ownerOf looks c up in the owner index.
func (ix *indices) ownerOf(c crafter.Character) (string, bool) {
	for owner, owned := range ix.owners {
		if owned.Contains(c) {
			return owner, true
		}
	}
	return "", false
}
