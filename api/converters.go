package api

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"crafterDirectory/crafter"
	"crafterDirectory/services/directory"
	"crafterDirectory/utils"

	"github.com/dustin/go-humanize"
)

func TransformCharacter(c crafter.Character) Character {
	return Character{Name: c.Name, Server: c.Server}
}

func TransformCharacters(characters []crafter.Character) []Character {
	result := make([]Character, 0, len(characters))
	for _, c := range characters {
		result = append(result, TransformCharacter(c))
	}
	return result
}

func TransformCharacterDetails(c crafter.Character, data crafter.CharacterData) CharacterDetails {
	result := CharacterDetails{
		Character:   TransformCharacter(c),
		Owner:       data.Owner,
		Class:       data.Class,
		Professions: make([]Profession, 0, len(data.Professions)),
	}
	for _, p := range slices.Sorted(maps.Keys(data.Professions)) {
		profession := data.Professions[p]
		tiers := make([]Tier, 0, len(profession.Tiers))
		for name, skill := range profession.Tiers {
			tiers = append(tiers, Tier{Name: name, SkillPoints: skill.Points, MaxSkillPoints: skill.Max})
		}
		slices.SortFunc(tiers, func(a, b Tier) int { return cmp.Compare(a.Name, b.Name) })
		result.Professions = append(result.Professions, Profession{
			Name:    string(p),
			Summary: profession.Summary,
			Tiers:   tiers,
		})
	}
	return result
}

func TransformItem(item crafter.ItemData) Item {
	return Item{
		Name:       item.Name,
		Profession: string(item.Profession),
		Tier:       item.Tier,
		Crafters:   len(item.Crafters),
	}
}

func TransformCandidates(candidates []crafter.Candidate) []Crafter {
	result := make([]Crafter, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, Crafter{
			Character: TransformCharacter(c.Character),
			RecipeID:  c.RecipeID,
			Rank:      c.Rank,
			Skill:     c.Skill,
		})
	}
	return result
}

// TransformStatus renders times relative to now.
func TransformStatus(status directory.Status, now time.Time) Status {
	result := Status{
		Owners:           status.Owners,
		Characters:       status.Characters,
		Items:            status.Items,
		Servers:          status.Servers,
		RosterSize:       status.RosterSize,
		CachedRanks:      status.CachedRanks,
		PendingMutations: status.PendingMutations,
		Rebuilt:          "never",
	}
	if !status.RebuiltAt.IsZero() {
		result.RebuiltAt = utils.ToPointer(status.RebuiltAt)
		result.Rebuilt = humanize.RelTime(status.RebuiltAt, now, "ago", "from now")
	}
	if !status.PersistedAt.IsZero() {
		result.PersistedAt = utils.ToPointer(status.PersistedAt)
	}
	if status.PersistError != nil {
		result.PersistError = utils.ToPointer(status.PersistError.Error())
	}
	return result
}
