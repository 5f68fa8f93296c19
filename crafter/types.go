package crafter

import "maps"

// TierSkill is the skill level reached in one expansion tier of a profession.
type TierSkill struct {
	Points int
	Max    int
}

// ProfessionData holds one profession of a character. Summary is free text
// written by the owner and is never touched by API refreshes.
type ProfessionData struct {
	Profession Profession
	Summary    string
	Tiers      map[string]TierSkill
}

func (p ProfessionData) Clone() ProfessionData {
	p.Tiers = maps.Clone(p.Tiers)
	if p.Tiers == nil {
		p.Tiers = map[string]TierSkill{}
	}
	return p
}

// Skill returns the skill points for tier, zero when unknown.
func (p ProfessionData) Skill(tier string) int {
	return p.Tiers[tier].Points
}

// CharacterData is everything known about one registered character.
type CharacterData struct {
	Owner       string
	Class       string
	Professions map[Profession]ProfessionData
}

func (c CharacterData) Clone() CharacterData {
	professions := make(map[Profession]ProfessionData, len(c.Professions))
	for p, data := range c.Professions {
		professions[p] = data.Clone()
	}
	c.Professions = professions
	return c
}

// WithProfessions swaps in freshly fetched professions, carrying every
// summary forward from the current data.
func (c CharacterData) WithProfessions(fresh map[Profession]ProfessionData) CharacterData {
	next := CharacterData{
		Owner:       c.Owner,
		Class:       c.Class,
		Professions: make(map[Profession]ProfessionData, len(fresh)),
	}
	for p, data := range fresh {
		data = data.Clone()
		if previous, ok := c.Professions[p]; ok {
			data.Summary = previous.Summary
		}
		next.Professions[p] = data
	}
	return next
}

// ItemData describes a craftable item and who can craft it. Crafters maps
// each character to the recipe id it knows for the item.
type ItemData struct {
	Name       string
	Profession Profession
	Tier       string
	Crafters   map[Character]int
}

func (i ItemData) Clone() ItemData {
	i.Crafters = maps.Clone(i.Crafters)
	if i.Crafters == nil {
		i.Crafters = map[Character]int{}
	}
	return i
}
