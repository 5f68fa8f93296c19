package warcraft

import (
	"bytes"
	"encoding/json"
	"fmt"

	"crafterDirectory/crafter"
	"crafterDirectory/set"
	"crafterDirectory/utils"

	"github.com/rs/zerolog/log"
)

// ParseServerList reads the realm index. A bare array of {name} objects is
// accepted as well as the {"realms": [...]} envelope.
func ParseServerList(text string) (*set.Set[string], error) {
	refs, err := decodeNamedList(text, "server list", func(data []byte) ([]namedRef, bool, error) {
		var resp struct {
			Realms *[]namedRef `json:"realms"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false, err
		}
		if resp.Realms == nil {
			return nil, false, nil
		}
		return *resp.Realms, true, nil
	})
	if err != nil {
		return nil, err
	}
	return namesToSet(refs, "server list")
}

// ParseRoster reads guild member names. Names carry no server qualifier.
func ParseRoster(text string) (*set.Set[string], error) {
	refs, err := decodeNamedList(text, "guild roster", func(data []byte) ([]namedRef, bool, error) {
		var resp struct {
			Members *[]struct {
				Character namedRef `json:"character"`
			} `json:"members"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false, err
		}
		if resp.Members == nil {
			return nil, false, nil
		}
		refs := make([]namedRef, 0, len(*resp.Members))
		for _, m := range *resp.Members {
			refs = append(refs, m.Character)
		}
		return refs, true, nil
	})
	if err != nil {
		return nil, err
	}
	return namesToSet(refs, "guild roster")
}

// ParseCharacterClass reads the class name from a character profile.
func ParseCharacterClass(text string) (string, error) {
	var resp profileResponse
	if err := decodeObject(text, "character profile", &resp); err != nil {
		return "", err
	}
	if resp.CharacterClass == nil || resp.CharacterClass.Name == "" {
		return "", crafter.NewFormatError("character profile", "missing character_class.name", nil)
	}
	return resp.CharacterClass.Name, nil
}

// ParseProfessions reads a character's professions payload. Each tier adds a
// TierSkill; each known recipe adds one item crafted by c. Entries with an
// unrecognized profession or a tier without a name are skipped on their own.
func ParseProfessions(text string, c crafter.Character) (map[crafter.Profession]crafter.ProfessionData, map[string]crafter.ItemData, error) {
	var resp professionsResponse
	if err := decodeObject(text, "professions", &resp); err != nil {
		return nil, nil, err
	}

	professions := make(map[crafter.Profession]crafter.ProfessionData)
	items := make(map[string]crafter.ItemData)
	entries := append(append([]professionEntry{}, resp.Primaries...), resp.Secondaries...)
	for _, entry := range entries {
		if entry.Profession == nil {
			log.Debug().Str("character", c.String()).Msg("skipping profession entry without a name")
			continue
		}
		profession, ok := crafter.ParseProfession(entry.Profession.Name)
		if !ok {
			log.Debug().Str("character", c.String()).Str("profession", entry.Profession.Name).Msg("skipping unrecognized profession")
			continue
		}
		data := crafter.ProfessionData{Profession: profession, Tiers: map[string]crafter.TierSkill{}}
		if len(entry.Tiers) == 0 && entry.SkillPoints != nil {
			data.Tiers[string(profession)] = crafter.TierSkill{
				Points: *entry.SkillPoints,
				Max:    utils.Deref(entry.MaxSkillPoints, *entry.SkillPoints),
			}
		}
		for _, tier := range entry.Tiers {
			if tier.Tier == nil || tier.Tier.Name == "" {
				log.Debug().Str("character", c.String()).Str("profession", string(profession)).Msg("skipping tier without a name")
				continue
			}
			data.Tiers[tier.Tier.Name] = crafter.TierSkill{Points: tier.SkillPoints, Max: tier.MaxSkillPoints}
			for _, recipe := range tier.KnownRecipes {
				if recipe.Name == "" || recipe.ID == 0 {
					continue
				}
				item, ok := items[recipe.Name]
				if !ok {
					item = crafter.ItemData{
						Name:       recipe.Name,
						Profession: profession,
						Tier:       tier.Tier.Name,
						Crafters:   map[crafter.Character]int{},
					}
					items[recipe.Name] = item
				}
				item.Crafters[c] = recipe.ID
			}
		}
		professions[profession] = data
	}
	return professions, items, nil
}

// ParseRecipeRank returns nil for recipes without a rank.
func ParseRecipeRank(text string) (*int, error) {
	var resp recipeResponse
	if err := decodeObject(text, "recipe", &resp); err != nil {
		return nil, err
	}
	return resp.Rank, nil
}

// decodeObject only accepts a JSON object. A bare null would otherwise decode
// into the zero value without error.
func decodeObject(text, source string, v any) error {
	data := bytes.TrimSpace([]byte(text))
	if len(data) == 0 || data[0] != '{' {
		return crafter.NewFormatError(source, "expected an object", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return crafter.NewFormatError(source, "invalid json", err)
	}
	return nil
}

func decodeNamedList(text, source string, envelope func([]byte) ([]namedRef, bool, error)) ([]namedRef, error) {
	data := bytes.TrimSpace([]byte(text))
	if len(data) == 0 {
		return nil, crafter.NewFormatError(source, "empty payload", nil)
	}
	if data[0] == '[' {
		var refs []namedRef
		if err := json.Unmarshal(data, &refs); err != nil {
			return nil, crafter.NewFormatError(source, "invalid json", err)
		}
		return refs, nil
	}
	refs, ok, err := envelope(data)
	if err != nil {
		return nil, crafter.NewFormatError(source, "invalid json", err)
	}
	if !ok {
		return nil, crafter.NewFormatError(source, "missing list", nil)
	}
	return refs, nil
}

func namesToSet(refs []namedRef, source string) (*set.Set[string], error) {
	names := set.New[string]()
	for i, ref := range refs {
		if ref.Name == "" {
			return nil, crafter.NewFormatError(source, fmt.Sprintf("entry %d has no name", i), nil)
		}
		names.Add(ref.Name)
	}
	return names, nil
}
