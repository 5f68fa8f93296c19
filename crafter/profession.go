package crafter

import "strings"

// Profession is a crafting or gathering skill category.
type Profession string

const (
	Alchemy        Profession = "Alchemy"
	Blacksmithing  Profession = "Blacksmithing"
	Enchanting     Profession = "Enchanting"
	Engineering    Profession = "Engineering"
	Herbalism      Profession = "Herbalism"
	Inscription    Profession = "Inscription"
	Jewelcrafting  Profession = "Jewelcrafting"
	Leatherworking Profession = "Leatherworking"
	Mining         Profession = "Mining"
	Skinning       Profession = "Skinning"
	Tailoring      Profession = "Tailoring"
	Archaeology    Profession = "Archaeology"
	Cooking        Profession = "Cooking"
	Fishing        Profession = "Fishing"
)

var professions = []Profession{
	Alchemy, Blacksmithing, Enchanting, Engineering, Herbalism, Inscription, Jewelcrafting,
	Leatherworking, Mining, Skinning, Tailoring, Archaeology, Cooking, Fishing,
}

// Professions returns every known profession.
func Professions() []Profession {
	result := make([]Profession, len(professions))
	copy(result, professions)
	return result
}

// ParseProfession matches name case-insensitively against the known professions.
func ParseProfession(name string) (Profession, bool) {
	name = strings.TrimSpace(name)
	for _, p := range professions {
		if strings.EqualFold(string(p), name) {
			return p, true
		}
	}
	return "", false
}
