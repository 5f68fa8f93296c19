package warcraft

import "errors"

var (
	// ErrServiceDown is returned when the game API answers 503.
	ErrServiceDown = errors.New("warcraft api is down")
)

type namedRef struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type profileResponse struct {
	Name           string    `json:"name"`
	CharacterClass *namedRef `json:"character_class"`
}

type professionsResponse struct {
	Primaries   []professionEntry `json:"primaries"`
	Secondaries []professionEntry `json:"secondaries"`
}

type professionEntry struct {
	Profession *namedRef   `json:"profession"`
	Tiers      []tierEntry `json:"tiers"`

	// Secondary professions without expansion tiers report skill at this level.
	SkillPoints    *int `json:"skill_points"`
	MaxSkillPoints *int `json:"max_skill_points"`
}

type tierEntry struct {
	SkillPoints    int        `json:"skill_points"`
	MaxSkillPoints int        `json:"max_skill_points"`
	Tier           *namedRef  `json:"tier"`
	KnownRecipes   []namedRef `json:"known_recipes"`
}

type recipeResponse struct {
	Rank *int `json:"rank"`
}
