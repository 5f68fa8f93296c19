package api

import "time"

type Pong struct {
	Ping string `json:"ping"`
}

type Error struct {
	Error string `json:"error"`
}

type Character struct {
	Name   string `json:"name"`
	Server string `json:"server"`
}

type Tier struct {
	Name           string `json:"name"`
	SkillPoints    int    `json:"skillPoints"`
	MaxSkillPoints int    `json:"maxSkillPoints"`
}

type Profession struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Tiers   []Tier `json:"tiers"`
}

type CharacterDetails struct {
	Character
	Owner       string       `json:"owner"`
	Class       string       `json:"class"`
	GuildMember bool         `json:"guildMember"`
	Professions []Profession `json:"professions"`
}

type ProfessionCount struct {
	Name       string `json:"name"`
	Characters int    `json:"characters"`
}

type Item struct {
	Name       string `json:"name"`
	Profession string `json:"profession"`
	Tier       string `json:"tier"`
	Crafters   int    `json:"crafters"`
}

type Crafter struct {
	Character
	RecipeID int  `json:"recipeId"`
	Rank     *int `json:"rank,omitempty"`
	Skill    int  `json:"skill"`
}

type Rank struct {
	RecipeID int  `json:"recipeId"`
	Rank     *int `json:"rank"`
}

type Status struct {
	Owners           int        `json:"owners"`
	Characters       int        `json:"characters"`
	Items            int        `json:"items"`
	Servers          int        `json:"servers"`
	RosterSize       int        `json:"rosterSize"`
	CachedRanks      int        `json:"cachedRanks"`
	PendingMutations int        `json:"pendingMutations"`
	RebuiltAt        *time.Time `json:"rebuiltAt,omitempty"`
	Rebuilt          string     `json:"rebuilt"`
	PersistedAt      *time.Time `json:"persistedAt,omitempty"`
	PersistError     *string    `json:"persistError,omitempty"`
}

type AddCharacterRequest struct {
	Name   string `json:"name" binding:"required"`
	Server string `json:"server" binding:"required"`
}

type SummaryRequest struct {
	Summary string `json:"summary"`
}
