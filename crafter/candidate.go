package crafter

import (
	"cmp"
	"slices"
	"strings"

	"crafterDirectory/utils"
)

// Candidate is one crafter of an item together with the keys used to rank it.
// Rank is nil when the recipe is unranked or its rank is not cached.
type Candidate struct {
	Character Character
	RecipeID  int
	Rank      *int
	Skill     int
}

// CompareCandidates orders best crafter first: recipe rank descending
// (unknown counts as 0), tier skill descending, home server first, then
// name and server ascending. It returns 0 only when every key is equal.
func CompareCandidates(a, b Candidate, homeServer string) int {
	if n := cmp.Compare(utils.Deref(b.Rank, 0), utils.Deref(a.Rank, 0)); n != 0 {
		return n
	}
	if n := cmp.Compare(b.Skill, a.Skill); n != 0 {
		return n
	}
	aHome, bHome := isHome(a.Character, homeServer), isHome(b.Character, homeServer)
	if aHome != bHome {
		if aHome {
			return -1
		}
		return 1
	}
	return CompareCharacters(a.Character, b.Character)
}

// SortCandidates sorts in place, see CompareCandidates.
func SortCandidates(candidates []Candidate, homeServer string) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return CompareCandidates(a, b, homeServer)
	})
}

func isHome(c Character, homeServer string) bool {
	return homeServer != "" && strings.EqualFold(c.Server, homeServer)
}
