package crafter

import (
	"cmp"
	"fmt"
	"strings"

	"crafterDirectory/set"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Character identifies a game character. Two characters are the same when
// both fields match exactly, so always build one with NewCharacter or
// ParseCharacter to get the normalized form.
type Character struct {
	Name   string
	Server string
}

// NewCharacter normalizes name capitalization and resolves server against the
// list of legal servers, case-insensitively. The canonical spelling from
// servers is used.
func NewCharacter(name, server string, servers *set.Set[string]) (Character, error) {
	normalized, err := normalizeName(name)
	if err != nil {
		return Character{}, err
	}
	want := strings.TrimSpace(server)
	canonical, ok := servers.Find(func(s string) bool {
		return strings.EqualFold(s, want)
	})
	if !ok {
		return Character{}, fmt.Errorf("%w: %q", ErrServerNotFound, server)
	}
	return Character{Name: normalized, Server: canonical}, nil
}

// ParseCharacter reads the "Name, Server" form produced by String. The
// server is trusted as written; only the name is normalized.
func ParseCharacter(text string) (Character, error) {
	name, server, ok := strings.Cut(text, ",")
	if !ok {
		return Character{}, NewFormatError("character", fmt.Sprintf("missing server in %q", text), nil)
	}
	normalized, err := normalizeName(name)
	if err != nil {
		return Character{}, err
	}
	server = strings.TrimSpace(server)
	if server == "" {
		return Character{}, NewFormatError("character", fmt.Sprintf("empty server in %q", text), nil)
	}
	return Character{Name: normalized, Server: server}, nil
}

func (c Character) String() string {
	return c.Name + ", " + c.Server
}

// CompareCharacters orders by name, then server.
func CompareCharacters(a, b Character) int {
	if n := cmp.Compare(a.Name, b.Name); n != 0 {
		return n
	}
	return cmp.Compare(a.Server, b.Server)
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, ",|\t\n\r") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	// cases.Caser keeps state between calls, so it is not shared.
	return cases.Title(language.Und).String(name), nil
}
