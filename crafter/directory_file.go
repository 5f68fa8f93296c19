package crafter

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// The directory file nests by indentation only:
//
//	<owner id>
//		<class> | <name>, <server>
//			<profession>: <summary>
//
// Writers must keep this order since there is no other structural marker.

// OwnerEntry is one owner block of the directory file.
type OwnerEntry struct {
	Owner      string
	Characters []CharacterEntry
}

// CharacterEntry is one character line and the profession lines below it.
type CharacterEntry struct {
	Class       string
	Character   Character
	Professions []SummaryEntry
}

// SummaryEntry is one profession line.
type SummaryEntry struct {
	Profession Profession
	Summary    string
}

// Line is one non-blank line of a directory file.
type Line struct {
	Number  int
	Depth   int
	Content string
}

const (
	ownerDepth = iota
	characterDepth
	professionDepth
)

// SplitLines turns raw text into indentation-tagged lines. A tab or four
// spaces make one level. Blank lines are dropped.
func SplitLines(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	number := 0
	for scanner.Scan() {
		number++
		raw := strings.TrimRight(scanner.Text(), " \r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		depth := 0
		for {
			if strings.HasPrefix(raw, "\t") {
				raw = raw[1:]
			} else if strings.HasPrefix(raw, "    ") {
				raw = raw[4:]
			} else {
				break
			}
			depth++
		}
		lines = append(lines, Line{Number: number, Depth: depth, Content: strings.TrimSpace(raw)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}
	return lines, nil
}

// ReadDirectoryFile parses a whole directory file.
func ReadDirectoryFile(r io.Reader) ([]OwnerEntry, error) {
	lines, err := SplitLines(r)
	if err != nil {
		return nil, err
	}
	return ParseLines(lines)
}

// ParseLines regroups flat lines into owner -> character -> profession.
func ParseLines(lines []Line) ([]OwnerEntry, error) {
	p := &lineParser{lines: lines}
	return p.owners()
}

type lineParser struct {
	lines []Line
	pos   int
}

func (p *lineParser) peek() (Line, bool) {
	if p.pos >= len(p.lines) {
		return Line{}, false
	}
	return p.lines[p.pos], true
}

func (p *lineParser) owners() ([]OwnerEntry, error) {
	owners := make([]OwnerEntry, 0)
	for {
		line, ok := p.peek()
		if !ok {
			return owners, nil
		}
		if line.Depth != ownerDepth {
			return nil, lineError(line, "expected an owner id without indentation")
		}
		p.pos++
		characters, err := p.characters()
		if err != nil {
			return nil, err
		}
		owners = append(owners, OwnerEntry{Owner: line.Content, Characters: characters})
	}
}

func (p *lineParser) characters() ([]CharacterEntry, error) {
	characters := make([]CharacterEntry, 0)
	for {
		line, ok := p.peek()
		if !ok || line.Depth < characterDepth {
			return characters, nil
		}
		if line.Depth > characterDepth {
			return nil, lineError(line, "profession line without a character")
		}
		p.pos++
		entry, err := parseCharacterLine(line)
		if err != nil {
			return nil, err
		}
		entry.Professions, err = p.professions()
		if err != nil {
			return nil, err
		}
		characters = append(characters, entry)
	}
}

func (p *lineParser) professions() ([]SummaryEntry, error) {
	summaries := make([]SummaryEntry, 0)
	for {
		line, ok := p.peek()
		if !ok || line.Depth < professionDepth {
			return summaries, nil
		}
		if line.Depth > professionDepth {
			return nil, lineError(line, "indentation deeper than a profession line")
		}
		p.pos++
		entry, err := parseProfessionLine(line)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, entry)
	}
}

func parseCharacterLine(line Line) (CharacterEntry, error) {
	class, rest, ok := strings.Cut(line.Content, "|")
	if !ok {
		return CharacterEntry{}, lineError(line, "expected \"class | name, server\"")
	}
	character, err := ParseCharacter(rest)
	if err != nil {
		return CharacterEntry{}, lineError(line, err.Error())
	}
	return CharacterEntry{Class: strings.TrimSpace(class), Character: character}, nil
}

func parseProfessionLine(line Line) (SummaryEntry, error) {
	name, summary, ok := strings.Cut(line.Content, ":")
	if !ok {
		return SummaryEntry{}, lineError(line, "expected \"profession: summary\"")
	}
	profession, ok := ParseProfession(name)
	if !ok {
		return SummaryEntry{}, lineError(line, fmt.Sprintf("unknown profession %q", strings.TrimSpace(name)))
	}
	return SummaryEntry{Profession: profession, Summary: strings.TrimSpace(summary)}, nil
}

func lineError(line Line, reason string) error {
	return NewFormatError("directory file", fmt.Sprintf("line %d: %s", line.Number, reason), nil)
}

// WriteDirectoryFile writes entries in the given order.
func WriteDirectoryFile(w io.Writer, owners []OwnerEntry) error {
	bw := bufio.NewWriter(w)
	for _, owner := range owners {
		fmt.Fprintln(bw, owner.Owner)
		for _, c := range owner.Characters {
			fmt.Fprintf(bw, "\t%s | %s\n", c.Class, c.Character)
			for _, p := range c.Professions {
				fmt.Fprintln(bw, strings.TrimRight(fmt.Sprintf("\t\t%s: %s", p.Profession, p.Summary), " "))
			}
		}
	}
	return bw.Flush()
}

// SanitizeSummary makes free text safe to store on a single profession line.
func SanitizeSummary(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
