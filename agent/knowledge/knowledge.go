// Package knowledge answers general company questions from an embedded,
// keyword-indexed set of sections.
package knowledge

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sections.yaml
var sectionsRaw []byte

type Section struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Keywords []string `yaml:"keywords" json:"-"`
	Content  string   `yaml:"content" json:"content"`
}

type document struct {
	Default  string    `yaml:"default"`
	Sections []Section `yaml:"sections"`
}

// Base is immutable after Load and safe for concurrent use.
type Base struct {
	sections []Section
	fallback int
}

// Load parses the embedded sections.
func Load() (*Base, error) {
	return Parse(sectionsRaw)
}

func MustLoad() *Base {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

func Parse(raw []byte) (*Base, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge sections: %w", err)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("knowledge base has no sections")
	}

	b := &Base{sections: doc.Sections, fallback: -1}
	for i := range b.sections {
		s := &b.sections[i]
		s.Content = strings.TrimSpace(s.Content)
		for j, kw := range s.Keywords {
			s.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		if s.ID == doc.Default {
			b.fallback = i
		}
	}
	if b.fallback < 0 {
		return nil, fmt.Errorf("default section %q not found", doc.Default)
	}
	return b, nil
}

// Match is a ranked lookup hit.
type Match struct {
	Section Section `json:"section"`
	Score   int     `json:"score"`
}

// Lookup returns the section whose keywords occur most often in query,
// falling back to the default section when nothing matches. Ties keep
// declaration order.
func (b *Base) Lookup(query string) Match {
	if ranked := b.Rank(query); len(ranked) > 0 {
		return ranked[0]
	}
	return Match{Section: b.sections[b.fallback]}
}

// Rank returns every section with at least one keyword hit, best first.
func (b *Base) Rank(query string) []Match {
	q := strings.ToLower(query)
	var out []Match
	for _, s := range b.sections {
		score := 0
		for _, kw := range s.Keywords {
			if kw != "" && strings.Contains(q, kw) {
				score++
			}
		}
		if score > 0 {
			out = append(out, Match{Section: s, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Topics lists section titles in declaration order.
func (b *Base) Topics() []string {
	out := make([]string, 0, len(b.sections))
	for _, s := range b.sections {
		out = append(out, s.Title)
	}
	return out
}
