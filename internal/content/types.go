package content

import (
	"fmt"
	"sort"
)

// Difficulty tiers for items.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// VerdictKind tags which verdict variant an item carries.
type VerdictKind string

const (
	KindBinary       VerdictKind = "binary"        // phishing, fact checking
	KindConfigSet    VerdictKind = "config_set"    // privacy settings
	KindDiscoverySet VerdictKind = "discovery_set" // ethics detective
)

// Verdict is the ground truth of an item. Only the fields of Kind are meaningful.
type Verdict struct {
	Kind           VerdictKind `yaml:"kind" json:"kind"`
	IsPositiveCase bool        `yaml:"is_positive_case,omitempty" json:"is_positive_case,omitempty"`
	Settings       []Setting   `yaml:"settings,omitempty" json:"settings,omitempty"`
	Issues         []Issue     `yaml:"issues,omitempty" json:"issues,omitempty"`
}

// BinaryVerdict builds a yes/no verdict. positive marks the flagged kind the game hunts for.
func BinaryVerdict(positive bool) Verdict {
	return Verdict{Kind: KindBinary, IsPositiveCase: positive}
}

// ConfigSetVerdict builds a verdict over configurable settings.
func ConfigSetVerdict(settings ...Setting) Verdict {
	return Verdict{Kind: KindConfigSet, Settings: settings}
}

// DiscoveryVerdict builds a verdict over issues to be found.
func DiscoveryVerdict(issues ...Issue) Verdict {
	return Verdict{Kind: KindDiscoverySet, Issues: issues}
}

// Option is one selectable value of a setting.
type Option struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Setting is a configurable privacy control with a recommended option.
type Setting struct {
	ID                  string   `yaml:"id" json:"id"`
	Label               string   `yaml:"label" json:"label"`
	Options             []Option `yaml:"options" json:"options"`
	RecommendedOptionID string   `yaml:"recommended" json:"-"`
}

// Issue is an ethical problem hidden in a scenario.
type Issue struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Label    string `yaml:"label" json:"label"`
}

// SubElement is a markable part of a binary item (a red flag, a dubious source).
type SubElement struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Label    string `yaml:"label" json:"label"`
}

// Item is one playable challenge.
type Item struct {
	ID          string       `yaml:"id" json:"id"`
	Title       string       `yaml:"title" json:"title"`
	Body        string       `yaml:"body" json:"body"`
	Difficulty  Difficulty   `yaml:"difficulty" json:"difficulty"`
	Category    string       `yaml:"category" json:"category"`
	Points      int          `yaml:"points,omitempty" json:"points,omitempty"`
	Verdict     Verdict      `yaml:"verdict" json:"verdict"`
	SubElements []SubElement `yaml:"sub_elements,omitempty" json:"sub_elements,omitempty"`
	// Decoys are markable parts that are not red flags or issues.
	Decoys []SubElement `yaml:"decoys,omitempty" json:"decoys,omitempty"`
}

// Kind is a shorthand for Verdict.Kind.
func (i Item) Kind() VerdictKind {
	return i.Verdict.Kind
}

// Markables returns every part a player can mark or probe, real or decoy,
// ordered by id so the order carries no hint.
func (i Item) Markables() []SubElement {
	var out []SubElement
	switch i.Kind() {
	case KindBinary:
		out = append(out, i.SubElements...)
	case KindDiscoverySet:
		for _, is := range i.Verdict.Issues {
			out = append(out, SubElement{ID: is.ID, Category: is.Category, Label: is.Label})
		}
	}
	out = append(out, i.Decoys...)
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	for n := range out {
		out[n].Category = ""
	}
	return out
}

// IsDecoy reports whether id names one of the item's decoys.
func (i Item) IsDecoy(id string) bool {
	for _, d := range i.Decoys {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a single item.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if !i.Difficulty.Valid() {
		return fmt.Errorf("item %s: unknown difficulty %q", i.ID, i.Difficulty)
	}
	switch i.Verdict.Kind {
	case KindBinary:
		if i.Verdict.IsPositiveCase && len(i.SubElements) == 0 {
			return fmt.Errorf("item %s: flagged binary item needs sub elements", i.ID)
		}
		marks := append(append([]SubElement(nil), i.SubElements...), i.Decoys...)
		if err := uniqueIDs(i.ID, "sub element", len(marks), func(n int) string { return marks[n].ID }); err != nil {
			return err
		}
	case KindConfigSet:
		if len(i.Verdict.Settings) == 0 {
			return fmt.Errorf("item %s: config item needs settings", i.ID)
		}
		for _, s := range i.Verdict.Settings {
			if err := s.validate(i.ID); err != nil {
				return err
			}
		}
		if err := uniqueIDs(i.ID, "setting", len(i.Verdict.Settings), func(n int) string { return i.Verdict.Settings[n].ID }); err != nil {
			return err
		}
	case KindDiscoverySet:
		if len(i.Verdict.Issues) == 0 {
			return fmt.Errorf("item %s: discovery item needs issues", i.ID)
		}
		ids := make([]string, 0, len(i.Verdict.Issues)+len(i.Decoys))
		for _, is := range i.Verdict.Issues {
			ids = append(ids, is.ID)
		}
		for _, d := range i.Decoys {
			ids = append(ids, d.ID)
		}
		if err := uniqueIDs(i.ID, "issue", len(ids), func(n int) string { return ids[n] }); err != nil {
			return err
		}
	default:
		return fmt.Errorf("item %s: unknown verdict kind %q", i.ID, i.Verdict.Kind)
	}
	return nil
}

func (s Setting) validate(itemID string) error {
	if s.ID == "" || len(s.Options) == 0 {
		return fmt.Errorf("item %s: setting %q needs an id and options", itemID, s.ID)
	}
	for _, o := range s.Options {
		if o.ID == s.RecommendedOptionID {
			return nil
		}
	}
	return fmt.Errorf("item %s: setting %s recommends unknown option %q", itemID, s.ID, s.RecommendedOptionID)
}

func uniqueIDs(itemID, what string, n int, id func(int) string) error {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return fmt.Errorf("item %s: %s without id", itemID, what)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("item %s: duplicate %s id %q", itemID, what, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}
