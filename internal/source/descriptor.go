// Package source normalizes vendor exports into the roster and record
// shapes the engine works on.
//
// Per-vendor knowledge lives in declarative YAML descriptors (mention
// syntax, role fields, roster/record field paths) instead of per-vendor
// scanning code. Embedded defaults cover common platforms; an operator
// file can override or extend them, merged by descriptor name.
package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dativo-io/disclose/sources"
)

// File is the top-level YAML structure for a source descriptor file.
type File struct {
	Sources []Descriptor `yaml:"sources"`
}

// Descriptor declares how one vendor's export maps onto the engine's
// normalized model. Field references are dot-separated paths into the
// parsed document ("profile.email", "fields.reporter.accountId"); for CSV
// exports they are plain column names.
type Descriptor struct {
	Name           string        `yaml:"name"`
	MentionFormats []string      `yaml:"mention_formats,omitempty"`
	Roster         RosterMapping `yaml:"roster"`
	Records        RecordMapping `yaml:"records"`
}

// RosterMapping locates the known-identity list used to seed redaction.
type RosterMapping struct {
	Path  string `yaml:"path"`
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
	Bot   string `yaml:"bot,omitempty"`
}

// RecordMapping locates candidate records and their structural role fields.
type RecordMapping struct {
	Path        string      `yaml:"path"`
	Date        string      `yaml:"date,omitempty"`
	Type        string      `yaml:"type,omitempty"`
	TypeDefault string      `yaml:"type_default,omitempty"`
	Category    string      `yaml:"category,omitempty"`
	Body        []string    `yaml:"body"`
	Roles       []RoleField `yaml:"roles,omitempty"`
	StripHTML   bool        `yaml:"strip_html,omitempty"`
}

// RoleField binds a structural role kind to the document field carrying
// the identity id. Declaration order is preserved in relationship tags.
type RoleField struct {
	Kind  string `yaml:"kind"`
	Field string `yaml:"field"`
}

// ParseFile parses source descriptor YAML bytes.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing source descriptor YAML: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses a descriptor file from disk. Returns nil (not
// an error) when the file does not exist, so a missing operator override
// is a no-op.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading source descriptor file %s: %w", path, err)
	}
	return ParseFile(data)
}

// Merge layers descriptor lists: embedded defaults first, then operator
// overrides. Later layers replace earlier descriptors with the same Name;
// new names are appended.
func Merge(layers ...[]Descriptor) []Descriptor {
	index := make(map[string]int)
	var merged []Descriptor

	for _, layer := range layers {
		for _, d := range layer {
			if idx, exists := index[d.Name]; exists {
				merged[idx] = d
			} else {
				index[d.Name] = len(merged)
				merged = append(merged, d)
			}
		}
	}

	return merged
}

// Registry resolves descriptors by name after merging embedded defaults
// with an optional operator file.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds a registry from the embedded defaults plus the
// operator file at overridePath (may be empty or missing).
func NewRegistry(overridePath string) (*Registry, error) {
	defaults, err := ParseFile(sources.DefaultsYAML())
	if err != nil {
		return nil, fmt.Errorf("loading embedded source descriptors: %w", err)
	}

	var overrides []Descriptor
	if overridePath != "" {
		f, err := LoadFile(overridePath)
		if err != nil {
			return nil, err
		}
		if f != nil {
			overrides = f.Sources
		}
	}

	return &Registry{descriptors: Merge(defaults.Sources, overrides)}, nil
}

// Find returns the descriptor with the given name.
func (r *Registry) Find(name string) (Descriptor, error) {
	for _, d := range r.descriptors {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("unknown source %q (known: %v)", name, r.Names())
}

// Names lists the registered descriptor names in merge order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		names[i] = d.Name
	}
	return names
}
