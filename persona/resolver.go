package persona

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Resolver maps participant ids to display labels. The mapping is fixed at
// construction; unmapped ids fall back to the platform-supplied name.
type Resolver struct {
	names map[int64]string
}

func NewResolver(names map[int64]string) *Resolver {
	m := make(map[int64]string, len(names))
	for id, name := range names {
		if name == "" {
			continue
		}
		m[id] = name
	}
	return &Resolver{names: m}
}

// FromStrings builds a resolver from string-keyed config (viper string maps,
// YAML files). Keys must be decimal participant ids.
func FromStrings(names map[string]string) (*Resolver, error) {
	m := make(map[int64]string, len(names))
	for key, name := range names {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id %q: %w", key, err)
		}
		m[id] = name
	}
	return NewResolver(m), nil
}

// Load reads an id -> display name mapping from a YAML file.
func Load(path string) (*Resolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names map[string]string
	if err := yaml.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	return FromStrings(names)
}

func (r *Resolver) Resolve(id int64, fallback string) string {
	if name, ok := r.names[id]; ok {
		return name
	}
	return fallback
}

func (r *Resolver) Len() int {
	return len(r.names)
}
