package queries

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var errInvalidQueryFile = errors.New("invalid queries file")

// Query is one operator-defined canned search. The SPL template may
// contain a {window} placeholder that Build substitutes.
type Query struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SPL         string `yaml:"spl"`
	Window      string `yaml:"window"`
	Question    string `yaml:"question"`
}

// Build resolves the SPL template for the given time window.
func (q Query) Build(window string) string {
	return strings.ReplaceAll(q.SPL, "{window}", window)
}

// DefaultWindow is the window used when the command omits one.
func (q Query) DefaultWindow() string {
	if q.Window != "" {
		return q.Window
	}
	return "15m"
}

// Set is an immutable collection of custom queries keyed by name.
type Set struct {
	byName map[string]Query
	names  []string
}

type queryFile struct {
	Queries []Query `yaml:"queries"`
}

// Load reads the custom query file. A missing file yields an empty,
// usable Set; a present but broken file is a startup error so the
// operator notices before the first chat turn.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Set{byName: map[string]Query{}}, nil
		}
		return nil, fmt.Errorf("read queries file %q: %w", path, err)
	}

	var file queryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidQueryFile, path, err)
	}

	set := &Set{byName: make(map[string]Query, len(file.Queries))}
	for i, q := range file.Queries {
		name := strings.ToLower(strings.TrimSpace(q.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: query #%d has no name", errInvalidQueryFile, i+1)
		}
		if strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: query name %q contains whitespace", errInvalidQueryFile, name)
		}
		if strings.TrimSpace(q.SPL) == "" {
			return nil, fmt.Errorf("%w: query %q has no spl", errInvalidQueryFile, name)
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("%w: duplicate query name %q", errInvalidQueryFile, name)
		}
		q.Name = name
		q.SPL = strings.TrimSpace(q.SPL)
		set.byName[name] = q
		set.names = append(set.names, name)
	}
	sort.Strings(set.names)
	return set, nil
}

func (s *Set) Get(name string) (Query, bool) {
	q, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return q, ok
}

func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Set) Len() int {
	return len(s.byName)
}
