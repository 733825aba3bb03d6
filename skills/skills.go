// Package skills loads SKILL.md instruction packs. A skill is a directory
// holding a SKILL.md file with YAML frontmatter (name, description) followed
// by markdown instructions. Skills are offered to agents through the skill
// tool and focus an angel's system prompt.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the file a skill directory must contain.
const FileName = "SKILL.md"

// ErrNoFrontmatter is returned when a skill file lacks the --- delimited header.
var ErrNoFrontmatter = errors.New("missing frontmatter delimiter")

// Skill is a parsed SKILL.md.
type Skill struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`
	Instructions string            `yaml:"-"`
	Path         string            `yaml:"-"`
}

// Parse parses SKILL.md content. name and description are required.
func Parse(content string) (*Skill, error) {
	front, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	s := &Skill{}
	if err := yaml.Unmarshal([]byte(front), s); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if strings.TrimSpace(s.Name) == "" {
		return nil, errors.New("missing required field: name")
	}
	if strings.TrimSpace(s.Description) == "" {
		return nil, errors.New("missing required field: description")
	}
	s.Instructions = strings.TrimSpace(body)
	return s, nil
}

func splitFrontmatter(content string) (string, string, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", ErrNoFrontmatter
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", errors.New("unclosed frontmatter")
}

// LoadFile reads and parses a single SKILL.md file.
func LoadFile(path string) (*Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill: %w", err)
	}
	s, err := Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("skill at %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Library is a read-only set of skills keyed by name. It is safe for
// concurrent use.
type Library struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewLibrary returns a library holding skills. Later duplicates win.
func NewLibrary(skills ...*Skill) *Library {
	l := &Library{skills: make(map[string]*Skill, len(skills))}
	for _, s := range skills {
		l.skills[s.Name] = s
	}
	return l
}

// Discover loads every <dir>/<name>/SKILL.md below dir. A missing directory
// yields an empty library. Invalid skills are skipped and reported in the
// returned error list.
func Discover(dir string) (*Library, []error) {
	lib := NewLibrary()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return lib, []error{err}
	}

	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), FileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		s, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lib.skills[s.Name] = s
	}
	return lib, errs
}

// Get returns a skill by name.
func (l *Library) Get(name string) (*Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.skills[name]
	return s, ok
}

// Instructions returns the instructions of the named skill.
func (l *Library) Instructions(name string) (string, bool) {
	s, ok := l.Get(name)
	if !ok {
		return "", false
	}
	return s.Instructions, true
}

// Names returns the skill names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.skills))
	for n := range l.skills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of skills.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.skills)
}
