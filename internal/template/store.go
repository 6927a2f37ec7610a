package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound means no template with that name exists.
	ErrNotFound = errors.New("template not found")
	// ErrLocked means the built-in template cannot be modified or deleted.
	ErrLocked = errors.New("template is locked")
)

// Store keeps user templates as one YAML file per template in a directory.
// The built-in template is always available and never touches disk.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Get returns a template by name, the built-in included.
func (s *Store) Get(name string) (Template, error) {
	if name == BuiltinName {
		return Builtin(), nil
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Template{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return Template{}, fmt.Errorf("read template: %w", err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("parse template %q: %w", name, err)
	}
	return t, nil
}

// List returns all templates ordered by name, built-in first.
func (s *Store) List() ([]Template, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	templates := []Template{Builtin()}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	for _, name := range names {
		t, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// Save validates and persists a user template. Saving over the built-in is
// rejected.
func (s *Store) Save(t Template) error {
	if t.Name == BuiltinName {
		return fmt.Errorf("%w: %q", ErrLocked, t.Name)
	}
	t.Locked = false
	if err := Validate(t); err != nil {
		return err
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	if err := os.WriteFile(s.path(t.Name), data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

// Delete removes a user template. The built-in cannot be deleted.
func (s *Store) Delete(name string) error {
	if name == BuiltinName {
		return fmt.Errorf("%w: %q", ErrLocked, name)
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}
