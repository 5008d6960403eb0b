package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultRoleType is the form set used when no set matches the requested
// role type.
const DefaultRoleType = "default"

// FormSet holds the application questions per role type. It is safe for
// concurrent use; Reload swaps the question map atomically.
type FormSet struct {
	mu    sync.RWMutex
	path  string
	forms map[string][]string
}

// formsFile is the YAML shape of the forms definition file.
type formsFile struct {
	Forms map[string][]string `yaml:"forms"`
}

// LoadFormSet reads and validates the forms YAML file at path.
func LoadFormSet(path string) (*FormSet, error) {
	fs := &FormSet{path: path}
	if err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Reload re-reads the forms file. On error the previous question sets are
// kept.
func (f *FormSet) Reload() error {
	forms, err := parseFormsFile(f.path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.forms = forms
	f.mu.Unlock()
	return nil
}

func parseFormsFile(path string) (map[string][]string, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yml" && ext != ".yaml" {
		return nil, fmt.Errorf("forms file must have .yml or .yaml extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read forms file: %w", err)
	}

	var file formsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse forms file: %w", err)
	}

	if len(file.Forms) == 0 {
		return nil, fmt.Errorf("forms file defines no question sets")
	}
	if _, ok := file.Forms[DefaultRoleType]; !ok {
		return nil, fmt.Errorf("forms file must define a %q question set", DefaultRoleType)
	}
	for roleType, questions := range file.Forms {
		if len(questions) == 0 {
			return nil, fmt.Errorf("question set %q is empty", roleType)
		}
		for i, q := range questions {
			if q == "" {
				return nil, fmt.Errorf("question set %q has an empty question at index %d", roleType, i)
			}
		}
	}

	return file.Forms, nil
}

// Questions returns the question list for a role type, falling back to the
// default set. The returned slice must not be modified.
func (f *FormSet) Questions(roleType string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if qs, ok := f.forms[roleType]; ok {
		return qs
	}
	return f.forms[DefaultRoleType]
}

// RoleTypes returns the role types with a dedicated question set.
func (f *FormSet) RoleTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.forms))
	for t := range f.forms {
		types = append(types, t)
	}
	return types
}

// Path returns the file path the set was loaded from.
func (f *FormSet) Path() string {
	return f.path
}
