package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SnippetLibrary holds the coding-help lookup tables: syntax examples
// keyed by language then topic, and free-standing concept explanations.
type SnippetLibrary struct {
	mu       sync.RWMutex
	path     string
	syntax   map[string]map[string]string
	concepts map[string]string
}

type snippetsFile struct {
	Syntax   map[string]map[string]string `yaml:"syntax"`
	Concepts map[string]string            `yaml:"concepts"`
}

// LoadSnippetLibrary reads the snippet YAML file at path.
func LoadSnippetLibrary(path string) (*SnippetLibrary, error) {
	lib := &SnippetLibrary{path: path}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Reload re-reads the snippets file. On error the previous tables are kept.
func (l *SnippetLibrary) Reload() error {
	cleanPath := filepath.Clean(l.path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read snippets file: %w", err)
	}

	var file snippetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse snippets file: %w", err)
	}
	if len(file.Syntax) == 0 && len(file.Concepts) == 0 {
		return fmt.Errorf("snippets file defines no syntax or concept entries")
	}

	l.mu.Lock()
	l.syntax = file.Syntax
	l.concepts = file.Concepts
	l.mu.Unlock()
	return nil
}

// Syntax looks up a syntax example. On a miss it returns suggestions of
// known topics for the language (or known languages when the language
// itself is unknown).
func (l *SnippetLibrary) Syntax(language, topic string) (snippet string, suggestions []string, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	topics, langOK := l.syntax[strings.ToLower(language)]
	if !langOK {
		return "", sortedKeysOf(l.syntax), false
	}
	if s, ok := topics[strings.ToLower(topic)]; ok {
		return s, nil, true
	}
	return "", sortedKeys(topics), false
}

// Concept looks up a concept explanation, returning suggestions on a miss.
func (l *SnippetLibrary) Concept(name string) (text string, suggestions []string, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, ok := l.concepts[strings.ToLower(name)]; ok {
		return s, nil, true
	}
	return "", sortedKeys(l.concepts), false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysOf(m map[string]map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
