// Package config implements the persisted key/value store for
// provisioning settings.
//
// The store is an ordered mapping with default semantics: Set
// overwrites, SetDefault fills in a value only when the key is absent,
// and iteration is always in sorted key order so persisted output is
// deterministic. Persistence is YAML restricted to plain scalars and
// nested literals, written atomically via a temporary file and rename.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// UnknownOptionError reports a read of a key that was never set and has
// no default.
type UnknownOptionError struct {
	Key string
}

// Error implements the error interface.
func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option %q", e.Key)
}

// Store holds configuration entries. The zero value is not usable; use
// NewStore.
type Store struct {
	options map[string]interface{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{options: make(map[string]interface{})}
}

// Has reports whether key has a value.
func (s *Store) Has(key string) bool {
	_, ok := s.options[key]
	return ok
}

// Get returns the value stored under key, or an *UnknownOptionError if
// the key was never set.
func (s *Store) Get(key string) (interface{}, error) {
	value, ok := s.options[key]
	if !ok {
		return nil, &UnknownOptionError{Key: key}
	}
	return value, nil
}

// GetString returns the value stored under key as a string.
func (s *Store) GetString(key string) (string, error) {
	value, err := s.Get(key)
	if err != nil {
		return "", err
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("option %q is %T, not a string", key, value)
	}
	return str, nil
}

// Set stores value under key, overwriting any existing value.
func (s *Store) Set(key string, value interface{}) {
	s.options[key] = value
}

// SetDefault stores value under key only if the key is absent. Used to
// fill in computed defaults without clobbering a value loaded from a
// previous run.
func (s *Store) SetDefault(key string, value interface{}) {
	if !s.Has(key) {
		s.Set(key, value)
	}
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.options))
	for key := range s.options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.options)
}

// Load reads a persisted mapping from path and applies every entry via
// Set, so loaded values win over anything already in the store.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loaded := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	for key, value := range loaded {
		s.Set(key, value)
	}
	return nil
}

// Save serializes the store in sorted key order into a temporary file
// next to path and atomically renames it into place, so path never
// observes a partially written file.
func (s *Store) Save(path string) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range s.Keys() {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(s.options[key]); err != nil {
			return fmt.Errorf("encode option %q: %w", key, err)
		}
		doc.Content = append(doc.Content, keyNode, valueNode)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
