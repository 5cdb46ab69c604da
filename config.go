package svcmock

import (
	"sync"

	"github.com/BurntSushi/toml"
)

// MapConfigSource is an in-memory, mutable configuration source keyed by
// component identity. The zero source has no overrides; tests typically
// seed it before registering components so the overrides take part in the
// property merge.
type MapConfigSource struct {
	mu sync.RWMutex
	m  map[string]Properties
}

func NewMapConfigSource() *MapConfigSource {
	return &MapConfigSource{m: make(map[string]Properties)}
}

// Update replaces the override properties for the given identity.
func (s *MapConfigSource) Update(identity string, props Properties) {
	s.mu.Lock()
	s.m[identity] = props.Copy()
	s.mu.Unlock()
}

// Delete removes the overrides for the given identity.
func (s *MapConfigSource) Delete(identity string) {
	s.mu.Lock()
	delete(s.m, identity)
	s.mu.Unlock()
}

// ConfigFor implements ConfigSource.
func (s *MapConfigSource) ConfigFor(identity string) (Properties, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	props, ok := s.m[identity]
	if !ok {
		return nil, false
	}
	return props.Copy(), true
}

// LoadConfigFile reads component configuration overrides from a TOML
// file. Each top-level table is keyed by component identity:
//
//	["com.example.mailer"]
//	"smtp.host" = "localhost"
//	"service.ranking" = 10
func LoadConfigFile(path string) (*MapConfigSource, error) {
	raw := make(map[string]Properties)
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	src := NewMapConfigSource()
	for identity, props := range raw {
		src.Update(identity, props)
	}
	return src, nil
}
