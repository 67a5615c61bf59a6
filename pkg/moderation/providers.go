package moderation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// StaticProviders is a ProviderSource backed by a fixed in-memory registry.
type StaticProviders struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]Provider
}

// NewStaticProviders returns a registry holding providers. Later duplicates win.
func NewStaticProviders(providers ...Provider) *StaticProviders {
	s := &StaticProviders{byID: make(map[uuid.UUID]Provider, len(providers))}
	for _, p := range providers {
		s.byID[p.ID] = p
	}
	return s
}

// Put adds or replaces a provider.
func (s *StaticProviders) Put(p Provider) {
	s.mu.Lock()
	s.byID[p.ID] = p
	s.mu.Unlock()
}

// Provider returns a copy of the provider, or ErrProviderNotFound.
func (s *StaticProviders) Provider(_ context.Context, id uuid.UUID) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return &p, nil
}

// All returns the providers sorted by name.
func (s *StaticProviders) All() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Provider, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Provider) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

type providersDocument struct {
	Providers []Provider `yaml:"providers"`
}

// LoadProvidersFile reads a YAML provider registry:
//
//	providers:
//	  - id: 6f1c1f7e-0d7b-4c55-9a57-3f0b8f5f6a10
//	    name: socarxiv
//	    workflow: pre-moderation
//	    comments_private: true
func LoadProvidersFile(path string) (*StaticProviders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file %s: %w", path, err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes a provider registry and validates every entry.
// Workflow names are normalized to their canonical Mode.
func ParseProviders(data []byte) (*StaticProviders, error) {
	var doc providersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{Reason: "invalid providers document", Err: err}
	}

	seen := make(map[uuid.UUID]bool, len(doc.Providers))
	var errs []error
	for i := range doc.Providers {
		p := &doc.Providers[i]
		if p.ID == uuid.Nil {
			errs = append(errs, &ConfigurationError{Reason: fmt.Sprintf("provider #%d has no id", i)})
			continue
		}
		if seen[p.ID] {
			errs = append(errs, &ConfigurationError{ProviderID: p.ID, Reason: "duplicate provider id"})
			continue
		}
		seen[p.ID] = true

		mode, err := ModeOf(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Workflow = mode
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return NewStaticProviders(doc.Providers...), nil
}
