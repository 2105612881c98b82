// Package plugin defines the cloud inventory interfaces the sweep runs against.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Source enumerates one resource kind in one region and fetches tags for
// the resources it lists.
type Source interface {
	// Kind returns the resource kind this source lists.
	Kind() resource.Kind

	// List returns every resource of the kind. An error aborts this kind only.
	List(ctx context.Context) ([]resource.Locator, error)

	// Tags returns the tag set of one listed resource, in API order.
	Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error)
}

// Inventory is the set of sources for one region.
type Inventory interface {
	// Region returns the region this inventory lists.
	Region() string

	// Source returns the source for a kind, or false if the provider has none.
	Source(kind resource.Kind) (Source, bool)
}

// Factory builds the inventory for a region.
type Factory func(ctx context.Context, region string) (Inventory, error)

// Registry holds inventory factories by provider name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no inventory provider %q", name)
	}
	return f, nil
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticInventory is an Inventory backed by a fixed set of sources.
type StaticInventory struct {
	region  string
	sources map[resource.Kind]Source
}

// NewStaticInventory creates an inventory from sources. Later sources of the
// same kind replace earlier ones.
func NewStaticInventory(region string, sources ...Source) *StaticInventory {
	m := make(map[resource.Kind]Source, len(sources))
	for _, s := range sources {
		m[s.Kind()] = s
	}
	return &StaticInventory{region: region, sources: m}
}

// Region returns the inventory region.
func (s *StaticInventory) Region() string {
	return s.region
}

// Source returns the source for kind.
func (s *StaticInventory) Source(kind resource.Kind) (Source, bool) {
	src, ok := s.sources[kind]
	return src, ok
}
