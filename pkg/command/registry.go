package command

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned by Find for unknown names and aliases.
var ErrNotFound = errors.New("command not found")

// LoadStats summarizes one registry load.
type LoadStats struct {
	Loaded  int
	Skipped int
}

type table struct {
	byKey       map[string]*Descriptor
	descriptors []*Descriptor
}

// Registry maps command names and aliases to descriptors. The table is
// replaced wholesale on every load so readers never see a partial table.
type Registry struct {
	current atomic.Pointer[table]
	log     *slog.Logger

	mu        sync.Mutex
	factories []Factory
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{log: log.With("component", "command.registry")}
	r.current.Store(&table{byKey: map[string]*Descriptor{}})

	return r
}

// Load builds a new table from factories and swaps it in.
func (r *Registry) Load(factories []Factory) LoadStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = slices.Clone(factories)
	return r.build()
}

// Reload rebuilds the table from the factories of the last Load.
func (r *Registry) Reload() LoadStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.build()
}

func (r *Registry) build() LoadStats {
	next := &table{byKey: make(map[string]*Descriptor, len(r.factories)*2)}
	stats := LoadStats{}

	for i, factory := range r.factories {
		desc, err := buildDescriptor(factory)
		if err != nil {
			r.log.Warn("Skipping command", "index", i, "error", err)
			stats.Skipped++
			continue
		}

		key := normalizeKey(desc.Name)
		if existing, ok := next.byKey[key]; ok {
			r.log.Error("Command name already registered", "command", key, "registered_by", existing.Name)
			stats.Skipped++
			continue
		}

		stored := desc
		stored.Name = key
		stored.Aliases = nil
		next.byKey[key] = &stored

		for _, alias := range desc.Aliases {
			aliasKey := normalizeKey(alias)
			if aliasKey == "" || aliasKey == key {
				continue
			}
			if existing, ok := next.byKey[aliasKey]; ok {
				r.log.Error("Command alias already registered", "command", key, "alias", aliasKey, "registered_by", existing.Name)
				continue
			}
			next.byKey[aliasKey] = &stored
			stored.Aliases = append(stored.Aliases, aliasKey)
		}

		next.descriptors = append(next.descriptors, &stored)
		stats.Loaded++
	}

	slices.SortFunc(next.descriptors, func(a, b *Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	r.current.Store(next)
	r.log.Info("Commands loaded", "loaded", stats.Loaded, "skipped", stats.Skipped)

	return stats
}

// buildDescriptor runs one factory, converting panics and incomplete
// descriptors into errors.
func buildDescriptor(factory Factory) (desc Descriptor, err error) {
	if factory == nil {
		return Descriptor{}, errors.New("factory is nil")
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("factory panicked: %v", recovered)
		}
	}()

	desc, err = factory()
	if err != nil {
		return Descriptor{}, err
	}
	if normalizeKey(desc.Name) == "" {
		return Descriptor{}, errors.New("descriptor has no name")
	}
	if strings.ContainsAny(strings.TrimSpace(desc.Name), " \t\n") {
		return Descriptor{}, fmt.Errorf("command name %q contains whitespace", desc.Name)
	}
	if desc.Handler == nil {
		return Descriptor{}, fmt.Errorf("command %q has no handler", desc.Name)
	}

	return desc, nil
}

// Lookup resolves a name or alias, case-insensitively.
func (r *Registry) Lookup(nameOrAlias string) (Descriptor, bool) {
	desc, ok := r.current.Load().byKey[normalizeKey(nameOrAlias)]
	if !ok {
		return Descriptor{}, false
	}

	return *desc, true
}

// Find is Lookup in error form.
func (r *Registry) Find(nameOrAlias string) (Descriptor, error) {
	desc, ok := r.Lookup(nameOrAlias)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, nameOrAlias)
	}

	return desc, nil
}

// List returns every descriptor sorted by name.
func (r *Registry) List() []Descriptor {
	current := r.current.Load()
	out := make([]Descriptor, 0, len(current.descriptors))
	for _, desc := range current.descriptors {
		out = append(out, *desc)
	}

	return out
}

// Len returns the number of registered commands, aliases excluded.
func (r *Registry) Len() int {
	return len(r.current.Load().descriptors)
}
