package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownVariant is returned when a role has no registered dashboard variant.
var ErrUnknownVariant = errors.New("dashboard: no dashboard variant for role")

// Variant is a resolved whole-page composition bound to one role.
type Variant struct {
	Role     Role
	Name     string
	Config   DashboardConfig
	Fetchers map[string]Fetcher
}

// VariantLoader builds a variant. It runs at most once per table entry.
type VariantLoader func(ctx context.Context) (Variant, error)

// VariantDescriptor maps a role to the loader of its dashboard variant.
type VariantDescriptor struct {
	Role Role
	Name string
	Load VariantLoader
}

type lazyVariant struct {
	desc    VariantDescriptor
	once    sync.Once
	variant Variant
	err     error
	loaded  bool
}

// VariantTable is the role -> variant lookup table. Variants are loaded on
// the first Resolve for their role and memoized afterwards, including any
// configuration error.
type VariantTable struct {
	mu      sync.RWMutex
	entries map[Role]*lazyVariant
	order   []Role
}

// NewVariantTable registers the given descriptors.
func NewVariantTable(descs ...VariantDescriptor) (*VariantTable, error) {
	table := &VariantTable{entries: make(map[Role]*lazyVariant, len(descs))}
	for _, desc := range descs {
		if err := table.Register(desc); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Register adds a descriptor. Roles must be unique.
func (t *VariantTable) Register(desc VariantDescriptor) error {
	role := ParseRole(string(desc.Role))
	if role == "" {
		return errors.New("dashboard: variant role is required")
	}
	if desc.Load == nil {
		return fmt.Errorf("dashboard: variant %s has no loader", role)
	}
	desc.Role = role
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[role]; exists {
		return fmt.Errorf("dashboard: variant for role %s already registered", role)
	}
	t.entries[role] = &lazyVariant{desc: desc}
	t.order = append(t.order, role)
	return nil
}

// Lookup reports whether a role is mapped, without loading it.
func (t *VariantTable) Lookup(role Role) (VariantDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[ParseRole(string(role))]
	if !ok {
		return VariantDescriptor{}, false
	}
	return entry.desc, true
}

// Resolve loads (once) and returns the variant for role.
func (t *VariantTable) Resolve(ctx context.Context, role Role) (Variant, error) {
	t.mu.RLock()
	entry, ok := t.entries[ParseRole(string(role))]
	t.mu.RUnlock()
	if !ok {
		return Variant{}, fmt.Errorf("%w %q", ErrUnknownVariant, role)
	}
	entry.once.Do(func() {
		variant, err := entry.desc.Load(ctx)
		if err != nil {
			entry.err = fmt.Errorf("dashboard: load variant %s: %w", entry.desc.Role, err)
		} else {
			if variant.Name == "" {
				variant.Name = entry.desc.Name
			}
			variant.Role = entry.desc.Role
			entry.variant = variant
		}
		t.mu.Lock()
		entry.loaded = true
		t.mu.Unlock()
	})
	return entry.variant, entry.err
}

// Loaded reports whether the variant for role has been resolved.
func (t *VariantTable) Loaded(role Role) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[ParseRole(string(role))]
	return ok && entry.loaded
}

// Roles lists mapped roles in registration order.
func (t *VariantTable) Roles() []Role {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Role(nil), t.order...)
}
