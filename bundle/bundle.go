// Package bundle assembles the canonical store into the output bundle and
// writes it to disk.
package bundle

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/zero-day-ai/emb3d/stix"
	"github.com/zero-day-ai/emb3d/store"
)

// CategoryProperty is the record property holding a threat's category.
const CategoryProperty = "x_category"

// EntityOrder is the emission order of canonical record types. Types not listed
// follow in the order the store first saw them.
var EntityOrder = []string{
	stix.TypeCourseOfAction,
	stix.TypeVulnerability,
	stix.TypeProperty,
	stix.TypeWeakness,
}

// Ephemeral lists properties that are used during the run and stripped before
// emission.
var Ephemeral = []string{stix.PropText}

// Assembler builds bundles.
type Assembler struct {
	ids    stix.Generator
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithGenerator sets the ID generator for the bundle, categories and matrix.
func WithGenerator(gen stix.Generator) Option {
	return func(a *Assembler) {
		if gen != nil {
			a.ids = gen
		}
	}
}

// WithClock sets the time source for the catalog objects.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		ids: stix.RandomGenerator{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Categories returns the distinct category values found on threat records,
// sorted by shortname.
func Categories(s *store.Store) []string {
	seen := make(map[string]bool)
	var out []string
	for _, obj := range s.Objects(stix.TypeVulnerability) {
		v, ok := obj.Properties[CategoryProperty].(string)
		if !ok || v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(stix.CategoryShortname(a), stix.CategoryShortname(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// Assemble builds the bundle: identity, categories, matrix, the canonical
// records of every type, then every relationship in insertion order.
// Ephemeral properties are stripped from the emitted records; the store is not
// modified. Every emitted object is validated.
func (a *Assembler) Assemble(s *store.Store, identity *stix.Object) (*stix.Bundle, error) {
	if identity == nil {
		return nil, fmt.Errorf("assemble: identity is required")
	}
	now := a.now()
	b := stix.NewBundle(a.ids.NewID(stix.TypeBundle, identity.ID))

	if err := add(b, identity); err != nil {
		return nil, err
	}

	names := Categories(s)
	refs := make([]string, 0, len(names))
	for _, name := range names {
		if !stix.IsKnownCategory(stix.CategoryShortname(name)) {
			a.logger.Warn("unknown threat category", "category", name)
		}
		c := stix.NewCategory(a.ids, name, identity.ID, now)
		if err := add(b, c); err != nil {
			return nil, err
		}
		refs = append(refs, c.ID)
	}
	if err := add(b, stix.NewMatrix(a.ids, refs, identity.ID, now)); err != nil {
		return nil, err
	}

	for _, t := range entityTypes(s) {
		for _, obj := range s.Objects(t) {
			if err := add(b, obj.Without(Ephemeral...)); err != nil {
				return nil, err
			}
		}
	}

	for _, rel := range s.Relationships() {
		if err := rel.Validate(); err != nil {
			return nil, fmt.Errorf("assemble: %w", err)
		}
		b.Add(rel)
	}

	a.logger.Info("bundle assembled",
		"bundle", b.ID,
		"objects", b.Len(),
		"categories", len(names),
	)
	return b, nil
}

func add(b *stix.Bundle, obj *stix.Object) error {
	if err := obj.Validate(); err != nil {
		return fmt.Errorf("assemble: %w", err)
	}
	b.Add(obj)
	return nil
}

func entityTypes(s *store.Store) []string {
	types := slices.Clone(EntityOrder)
	for _, t := range s.Types() {
		if !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return types
}
