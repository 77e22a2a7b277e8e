// Package linker adds "similar-to" relationships between threats that share a
// property.
package linker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zero-day-ai/emb3d/mapping"
	"github.com/zero-day-ai/emb3d/reconcile"
	"github.com/zero-day-ai/emb3d/stix"
)

// ThreatsField is the property-record field listing the threats that exhibit
// the property.
const ThreatsField = "threats"

// ErrUnknownThreat indicates a property references a threat that is not in the
// store. The linker never creates threats.
var ErrUnknownThreat = errors.New("unknown threat")

// Result summarizes a linker run.
type Result struct {
	Groups       int
	Pairs        int
	EdgesAdded   int
	EdgesDropped int
}

// Linker links co-occurring threats.
type Linker struct {
	rec    *reconcile.Reconciler
	logger *slog.Logger
}

// New creates a Linker. If logger is nil, slog.Default() is used.
func New(rec *reconcile.Reconciler, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{rec: rec, logger: logger}
}

// LinkFile reads the property mapping source at path and links it.
func (l *Linker) LinkFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open property mapping: %w", err)
	}
	defer f.Close()
	return l.Link(ctx, f)
}

// Link reads a property mapping source and, for every property referencing two
// or more threats, adds a "similar-to" edge for every pair of those threats.
// Pairs are formed in source order, so the earlier threat is the source. A pair
// already linked in the same direction is dropped; the reverse direction is a
// distinct edge.
func (l *Linker) Link(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	m := mapping.PropertyMapping()
	entries, err := mapping.Decode(r, m.List, []string{ThreatsField})
	if err != nil {
		return res, err
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		refs := entry.Related[ThreatsField]
		if len(refs) < 2 {
			continue
		}
		ids, err := l.resolve(refs)
		if err != nil {
			return res, fmt.Errorf("%s[%d]: %w", m.List, i, err)
		}
		res.Groups++

		for _, p := range Pairs(ids) {
			res.Pairs++
			if l.rec.Link(p[0], p[1], stix.RelSimilarTo) {
				res.EdgesAdded++
			} else {
				res.EdgesDropped++
			}
		}
	}

	l.logger.Info("co-occurring threats linked",
		"groups", res.Groups,
		"pairs", res.Pairs,
		"edges_added", res.EdgesAdded,
		"edges_dropped", res.EdgesDropped,
	)
	return res, nil
}

func (l *Linker) resolve(refs []mapping.RelatedRef) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		key, err := ref.BusinessKey()
		if err != nil {
			return nil, err
		}
		obj, ok := l.rec.Store().Get(stix.TypeVulnerability, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownThreat, key)
		}
		ids = append(ids, obj.ID)
	}
	return ids, nil
}

// Pairs returns every 2-combination of items in order: for [a b c] it returns
// [a b], [a c], [b c].
func Pairs(items []string) [][2]string {
	if len(items) < 2 {
		return nil
	}
	out := make([][2]string, 0, len(items)*(len(items)-1)/2)
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			out = append(out, [2]string{items[i], items[j]})
		}
	}
	return out
}
