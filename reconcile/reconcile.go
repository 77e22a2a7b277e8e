// Package reconcile merges partial descriptions of the same logical entity into
// one canonical record.
//
// Every ingestion step goes through a Reconciler. Given a raw partial record and
// a target object type it either mints a new canonical record or derives a new
// version of the existing one, and always writes the result back to the store.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zero-day-ai/emb3d/normalize"
	"github.com/zero-day-ai/emb3d/stix"
	"github.com/zero-day-ai/emb3d/store"
)

// KeyField is the raw-record field holding the business key.
const KeyField = "id"

var (
	// ErrMissingKey indicates a raw record has no usable business key. It is a
	// fatal input error.
	ErrMissingKey = errors.New("record has no business key")
)

// Record is a raw partial record decoded from a mapping source.
type Record map[string]any

// Key returns the business key of the record.
func (r Record) Key() (string, error) {
	v, ok := r[KeyField]
	if !ok || v == nil {
		return "", ErrMissingKey
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not a string", ErrMissingKey, KeyField, v)
	}
	if s == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrMissingKey, KeyField)
	}
	return s, nil
}

// Outcome reports what a reconcile call did.
type Outcome int

const (
	// OutcomeExisting means the current record was returned unchanged.
	OutcomeExisting Outcome = iota

	// OutcomeCreated means a new record was minted.
	OutcomeCreated

	// OutcomeMerged means a new version of the existing record was stored.
	OutcomeMerged

	// OutcomeRecreated means the merge was rejected because it touched an
	// unmodifiable property, and a fresh record replaced the existing one.
	OutcomeRecreated
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeExisting:
		return "existing"
	case OutcomeCreated:
		return "created"
	case OutcomeMerged:
		return "merged"
	case OutcomeRecreated:
		return "recreated"
	default:
		return "unknown"
	}
}

// Stats counts reconcile outcomes.
type Stats struct {
	Created   int
	Merged    int
	Recreated int
	Existing  int
}

// Reconciler creates and merges canonical records in a store.
type Reconciler struct {
	store       *store.Store
	ids         stix.Generator
	identityRef string
	now         func() time.Time
	logger      *slog.Logger
	stats       Stats
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithIdentity sets the identity referenced by created_by_ref on minted records.
func WithIdentity(ref string) Option {
	return func(r *Reconciler) {
		r.identityRef = ref
	}
}

// WithGenerator sets the ID generator. Default: stix.RandomGenerator.
func WithGenerator(gen stix.Generator) Option {
	return func(r *Reconciler) {
		if gen != nil {
			r.ids = gen
		}
	}
}

// WithClock sets the time source used for created/modified timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a Reconciler writing to s.
func New(s *store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: s,
		ids:   stix.RandomGenerator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Store returns the store the reconciler writes to.
func (r *Reconciler) Store() *store.Store {
	return r.store
}

// Now returns the reconciler's clock reading.
func (r *Reconciler) Now() time.Time {
	return r.now()
}

// Stats returns the outcome counters accumulated so far.
func (r *Reconciler) Stats() Stats {
	return r.stats
}

// Reconcile merges rec into the canonical record of objectType identified by
// rec's business key, or mints a new record when none exists.
//
// Fields named in exclude are dropped and the remaining fields are normalized
// before being applied. A merge without a description takes it from the
// narrative text field, as minting does. When the merge is rejected because it would change an
// unmodifiable property, a fresh record replaces the existing one. The result
// is always written back to the store.
//
// Returns ErrMissingKey if rec has no business key.
func (r *Reconciler) Reconcile(rec Record, objectType string, exclude normalize.KeySet) (*stix.Object, Outcome, error) {
	key, err := rec.Key()
	if err != nil {
		return nil, 0, fmt.Errorf("reconcile %s: %w", objectType, err)
	}
	fields := normalize.Clean(rec, exclude)

	if existing, ok := r.store.Get(objectType, key); ok {
		if _, ok := fields[stix.PropDescription]; !ok {
			if text, ok := fields[stix.PropText].(string); ok {
				fields[stix.PropDescription] = text
			}
		}
		next, err := existing.NewVersion(fields, r.now())
		switch {
		case err == nil:
			r.store.Put(objectType, key, next)
			r.record(OutcomeMerged, objectType, key)
			return next, OutcomeMerged, nil
		case errors.Is(err, stix.ErrUnmodifiableProperty):
			r.logger.Debug("merge rejected, minting fresh record",
				"type", objectType, "key", key, "reason", err)
			obj, err := r.mint(objectType, key, rec, fields)
			if err != nil {
				return nil, 0, err
			}
			r.record(OutcomeRecreated, objectType, key)
			return obj, OutcomeRecreated, nil
		default:
			return nil, 0, fmt.Errorf("reconcile %s %q: %w", objectType, key, err)
		}
	}

	obj, err := r.mint(objectType, key, rec, fields)
	if err != nil {
		return nil, 0, err
	}
	r.record(OutcomeCreated, objectType, key)
	return obj, OutcomeCreated, nil
}

// Ensure returns the current record of objectType for rec's business key
// unchanged, or mints one from rec when none exists. Use it for stub entities
// that only need an ID to link against.
func (r *Reconciler) Ensure(rec Record, objectType string) (*stix.Object, Outcome, error) {
	key, err := rec.Key()
	if err != nil {
		return nil, 0, fmt.Errorf("ensure %s: %w", objectType, err)
	}
	if existing, ok := r.store.Get(objectType, key); ok {
		r.record(OutcomeExisting, objectType, key)
		return existing, OutcomeExisting, nil
	}
	obj, err := r.mint(objectType, key, rec, normalize.Clean(rec, normalize.Keys(KeyField)))
	if err != nil {
		return nil, 0, err
	}
	r.record(OutcomeCreated, objectType, key)
	return obj, OutcomeCreated, nil
}

// Update applies changes to the existing record of objectType under key and
// stores the new version. Unlike Reconcile it never mints: it returns
// stix.ErrUnmodifiableProperty or stix.ErrInvalidProperty unchanged so the
// caller can decide how to proceed.
func (r *Reconciler) Update(objectType, key string, changes map[string]any) (*stix.Object, error) {
	existing, ok := r.store.Get(objectType, key)
	if !ok {
		return nil, fmt.Errorf("update %s %q: record not found", objectType, key)
	}
	next, err := existing.NewVersion(changes, r.now())
	if err != nil {
		return nil, err
	}
	r.store.Put(objectType, key, next)
	r.record(OutcomeMerged, objectType, key)
	return next, nil
}

// Link adds a relationship of type relType from sourceRef to targetRef unless
// the store already has an edge for that ordered pair. Returns true if a new
// edge was stored.
func (r *Reconciler) Link(sourceRef, targetRef, relType string) bool {
	id := r.ids.NewID(stix.TypeRelationship, stix.EdgeKey(sourceRef, targetRef)+":"+relType)
	return r.store.AddEdge(stix.NewRelationship(id, sourceRef, targetRef, relType, r.now()))
}

// mint creates a new record for key. name is the business key; description
// comes from the description field, falling back to the narrative text field.
func (r *Reconciler) mint(objectType, key string, rec Record, fields map[string]any) (*stix.Object, error) {
	obj := stix.NewObject(objectType, r.ids.NewID(objectType, key), r.now()).
		WithName(key).
		WithDescription(firstString(rec, stix.PropDescription, stix.PropText)).
		WithCreatedBy(r.identityRef)

	overlay := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == stix.PropName || k == stix.PropDescription || stix.IsUnmodifiable(k) {
			continue
		}
		overlay[k] = v
	}
	if len(overlay) > 0 {
		next, err := obj.NewVersion(overlay, obj.Created)
		if err != nil {
			return nil, fmt.Errorf("mint %s %q: %w", objectType, key, err)
		}
		next.Modified = next.Created
		obj = next
	}

	r.store.Put(objectType, key, obj)
	return obj, nil
}

func (r *Reconciler) record(o Outcome, objectType, key string) {
	switch o {
	case OutcomeCreated:
		r.stats.Created++
	case OutcomeMerged:
		r.stats.Merged++
	case OutcomeRecreated:
		r.stats.Recreated++
	case OutcomeExisting:
		r.stats.Existing++
	}
	r.logger.Debug("reconciled", "type", objectType, "key", key, "outcome", o.String())
}

func firstString(rec Record, fields ...string) string {
	for _, f := range fields {
		if s, ok := rec[f].(string); ok {
			return s
		}
	}
	return ""
}
