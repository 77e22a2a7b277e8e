// Package store holds the canonical records and relationship edges of one
// conversion run.
//
// The Store maps (object type, business key) to the single current version of
// each record and keeps an append-only, deduplicated set of edges. Insertion
// order is remembered so the assembled bundle is stable from run to run.
//
// A Store is owned by one goroutine. Parallel enrichment would need Put and
// AddEdge to become atomic per key (compare-and-swap on (type, key) and on the
// edge key) to keep last-write-wins and first-edge-wins semantics.
package store

import (
	"github.com/zero-day-ai/emb3d/stix"
)

// Stats counts store activity.
type Stats struct {
	// Objects is the number of canonical records per object type.
	Objects map[string]int

	// EdgesAdded is the number of distinct edges stored.
	EdgesAdded int

	// EdgesDropped is the number of AddEdge calls that collided with an
	// existing edge for the same ordered endpoint pair.
	EdgesDropped int
}

type namespace struct {
	records map[string]*stix.Object
	order   []string
}

// Store is the canonical record and edge store.
type Store struct {
	namespaces map[string]*namespace
	types      []string

	edges     map[string]*stix.Relationship
	edgeOrder []string
	dropped   int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		namespaces: make(map[string]*namespace),
		edges:      make(map[string]*stix.Relationship),
	}
}

// Get returns the current record for key within objectType's namespace.
func (s *Store) Get(objectType, key string) (*stix.Object, bool) {
	ns, ok := s.namespaces[objectType]
	if !ok {
		return nil, false
	}
	obj, ok := ns.records[key]
	return obj, ok
}

// Put stores obj as the current record for key, replacing any prior version.
func (s *Store) Put(objectType, key string, obj *stix.Object) {
	ns, ok := s.namespaces[objectType]
	if !ok {
		ns = &namespace{records: make(map[string]*stix.Object)}
		s.namespaces[objectType] = ns
		s.types = append(s.types, objectType)
	}
	if _, exists := ns.records[key]; !exists {
		ns.order = append(ns.order, key)
	}
	ns.records[key] = obj
}

// Objects returns the current records of objectType in first-insertion order.
func (s *Store) Objects(objectType string) []*stix.Object {
	ns, ok := s.namespaces[objectType]
	if !ok {
		return nil
	}
	out := make([]*stix.Object, 0, len(ns.order))
	for _, key := range ns.order {
		out = append(out, ns.records[key])
	}
	return out
}

// Keys returns the business keys of objectType in first-insertion order.
func (s *Store) Keys(objectType string) []string {
	ns, ok := s.namespaces[objectType]
	if !ok {
		return nil
	}
	return append([]string(nil), ns.order...)
}

// Types returns the object types that have at least one record, in the order
// they were first written.
func (s *Store) Types() []string {
	return append([]string(nil), s.types...)
}

// HasEdge reports whether an edge exists for the ordered pair (sourceRef, targetRef).
func (s *Store) HasEdge(sourceRef, targetRef string) bool {
	_, ok := s.edges[stix.EdgeKey(sourceRef, targetRef)]
	return ok
}

// AddEdge stores rel unless an edge already exists for the same ordered endpoint
// pair. The relationship type is not part of the key: the first edge written for
// a pair wins and later ones are dropped. Returns true if rel was stored.
func (s *Store) AddEdge(rel *stix.Relationship) bool {
	key := rel.Key()
	if _, exists := s.edges[key]; exists {
		s.dropped++
		return false
	}
	s.edges[key] = rel
	s.edgeOrder = append(s.edgeOrder, key)
	return true
}

// Edge returns the stored edge for the ordered pair (sourceRef, targetRef).
func (s *Store) Edge(sourceRef, targetRef string) (*stix.Relationship, bool) {
	rel, ok := s.edges[stix.EdgeKey(sourceRef, targetRef)]
	return rel, ok
}

// Relationships returns all edges in insertion order.
func (s *Store) Relationships() []*stix.Relationship {
	out := make([]*stix.Relationship, 0, len(s.edgeOrder))
	for _, key := range s.edgeOrder {
		out = append(out, s.edges[key])
	}
	return out
}

// Stats returns a snapshot of store counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Objects:      make(map[string]int, len(s.namespaces)),
		EdgesAdded:   len(s.edgeOrder),
		EdgesDropped: s.dropped,
	}
	for t, ns := range s.namespaces {
		st.Objects[t] = len(ns.order)
	}
	return st
}
