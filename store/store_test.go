package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/emb3d/stix"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func obj(objectType, key string) *stix.Object {
	return stix.NewObject(objectType, stix.RandomGenerator{}.NewID(objectType, key), now).WithName(key)
}

func rel(src, tgt, label string) *stix.Relationship {
	return stix.NewRelationship(stix.RandomGenerator{}.NewID(stix.TypeRelationship, ""), src, tgt, label, now)
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, ok := s.Get(stix.TypeVulnerability, "TID-101")
	assert.False(t, ok)
	assert.Nil(t, s.Objects(stix.TypeVulnerability))
}

func TestPutLastWriteWins(t *testing.T) {
	s := New()
	first := obj(stix.TypeVulnerability, "TID-101")
	second, err := first.NewVersion(map[string]any{"description": "v2"}, now)
	require.NoError(t, err)

	s.Put(stix.TypeVulnerability, "TID-101", first)
	s.Put(stix.TypeVulnerability, "TID-101", second)

	got, ok := s.Get(stix.TypeVulnerability, "TID-101")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, s.Objects(stix.TypeVulnerability), 1)
}

func TestNamespacesAreSeparate(t *testing.T) {
	s := New()
	s.Put(stix.TypeVulnerability, "X-1", obj(stix.TypeVulnerability, "X-1"))
	s.Put(stix.TypeWeakness, "X-1", obj(stix.TypeWeakness, "X-1"))

	v, _ := s.Get(stix.TypeVulnerability, "X-1")
	w, _ := s.Get(stix.TypeWeakness, "X-1")
	assert.NotEqual(t, v.ID, w.ID)
	assert.Equal(t, []string{stix.TypeVulnerability, stix.TypeWeakness}, s.Types())
}

func TestObjectsInsertionOrder(t *testing.T) {
	s := New()
	for _, k := range []string{"b", "a", "c"} {
		s.Put(stix.TypeProperty, k, obj(stix.TypeProperty, k))
	}
	s.Put(stix.TypeProperty, "a", obj(stix.TypeProperty, "a"))

	assert.Equal(t, []string{"b", "a", "c"}, s.Keys(stix.TypeProperty))
	names := []string{}
	for _, o := range s.Objects(stix.TypeProperty) {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestAddEdgeFirstWriterWins(t *testing.T) {
	s := New()

	assert.True(t, s.AddEdge(rel("A", "B", stix.RelMitigates)))
	assert.False(t, s.AddEdge(rel("A", "B", stix.RelRelatedTo)))

	edges := s.Relationships()
	require.Len(t, edges, 1)
	assert.Equal(t, stix.RelMitigates, edges[0].RelationshipType)

	st := s.Stats()
	assert.Equal(t, 1, st.EdgesAdded)
	assert.Equal(t, 1, st.EdgesDropped)
}

func TestAddEdgeDirectionMatters(t *testing.T) {
	s := New()
	assert.True(t, s.AddEdge(rel("A", "B", stix.RelSimilarTo)))
	assert.True(t, s.AddEdge(rel("B", "A", stix.RelSimilarTo)))
	assert.True(t, s.HasEdge("B", "A"))

	e, ok := s.Edge("A", "B")
	require.True(t, ok)
	assert.Equal(t, "A", e.SourceRef)
	assert.Len(t, s.Relationships(), 2)
}

func TestStatsObjects(t *testing.T) {
	s := New()
	s.Put(stix.TypeWeakness, "CWE-79", obj(stix.TypeWeakness, "CWE-79"))
	s.Put(stix.TypeWeakness, "CWE-20", obj(stix.TypeWeakness, "CWE-20"))
	assert.Equal(t, map[string]int{stix.TypeWeakness: 2}, s.Stats().Objects)
}
