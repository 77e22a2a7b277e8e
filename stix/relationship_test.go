package stix

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipKeyIgnoresType(t *testing.T) {
	gen := RandomGenerator{}
	a := NewRelationship(gen.NewID(TypeRelationship, ""), "x--1", "y--2", RelMitigates, t0)
	b := NewRelationship(gen.NewID(TypeRelationship, ""), "x--1", "y--2", RelRelatedTo, t0)
	c := NewRelationship(gen.NewID(TypeRelationship, ""), "y--2", "x--1", RelMitigates, t0)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "x--1_y--2", a.Key())
}

func TestRelationshipValidate(t *testing.T) {
	id := RandomGenerator{}.NewID(TypeRelationship, "")
	tests := []struct {
		name    string
		rel     *Relationship
		wantErr bool
	}{
		{name: "valid", rel: NewRelationship(id, "a", "b", RelHas, t0)},
		{name: "empty source", rel: NewRelationship(id, "", "b", RelHas, t0), wantErr: true},
		{name: "empty target", rel: NewRelationship(id, "a", "", RelHas, t0), wantErr: true},
		{name: "empty type", rel: NewRelationship(id, "a", "b", "", t0), wantErr: true},
		{name: "bad id", rel: NewRelationship("weakness--1", "a", "b", RelHas, t0), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				assert.Error(t, tt.rel.Validate())
			} else {
				assert.NoError(t, tt.rel.Validate())
			}
		})
	}
}

func TestBundleMarshalJSON(t *testing.T) {
	gen := RandomGenerator{}
	b := NewBundle(gen.NewID(TypeBundle, ""))
	b.Add(NewIdentity(gen, "", "", t0))
	b.Add(NewRelationship(gen.NewID(TypeRelationship, ""), "a", "b", RelHas, t0))

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var got struct {
		Type    string           `json:"type"`
		ID      string           `json:"id"`
		Objects []map[string]any `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "bundle", got.Type)
	require.Len(t, got.Objects, 2)
	assert.Equal(t, "identity", got.Objects[0]["type"])
	assert.Equal(t, "relationship", got.Objects[1]["type"])
	assert.Equal(t, "has", got.Objects[1]["relationship_type"])
}
