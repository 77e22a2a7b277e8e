package stix

import (
	"encoding/json"
	"fmt"
	"time"
)

// Relationship is a directed, typed edge between two objects.
type Relationship struct {
	// ID is "relationship--<uuid>".
	ID string

	// RelationshipType is the edge label, e.g. "mitigates".
	RelationshipType string

	// SourceRef is the ID of the source object.
	SourceRef string

	// TargetRef is the ID of the target object.
	TargetRef string

	Created  time.Time
	Modified time.Time
}

// NewRelationship creates a Relationship with both timestamps set to now.
func NewRelationship(id, sourceRef, targetRef, relType string, now time.Time) *Relationship {
	ts := now.UTC().Truncate(time.Millisecond)
	return &Relationship{
		ID:               id,
		RelationshipType: relType,
		SourceRef:        sourceRef,
		TargetRef:        targetRef,
		Created:          ts,
		Modified:         ts,
	}
}

// EdgeKey returns the deduplication key of the edge: the ordered endpoint pair.
// The relationship type is deliberately not part of the key, so two edges of
// different types between the same ordered pair collide.
func EdgeKey(sourceRef, targetRef string) string {
	return sourceRef + "_" + targetRef
}

// Key returns EdgeKey for this relationship's endpoints.
func (r *Relationship) Key() string {
	return EdgeKey(r.SourceRef, r.TargetRef)
}

// Validate checks that the relationship has all required fields populated.
func (r *Relationship) Validate() error {
	if r.SourceRef == "" {
		return fmt.Errorf("relationship SourceRef cannot be empty")
	}
	if r.TargetRef == "" {
		return fmt.Errorf("relationship TargetRef cannot be empty")
	}
	if r.RelationshipType == "" {
		return fmt.Errorf("relationship RelationshipType cannot be empty")
	}
	return ValidateID(r.ID, TypeRelationship)
}

type relationshipJSON struct {
	Type             string `json:"type"`
	SpecVersion      string `json:"spec_version"`
	ID               string `json:"id"`
	Created          string `json:"created"`
	Modified         string `json:"modified"`
	RelationshipType string `json:"relationship_type"`
	SourceRef        string `json:"source_ref"`
	TargetRef        string `json:"target_ref"`
}

// MarshalJSON renders the relationship as a STIX relationship object.
func (r *Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(relationshipJSON{
		Type:             TypeRelationship,
		SpecVersion:      SpecVersion,
		ID:               r.ID,
		Created:          FormatTimestamp(r.Created),
		Modified:         FormatTimestamp(r.Modified),
		RelationshipType: r.RelationshipType,
		SourceRef:        r.SourceRef,
		TargetRef:        r.TargetRef,
	})
}
