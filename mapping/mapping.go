package mapping

import (
	"errors"
	"fmt"

	"github.com/zero-day-ai/emb3d/normalize"
	"github.com/zero-day-ai/emb3d/stix"
)

// Relation describes one related-entity list of a mapping record.
type Relation struct {
	// Type is the object type of the related entities.
	Type string

	// Label is the relationship type of the edges created for this list.
	Label string

	// Reversed stores edges as related -> primary instead of primary -> related.
	Reversed bool

	// Field names the record field holding the related items.
	Field string
}

// Endpoints orders the primary and related IDs according to r.Reversed.
func (r Relation) Endpoints(primaryID, relatedID string) (source, target string) {
	if r.Reversed {
		return relatedID, primaryID
	}
	return primaryID, relatedID
}

// Mapping parameterizes an Ingester for one mapping source.
type Mapping struct {
	// Name identifies the mapping in logs and errors.
	Name string

	// List is the name of the top-level list in the source document.
	List string

	// Type is the object type of the primary records.
	Type string

	// Relations lists the related-entity fields of each record.
	Relations []Relation

	// Exclude names the fields that are never copied onto reconciled records.
	Exclude normalize.KeySet
}

// Validate checks that the mapping is usable.
func (m Mapping) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("mapping name is required"))
	}
	if m.List == "" {
		errs = append(errs, fmt.Errorf("mapping %q: list is required", m.Name))
	}
	if m.Type == "" {
		errs = append(errs, fmt.Errorf("mapping %q: type is required", m.Name))
	}
	for i, rel := range m.Relations {
		if rel.Type == "" || rel.Label == "" || rel.Field == "" {
			errs = append(errs, fmt.Errorf("mapping %q: relation %d needs type, label and field", m.Name, i))
		}
	}
	return errors.Join(errs...)
}

func (m Mapping) relatedFields() []string {
	fields := make([]string, 0, len(m.Relations))
	for _, rel := range m.Relations {
		fields = append(fields, rel.Field)
	}
	return fields
}

// MitigationMapping reads mitigation records and links each to the threats it
// mitigates.
func MitigationMapping() Mapping {
	return Mapping{
		Name: "mitigations",
		List: "mitigations",
		Type: stix.TypeCourseOfAction,
		Relations: []Relation{
			{Type: stix.TypeVulnerability, Label: stix.RelMitigates, Field: "threats"},
		},
		Exclude: normalize.Keys("threats", "id", "name"),
	}
}

// PropertyMapping reads property records. Threats exhibiting a property and
// sub-properties of a property are both stored pointing at the property.
func PropertyMapping() Mapping {
	return Mapping{
		Name: "properties",
		List: "properties",
		Type: stix.TypeProperty,
		Relations: []Relation{
			{Type: stix.TypeVulnerability, Label: stix.RelHas, Reversed: true, Field: "threats"},
			{Type: stix.TypeProperty, Label: stix.RelIsSubsOf, Reversed: true, Field: "subProps"},
		},
		Exclude: normalize.Keys("threats", "id", "subProps", "isparentProp", "parentProp", "name"),
	}
}

// ThreatMapping reads threat records with the properties they have and the
// mitigations that mitigate them.
func ThreatMapping() Mapping {
	return Mapping{
		Name: "threats",
		List: "threats",
		Type: stix.TypeVulnerability,
		Relations: []Relation{
			{Type: stix.TypeProperty, Label: stix.RelHas, Field: "properties"},
			{Type: stix.TypeCourseOfAction, Label: stix.RelMitigates, Reversed: true, Field: "mitigations"},
		},
		Exclude: normalize.Keys("properties", "id", "mitigations", "name"),
	}
}
