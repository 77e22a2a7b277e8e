package stix

// SpecVersion is the STIX specification version stamped on every object.
const SpecVersion = "2.1"

// Object type names. The ID of an object of type T is "T--<uuid>".
const (
	TypeVulnerability  = "vulnerability"
	TypeCourseOfAction = "course-of-action"
	TypeProperty       = "property"
	TypeWeakness       = "weakness"
	TypeIdentity       = "identity"
	TypeCategory       = "x-mitre-category"
	TypeMatrix         = "x-mitre-matrix"
	TypeRelationship   = "relationship"
	TypeBundle         = "bundle"
)

// Relationship types used between EMB3D objects.
const (
	RelMitigates = "mitigates"
	RelHas       = "has"
	RelIsSubsOf  = "is-subs-of"
	RelRelatedTo = "related-to"
	RelSimilarTo = "similar-to"
)

// Well-known property names.
const (
	PropID                 = "id"
	PropType               = "type"
	PropSpecVersion        = "spec_version"
	PropCreated            = "created"
	PropModified           = "modified"
	PropCreatedByRef       = "created_by_ref"
	PropName               = "name"
	PropDescription        = "description"
	PropExternalReferences = "external_references"

	// PropText is the narrative field some mapping sources carry instead of a
	// description. It is stripped before emission.
	PropText = "text"
)

// unmodifiable lists the properties a new version may not change.
var unmodifiable = map[string]struct{}{
	PropID:           {},
	PropType:         {},
	PropSpecVersion:  {},
	PropCreated:      {},
	PropCreatedByRef: {},
}

// IsUnmodifiable reports whether the named property is fixed once an object is minted.
func IsUnmodifiable(name string) bool {
	_, ok := unmodifiable[name]
	return ok
}

// Prefix returns the ID prefix for an object type, e.g. "weakness--".
func Prefix(objectType string) string {
	return objectType + "--"
}
