// Package stix provides the interchange object model emitted by the EMB3D converter.
//
// The converter produces a single STIX 2.1 bundle. This package owns the fixed
// serialization contract of that bundle: object type names, ID prefixes,
// timestamp precision, and the versioning rules applied when a canonical record
// is enriched by later sources.
//
// # Core Types
//
//   - Object: a STIX domain object (vulnerability, course-of-action, property,
//     weakness, identity, x-mitre-category, x-mitre-matrix) with custom properties
//   - Relationship: a typed, directed edge between two object IDs
//   - Bundle: the flattened output collection
//   - Generator: mints "<type>--<uuid>" identifiers
//
// # Versioning
//
// Objects are treated as immutable values. NewVersion returns a new Object with
// an overlay applied and a strictly later modified timestamp; the receiver is
// left untouched. Identity properties (id, type, spec_version, created,
// created_by_ref) cannot be changed through an overlay:
//
//	next, err := obj.NewVersion(map[string]any{"x_level": "high"}, time.Now())
//	if errors.Is(err, stix.ErrUnmodifiableProperty) {
//	    // mint a fresh object instead
//	}
package stix
