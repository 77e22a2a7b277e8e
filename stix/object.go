package stix

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// ExternalReference points at a source outside the bundle.
type ExternalReference struct {
	SourceName  string `json:"source_name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}

// Object is a STIX domain object. Well-known properties have dedicated fields;
// everything else (x_category, x_level, x_maturity, identity_class, category_refs,
// section fields copied from documents) lives in Properties.
//
// An Object handed to a store is treated as an immutable value: use NewVersion to
// derive an updated copy.
type Object struct {
	// Type is the STIX object type, e.g. "vulnerability".
	Type string

	// ID is "<type>--<uuid>", fixed at mint time.
	ID string

	// Created is fixed at mint time.
	Created time.Time

	// Modified advances on every new version.
	Modified time.Time

	// CreatedByRef optionally references the identity that authored the object.
	CreatedByRef string

	Name        string
	Description string

	ExternalReferences []ExternalReference

	// Properties holds type-specific and custom properties.
	Properties map[string]any
}

// NewObject creates an Object of the given type and ID with both timestamps set to now.
func NewObject(objectType, id string, now time.Time) *Object {
	ts := now.UTC().Truncate(time.Millisecond)
	return &Object{
		Type:       objectType,
		ID:         id,
		Created:    ts,
		Modified:   ts,
		Properties: make(map[string]any),
	}
}

// WithName sets the name and returns the object for method chaining.
func (o *Object) WithName(name string) *Object {
	o.Name = name
	return o
}

// WithDescription sets the description and returns the object for method chaining.
func (o *Object) WithDescription(desc string) *Object {
	o.Description = desc
	return o
}

// WithCreatedBy sets created_by_ref and returns the object for method chaining.
func (o *Object) WithCreatedBy(ref string) *Object {
	o.CreatedByRef = ref
	return o
}

// WithProperty sets a single custom property and returns the object for method chaining.
// If the Properties map is nil, it will be initialized.
func (o *Object) WithProperty(key string, value any) *Object {
	if o.Properties == nil {
		o.Properties = make(map[string]any)
	}
	o.Properties[key] = value
	return o
}

// WithExternalReferences sets the external references and returns the object for method chaining.
func (o *Object) WithExternalReferences(refs ...ExternalReference) *Object {
	o.ExternalReferences = refs
	return o
}

// Property returns a custom property value.
func (o *Object) Property(name string) (any, bool) {
	v, ok := o.Properties[name]
	return v, ok
}

// Clone returns a copy of the object that shares no maps or slices with o.
func (o *Object) Clone() *Object {
	c := *o
	c.Properties = maps.Clone(o.Properties)
	if c.Properties == nil {
		c.Properties = make(map[string]any)
	}
	if o.ExternalReferences != nil {
		c.ExternalReferences = append([]ExternalReference(nil), o.ExternalReferences...)
	}
	return &c
}

// NewVersion returns a copy of o with overlay applied field by field and a
// modified timestamp strictly later than o's. Unspecified fields keep their
// prior values. A nil overlay value removes a custom property.
//
// Returns ErrUnmodifiableProperty if the overlay names id, type, spec_version,
// created or created_by_ref, and ErrInvalidProperty if a well-known property has
// the wrong shape. The receiver is never modified.
func (o *Object) NewVersion(overlay map[string]any, now time.Time) (*Object, error) {
	next := o.Clone()
	for key, value := range overlay {
		if IsUnmodifiable(key) {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnmodifiableProperty, key, o.ID)
		}
		if err := next.set(key, value); err != nil {
			return nil, err
		}
	}
	next.Modified = nextModified(o.Modified, now)
	return next, nil
}

// Without returns a copy of o with the named custom properties removed. It does
// not create a new version.
func (o *Object) Without(names ...string) *Object {
	c := o.Clone()
	for _, name := range names {
		delete(c.Properties, name)
	}
	return c
}

func (o *Object) set(key string, value any) error {
	switch key {
	case PropName:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		o.Name = s
	case PropDescription:
		s, err := stringValue(key, value)
		if err != nil {
			return err
		}
		o.Description = s
	case PropModified:
		// computed by NewVersion
	case PropExternalReferences:
		refs, err := externalReferences(value)
		if err != nil {
			return err
		}
		o.ExternalReferences = refs
	default:
		if value == nil {
			delete(o.Properties, key)
			return nil
		}
		o.Properties[key] = value
	}
	return nil
}

func stringValue(key string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidProperty, key, value)
	}
}

func externalReferences(value any) ([]ExternalReference, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []ExternalReference:
		return append([]ExternalReference(nil), v...), nil
	default:
		// Decoded JSON arrives as []any of map[string]any.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: external_references: %v", ErrInvalidProperty, err)
		}
		var refs []ExternalReference
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("%w: external_references: %v", ErrInvalidProperty, err)
		}
		return refs, nil
	}
}

// Validate checks that the object has a type, a well-formed ID of that type and a name.
func (o *Object) Validate() error {
	if o.Type == "" {
		return errors.New("object type is required")
	}
	if err := ValidateID(o.ID, o.Type); err != nil {
		return err
	}
	if o.Name == "" {
		return fmt.Errorf("object %s has no name", o.ID)
	}
	return nil
}

// MarshalJSON flattens the well-known fields and custom properties into one object.
func (o *Object) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Properties)+9)
	for k, v := range o.Properties {
		m[k] = v
	}
	m[PropType] = o.Type
	m[PropSpecVersion] = SpecVersion
	m[PropID] = o.ID
	m[PropCreated] = FormatTimestamp(o.Created)
	m[PropModified] = FormatTimestamp(o.Modified)
	m[PropName] = o.Name
	m[PropDescription] = o.Description
	if o.CreatedByRef != "" {
		m[PropCreatedByRef] = o.CreatedByRef
	}
	if len(o.ExternalReferences) > 0 {
		m[PropExternalReferences] = o.ExternalReferences
	}
	return json.Marshal(m)
}
