package stix

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// EMB3D organization defaults.
const (
	EMB3DName        = "EMB3D"
	EMB3DDescription = "The EMB3D Threat Model provides a cultivated knowledge base of cyber threats to embedded devices, providing a common understanding of these threats with security mechanisms to mitigate them."
	MatrixName       = "EMB3D Framework"
	MatrixURL        = "https://github.com/mitre/emb3d"
	categoryURL      = "https://emb3d.mitre.org/threats/%s.html"
)

// Custom property names of the catalog objects.
const (
	PropIdentityClass = "identity_class"
	PropShortname     = "x_mitre_shortname"
	PropCategoryRefs  = "category_refs"
)

// KnownCategories are the EMB3D threat categories (ATT&CK-style tactics).
var KnownCategories = []string{
	"hardware",
	"system-software",
	"application-software",
	"networking",
}

// IsKnownCategory reports whether shortname is one of KnownCategories.
func IsKnownCategory(shortname string) bool {
	for _, c := range KnownCategories {
		if c == shortname {
			return true
		}
	}
	return false
}

// NewIdentity creates the organization identity that authors the bundle.
// Empty name or description fall back to the EMB3D defaults.
func NewIdentity(gen Generator, name, description string, now time.Time) *Object {
	if name == "" {
		name = EMB3DName
	}
	if description == "" {
		description = EMB3DDescription
	}
	return NewObject(TypeIdentity, gen.NewID(TypeIdentity, name), now).
		WithName(name).
		WithDescription(description).
		WithProperty(PropIdentityClass, "organization")
}

// CategoryShortname converts a category name to its x_mitre_shortname.
func CategoryShortname(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// NewCategory creates an x-mitre-category for one threat category value.
func NewCategory(gen Generator, name, identityRef string, now time.Time) *Object {
	return NewObject(TypeCategory, gen.NewID(TypeCategory, name), now).
		WithName(name).
		WithDescription(capitalize(name)).
		WithCreatedBy(identityRef).
		WithProperty(PropShortname, CategoryShortname(name)).
		WithExternalReferences(ExternalReference{
			SourceName: EMB3DName,
			ExternalID: name,
			URL:        fmt.Sprintf(categoryURL, name),
		})
}

// NewMatrix creates the x-mitre-matrix referencing every category.
func NewMatrix(gen Generator, categoryRefs []string, identityRef string, now time.Time) *Object {
	refs := append([]string{}, categoryRefs...)
	return NewObject(TypeMatrix, gen.NewID(TypeMatrix, MatrixName), now).
		WithName(MatrixName).
		WithDescription(EMB3DDescription).
		WithCreatedBy(identityRef).
		WithProperty(PropCategoryRefs, refs).
		WithExternalReferences(ExternalReference{
			SourceName: EMB3DName,
			ExternalID: EMB3DName,
			URL:        MatrixURL,
		})
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
