// Package normalize cleans raw mapping-source fields before they are copied onto
// canonical records.
package normalize

import (
	"strings"
	"unicode"
)

// KeySet is a set of field names.
type KeySet map[string]struct{}

// Keys builds a KeySet from names.
func Keys(names ...string) KeySet {
	s := make(KeySet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set. A nil set contains nothing.
func (s KeySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Normalizer transforms a field value.
type Normalizer func(any) any

// rule renames a field and optionally transforms its value.
type rule struct {
	target    string
	normalize Normalizer
}

// rules holds the fields that are retagged as x_ extension properties.
var rules = map[string]rule{
	"level":    {target: "x_level"},
	"category": {target: "x_category", normalize: SlugValue},
}

// Clean returns a new map holding fields minus any key in exclude, with the
// severity field ("level") renamed to x_level and the classification field
// ("category") slugged into x_category. All other fields pass through unchanged.
// The input map is not modified.
func Clean(fields map[string]any, exclude KeySet) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if exclude.Has(k) {
			continue
		}
		r, ok := rules[k]
		if !ok {
			out[k] = v
			continue
		}
		if r.normalize != nil {
			v = r.normalize(v)
		}
		out[r.target] = v
	}
	return out
}

// SlugValue applies Slug to string values and returns anything else unchanged.
func SlugValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return Slug(s)
}

// Slug inserts "-" before every upper-case ASCII letter that is not the first
// character, removes spaces and lower-cases the result:
//
//	Slug("System Software")     // "system-software"
//	Slug("ApplicationSoftware") // "application-software"
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
		}
		if r == ' ' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
