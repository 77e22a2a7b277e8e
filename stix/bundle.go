package stix

import "encoding/json"

// Bundle is the single output collection of a conversion run.
type Bundle struct {
	ID      string
	Objects []json.Marshaler
}

// NewBundle creates an empty bundle with the given ID.
func NewBundle(id string) *Bundle {
	return &Bundle{ID: id}
}

// Add appends objects to the bundle in order.
func (b *Bundle) Add(objs ...json.Marshaler) {
	b.Objects = append(b.Objects, objs...)
}

// Len returns the number of objects in the bundle.
func (b *Bundle) Len() int {
	return len(b.Objects)
}

// MarshalJSON renders the bundle as a STIX bundle.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	objects := b.Objects
	if objects == nil {
		objects = []json.Marshaler{}
	}
	return json.Marshal(struct {
		Type    string           `json:"type"`
		ID      string           `json:"id"`
		Objects []json.Marshaler `json:"objects"`
	}{
		Type:    TypeBundle,
		ID:      b.ID,
		Objects: objects,
	})
}
