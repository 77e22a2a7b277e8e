package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zero-day-ai/emb3d/reconcile"
)

// RelatedRef is one item of a related-entity list. It is either an inline
// partial record or a bare business key; exactly one of Inline and Key is set.
type RelatedRef struct {
	Inline reconcile.Record
	Key    string
}

// UnmarshalJSON decodes a JSON object into Inline and a JSON string into Key.
// Any other JSON value is rejected with ErrInvalidRelatedRef.
func (r *RelatedRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidRelatedRef
	}
	switch data[0] {
	case '{':
		var rec reconcile.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		*r = RelatedRef{Inline: rec}
	case '"':
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*r = RelatedRef{Key: key}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidRelatedRef, truncate(data, 32))
	}
	return nil
}

// IsInline reports whether the reference carries a partial record.
func (r RelatedRef) IsInline() bool {
	return r.Inline != nil
}

// BusinessKey returns the key the reference points at.
func (r RelatedRef) BusinessKey() (string, error) {
	if r.IsInline() {
		return r.Inline.Key()
	}
	if r.Key == "" {
		return "", reconcile.ErrMissingKey
	}
	return r.Key, nil
}

// Record returns the reference as a raw record: the inline record itself, or a
// key-only record for a bare reference.
func (r RelatedRef) Record() reconcile.Record {
	if r.IsInline() {
		return r.Inline
	}
	return reconcile.Record{reconcile.KeyField: r.Key}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
