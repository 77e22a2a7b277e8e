package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/zero-day-ai/emb3d/reconcile"
)

var (
	// ErrMissingList indicates the mapping source has no top-level list of the
	// expected name.
	ErrMissingList = errors.New("mapping list not found")

	// ErrInvalidRelatedRef indicates a related-entity list holds an item that is
	// neither an object nor a string.
	ErrInvalidRelatedRef = errors.New("related item must be an object or a string")
)

// Entry is one decoded record of a mapping source.
type Entry struct {
	// Fields holds every field of the record as decoded JSON.
	Fields reconcile.Record

	// Related holds the decoded related-entity lists, keyed by field name. Only
	// fields requested from Decode are present.
	Related map[string][]RelatedRef
}

// Decode reads a mapping source and returns the records of its top-level list
// named list. Each field named in relatedFields is additionally decoded as a list
// of RelatedRef; a missing or null related field yields no references.
func Decode(r io.Reader, list string, relatedFields []string) ([]Entry, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode mapping source: %w", err)
	}
	raw, ok := doc[list]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingList, list)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list: %v", ErrMissingList, list, err)
	}

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		entry, err := decodeEntry(rec, relatedFields)
		if err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", list, i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeEntry(data json.RawMessage, relatedFields []string) (Entry, error) {
	var fields reconcile.Record
	if err := json.Unmarshal(data, &fields); err != nil {
		return Entry{}, err
	}
	if fields == nil {
		return Entry{}, errors.New("record is null")
	}
	entry := Entry{Fields: fields, Related: make(map[string][]RelatedRef, len(relatedFields))}
	if len(relatedFields) == 0 {
		return entry, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}
	for _, f := range relatedFields {
		v, ok := raw[f]
		if !ok {
			continue
		}
		var refs []RelatedRef
		if err := json.Unmarshal(v, &refs); err != nil {
			return Entry{}, fmt.Errorf("field %q: %w", f, err)
		}
		entry.Related[f] = refs
	}
	return entry, nil
}
