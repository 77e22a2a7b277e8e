package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/emb3d/normalize"
	"github.com/zero-day-ai/emb3d/stix"
	"github.com/zero-day-ai/emb3d/store"
)

const identityRef = "identity--6d3c3c43-1b8f-4c3e-9a53-0d1f5b1f0a11"

// steppingClock returns a clock that advances one second per reading.
func steppingClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newReconciler() (*Reconciler, *store.Store) {
	s := store.New()
	return New(s, WithIdentity(identityRef), WithClock(steppingClock())), s
}

func TestReconcileTwiceUnionsFields(t *testing.T) {
	r, s := newReconciler()
	exclude := normalize.Keys("id")

	first, out, err := r.Reconcile(Record{"id": "TID-101", "level": "high"}, stix.TypeVulnerability, exclude)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out)

	second, out, err := r.Reconcile(Record{"id": "TID-101", "category": "System Software"}, stix.TypeVulnerability, exclude)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, out)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Created, second.Created)
	assert.True(t, second.Modified.After(first.Modified))
	assert.Equal(t, "high", second.Properties["x_level"])
	assert.Equal(t, "system-software", second.Properties["x_category"])

	got, ok := s.Get(stix.TypeVulnerability, "TID-101")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, s.Objects(stix.TypeVulnerability), 1)
}

func TestReconcileMergeOverwritesLastValueWins(t *testing.T) {
	r, _ := newReconciler()

	_, _, err := r.Reconcile(Record{"id": "MID-001", "description": "old", "level": "Foundational"}, stix.TypeCourseOfAction, normalize.Keys("id"))
	require.NoError(t, err)
	got, _, err := r.Reconcile(Record{"id": "MID-001", "description": "new"}, stix.TypeCourseOfAction, normalize.Keys("id"))
	require.NoError(t, err)

	assert.Equal(t, "new", got.Description)
	assert.Equal(t, "Foundational", got.Properties["x_level"])
	assert.Equal(t, "MID-001", got.Name)
}

func TestReconcileUnknownKeyMintsFreshID(t *testing.T) {
	r, _ := newReconciler()
	seen := map[string]bool{}
	for _, key := range []string{"PID-11", "PID-12", "PID-13"} {
		obj, out, err := r.Reconcile(Record{"id": key}, stix.TypeProperty, normalize.Keys("id"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, out)
		assert.True(t, strings.HasPrefix(obj.ID, "property--"))
		require.NoError(t, obj.Validate())
		assert.False(t, seen[obj.ID])
		seen[obj.ID] = true
		assert.Equal(t, key, obj.Name)
		assert.Equal(t, identityRef, obj.CreatedByRef)
	}
}

func TestReconcileDescriptionFallsBackToText(t *testing.T) {
	r, _ := newReconciler()

	obj, _, err := r.Reconcile(Record{"id": "PID-11", "text": "Device has a microprocessor"}, stix.TypeProperty, normalize.Keys("id"))
	require.NoError(t, err)
	assert.Equal(t, "Device has a microprocessor", obj.Description)
	assert.Equal(t, "Device has a microprocessor", obj.Properties[stix.PropText])

	obj, _, err = r.Reconcile(Record{"id": "PID-12"}, stix.TypeProperty, normalize.Keys("id"))
	require.NoError(t, err)
	assert.Equal(t, "", obj.Description)
}

func TestReconcileMergeTakesDescriptionFromText(t *testing.T) {
	r, _ := newReconciler()
	exclude := normalize.Keys("id")

	stub, _, err := r.Reconcile(Record{"id": "PID-11"}, stix.TypeProperty, exclude)
	require.NoError(t, err)
	require.Empty(t, stub.Description)

	merged, out, err := r.Reconcile(Record{"id": "PID-11", "text": "Device has a microprocessor"}, stix.TypeProperty, exclude)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, out)
	assert.Equal(t, stub.ID, merged.ID)
	assert.Equal(t, "Device has a microprocessor", merged.Description)

	explicit, _, err := r.Reconcile(Record{"id": "PID-11", "description": "kept", "text": "ignored"}, stix.TypeProperty, exclude)
	require.NoError(t, err)
	assert.Equal(t, "kept", explicit.Description)
}

func TestReconcileMissingKey(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{name: "absent", rec: Record{"name": "x"}},
		{name: "empty", rec: Record{"id": ""}},
		{name: "not a string", rec: Record{"id": 12.0}},
		{name: "null", rec: Record{"id": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s := newReconciler()
			_, _, err := r.Reconcile(tt.rec, stix.TypeVulnerability, nil)
			require.ErrorIs(t, err, ErrMissingKey)
			assert.Empty(t, s.Objects(stix.TypeVulnerability))
		})
	}
}

func TestReconcileUnmodifiableFallsBackToMint(t *testing.T) {
	r, s := newReconciler()

	first, _, err := r.Reconcile(Record{"id": "TID-101", "level": "high"}, stix.TypeVulnerability, normalize.Keys("id"))
	require.NoError(t, err)

	// "id" is not excluded here, so the merge would rewrite an unmodifiable property.
	second, out, err := r.Reconcile(Record{"id": "TID-101", "category": "Hardware"}, stix.TypeVulnerability, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecreated, out)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "hardware", second.Properties["x_category"])
	_, hasLevel := second.Property("x_level")
	assert.False(t, hasLevel)

	got, _ := s.Get(stix.TypeVulnerability, "TID-101")
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Stats().Recreated)
}

func TestReconcileInvalidPropertyIsFatal(t *testing.T) {
	r, _ := newReconciler()
	_, _, err := r.Reconcile(Record{"id": "TID-101"}, stix.TypeVulnerability, normalize.Keys("id"))
	require.NoError(t, err)

	_, _, err = r.Reconcile(Record{"id": "TID-101", "name": 7.0}, stix.TypeVulnerability, normalize.Keys("id"))
	require.ErrorIs(t, err, stix.ErrInvalidProperty)
}

func TestEnsureReturnsExistingUnchanged(t *testing.T) {
	r, _ := newReconciler()

	stub, out, err := r.Ensure(Record{"id": "PID-111"}, stix.TypeProperty)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out)
	assert.Empty(t, stub.Properties)

	again, out, err := r.Ensure(Record{"id": "PID-111", "description": "ignored"}, stix.TypeProperty)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExisting, out)
	assert.Same(t, stub, again)
	assert.Equal(t, "", again.Description)
}

func TestEnsureUsesDescription(t *testing.T) {
	r, _ := newReconciler()
	w, _, err := r.Ensure(Record{"id": "CWE-79", "description": "Cross-site Scripting"}, stix.TypeWeakness)
	require.NoError(t, err)
	assert.Equal(t, "CWE-79", w.Name)
	assert.Equal(t, "Cross-site Scripting", w.Description)
	assert.True(t, strings.HasPrefix(w.ID, "weakness--"))
}

func TestUpdate(t *testing.T) {
	r, _ := newReconciler()
	_, _, err := r.Reconcile(Record{"id": "TID-101"}, stix.TypeVulnerability, normalize.Keys("id"))
	require.NoError(t, err)

	got, err := r.Update(stix.TypeVulnerability, "TID-101", map[string]any{"name": "Power Analysis"})
	require.NoError(t, err)
	assert.Equal(t, "Power Analysis", got.Name)

	_, err = r.Update(stix.TypeVulnerability, "TID-101", map[string]any{"created": "now"})
	require.ErrorIs(t, err, stix.ErrUnmodifiableProperty)

	_, err = r.Update(stix.TypeVulnerability, "TID-999", map[string]any{"name": "x"})
	require.Error(t, err)
}

func TestLinkFirstWriterWins(t *testing.T) {
	r, s := newReconciler()

	assert.True(t, r.Link("course-of-action--a", "vulnerability--b", stix.RelMitigates))
	assert.False(t, r.Link("course-of-action--a", "vulnerability--b", stix.RelRelatedTo))

	edges := s.Relationships()
	require.Len(t, edges, 1)
	assert.Equal(t, stix.RelMitigates, edges[0].RelationshipType)
	require.NoError(t, stix.ValidateID(edges[0].ID, stix.TypeRelationship))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "merged", OutcomeMerged.String())
	assert.Equal(t, "recreated", OutcomeRecreated.String())
	assert.Equal(t, "existing", OutcomeExisting.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
