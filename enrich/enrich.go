// Package enrich applies the sections of extracted pages to the canonical
// records created from the mapping sources.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zero-day-ai/emb3d/page"
	"github.com/zero-day-ai/emb3d/reconcile"
	"github.com/zero-day-ai/emb3d/stix"
)

// Section names with dedicated handling. Any other section is stored verbatim
// as a property named after the section.
const (
	SectionTitle             = "title"
	SectionDescription       = "description"
	SectionThreatDescription = "threat description"
	SectionCompliance        = "iec 62443 4-2 mappings"
	SectionMaturity          = "threat maturity and evidence"
	SectionReferences        = "references"
	SectionCWE               = "cwe"
	SectionCVE               = "cve"
)

// Properties written by the enricher.
const (
	PropMaturity           = "x_maturity"
	PropComplianceMappings = "x_compliance_mappings"
)

// ReferenceSource is the source_name of references taken from a page.
const ReferenceSource = "mitre"

// ErrTargetNotFound indicates a page describes an entity that no mapping source
// created.
var ErrTargetNotFound = errors.New("enrichment target not found")

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Result summarizes the enrichment of one page.
type Result struct {
	Sections     int
	Skipped      int
	Weaknesses   int
	CVEs         int
	EdgesAdded   int
	EdgesDropped int
}

// Enricher applies extracted pages to a reconciler's store.
type Enricher struct {
	rec            *reconcile.Reconciler
	logger         *slog.Logger
	keepCompliance bool
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// WithComplianceMappings stores the compliance mapping section as
// x_compliance_mappings instead of discarding it.
func WithComplianceMappings(keep bool) Option {
	return func(e *Enricher) {
		e.keepCompliance = keep
	}
}

// New creates an Enricher writing through rec.
func New(rec *reconcile.Reconciler, opts ...Option) *Enricher {
	e := &Enricher{rec: rec}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Enrich applies doc to the record of objectType keyed by doc.Key. The page
// title is applied first, then every section in page order, each as a new
// version of the record.
//
// Returns ErrTargetNotFound if the store has no such record.
func (e *Enricher) Enrich(ctx context.Context, objectType string, doc *page.Document) (Result, error) {
	var res Result
	if err := ctx.Err(); err != nil {
		return res, err
	}
	target, ok := e.rec.Store().Get(objectType, doc.Key)
	if !ok {
		return res, fmt.Errorf("%w: %s %q (%s)", ErrTargetNotFound, objectType, doc.Key, doc.Source)
	}

	sections := doc.Sections
	if doc.Title != "" {
		sections = append([]page.Section{{Name: SectionTitle, Blocks: []string{doc.Title}}}, sections...)
	}
	for _, s := range sections {
		applied, err := e.apply(objectType, doc.Key, target.ID, s, &res)
		if err != nil {
			return res, fmt.Errorf("enrich %s %q section %q: %w", objectType, doc.Key, s.Name, err)
		}
		if applied {
			res.Sections++
		} else {
			res.Skipped++
		}
	}

	e.logger.Debug("page enriched",
		"type", objectType,
		"key", doc.Key,
		"sections", res.Sections,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (e *Enricher) apply(objectType, key, targetID string, s page.Section, res *Result) (bool, error) {
	switch s.Name {
	case "":
		e.logger.Debug("ignoring blocks before first heading", "key", key, "blocks", len(s.Blocks))
		return false, nil
	case SectionTitle:
		return e.update(objectType, key, stix.PropName, strings.Join(s.Blocks, " "))
	case SectionDescription, SectionThreatDescription:
		return e.update(objectType, key, stix.PropDescription, strings.Join(s.Blocks, ""))
	case SectionCompliance:
		if !e.keepCompliance {
			e.logger.Debug("discarding compliance mappings", "key", key, "blocks", len(s.Blocks))
			return false, nil
		}
		return e.update(objectType, key, PropComplianceMappings, s.Blocks)
	case SectionMaturity:
		return e.update(objectType, key, PropMaturity, s.Blocks)
	case SectionReferences:
		return e.update(objectType, key, stix.PropExternalReferences, References(s.Blocks))
	case SectionCWE:
		return true, e.citeWeaknesses(targetID, s.Blocks, res)
	case SectionCVE:
		return true, e.citeVulnerabilities(targetID, s.Blocks, res)
	default:
		applied, err := e.update(objectType, key, s.Name, s.Blocks)
		if errors.Is(err, stix.ErrUnmodifiableProperty) || errors.Is(err, stix.ErrInvalidProperty) {
			e.logger.Warn("skipping section", "key", key, "section", s.Name, "reason", err)
			return false, nil
		}
		return applied, err
	}
}

func (e *Enricher) update(objectType, key, prop string, value any) (bool, error) {
	if _, err := e.rec.Update(objectType, key, map[string]any{prop: value}); err != nil {
		return false, err
	}
	return true, nil
}

// citeWeaknesses links a weakness to the target for every "<name>: <description>"
// block, creating weaknesses that do not exist yet.
func (e *Enricher) citeWeaknesses(targetID string, blocks []string, res *Result) error {
	for _, block := range blocks {
		name, desc := ParseCWE(block)
		if name == "" {
			continue
		}
		w, outcome, err := e.rec.Ensure(reconcile.Record{
			reconcile.KeyField:   name,
			stix.PropDescription: desc,
		}, stix.TypeWeakness)
		if err != nil {
			return err
		}
		if outcome == reconcile.OutcomeCreated {
			res.Weaknesses++
		}
		e.link(w.ID, targetID, res)
	}
	return nil
}

// citeVulnerabilities links a vulnerability to the target for every block that
// names a CVE. Blocks without a CVE identifier are skipped.
func (e *Enricher) citeVulnerabilities(targetID string, blocks []string, res *Result) error {
	for _, block := range blocks {
		name, ok := ParseCVE(block)
		if !ok {
			e.logger.Debug("no CVE identifier in citation", "block", block)
			continue
		}
		v, outcome, err := e.rec.Ensure(reconcile.Record{
			reconcile.KeyField:   name,
			stix.PropDescription: block,
		}, stix.TypeVulnerability)
		if err != nil {
			return err
		}
		if outcome == reconcile.OutcomeCreated {
			res.CVEs++
		}
		e.link(v.ID, targetID, res)
	}
	return nil
}

func (e *Enricher) link(sourceID, targetID string, res *Result) {
	if e.rec.Link(sourceID, targetID, stix.RelRelatedTo) {
		res.EdgesAdded++
	} else {
		res.EdgesDropped++
	}
}

// References builds external references from reference blocks. Each block must
// contain an http(s) URL; blocks without one are dropped.
func References(blocks []string) []stix.ExternalReference {
	refs := make([]stix.ExternalReference, 0, len(blocks))
	for _, block := range blocks {
		url := urlPattern.FindString(block)
		if url == "" {
			continue
		}
		refs = append(refs, stix.ExternalReference{
			SourceName:  ReferenceSource,
			Description: block,
			URL:         url,
		})
	}
	return refs
}

// ParseCWE splits a "<name>: <description>" citation on its first colon.
func ParseCWE(block string) (name, description string) {
	name, description, _ = strings.Cut(block, ":")
	return strings.TrimSpace(name), strings.TrimSpace(description)
}

// ParseCVE returns the first whitespace-separated token of block that starts
// with "CVE-".
func ParseCVE(block string) (string, bool) {
	for _, tok := range strings.Fields(block) {
		if strings.HasPrefix(tok, "CVE-") {
			return tok, true
		}
	}
	return "", false
}
