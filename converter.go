package emb3d

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/emb3d/bundle"
	"github.com/zero-day-ai/emb3d/config"
	"github.com/zero-day-ai/emb3d/discover"
	"github.com/zero-day-ai/emb3d/enrich"
	"github.com/zero-day-ai/emb3d/linker"
	"github.com/zero-day-ai/emb3d/mapping"
	"github.com/zero-day-ai/emb3d/page"
	"github.com/zero-day-ai/emb3d/reconcile"
	"github.com/zero-day-ai/emb3d/stix"
	"github.com/zero-day-ai/emb3d/store"
)

// Stats summarizes a conversion run.
type Stats struct {
	// Objects is the number of canonical records per object type.
	Objects map[string]int

	// Edges is the number of relationships in the bundle.
	Edges int

	// EdgesDropped counts relationships that collided with an existing edge
	// for the same ordered endpoint pair.
	EdgesDropped int

	// PagesEnriched is the number of pages applied to records.
	PagesEnriched int

	// BundleObjects is the total number of objects in the bundle.
	BundleObjects int

	// Reconcile counts reconcile outcomes.
	Reconcile reconcile.Stats
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("bundle_objects", s.BundleObjects),
		slog.Int("edges", s.Edges),
		slog.Int("edges_dropped", s.EdgesDropped),
		slog.Int("pages_enriched", s.PagesEnriched),
		slog.Int("created", s.Reconcile.Created),
		slog.Int("merged", s.Reconcile.Merged),
		slog.Int("recreated", s.Reconcile.Recreated),
	}
	for t, n := range s.Objects {
		attrs = append(attrs, slog.Int(t, n))
	}
	return slog.GroupValue(attrs...)
}

// Converter runs the conversion pipeline described by a configuration.
type Converter struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *runMetrics
	ids     stix.Generator
	now     func() time.Time
}

// New creates a Converter for cfg. A nil cfg selects config.Default().
func New(cfg *config.Config, opts ...Option) (*Converter, error) {
	const op = "emb3d.New"
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError(op, err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Converter{
		cfg:    cfg,
		logger: o.logger,
		tracer: o.tracer,
		ids:    o.ids,
		now:    o.now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(TracerName)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ids == nil {
		gen, err := generatorFor(cfg.IDs)
		if err != nil {
			return nil, NewConfigurationError(op, err)
		}
		c.ids = gen
	}

	m, err := newRunMetrics(o.meter)
	if err != nil {
		return nil, NewInternalError(op, err)
	}
	c.metrics = m
	return c, nil
}

func generatorFor(ids *config.IDsConfig) (stix.Generator, error) {
	if !ids.IsDeterministic() {
		return stix.RandomGenerator{}, nil
	}
	ns, err := ids.GetNamespace()
	if err != nil {
		return nil, err
	}
	return stix.NewDeterministicGenerator(ns), nil
}

// run carries the state of one conversion.
type run struct {
	store    *store.Store
	rec      *reconcile.Reconciler
	identity *stix.Object
	pages    int
}

// Run executes the pipeline and returns the assembled bundle. Nothing is
// written to disk.
func (c *Converter) Run(ctx context.Context) (*stix.Bundle, Stats, error) {
	identity := stix.NewIdentity(c.ids, c.cfg.Identity.GetName(), c.cfg.Identity.GetDescription(), c.now())
	s := store.New()
	r := &run{
		store:    s,
		identity: identity,
		rec: reconcile.New(s,
			reconcile.WithIdentity(identity.ID),
			reconcile.WithGenerator(c.ids),
			reconcile.WithClock(c.now),
			reconcile.WithLogger(c.logger.With("component", "reconcile")),
		),
	}

	if err := c.ingest(ctx, r); err != nil {
		return nil, Stats{}, err
	}
	if err := c.enrich(ctx, r); err != nil {
		return nil, Stats{}, err
	}
	if err := c.link(ctx, r); err != nil {
		return nil, Stats{}, err
	}
	b, err := c.assemble(ctx, r)
	if err != nil {
		return nil, Stats{}, err
	}

	st := s.Stats()
	stats := Stats{
		Objects:       st.Objects,
		Edges:         st.EdgesAdded,
		EdgesDropped:  st.EdgesDropped,
		PagesEnriched: r.pages,
		BundleObjects: b.Len(),
		Reconcile:     r.rec.Stats(),
	}
	c.metrics.record(ctx, stats)
	c.logger.Info("conversion finished", "stats", stats)
	return b, stats, nil
}

// Convert runs the pipeline and writes the bundle to the configured output.
// On failure the output file is left untouched.
func (c *Converter) Convert(ctx context.Context) (Stats, error) {
	b, stats, err := c.Run(ctx)
	if err != nil {
		return stats, err
	}
	out := c.cfg.GetOutput()
	if err := bundle.WriteFile(out, b); err != nil {
		return stats, NewIOError("Converter.write", err).WithContext(map[string]any{"output": out})
	}
	c.logger.Info("bundle written", "output", out, "objects", b.Len())
	return stats, nil
}

func (c *Converter) ingest(ctx context.Context, r *run) (err error) {
	const op = "Converter.ingest"
	ctx, span := c.startStage(ctx, SpanIngest)
	var total mapping.Result
	defer func() {
		endStage(span, err,
			attribute.Int("emb3d.records", total.Records),
			attribute.Int("emb3d.edges_added", total.EdgesAdded),
		)
	}()

	in := mapping.NewIngester(r.rec, c.logger.With("component", "mapping"))
	sources := []struct {
		mapping mapping.Mapping
		path    string
	}{
		{mapping.MitigationMapping(), c.cfg.MitigationsPath()},
		{mapping.PropertyMapping(), c.cfg.PropertiesPath()},
		{mapping.ThreatMapping(), c.cfg.ThreatsPath()},
	}
	for _, src := range sources {
		res, err := c.ingestSource(ctx, in, src.mapping, src.path)
		if err != nil {
			return classify(op, err).WithContext(map[string]any{"source": src.path})
		}
		total.Records += res.Records
		total.EdgesAdded += res.EdgesAdded
	}
	return nil
}

func (c *Converter) ingestSource(ctx context.Context, in *mapping.Ingester, m mapping.Mapping, path string) (mapping.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return mapping.Result{}, err
	}
	defer CloseWithLog(f, c.logger, "mapping source")
	return in.Ingest(ctx, m, f)
}

func (c *Converter) enrich(ctx context.Context, r *run) (err error) {
	const op = "Converter.enrich"
	ctx, span := c.startStage(ctx, SpanEnrich)
	defer func() {
		endStage(span, err, attribute.Int("emb3d.pages", r.pages))
	}()

	docs := c.cfg.Documents
	sel, err := discover.NewSelector(docs.GetSelect())
	if err != nil {
		return classify(op, err)
	}
	root := c.cfg.DocumentsRoot()
	pages, err := discover.Walk(ctx, root, docs.GetSets(), sel)
	if err != nil {
		return classify(op, err).WithContext(map[string]any{"root": root})
	}

	en := enrich.New(r.rec,
		enrich.WithLogger(c.logger.With("component", "enrich")),
		enrich.WithComplianceMappings(docs.GetKeepComplianceMappings()),
	)
	extractors := make(map[string]*page.Extractor)
	for _, p := range pages {
		ex, ok := extractors[p.Set.Kind]
		if !ok {
			ex, err = page.NewExtractor(p.Set.KeyElement, p.Set.Query)
			if err != nil {
				return NewConfigurationError(op, err).WithContext(map[string]any{"set": p.Set.Kind})
			}
			extractors[p.Set.Kind] = ex
		}
		doc, err := ex.ExtractFile(p.Path)
		if err != nil {
			return classify(op, err).WithContext(map[string]any{"page": p.Path})
		}
		if _, err := en.Enrich(ctx, p.Set.Type, doc); err != nil {
			return classify(op, err).WithContext(map[string]any{"page": p.Path, "key": doc.Key})
		}
		r.pages++
	}
	c.logger.Info("pages enriched", "root", root, "pages", r.pages)
	return nil
}

func (c *Converter) link(ctx context.Context, r *run) (err error) {
	const op = "Converter.link"
	ctx, span := c.startStage(ctx, SpanLink)
	var res linker.Result
	defer func() {
		endStage(span, err, attribute.Int("emb3d.edges_added", res.EdgesAdded))
	}()

	path := c.cfg.PropertiesPath()
	f, err := os.Open(path)
	if err != nil {
		return classify(op, err).WithContext(map[string]any{"source": path})
	}
	defer CloseWithLog(f, c.logger, "property mapping")

	res, err = linker.New(r.rec, c.logger.With("component", "linker")).Link(ctx, f)
	if err != nil {
		return classify(op, err).WithContext(map[string]any{"source": path})
	}
	return nil
}

func (c *Converter) assemble(ctx context.Context, r *run) (b *stix.Bundle, err error) {
	const op = "Converter.assemble"
	_, span := c.startStage(ctx, SpanAssemble)
	defer func() {
		n := 0
		if b != nil {
			n = b.Len()
		}
		endStage(span, err, attribute.Int("emb3d.objects", n))
	}()

	a := bundle.New(
		bundle.WithGenerator(c.ids),
		bundle.WithClock(c.now),
		bundle.WithLogger(c.logger.With("component", "bundle")),
	)
	b, err = a.Assemble(r.store, r.identity)
	if err != nil {
		return nil, classify(op, err)
	}
	return b, nil
}

// classify wraps err in a ConvertError whose kind follows the underlying cause.
func classify(op string, err error) *ConvertError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, reconcile.ErrMissingKey),
		errors.Is(err, mapping.ErrMissingList),
		errors.Is(err, mapping.ErrInvalidRelatedRef),
		errors.Is(err, page.ErrMissingElement),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return NewInputError(op, err)
	case errors.Is(err, enrich.ErrTargetNotFound),
		errors.Is(err, linker.ErrUnknownThreat),
		errors.Is(err, fs.ErrNotExist):
		return NewNotFoundError(op, err)
	case errors.Is(err, stix.ErrInvalidID),
		errors.Is(err, stix.ErrInvalidProperty):
		return NewValidationError(op, err)
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, discover.ErrInvalidSelector):
		return NewConfigurationError(op, err)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return NewIOError(op, err)
	}
	return NewInternalError(op, err)
}
