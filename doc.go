// Package emb3d converts the EMB3D threat-model knowledge base into a single
// STIX 2.1 bundle.
//
// The knowledge base is made of three JSON mapping sources (mitigations to
// threats, properties to threats, threats to properties and mitigations) and a
// tree of HTML pages describing individual threats and mitigations. The same
// entity is described, partially, by several of these inputs. The converter
// reconciles every description into one canonical record per entity and links
// the records with typed, deduplicated relationships.
//
// # Pipeline
//
// A run executes four stages in order, all against one canonical store:
//
//   - Ingest: each mapping source is decoded and every record is reconciled,
//     together with the entities it references (see package mapping).
//   - Enrich: pages are discovered (package discover), extracted (package page)
//     and applied section by section to the records they describe (package
//     enrich).
//   - Link: threats that share a property are linked as "similar-to" (package
//     linker).
//   - Assemble: the identity, threat categories, the matrix, every record and
//     every relationship are collected into the bundle (package bundle).
//
// Any failure aborts the run and no bundle is written.
//
// # Getting Started
//
//	cfg, err := config.Load("emb3d.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	conv, err := emb3d.New(cfg, emb3d.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	stats, err := conv.Convert(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Error Handling
//
// Stage failures are returned as *ConvertError carrying the failed operation
// and an error kind. Underlying sentinel errors remain reachable with
// errors.Is:
//
//	if errors.Is(err, enrich.ErrTargetNotFound) {
//		// a page describes an entity no mapping source mentions
//	}
//
// # Observability
//
// The converter logs through log/slog, opens one OpenTelemetry span per stage
// and, when given a meter, counts created and merged entities, edges and
// enriched pages.
package emb3d
