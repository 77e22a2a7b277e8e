// Package mapping ingests the structured mapping sources of the knowledge base.
//
// Each source is a JSON document with one top-level list of records. A Mapping
// describes how one source is read: the primary object type of its records, the
// fields that name related entities, and the fields that must not be copied onto
// the primary record. The Ingester reconciles every primary record, reconciles
// or stubs every related entity, and adds one edge per related item.
//
// Three mappings ship with the package:
//
//	MitigationMapping()  mitigations -> threats          (mitigates)
//	PropertyMapping()    properties  -> threats, subProps (has, is-subs-of; reversed)
//	ThreatMapping()      threats     -> properties        (has)
//	                     threats     <- mitigations       (mitigates; reversed)
package mapping
