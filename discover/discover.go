// Package discover finds the knowledge-base pages that belong to each document
// set.
//
// A page is any *.html file below the root directory. Whether it belongs to a
// set is decided by a CEL predicate evaluated with these variables:
//
//	path    string  slash-separated path relative to the root
//	parent  string  name of the directory holding the page
//	stem    string  file name without extension
//	kind    string  set kind, e.g. "threats"
//	code    string  set code, e.g. "TID"
//
// The default predicate keeps pages stored in a directory named after the set
// whose file name starts with the set code.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/emb3d/stix"
)

// DefaultPredicate selects pages stored as <kind>/<code>*.html.
const DefaultPredicate = `parent == kind && stem.startsWith(code)`

// ErrInvalidSelector indicates a selection predicate failed to compile, does not
// evaluate to a bool, or failed during evaluation.
var ErrInvalidSelector = errors.New("invalid page selector")

// Set describes one document set: which pages belong to it and how to read them.
type Set struct {
	// Kind names the set and is exposed to the predicate as "kind".
	Kind string

	// Type is the object type of the entities the pages describe.
	Type string

	// Code is the file-name prefix of the set's pages, exposed as "code".
	Code string

	// KeyElement is the id of the div holding the page key.
	KeyElement string

	// Query selects the content blocks of a page.
	Query string
}

// DefaultSets returns the threat and mitigation document sets.
func DefaultSets() []Set {
	return []Set{
		{
			Kind:       "threats",
			Type:       stix.TypeVulnerability,
			Code:       "TID",
			KeyElement: "threattitle",
			Query:      "article div > *:not(div, h1, h2)",
		},
		{
			Kind:       "mitigations",
			Type:       stix.TypeCourseOfAction,
			Code:       "MID",
			KeyElement: "mitigationTitle",
			Query:      "article > *:not(div, h1, h2)",
		},
	}
}

// Page is a discovered page and the set it belongs to.
type Page struct {
	Path string
	Set  Set
}

// Selector evaluates the page selection predicate.
type Selector struct {
	expr string
	prg  cel.Program
}

// NewSelector compiles expr. An empty expr selects with DefaultPredicate.
func NewSelector(expr string) (*Selector, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultPredicate
	}
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("parent", cel.StringType),
		cel.Variable("stem", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("code", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q evaluates to %s, not bool", ErrInvalidSelector, expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	return &Selector{expr: expr, prg: prg}, nil
}

// String returns the predicate source.
func (s *Selector) String() string {
	return s.expr
}

// Match reports whether the page at rel, a slash-separated path relative to the
// discovery root, belongs to set.
func (s *Selector) Match(rel string, set Set) (bool, error) {
	dir, file := path.Split(rel)
	out, _, err := s.prg.Eval(map[string]any{
		"path":   rel,
		"parent": path.Base(strings.TrimSuffix(dir, "/")),
		"stem":   strings.TrimSuffix(file, path.Ext(file)),
		"kind":   set.Kind,
		"code":   set.Code,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidSelector, rel, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: %s: result is %T", ErrInvalidSelector, rel, out.Value())
	}
	return ok, nil
}

// Walk returns the pages below root that belong to one of sets, in lexical path
// order. A page is assigned to the first set it matches.
func Walk(ctx context.Context, root string, sets []Set, sel *Selector) ([]Page, error) {
	var pages []Page
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, set := range sets {
			ok, err := sel.Match(rel, set)
			if err != nil {
				return err
			}
			if ok {
				pages = append(pages, Page{Path: p, Set: set})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover pages in %s: %w", root, err)
	}
	return pages, nil
}
