// Package page extracts titled sections of text blocks from knowledge-base HTML
// pages.
package page

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrMissingElement indicates a page lacks an element every page must have: the
// article, its h1 title or the element holding the page key.
var ErrMissingElement = errors.New("page element not found")

// Section is a run of text blocks under one h2 heading. Blocks that precede
// every heading belong to the section with the empty name.
type Section struct {
	Name   string
	Blocks []string
}

// Document is the extracted content of one page.
type Document struct {
	// Source is the file the page was read from, if any.
	Source string

	// Key identifies the entity the page describes.
	Key string

	// Title is the text of the article heading.
	Title string

	// Sections are ordered by the first appearance of their heading. Headings
	// that repeat add to the earlier section.
	Sections []Section
}

// Section returns the blocks of the named section.
func (d *Document) Section(name string) ([]string, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s.Blocks, true
		}
	}
	return nil, false
}

// Extractor reads pages of one document set.
type Extractor struct {
	keyElement string
	query      string
}

// NewExtractor creates an Extractor. keyElement is the id of the div holding the
// page key; query selects the content blocks inside the article.
func NewExtractor(keyElement, query string) (*Extractor, error) {
	if keyElement == "" {
		return nil, errors.New("key element is required")
	}
	if _, err := cascadia.ParseGroup(query); err != nil {
		return nil, fmt.Errorf("block query %q: %w", query, err)
	}
	return &Extractor{keyElement: keyElement, query: query}, nil
}

// ExtractFile reads and extracts the page at path.
func (e *Extractor) ExtractFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := e.Extract(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// Extract parses an HTML page.
func (e *Extractor) Extract(r io.Reader) (*Document, error) {
	root, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	article := root.Find("article").First()
	if article.Length() == 0 {
		return nil, fmt.Errorf("%w: article", ErrMissingElement)
	}
	h1 := article.Find("h1").First()
	if h1.Length() == 0 {
		return nil, fmt.Errorf("%w: article h1", ErrMissingElement)
	}
	key := root.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == e.keyElement
	}).First()
	if key.Length() == 0 {
		return nil, fmt.Errorf("%w: div#%s", ErrMissingElement, e.keyElement)
	}

	doc := &Document{
		Key:   strings.TrimSpace(key.Text()),
		Title: collapse(h1.Text()),
	}

	index := make(map[string]int)
	heading := ""
	article.Find("h2, " + e.query).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "h2" {
			heading = strings.ToLower(collapse(s.Text()))
			return
		}
		block := blockText(s.Get(0))
		if block == "" {
			return
		}
		i, ok := index[heading]
		if !ok {
			i = len(doc.Sections)
			index[heading] = i
			doc.Sections = append(doc.Sections, Section{Name: heading})
		}
		doc.Sections[i].Blocks = append(doc.Sections[i].Blocks, block)
	})
	return doc, nil
}

// blockText joins the text nodes under n with single spaces.
func blockText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
