package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DOM provides a lightweight document proxy for sandboxed JavaScript.
// It is only touched from the runtime that owns it.
type DOM struct {
	root    *Element
	changes []DOMChange
}

// Listener is an event handler bound by page script
type Listener func() error

// Element represents a DOM element
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Style       map[string]string
	Children    []*Element
	Parent      *Element

	dom       *DOM
	listeners map[string][]Listener
}

// Script is an executable script element in document order
type Script struct {
	Src  string
	Text string
}

// ParseDOM builds a DOM from an HTML document
func ParseDOM(markup string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	d := &DOM{}
	d.root = d.newElement("document", nil)
	for _, n := range doc.Nodes {
		d.build(d.root, n)
	}
	return d, nil
}

func (d *DOM) newElement(tag string, attrs []html.Attribute) *Element {
	e := &Element{
		TagName:    tag,
		Attributes: make(map[string]string, len(attrs)),
		Style:      make(map[string]string),
		dom:        d,
		listeners:  make(map[string][]Listener),
	}
	for _, a := range attrs {
		e.Attributes[a.Key] = a.Val
		switch a.Key {
		case "id":
			e.ID = a.Val
		case "class":
			e.ClassName = a.Val
		case "style":
			e.Style = parseStyle(a.Val)
		}
	}
	return e
}

func (d *DOM) build(parent *Element, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			child := d.newElement(strings.ToLower(c.Data), c.Attr)
			child.TextContent = textOf(c)
			parent.AddElement(child)
			d.build(child, c)
		case html.DocumentNode:
			d.build(parent, c)
		}
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func parseStyle(decl string) map[string]string {
	style := make(map[string]string)
	for _, part := range strings.Split(decl, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			style[name] = strings.TrimSpace(value)
		}
	}
	return style
}

// Query finds elements by selector (simplified)
func (d *DOM) Query(selector string) []*Element {
	selector = strings.TrimSpace(selector)

	if strings.HasPrefix(selector, "#") {
		if elem := d.findByID(d.root, strings.TrimPrefix(selector, "#")); elem != nil {
			return []*Element{elem}
		}
		return nil
	}
	if strings.HasPrefix(selector, ".") {
		return d.findByClass(d.root, strings.TrimPrefix(selector, "."))
	}
	return d.findByTag(d.root, selector)
}

// ByID returns the element with the given id
func (d *DOM) ByID(id string) *Element {
	return d.findByID(d.root, id)
}

// Scripts returns script elements in document order
func (d *DOM) Scripts() []Script {
	var scripts []Script
	for _, e := range d.findByTag(d.root, "script") {
		scripts = append(scripts, Script{Src: e.Attributes["src"], Text: e.TextContent})
	}
	return scripts
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	return append([]DOMChange{}, d.changes...)
}

// RecordChange adds a DOM change
func (d *DOM) RecordChange(change DOMChange) {
	d.changes = append(d.changes, change)
}

// Element methods

// GetAttribute retrieves attribute value
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute sets attribute value and records change
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
	switch name {
	case "id":
		e.ID = value
	case "class":
		e.ClassName = value
	case "style":
		e.Style = parseStyle(value)
	}
	e.record("set_attribute", name, value)
}

// SetText replaces the element text
func (e *Element) SetText(text string) {
	e.TextContent = text
	e.Children = nil
	e.record("set_text", "textContent", text)
}

// SetStyle sets one inline style property
func (e *Element) SetStyle(property, value string) {
	e.Style[property] = value
	e.record("set_style", property, value)
}

// Visible reports whether inline style hides the element
func (e *Element) Visible() bool {
	for el := e; el != nil; el = el.Parent {
		if el.Style["display"] == "none" || el.Style["visibility"] == "hidden" {
			return false
		}
	}
	return true
}

// AddListener binds a handler for an event type
func (e *Element) AddListener(event string, l Listener) {
	e.listeners[event] = append(e.listeners[event], l)
}

// Listeners returns the handlers bound for an event type
func (e *Element) Listeners(event string) []Listener {
	return append([]Listener{}, e.listeners[event]...)
}

// State snapshots the element
func (e *Element) State() ElementState {
	style := make(map[string]string, len(e.Style))
	for k, v := range e.Style {
		style[k] = v
	}
	return ElementState{
		ID:      e.ID,
		Tag:     e.TagName,
		Text:    e.TextContent,
		Style:   style,
		Visible: e.Visible(),
	}
}

func (e *Element) record(kind, property, value string) {
	if e.dom == nil {
		return
	}
	target := e.ID
	if target == "" {
		target = e.TagName
	}
	e.dom.RecordChange(DOMChange{Type: kind, Target: target, Property: property, Value: value})
}

// Helper methods for querying

func (d *DOM) findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := d.findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func (d *DOM) findByClass(elem *Element, class string) []*Element {
	var result []*Element
	for _, c := range strings.Fields(elem.ClassName) {
		if c == class {
			result = append(result, elem)
			break
		}
	}
	for _, child := range elem.Children {
		result = append(result, d.findByClass(child, class)...)
	}
	return result
}

func (d *DOM) findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByTag(child, tag)...)
	}
	return result
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}
