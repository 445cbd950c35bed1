package bridge

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DOM is a lightweight document proxy the sandboxed script renders into. It
// is built from the generated markup and records mutations.
type DOM struct {
	root    *Element
	changes []Change
	mu      sync.RWMutex
}

// Element is one node of the document proxy
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	InnerHTML   string
	Attributes  map[string]string
	Children    []*Element
	Parent      *Element
}

// Change records one mutation the script made to the document
type Change struct {
	Type     string // set_text, set_html, set_attribute, append_child
	TargetID string
	Property string
	Value    interface{}
}

// NewDOM parses generated markup into a document proxy
func NewDOM(markup string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	root := &Element{
		TagName:    "document",
		Attributes: make(map[string]string),
	}
	doc.Find("body").Children().Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			root.AddChild(fromNode(node))
		}
	})

	return &DOM{root: root}, nil
}

func fromNode(node *html.Node) *Element {
	elem := &Element{
		TagName:    node.Data,
		Attributes: make(map[string]string),
	}
	for _, attr := range node.Attr {
		elem.Attributes[attr.Key] = attr.Val
		switch attr.Key {
		case "id":
			elem.ID = attr.Val
		case "class":
			elem.ClassName = attr.Val
		}
	}

	var text strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			text.WriteString(child.Data)
		case html.ElementNode:
			elem.AddChild(fromNode(child))
		}
	}
	elem.TextContent = strings.TrimSpace(text.String())
	return elem
}

// GetByID finds one element by id
func (d *DOM) GetByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findByID(d.root, id)
}

// Query finds elements by a simplified selector: #id, .class, or tag
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := findByID(d.root, strings.TrimPrefix(selector, "#")); elem != nil {
			return []*Element{elem}
		}
		return nil
	case strings.HasPrefix(selector, "."):
		return findByClass(d.root, strings.TrimPrefix(selector, "."))
	default:
		return findByTag(d.root, selector)
	}
}

// Record appends one mutation to the change log
func (d *DOM) Record(change Change) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, change)
}

// Changes returns a copy of the accumulated mutations
func (d *DOM) Changes() []Change {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Change{}, d.changes...)
}

// ClearChanges resets the change log, keeping the document tree
func (d *DOM) ClearChanges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = nil
}

// AddChild links a child element into the tree
func (e *Element) AddChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// GetAttribute returns an attribute value, empty when absent
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute stores an attribute value, tracking id and class
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
	switch name {
	case "id":
		e.ID = value
	case "class":
		e.ClassName = value
	}
}

func findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(elem *Element, class string) []*Element {
	var result []*Element
	for _, c := range strings.Fields(elem.ClassName) {
		if c == class {
			result = append(result, elem)
			break
		}
	}
	for _, child := range elem.Children {
		result = append(result, findByClass(child, class)...)
	}
	return result
}

func findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByTag(child, tag)...)
	}
	return result
}
