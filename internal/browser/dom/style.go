// browser/dom/style.go
package dom

import (
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/aymerick/douceur/css"
	cssparser "github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// userAgentCSS covers the UA rules that decide whether an element is rendered at all.
const userAgentCSS = `
[hidden], head, script, style, template, title, meta, link, base, noscript, datalist,
area, param, source, track, input[type="hidden"] { display: none; }
dialog:not([open]) { display: none; }
`

// inheritedProperties are the tracked properties that inherit by default.
var inheritedProperties = map[string]bool{"visibility": true}

// origin ranks where a declaration came from.
type origin int

const (
	originUserAgent origin = iota
	originAuthor
	originInline
)

type styleRule struct {
	sel          cascadia.Sel
	specificity  cascadia.Specificity
	declarations []*css.Declaration
	origin       origin
	order        int
}

type matchedDeclaration struct {
	decl        *css.Declaration
	specificity cascadia.Specificity
	origin      origin
	order       int
}

// ComputedStyle holds the cascaded values of one element.
type ComputedStyle map[string]string

// Get returns the computed value or fallback.
func (cs ComputedStyle) Get(property, fallback string) string {
	if v, ok := cs[property]; ok && v != "" {
		return v
	}
	return fallback
}

// StyleEngine computes styles from the UA sheet, the document's <style> blocks and
// inline style attributes.
type StyleEngine struct {
	rules []styleRule

	mu       sync.Mutex
	computed map[*html.Node]ComputedStyle
}

var (
	uaRulesOnce sync.Once
	uaRules     []styleRule
)

func userAgentRules() []styleRule {
	uaRulesOnce.Do(func() {
		uaRules = compileSheet(userAgentCSS, originUserAgent, new(int))
	})
	return uaRules
}

// NewStyleEngine compiles every <style> element under root.
func NewStyleEngine(root *html.Node) *StyleEngine {
	se := &StyleEngine{computed: make(map[*html.Node]ComputedStyle)}
	se.rules = append(se.rules, userAgentRules()...)
	order := len(se.rules)
	for _, n := range htmlquery.Find(root, "//style") {
		if media := strings.ToLower(htmlquery.SelectAttr(n, "media")); media != "" && !mediaApplies(media) {
			continue
		}
		se.rules = append(se.rules, compileSheet(htmlquery.InnerText(n), originAuthor, &order)...)
	}
	return se
}

func compileSheet(text string, o origin, order *int) []styleRule {
	sheet, err := cssparser.Parse(text)
	if err != nil {
		return nil
	}
	var out []styleRule
	var walk func(rules []*css.Rule)
	walk = func(rules []*css.Rule) {
		for _, r := range rules {
			if r.Kind == css.AtRule {
				name := strings.TrimPrefix(strings.ToLower(r.Name), "@")
				if (name == "media" && mediaApplies(strings.ToLower(r.Prelude))) || name == "supports" {
					walk(r.Rules)
				}
				continue
			}
			for _, s := range r.Selectors {
				sel, err := cascadia.Parse(s)
				if err != nil {
					continue
				}
				out = append(out, styleRule{
					sel:          sel,
					specificity:  sel.Specificity(),
					declarations: r.Declarations,
					origin:       o,
					order:        *order,
				})
				*order++
			}
		}
	}
	walk(sheet.Rules)
	return out
}

// mediaApplies accepts only unconditional screen media. Queries with features are
// skipped because there is no viewport to evaluate them against.
func mediaApplies(query string) bool {
	if strings.Contains(query, "(") {
		return false
	}
	for _, part := range strings.Split(query, ",") {
		switch strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "only ")) {
		case "", "all", "screen":
			return true
		}
	}
	return false
}

// priority orders origins and importance: UA < author < inline < author! < inline! < UA!.
func (m matchedDeclaration) priority() int {
	switch m.origin {
	case originUserAgent:
		if m.decl.Important {
			return 6
		}
		return 1
	case originAuthor:
		if m.decl.Important {
			return 4
		}
		return 2
	default:
		if m.decl.Important {
			return 5
		}
		return 3
	}
}

// Compute returns the computed style of an element node.
func (se *StyleEngine) Compute(n *html.Node) ComputedStyle {
	if n == nil || n.Type != html.ElementNode {
		return ComputedStyle{}
	}
	se.mu.Lock()
	if cs, ok := se.computed[n]; ok {
		se.mu.Unlock()
		return cs
	}
	se.mu.Unlock()

	var parent ComputedStyle
	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		parent = se.Compute(p)
	}
	cs := se.cascade(n, parent)

	se.mu.Lock()
	se.computed[n] = cs
	se.mu.Unlock()
	return cs
}

func (se *StyleEngine) cascade(n *html.Node, parent ComputedStyle) ComputedStyle {
	var matched []matchedDeclaration
	for _, r := range se.rules {
		if !r.sel.Match(n) {
			continue
		}
		for _, d := range r.declarations {
			matched = append(matched, matchedDeclaration{decl: d, specificity: r.specificity, origin: r.origin, order: r.order})
		}
	}
	if inline := htmlquery.SelectAttr(n, "style"); inline != "" {
		// The parser loses the value of a final declaration without a semicolon.
		if inline = strings.TrimSpace(inline); !strings.HasSuffix(inline, ";") {
			inline += ";"
		}
		if decls, err := cssparser.ParseDeclarations(inline); err == nil {
			for i, d := range decls {
				matched = append(matched, matchedDeclaration{
					decl:        d,
					specificity: cascadia.Specificity{1, 0, 0},
					origin:      originInline,
					order:       len(se.rules) + i,
				})
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if pa, pb := a.priority(), b.priority(); pa != pb {
			return pa < pb
		}
		if a.specificity != b.specificity {
			return a.specificity.Less(b.specificity)
		}
		return a.order < b.order
	})

	cs := ComputedStyle{}
	for _, m := range matched {
		v := strings.ToLower(strings.TrimSpace(m.decl.Value))
		if v == "" {
			continue
		}
		cs[strings.ToLower(m.decl.Property)] = v
	}

	for prop, val := range cs {
		if val == "inherit" {
			if pv, ok := parent[prop]; ok {
				cs[prop] = pv
			} else {
				delete(cs, prop)
			}
		} else if val == "initial" || (val == "unset" && !inheritedProperties[prop]) {
			delete(cs, prop)
		}
	}
	for prop := range inheritedProperties {
		if v, ok := cs[prop]; !ok || v == "unset" {
			if pv, ok := parent[prop]; ok {
				cs[prop] = pv
			} else {
				delete(cs, prop)
			}
		}
	}
	return cs
}

// Display returns the computed display value.
func (se *StyleEngine) Display(n *html.Node) string {
	return se.Compute(n).Get("display", "inline")
}

// Visibility returns the computed visibility value.
func (se *StyleEngine) Visibility(n *html.Node) string {
	return se.Compute(n).Get("visibility", "visible")
}

// Position returns the computed position value.
func (se *StyleEngine) Position(n *html.Node) string {
	return se.Compute(n).Get("position", "static")
}

// HasLayoutParent approximates a non-null offsetParent: no inclusive ancestor is
// display:none, and the element itself is not fixed-position.
func (se *StyleEngine) HasLayoutParent(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if tag := strings.ToLower(n.Data); tag == "body" || tag == "html" {
		return false
	}
	if se.Position(n) == "fixed" {
		return false
	}
	for a := n; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if se.Display(a) == "none" {
			return false
		}
	}
	return true
}
