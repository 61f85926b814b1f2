// Package resolve turns ordered candidate-selector lists into concrete DOM
// nodes. Resolution is a single point-in-time query against a parsed
// snapshot: waiting and retrying are executor concerns, never resolver ones.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
)

// ErrNotFound is returned when no candidate in a list produced a match.
var ErrNotFound = errors.New("no candidate selector matched")

// ResolvedElement is a handle to a node located in one snapshot. It is
// owned for the duration of a single action; navigation invalidates it.
type ResolvedElement struct {
	// Node is the matched node within the snapshot the resolver was given.
	Node *html.Node
	// StrategyIndex is the position of the winning candidate in its list.
	StrategyIndex int
	// Target re-addresses the element in the live page (rendered selector).
	Target schemas.Target
}

// Text returns the normalized-whitespace inner text of the resolved node.
func (r *ResolvedElement) Text() string {
	return strings.TrimSpace(htmlquery.InnerText(r.Node))
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes named parameters into a candidate pattern. When any
// referenced parameter is missing the literal pattern is returned unchanged,
// which in practice makes the candidate match nothing and fall through.
func Render(pattern string, params map[string]string) string {
	if !strings.Contains(pattern, "{") {
		return pattern
	}
	complete := true
	rendered := placeholderRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := params[name]; ok {
			return v
		}
		complete = false
		return tok
	})
	if !complete {
		return pattern
	}
	return rendered
}

// Resolve tries every candidate in declared order against the snapshot and
// returns the first match's first node. Invalid selectors are skipped, not
// fatal: a later candidate may still win. ErrNotFound is returned when the
// whole list yields nothing.
func Resolve(doc *html.Node, list schemas.CandidateList, params map[string]string) (*ResolvedElement, error) {
	if doc == nil {
		return nil, fmt.Errorf("resolve: nil snapshot: %w", ErrNotFound)
	}
	for i, cand := range list {
		sel := Render(cand.Pattern, params)
		node := query(doc, cand.Strategy, sel)
		if node == nil {
			continue
		}
		return &ResolvedElement{
			Node:          node,
			StrategyIndex: i,
			Target:        schemas.Target{Strategy: cand.Strategy, Selector: sel},
		}, nil
	}
	return nil, ErrNotFound
}

// QueryOne executes a single strategy against a snapshot. A nil return
// means no match (including selectors that fail to compile).
func QueryOne(doc *html.Node, strategy schemas.Strategy, selector string) *html.Node {
	if doc == nil {
		return nil
	}
	return query(doc, strategy, selector)
}

// query executes a single strategy. A nil return means no match (including
// selectors that fail to compile).
func query(doc *html.Node, strategy schemas.Strategy, selector string) *html.Node {
	switch strategy {
	case schemas.StrategyCSS:
		// ParseGroup: candidate patterns routinely carry comma-separated
		// alternatives inside a single entry.
		m, err := cascadia.ParseGroup(selector)
		if err != nil {
			return nil
		}
		return cascadia.Query(doc, m)
	case schemas.StrategyXPath:
		node, err := htmlquery.Query(doc, selector)
		if err != nil {
			return nil
		}
		return node
	default:
		return nil
	}
}
