// Package schemas holds the shared domain types exchanged between the
// resolution, execution, detection and orchestration layers.
package schemas

import (
	"fmt"
	"time"
)

// Strategy identifies the locating mechanism of a candidate selector.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
)

// CandidateSelector is one locating strategy for a semantic UI concern.
// Patterns may contain named placeholders in curly braces (e.g. "{date}")
// that are substituted at resolution time. A placeholder with no matching
// parameter leaves the pattern as its literal text.
type CandidateSelector struct {
	Strategy Strategy `json:"strategy"`
	Pattern  string   `json:"pattern"`
}

// CandidateList is an ordered sequence of alternative selectors for one
// concern. Order encodes preference: resolution tries entries in declared
// order and stops at the first structural match. There is no scoring and
// no merging across strategies.
type CandidateList []CandidateSelector

// CSS builds a CSS candidate.
func CSS(pattern string) CandidateSelector {
	return CandidateSelector{Strategy: StrategyCSS, Pattern: pattern}
}

// XPath builds an XPath candidate.
func XPath(pattern string) CandidateSelector {
	return CandidateSelector{Strategy: StrategyXPath, Pattern: pattern}
}

// Target addresses a located element in the live page. The rendered
// selector is the candidate pattern after parameter substitution, so it
// re-locates the same element when replayed against the browser.
type Target struct {
	Strategy Strategy
	Selector string
}

// OutcomeKind tags the result of one executed action.
type OutcomeKind string

const (
	OutcomeClicked         OutcomeKind = "clicked"
	OutcomeTyped           OutcomeKind = "typed"
	OutcomeKeyPressed      OutcomeKind = "key_pressed"
	OutcomeNotFound        OutcomeKind = "not_found"
	OutcomeExecutionFailed OutcomeKind = "execution_failed"
)

// ActionOutcome is the tagged result of an executor action. The Status
// string is the sole channel back to the planner, so its vocabulary is a
// stable contract, not a debugging aid.
type ActionOutcome struct {
	Kind   OutcomeKind
	Status string
	// StrategyIndex records which candidate won resolution, for diagnostics.
	// -1 when no candidate matched.
	StrategyIndex int
}

// OK reports whether the action reached its intended effect.
func (o ActionOutcome) OK() bool {
	switch o.Kind {
	case OutcomeClicked, OutcomeTyped, OutcomeKeyPressed:
		return true
	}
	return false
}

// Verdict is a stop-guard decision. A Blocked verdict is authoritative and
// cannot be overridden downstream.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Allowed is the permissive verdict.
func Allow() Verdict { return Verdict{Allowed: true} }

// Block builds a blocking verdict with a reason.
func Block(reason string) Verdict { return Verdict{Allowed: false, Reason: reason} }

func (v Verdict) String() string {
	if v.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("blocked: %s", v.Reason)
}

// AgentStep is one planner-issued tool invocation and its returned status
// string. The orchestration history is an ordered, append-only sequence of
// these, bounded by the configured step budget.
type AgentStep struct {
	Index  int               `json:"index"`
	Tool   string            `json:"tool"`
	Args   map[string]string `json:"args,omitempty"`
	Status string            `json:"status"`
	At     time.Time         `json:"at"`
}
