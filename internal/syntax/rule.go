// Package syntax implements the syntactic runtime of the lattice engine:
// the grammar-agnostic parse tree model, the rule tables produced by the
// grammar builder, the parser session that drives them over the chunk
// store, and the parse cluster caches consumed by the incremental reparse
// driver.
package syntax

import (
	"fmt"
	"math"

	"github.com/orizon-lang/lattice/internal/lexis"
)

// RuleID identifies a grammar rule. The root rule is always 0.
type RuleID uint16

const (
	// RootRule is the reserved identifier of the unique root rule.
	RootRule RuleID = 0

	// NonRule signals "no rule"; steps shifting a plain token carry it.
	NonRule RuleID = math.MaxUint16
)

// Step is one transition of a rule's state machine. A step fires when the
// next significant token is in On; it then either shifts that token
// (Rule == NonRule) or descends into a subrule whose leftmost set produced
// the match. Capture appends the consumed token or node to the current
// node's children.
type Step struct {
	On      lexis.TokenSet
	Rule    RuleID
	Capture bool
	Next    int
}

// State is a rule state. Final states accept when no step fires.
type State struct {
	Steps []Step
	Final bool
}

// GroupPair declares a bracket pair for panic-mode recovery: between Open
// and its matching Close the parser skips without consulting follow sets.
type GroupPair struct {
	Open  lexis.TokenKind
	Close lexis.TokenKind
}

// Recovery configures panic mode for one rule.
type Recovery struct {
	Halt   lexis.TokenSet
	Groups []GroupPair
}

// CustomParser is a hand-written rule body. It drives the session directly
// (Peek/Advance/Descend/CaptureToken/Error) instead of a state machine.
type CustomParser func(session *Session)

// Rule is the compiled table of one grammar rule.
type Rule struct {
	ID       RuleID
	Name     string
	Leftmost lexis.TokenSet
	Nullable bool
	Trivia   lexis.TokenSet
	Recovery Recovery
	Primary  bool
	Start    int
	States   []State
	Custom   CustomParser
}

// RuleSet is the full rule table of a grammar, indexed by RuleID.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet assembles a rule set. Rules must be dense, in id order, and
// rule 0 must be the root.
func NewRuleSet(rules []*Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("syntax: empty rule set")
	}
	for i, rule := range rules {
		if rule.ID != RuleID(i) {
			return nil, fmt.Errorf("syntax: rule %q has id %d at position %d", rule.Name, rule.ID, i)
		}
		if rule.Custom == nil && len(rule.States) == 0 {
			return nil, fmt.Errorf("syntax: rule %q has no states and no custom parser", rule.Name)
		}
	}
	return &RuleSet{rules: rules}, nil
}

// Rule returns the table of a rule id.
func (rs *RuleSet) Rule(id RuleID) *Rule {
	return rs.rules[id]
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Name returns a rule's display name.
func (rs *RuleSet) Name(id RuleID) string {
	if id == NonRule {
		return "<none>"
	}
	if int(id) < len(rs.rules) {
		return rs.rules[id].Name
	}
	return fmt.Sprintf("rule#%d", id)
}

// expected unions the On sets of a state's steps.
func expected(state *State) lexis.TokenSet {
	var set lexis.TokenSet
	for _, step := range state.Steps {
		set = set.Union(step.On)
	}
	return set
}
