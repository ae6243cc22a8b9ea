package syntax

import (
	"fmt"
	"strings"

	"github.com/orizon-lang/lattice/internal/lexis"
)

// ErrorKind classifies a recovered syntax error.
type ErrorKind int

const (
	// ErrorMismatch marks a panic-mode recovery: the parser skipped input
	// until it resynchronized.
	ErrorMismatch ErrorKind = iota

	// ErrorMissingToken marks a placeholder insertion: a required token was
	// absent but the following input lined up with the rest of the rule.
	ErrorMissingToken

	// ErrorMissingRule marks a descend whose rule could not start at the
	// current token; an empty node was produced.
	ErrorMissingRule

	// ErrorUnexpectedEOI marks input that ended inside a rule.
	ErrorUnexpectedEOI
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMismatch:
		return "mismatch"
	case ErrorMissingToken:
		return "missing token"
	case ErrorMissingRule:
		return "missing rule"
	case ErrorUnexpectedEOI:
		return "unexpected end of input"
	default:
		return "unknown"
	}
}

// SyntaxError is a recovered parse error recorded inside a cluster. The
// document stays well formed; errors are introspection data, never
// control flow.
type SyntaxError struct {
	Kind          ErrorKind
	Rule          RuleID
	Expected      lexis.TokenSet
	ExpectedRules []RuleID
	Start         SiteKey
	End           SiteKey
}

// Summary renders a one-line description. kindName labels token kinds;
// the grammar's automaton provides it.
func (e *SyntaxError) Summary(rules *RuleSet, kindName func(lexis.TokenKind) string) string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(" in ")
	sb.WriteString(rules.Name(e.Rule))

	var wanted []string
	for _, id := range e.ExpectedRules {
		wanted = append(wanted, rules.Name(id))
	}
	for _, kind := range e.Expected.Kinds() {
		wanted = append(wanted, kindName(kind))
	}
	if len(wanted) > 0 {
		fmt.Fprintf(&sb, ": expected %s", strings.Join(wanted, " | "))
	}
	return sb.String()
}
