package grammar

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/syntax"
)

// FormatVersion is the table format emitted by this builder.
const FormatVersion = "1.2.0"

// supportedFormats is the range of table formats the runtime accepts.
const supportedFormats = "^1.0"

// Metadata describes a built grammar.
type Metadata struct {
	Name          string
	FormatVersion string
}

// CheckFormat validates a grammar's table format version against the
// range this runtime supports.
func CheckFormat(meta Metadata) error {
	version, err := semver.NewVersion(meta.FormatVersion)
	if err != nil {
		return fmt.Errorf("grammar %q: invalid format version %q: %w", meta.Name, meta.FormatVersion, err)
	}
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return fmt.Errorf("grammar: invalid supported range %q: %w", supportedFormats, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("grammar %q: table format %s outside supported range %s",
			meta.Name, version, supportedFormats)
	}
	return nil
}

// Grammar is the complete static artifact a document needs: the scanner
// automaton and the rule tables. Grammars are immutable and shared.
type Grammar struct {
	Meta      Metadata
	Automaton *lexis.Automaton
	Rules     *syntax.RuleSet
}

// Build compiles token and rule specs into a grammar. The lookback is the
// number of characters the scanner rescans left of any modification.
func Build(name string, lookback int, tokens []TokenSpec, rules []RuleSpec) (*Grammar, error) {
	automaton, err := BuildAutomaton(tokens, lookback)
	if err != nil {
		return nil, err
	}

	names := make(map[lexis.TokenKind]string, len(tokens))
	for _, spec := range tokens {
		names[spec.Kind] = spec.Name
	}
	ruleSet, err := buildRules(rules, names)
	if err != nil {
		return nil, err
	}

	g := &Grammar{
		Meta:      Metadata{Name: name, FormatVersion: FormatVersion},
		Automaton: automaton,
		Rules:     ruleSet,
	}
	if err := CheckFormat(g.Meta); err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is Build for statically known grammars.
func MustBuild(name string, lookback int, tokens []TokenSpec, rules []RuleSpec) *Grammar {
	g, err := Build(name, lookback, tokens, rules)
	if err != nil {
		panic(err)
	}
	return g
}
