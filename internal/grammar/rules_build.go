package grammar

import (
	"fmt"
	"sort"

	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/syntax"
)

// RuleExpr is a regular expression over tokens and rule references, the
// body language of grammar rules. Separator-annotated repetitions lower
// to the core operators at construction time.
type RuleExpr struct {
	op      ruleOp
	token   lexis.TokenKind
	rule    syntax.RuleID
	capture bool
	subs    []*RuleExpr
}

type ruleOp int

const (
	ruleTok ruleOp = iota
	ruleRef
	ruleCat
	ruleAlt
	ruleStar
	rulePlus
	ruleOpt
)

// T matches a token without capturing it.
func T(kind lexis.TokenKind) *RuleExpr {
	return &RuleExpr{op: ruleTok, token: kind}
}

// CapT matches a token and captures it as a child.
func CapT(kind lexis.TokenKind) *RuleExpr {
	return &RuleExpr{op: ruleTok, token: kind, capture: true}
}

// R descends into a rule without capturing the node.
func R(id syntax.RuleID) *RuleExpr {
	return &RuleExpr{op: ruleRef, rule: id}
}

// CapR descends into a rule and captures the node as a child.
func CapR(id syntax.RuleID) *RuleExpr {
	return &RuleExpr{op: ruleRef, rule: id, capture: true}
}

// Seq matches the operands in sequence.
func Seq(subs ...*RuleExpr) *RuleExpr {
	return &RuleExpr{op: ruleCat, subs: subs}
}

// Choice matches any one operand.
func Choice(subs ...*RuleExpr) *RuleExpr {
	return &RuleExpr{op: ruleAlt, subs: subs}
}

// Maybe matches zero or one occurrence.
func Maybe(sub *RuleExpr) *RuleExpr {
	return &RuleExpr{op: ruleOpt, subs: []*RuleExpr{sub}}
}

// Rep matches zero or more occurrences.
func Rep(sub *RuleExpr) *RuleExpr {
	return &RuleExpr{op: ruleStar, subs: []*RuleExpr{sub}}
}

// Rep1 matches one or more occurrences.
func Rep1(sub *RuleExpr) *RuleExpr {
	return &RuleExpr{op: rulePlus, subs: []*RuleExpr{sub}}
}

// SepBy matches zero or more occurrences separated by sep.
func SepBy(sub, sep *RuleExpr) *RuleExpr {
	return Maybe(SepBy1(sub, sep))
}

// SepBy1 matches one or more occurrences separated by sep.
func SepBy1(sub, sep *RuleExpr) *RuleExpr {
	return Seq(sub, Rep(Seq(sep, sub)))
}

// RuleSpec declares one grammar rule. Custom rules supply a hand-written
// parser plus explicit leftmost/nullable facts instead of a body.
type RuleSpec struct {
	ID       syntax.RuleID
	Name     string
	Expr     *RuleExpr
	Trivia   lexis.TokenSet
	Recovery syntax.Recovery
	Primary  bool

	Custom         syntax.CustomParser
	CustomLeftmost lexis.TokenSet
	CustomNullable bool
}

// symbol identifies one kind of machine transition.
type symbol struct {
	isRule  bool
	token   lexis.TokenKind
	rule    syntax.RuleID
	capture bool
}

type symArc struct {
	sym    symbol
	target int
}

type symState struct {
	eps  []int
	arcs []symArc
}

type symNFA struct {
	states []symState
}

func (n *symNFA) add() int {
	n.states = append(n.states, symState{})
	return len(n.states) - 1
}

func (n *symNFA) eps(from, to int) {
	n.states[from].eps = append(n.states[from].eps, to)
}

func (n *symNFA) arc(from, to int, sym symbol) {
	n.states[from].arcs = append(n.states[from].arcs, symArc{sym: sym, target: to})
}

func (n *symNFA) compile(e *RuleExpr) (int, int) {
	switch e.op {
	case ruleTok:
		start, end := n.add(), n.add()
		n.arc(start, end, symbol{token: e.token, capture: e.capture})
		return start, end
	case ruleRef:
		start, end := n.add(), n.add()
		n.arc(start, end, symbol{isRule: true, rule: e.rule, capture: e.capture})
		return start, end
	case ruleCat:
		start := n.add()
		cur := start
		for _, sub := range e.subs {
			s, e2 := n.compile(sub)
			n.eps(cur, s)
			cur = e2
		}
		return start, cur
	case ruleAlt:
		start, end := n.add(), n.add()
		for _, sub := range e.subs {
			s, e2 := n.compile(sub)
			n.eps(start, s)
			n.eps(e2, end)
		}
		return start, end
	case ruleStar:
		start, end := n.add(), n.add()
		s, e2 := n.compile(e.subs[0])
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e2, s)
		n.eps(e2, end)
		return start, end
	case rulePlus:
		start, end := n.add(), n.add()
		s, e2 := n.compile(e.subs[0])
		n.eps(start, s)
		n.eps(e2, s)
		n.eps(e2, end)
		return start, end
	case ruleOpt:
		start, end := n.add(), n.add()
		s, e2 := n.compile(e.subs[0])
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e2, end)
		return start, end
	}
	panic("grammar: unknown rule expression operator")
}

// protoStep is a determinized transition before leftmost resolution.
type protoStep struct {
	sym  symbol
	next int
}

type protoState struct {
	steps []protoStep
	final bool
}

// determinizeRule lowers a rule body into a deterministic machine over
// symbols by subset construction.
func determinizeRule(expr *RuleExpr) []protoState {
	nfa := &symNFA{}
	start, end := nfa.compile(expr)

	closure := func(set []int) []int {
		seen := map[int]bool{}
		stack := append([]int{}, set...)
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[id] {
				continue
			}
			seen[id] = true
			stack = append(stack, nfa.states[id].eps...)
		}
		out := make([]int, 0, len(seen))
		for id := range seen {
			out = append(out, id)
		}
		sort.Ints(out)
		return out
	}

	index := map[string]int{}
	var proto []protoState
	var sets [][]int

	intern := func(set []int) int {
		key := subsetKey(set)
		if id, ok := index[key]; ok {
			return id
		}
		id := len(proto)
		index[key] = id
		proto = append(proto, protoState{})
		sets = append(sets, set)
		return id
	}

	intern(closure([]int{start}))
	for id := 0; id < len(proto); id++ {
		set := sets[id]
		for _, nfaID := range set {
			if nfaID == end {
				proto[id].final = true
			}
		}
		// Group targets by symbol, preserving first-seen order.
		var order []symbol
		moves := map[symbol][]int{}
		for _, nfaID := range set {
			for _, arc := range nfa.states[nfaID].arcs {
				if _, ok := moves[arc.sym]; !ok {
					order = append(order, arc.sym)
				}
				moves[arc.sym] = append(moves[arc.sym], arc.target)
			}
		}
		for _, sym := range order {
			next := intern(closure(moves[sym]))
			proto[id].steps = append(proto[id].steps, protoStep{sym: sym, next: next})
		}
	}
	return proto
}

// buildRules compiles rule specs into the runtime rule set: machines are
// determinized, leftmost sets are computed to a fixpoint, and every state
// is checked for LL(1) conflicts against its siblings and the trivia set.
func buildRules(specs []RuleSpec, names map[lexis.TokenKind]string) (*syntax.RuleSet, error) {
	count := len(specs)
	if count == 0 {
		return nil, fmt.Errorf("grammar: no rules")
	}

	protos := make([][]protoState, count)
	for i, spec := range specs {
		if spec.ID != syntax.RuleID(i) {
			return nil, fmt.Errorf("grammar: rule %q has id %d at position %d", spec.Name, spec.ID, i)
		}
		if spec.Custom != nil {
			continue
		}
		if spec.Expr == nil {
			return nil, fmt.Errorf("grammar: rule %q has neither a body nor a custom parser", spec.Name)
		}
		protos[i] = determinizeRule(spec.Expr)
	}

	// Validate references.
	for i, spec := range specs {
		for _, st := range protos[i] {
			for _, step := range st.steps {
				if step.sym.isRule && int(step.sym.rule) >= count {
					return nil, fmt.Errorf("grammar: rule %q references unknown rule %d", spec.Name, step.sym.rule)
				}
			}
		}
	}

	nullable := make([]bool, count)
	for i, spec := range specs {
		if spec.Custom != nil {
			nullable[i] = spec.CustomNullable
		} else {
			nullable[i] = protos[i][0].final
		}
	}

	// A descend into a possibly-empty rule makes step selection ambiguous;
	// the builder rejects it outright.
	for i, spec := range specs {
		for _, st := range protos[i] {
			for _, step := range st.steps {
				if step.sym.isRule && nullable[step.sym.rule] {
					return nil, fmt.Errorf("grammar: rule %q references possibly-empty rule %q",
						spec.Name, specs[step.sym.rule].Name)
				}
			}
		}
	}

	if err := checkEntryRecursion(specs, protos); err != nil {
		return nil, err
	}

	leftmost := computeLeftmost(specs, protos, count)

	rules := make([]*syntax.Rule, count)
	for i, spec := range specs {
		rule := &syntax.Rule{
			ID:       spec.ID,
			Name:     spec.Name,
			Leftmost: leftmost[i],
			Nullable: nullable[i],
			Trivia:   spec.Trivia,
			Recovery: spec.Recovery,
			Primary:  spec.Primary,
			Custom:   spec.Custom,
		}
		if spec.Custom == nil {
			states, err := lowerStates(spec, protos[i], leftmost, names)
			if err != nil {
				return nil, err
			}
			rule.States = states
			rule.Start = 0
		}
		rules[i] = rule
	}
	return syntax.NewRuleSet(rules)
}

// computeLeftmost iterates token-set propagation until stable.
func computeLeftmost(specs []RuleSpec, protos [][]protoState, count int) []lexis.TokenSet {
	leftmost := make([]lexis.TokenSet, count)
	for i, spec := range specs {
		if spec.Custom != nil {
			leftmost[i] = spec.CustomLeftmost
		}
	}
	for changed := true; changed; {
		changed = false
		for i, spec := range specs {
			if spec.Custom != nil {
				continue
			}
			set := leftmost[i]
			for _, step := range protos[i][0].steps {
				if step.sym.isRule {
					set = set.Union(leftmost[step.sym.rule])
				} else {
					set.Add(step.sym.token)
				}
			}
			if set != leftmost[i] {
				leftmost[i] = set
				changed = true
			}
		}
	}
	return leftmost
}

// checkEntryRecursion rejects left recursion: a rule must not reach
// itself through entry-position rule references.
func checkEntryRecursion(specs []RuleSpec, protos [][]protoState) error {
	const (
		unvisited = 0
		active    = 1
		done      = 2
	)
	marks := make([]int, len(specs))

	var visit func(id int) error
	visit = func(id int) error {
		switch marks[id] {
		case active:
			return fmt.Errorf("grammar: rule %q is left-recursive", specs[id].Name)
		case done:
			return nil
		}
		marks[id] = active
		if specs[id].Custom == nil {
			for _, step := range protos[id][0].steps {
				if step.sym.isRule {
					if err := visit(int(step.sym.rule)); err != nil {
						return err
					}
				}
			}
		}
		marks[id] = done
		return nil
	}

	for id := range specs {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// lowerStates resolves proto transitions into runtime steps and performs
// the LL(1) disjointness checks.
func lowerStates(spec RuleSpec, proto []protoState, leftmost []lexis.TokenSet, names map[lexis.TokenKind]string) ([]syntax.State, error) {
	states := make([]syntax.State, len(proto))
	for si, ps := range proto {
		state := syntax.State{Final: ps.final}
		var taken lexis.TokenSet
		for _, step := range ps.steps {
			var on lexis.TokenSet
			var ruleID syntax.RuleID = syntax.NonRule
			if step.sym.isRule {
				on = leftmost[step.sym.rule]
				ruleID = step.sym.rule
			} else {
				on = lexis.NewTokenSet(step.sym.token)
			}
			if on.Intersects(taken) {
				return nil, fmt.Errorf("grammar: LL(1) conflict in rule %q: overlapping alternatives on %s",
					spec.Name, describeKinds(on, names))
			}
			if on.Intersects(spec.Trivia) {
				return nil, fmt.Errorf("grammar: rule %q consumes its own trivia token %s",
					spec.Name, describeKinds(on, names))
			}
			taken = taken.Union(on)
			state.Steps = append(state.Steps, syntax.Step{
				On:      on,
				Rule:    ruleID,
				Capture: step.sym.capture,
				Next:    step.next,
			})
		}
		states[si] = state
	}
	return states, nil
}

func describeKinds(set lexis.TokenSet, names map[lexis.TokenKind]string) string {
	kinds := set.Kinds()
	if len(kinds) == 0 {
		return "<empty>"
	}
	out := ""
	for i, kind := range kinds {
		if i > 0 {
			out += ", "
		}
		if name, ok := names[kind]; ok {
			out += name
		} else {
			out += fmt.Sprintf("#%d", kind)
		}
	}
	return out
}
