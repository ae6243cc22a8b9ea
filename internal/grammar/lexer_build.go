package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/lattice/internal/lexis"
)

// TokenSpec declares one lexical rule: the token kind it produces, the
// character pattern it matches, a priority for resolving overlaps, and an
// optional constructor refining the kind from the accepted text.
type TokenSpec struct {
	Kind        lexis.TokenKind
	Name        string
	Pattern     *Pattern
	Priority    int
	Constructor lexis.Constructor
}

// charArc is a nondeterministic transition over rune ranges.
type charArc struct {
	ranges []CharRange
	target int
}

type charState struct {
	eps    []int
	arcs   []charArc
	accept *lexis.Accept
}

type charNFA struct {
	states []charState
}

func (n *charNFA) add() int {
	n.states = append(n.states, charState{})
	return len(n.states) - 1
}

func (n *charNFA) eps(from, to int) {
	n.states[from].eps = append(n.states[from].eps, to)
}

func (n *charNFA) arc(from, to int, ranges []CharRange) {
	n.states[from].arcs = append(n.states[from].arcs, charArc{ranges: ranges, target: to})
}

// compile lowers a pattern into the NFA by Thompson construction.
func (n *charNFA) compile(p *Pattern) (int, int) {
	switch p.op {
	case opText:
		start := n.add()
		cur := start
		for _, r := range p.text {
			next := n.add()
			n.arc(cur, next, []CharRange{{Lo: r, Hi: r}})
			cur = next
		}
		return start, cur

	case opClass:
		start := n.add()
		end := n.add()
		n.arc(start, end, p.ranges)
		return start, end

	case opCat:
		start := n.add()
		cur := start
		for _, sub := range p.subs {
			s, e := n.compile(sub)
			n.eps(cur, s)
			cur = e
		}
		return start, cur

	case opAlt:
		start := n.add()
		end := n.add()
		for _, sub := range p.subs {
			s, e := n.compile(sub)
			n.eps(start, s)
			n.eps(e, end)
		}
		return start, end

	case opStar:
		start := n.add()
		end := n.add()
		s, e := n.compile(p.subs[0])
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e, s)
		n.eps(e, end)
		return start, end

	case opPlus:
		start := n.add()
		end := n.add()
		s, e := n.compile(p.subs[0])
		n.eps(start, s)
		n.eps(e, s)
		n.eps(e, end)
		return start, end

	case opOpt:
		start := n.add()
		end := n.add()
		s, e := n.compile(p.subs[0])
		n.eps(start, s)
		n.eps(start, end)
		n.eps(e, end)
		return start, end
	}
	panic("grammar: unknown pattern operator")
}

// matchesEmpty reports whether a pattern accepts the empty string.
// Token patterns must not, since chunks are never empty. A class or an
// alternation with no members, which matches nothing at all, is reported
// as well, so such patterns are rejected too.
func matchesEmpty(p *Pattern) bool {
	switch p.op {
	case opText:
		return len(p.text) == 0
	case opClass:
		return len(p.ranges) == 0
	case opCat:
		for _, sub := range p.subs {
			if !matchesEmpty(sub) {
				return false
			}
		}
		return true
	case opAlt:
		for _, sub := range p.subs {
			if matchesEmpty(sub) {
				return true
			}
		}
		return len(p.subs) == 0
	case opStar, opOpt:
		return true
	case opPlus:
		return matchesEmpty(p.subs[0])
	}
	return false
}

// BuildAutomaton compiles token specs into the deterministic scanner
// automaton by subset construction. Grammars where two rules of equal
// priority accept the same string are rejected.
func BuildAutomaton(specs []TokenSpec, lookback int) (*lexis.Automaton, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("grammar: no token rules")
	}
	if lookback < 1 {
		return nil, fmt.Errorf("grammar: lookback must be at least 1")
	}

	names := make(map[lexis.TokenKind]string, len(specs))
	nfa := &charNFA{}
	start := nfa.add()
	for _, spec := range specs {
		if spec.Kind < lexis.FirstKind {
			return nil, fmt.Errorf("grammar: token %q uses reserved kind %d", spec.Name, spec.Kind)
		}
		if _, dup := names[spec.Kind]; dup {
			return nil, fmt.Errorf("grammar: duplicate token kind %d (%q)", spec.Kind, spec.Name)
		}
		if spec.Pattern == nil || matchesEmpty(spec.Pattern) {
			return nil, fmt.Errorf("grammar: token %q matches the empty string", spec.Name)
		}
		names[spec.Kind] = spec.Name

		s, e := nfa.compile(spec.Pattern)
		nfa.eps(start, s)
		accept := &lexis.Accept{Kind: spec.Kind, Priority: spec.Priority, Constructor: spec.Constructor}
		nfa.states[e].accept = accept
	}

	return determinize(nfa, start, lookback, names)
}

func determinize(nfa *charNFA, start, lookback int, names map[lexis.TokenKind]string) (*lexis.Automaton, error) {
	type pending struct {
		key string
		set []int
	}

	index := map[string]int{}
	var states []lexis.State
	var queue []pending

	intern := func(set []int) (int, bool) {
		key := subsetKey(set)
		if id, ok := index[key]; ok {
			return id, false
		}
		id := len(states)
		index[key] = id
		states = append(states, lexis.State{})
		queue = append(queue, pending{key: key, set: set})
		return id, true
	}

	startSet := closure(nfa, []int{start})
	startID, _ := intern(startSet)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		id := index[cur.key]

		accept, err := resolveAccept(nfa, cur.set, names)
		if err != nil {
			return nil, err
		}
		states[id].Accept = accept

		for _, seg := range segments(nfa, cur.set) {
			targetID, _ := intern(seg.targets)
			states[id].Transitions = append(states[id].Transitions, lexis.Transition{
				Lo:     seg.lo,
				Hi:     seg.hi,
				Target: targetID,
			})
		}
	}

	return lexis.NewAutomaton(states, startID, lookback, names), nil
}

// resolveAccept picks the accept label of a subset: the highest priority
// wins; an equal-priority tie between different kinds is a grammar error.
func resolveAccept(nfa *charNFA, set []int, names map[lexis.TokenKind]string) (*lexis.Accept, error) {
	var best *lexis.Accept
	for _, id := range set {
		accept := nfa.states[id].accept
		if accept == nil {
			continue
		}
		switch {
		case best == nil || accept.Priority > best.Priority:
			best = accept
		case accept.Priority == best.Priority && accept.Kind != best.Kind:
			return nil, fmt.Errorf("grammar: tokens %q and %q accept the same input at priority %d",
				names[best.Kind], names[accept.Kind], accept.Priority)
		}
	}
	return best, nil
}

type segment struct {
	lo      rune
	hi      rune
	targets []int
}

// segments partitions the alphabet against all arcs of a subset and
// computes the target closure of each partition cell.
func segments(nfa *charNFA, set []int) []segment {
	var cuts []rune
	for _, id := range set {
		for _, arc := range nfa.states[id].arcs {
			for _, r := range arc.ranges {
				cuts = append(cuts, r.Lo, r.Hi+1)
			}
		}
	}
	if len(cuts) == 0 {
		return nil
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i] < cuts[j] })
	cuts = dedupeRunes(cuts)

	var out []segment
	for i := 0; i+1 <= len(cuts)-1; i++ {
		lo, next := cuts[i], cuts[i+1]
		var targets []int
		for _, id := range set {
			for _, arc := range nfa.states[id].arcs {
				for _, r := range arc.ranges {
					if r.Lo <= lo && lo <= r.Hi {
						targets = append(targets, arc.target)
					}
				}
			}
		}
		if len(targets) == 0 {
			continue
		}
		out = append(out, segment{lo: lo, hi: next - 1, targets: closure(nfa, targets)})
	}
	return out
}

func closure(nfa *charNFA, set []int) []int {
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

func subsetKey(set []int) string {
	var sb strings.Builder
	for _, id := range set {
		fmt.Fprintf(&sb, "%d.", id)
	}
	return sb.String()
}

func dedupeRunes(sorted []rune) []rune {
	out := sorted[:0]
	for i, r := range sorted {
		if i == 0 || r != out[len(out)-1] {
			out = append(out, r)
		}
	}
	return out
}
