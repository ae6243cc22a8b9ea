package document

import (
	"strings"
	"unicode/utf8"

	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/store"
)

// Write replaces the text of span with the given text, rescanning only the
// affected chunk window and reparsing only the tightest cached cluster
// covering the change. It returns the handle of the reparsed node, the
// root node when the reparse escalated.
func (d *Document) Write(span Span, text string) NodeRef {
	d.checkSpan(span)
	if span.IsEmpty() && text == "" {
		return d.RootNodeRef()
	}

	cover, changed := d.relexAndSplice(span, text)
	if !changed {
		return d.RootNodeRef()
	}
	return d.reparse(cover)
}

// relexAndSplice performs the lexical half of an edit: localize the chunk
// window, rescan it against the replacement text, minimize the chunk diff
// from both ends, and splice the remainder into the tree. It returns the
// cover span of the freshly inserted chunks in post-edit sites, or
// changed == false when the edit did not alter the chunk sequence.
func (d *Document) relexAndSplice(span Span, text string) (Span, bool) {
	lookback := d.grammar.Automaton.Lookback()

	// Localize the window head: the chunk containing the edit start,
	// widened leftward until the lookback requirement is met.
	headOffset := span.Start
	head := d.tree.Lookup(&headOffset)
	winStart := head
	winSite := span.Start - headOffset
	for span.Start-winSite < lookback {
		prev := d.tree.Prev(winStart)
		if prev.IsDangling() {
			break
		}
		winStart = prev
		winSite -= prev.Chunk().Span()
	}

	// Localize the window tail: the chunk whose content extends past the
	// edit end. An edit ending on a boundary leaves that chunk untouched.
	tailOffset := span.End
	tail := d.tree.Lookup(&tailOffset)
	suffix := ""
	tailEnd := span.End
	afterTail := tail
	if !tail.IsDangling() && tailOffset > 0 {
		chunk := tail.Chunk()
		suffix = cutRunes(chunk.Text, tailOffset)
		tailEnd = span.End - tailOffset + chunk.Span()
		afterTail = d.tree.Next(tail)
	}

	// Compose the scanner input: window prefix, replacement, window
	// suffix, then the untouched right tail on demand.
	var prefix strings.Builder
	for cursor, site := winStart, winSite; !cursor.IsDangling() && site < span.Start; {
		chunk := cursor.Chunk()
		take := span.Start - site
		if take >= chunk.Span() {
			prefix.WriteString(chunk.Text)
		} else {
			prefix.WriteString(takeRunes(chunk.Text, take))
		}
		site += chunk.Span()
		cursor = d.tree.Next(cursor)
	}

	composed := prefix.String() + text + suffix
	composedLen := utf8.RuneCountInString(composed)
	feed := &tailFeed{tree: d.tree, cursor: afterTail}
	scanner := lexis.NewScanner(d.grammar.Automaton, &chainSource{
		first:  lexis.NewStringSource(composed),
		second: feed,
	})

	// Rescan until the input is exhausted and the produced boundary
	// aligns with a pre-existing chunk boundary in the right tail.
	var produced []lexis.Token
	newPos := 0
	for {
		token, ok := scanner.Read()
		if !ok {
			break
		}
		produced = append(produced, token)
		newPos += token.Span()
		if newPos >= composedLen && feed.isBoundary(newPos-composedLen) {
			break
		}
	}
	tailOverlap := newPos - composedLen
	if tailOverlap < 0 {
		tailOverlap = 0
	}

	// Collect the old window: every chunk from the window start to the
	// aligned stop boundary (in pre-edit sites).
	oldEnd := tailEnd + tailOverlap
	var oldCursors []storeCursor
	var oldTexts []string
	for cursor, site := winStart, winSite; !cursor.IsDangling() && site < oldEnd; {
		chunk := cursor.Chunk()
		oldCursors = append(oldCursors, cursor)
		oldTexts = append(oldTexts, chunk.Text)
		site += chunk.Span()
		cursor = d.tree.Next(cursor)
	}
	windowEnd := storeCursor{}
	if len(oldCursors) > 0 {
		windowEnd = d.tree.Next(oldCursors[len(oldCursors)-1])
	}

	// Minimize the diff from both ends: produced chunks identical to the
	// pre-existing ones are kept in place together with their caches.
	dropHead := 0
	for dropHead < len(produced) && dropHead < len(oldTexts) &&
		produced[dropHead].Text == oldTexts[dropHead] {
		dropHead++
	}
	dropTail := 0
	for dropTail < len(produced)-dropHead && dropTail < len(oldTexts)-dropHead &&
		produced[len(produced)-1-dropTail].Text == oldTexts[len(oldTexts)-1-dropTail] {
		dropTail++
	}

	keepProduced := produced[dropHead : len(produced)-dropTail]
	removeCount := len(oldTexts) - dropHead - dropTail
	if len(keepProduced) == 0 && removeCount == 0 {
		return Span{}, false
	}

	spliceHead := windowEnd
	if dropHead < len(oldCursors) {
		spliceHead = oldCursors[dropHead]
	}
	spliceSite := winSite
	for _, kept := range oldTexts[:dropHead] {
		spliceSite += utf8.RuneCountInString(kept)
	}

	insert := make([]*store.Chunk, 0, len(keepProduced))
	insertedSpan := 0
	for _, token := range keepProduced {
		insert = append(insert, store.NewChunk(token.Kind, token.Text))
		insertedSpan += token.Span()
	}

	if _, ok := d.tree.Write(spliceHead, removeCount, insert); !ok {
		d.spliceLarge(spliceHead, removeCount, insert)
	}
	d.tokenCount += len(insert) - removeCount

	return Span{Start: spliceSite, End: spliceSite + insertedSpan}, true
}

// spliceLarge is the general splice: split the tree around the removed
// window, drop the middle, and join a freshly built subtree in its place.
func (d *Document) spliceLarge(head storeCursor, removeCount int, insert []*store.Chunk) {
	removedSpan := 0
	cursor := head
	for i := 0; i < removeCount; i++ {
		removedSpan += cursor.Chunk().Span()
		cursor = d.tree.Next(cursor)
	}

	rest := d.tree.Split(head)
	offset := removedSpan
	cut := rest.Lookup(&offset)
	tail := rest.Split(cut)
	rest.Release()

	middle := store.BuildTree(d.tree.Registry(), insert)
	d.tree.Join(middle)
	d.tree.Join(tail)
}

// tailFeed serves the untouched chunks right of the rescan window to the
// scanner, recording chunk boundaries for the alignment check.
type tailFeed struct {
	tree       *store.Tree
	cursor     storeCursor
	rest       string
	served     int
	boundaries []int
}

func (f *tailFeed) Next() (rune, bool) {
	for f.rest == "" {
		if f.cursor.IsDangling() {
			return 0, false
		}
		chunk := f.cursor.Chunk()
		f.rest = chunk.Text
		f.boundaries = append(f.boundaries, f.served+chunk.Span())
		f.cursor = f.tree.Next(f.cursor)
	}
	r, size := utf8.DecodeRuneInString(f.rest)
	f.rest = f.rest[size:]
	f.served++
	return r, true
}

// isBoundary reports whether consuming n runes of the feed stops exactly
// on a pre-existing chunk boundary.
func (f *tailFeed) isBoundary(n int) bool {
	if n == 0 {
		return true
	}
	for _, b := range f.boundaries {
		if b == n {
			return true
		}
		if b > n {
			return false
		}
	}
	return false
}

// chainSource concatenates two rune sources.
type chainSource struct {
	first  lexis.RuneSource
	second lexis.RuneSource
}

func (c *chainSource) Next() (rune, bool) {
	if c.first != nil {
		if r, ok := c.first.Next(); ok {
			return r, true
		}
		c.first = nil
	}
	return c.second.Next()
}
