package document_test

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/lattice/internal/document"
	jsongrammar "github.com/orizon-lang/lattice/internal/grammar/json"
)

func newJSON(t *testing.T, text string) *document.Document {
	t.Helper()
	d, err := document.New(jsongrammar.Grammar(), text)
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	return d
}

// dump renders the parse tree structurally: rule names, child order, and
// token texts. Two documents with equal dumps are structurally equivalent.
func dump(d *document.Document) string {
	var sb strings.Builder
	var walk func(ref document.NodeRef)
	walk = func(ref document.NodeRef) {
		node, ok := ref.Deref(d)
		if !ok {
			sb.WriteString("<stale>")
			return
		}
		fmt.Fprintf(&sb, "(%d", node.Rule)
		for _, child := range ref.Children(d) {
			sb.WriteString(" ")
			if child.IsToken() {
				token, ok := child.Token.Deref(d)
				if !ok {
					sb.WriteString("<stale-token>")
					continue
				}
				fmt.Fprintf(&sb, "%q", token.Text)
			} else {
				walk(child.Node)
			}
		}
		sb.WriteString(")")
	}
	walk(d.RootNodeRef())

	// Error multiset by kind and rule.
	counts := map[string]int{}
	for _, err := range d.Errors() {
		counts[fmt.Sprintf("%d/%d", err.Kind, err.Rule)]++
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintf(&sb, " errs=%d", len(d.Errors()))
	for _, key := range keys {
		fmt.Fprintf(&sb, " %s:%d", key, counts[key])
	}
	return sb.String()
}

// entries returns the Entry nodes of the top-level object, in order.
func entries(t *testing.T, d *document.Document) []document.NodeRef {
	t.Helper()
	value := childNodes(t, d, d.RootNodeRef())
	require.Len(t, value, 1, "root should hold one value")
	object := childNodes(t, d, value[0])
	require.Len(t, object, 1, "value should hold the object")
	return childNodes(t, d, object[0])
}

func childNodes(t *testing.T, d *document.Document, ref document.NodeRef) []document.NodeRef {
	t.Helper()
	var out []document.NodeRef
	for _, child := range ref.Children(d) {
		if !child.IsToken() {
			out = append(out, child.Node)
		}
	}
	return out
}

func firstTokenText(t *testing.T, d *document.Document, ref document.NodeRef) string {
	t.Helper()
	for _, child := range ref.Children(d) {
		if child.IsToken() {
			token, ok := child.Token.Deref(d)
			require.True(t, ok)
			return token.Text
		}
	}
	t.Fatal("node has no token child")
	return ""
}

func TestScenarioS1InsertIntoEmptyObject(t *testing.T) {
	d := newJSON(t, "{}")

	d.Write(document.Span{Start: 1, End: 1}, `"a":1`)

	require.NoError(t, d.Validate())
	require.Equal(t, `{"a":1}`, d.Text())
	require.Empty(t, d.Errors())

	es := entries(t, d)
	require.Len(t, es, 1)
	require.Equal(t, `"a"`, firstTokenText(t, d, es[0]))
}

func TestScenarioS2NumberEditReusesStructure(t *testing.T) {
	d := newJSON(t, `{"a":1}`)

	rootBefore := d.RootNodeRef()
	braceRef := d.TokenRefAt(0)
	keyRef := d.TokenRefAt(1)

	d.Write(document.Span{Start: 6, End: 6}, "23")

	require.NoError(t, d.Validate())
	require.Equal(t, `{"a":123}`, d.Text())
	require.Empty(t, d.Errors())

	// The reparse found an inner cluster: the root cluster survived, and
	// chunks outside the number are untouched.
	if _, ok := rootBefore.Deref(d); !ok {
		t.Fatal("root cluster was reparsed for a number edit")
	}
	if _, ok := braceRef.Deref(d); !ok {
		t.Fatal("brace chunk was touched by a number edit")
	}
	if token, ok := keyRef.Deref(d); !ok || token.Text != `"a"` {
		t.Fatalf("key chunk changed. got=%v ok=%v", token, ok)
	}
}

func TestScenarioS3InsertEntryKeepsOrder(t *testing.T) {
	d := newJSON(t, `{"a":1,"b":2}`)

	d.Write(document.Span{Start: 7, End: 7}, `"x":9,`)

	require.NoError(t, d.Validate())
	require.Equal(t, `{"a":1,"x":9,"b":2}`, d.Text())
	require.Empty(t, d.Errors())

	es := entries(t, d)
	require.Len(t, es, 3)
	require.Equal(t, `"a"`, firstTokenText(t, d, es[0]))
	require.Equal(t, `"x"`, firstTokenText(t, d, es[1]))
	require.Equal(t, `"b"`, firstTokenText(t, d, es[2]))
}

func TestScenarioS4DeleteKeyCharacter(t *testing.T) {
	d := newJSON(t, `{"a":1}`)

	d.Write(document.Span{Start: 2, End: 3}, "")

	require.NoError(t, d.Validate())
	require.Equal(t, `{"":1}`, d.Text())
	// The JSON grammar admits empty string keys; the tree stays well
	// formed either way.
	require.Empty(t, d.Errors())
	require.Len(t, entries(t, d), 1)
}

func TestScenarioS5DeleteArrayElements(t *testing.T) {
	d := newJSON(t, `[1,2,3]`)

	d.Write(document.Span{Start: 2, End: 6}, "")

	require.NoError(t, d.Validate())
	require.Equal(t, `[1]`, d.Text())
	require.Empty(t, d.Errors())

	value := childNodes(t, d, d.RootNodeRef())
	require.Len(t, value, 1)
	array := childNodes(t, d, value[0])
	require.Len(t, array, 1)
	require.Len(t, childNodes(t, d, array[0]), 1)
}

func deepJSON(depth int) string {
	var sb strings.Builder
	for i := 0; i < depth; i++ {
		sb.WriteString(`{"k":`)
	}
	sb.WriteString(`"leaf"`)
	for i := 0; i < depth; i++ {
		sb.WriteString(`}`)
	}
	return sb.String()
}

func TestScenarioS6DeepEditAvoidsRootReparse(t *testing.T) {
	text := deepJSON(200)
	d := newJSON(t, text)
	require.Empty(t, d.Errors())

	rootBefore := d.RootNodeRef()

	// Type one character inside the deeply nested string.
	site := strings.Index(text, "leaf") + 2
	d.Write(document.Span{Start: site, End: site}, "x")

	require.NoError(t, d.Validate())
	require.Contains(t, d.Text(), `"lexaf"`)
	require.Empty(t, d.Errors())

	if _, ok := rootBefore.Deref(d); !ok {
		t.Fatal("deep edit escalated to a root reparse")
	}
}

func TestLengthLawAcrossEdits(t *testing.T) {
	d := newJSON(t, `{"alpha":[1,2,3],"beta":{"g":null}}`)

	steps := []struct {
		span document.Span
		text string
	}{
		{document.Span{Start: 9, End: 10}, "42"},
		{document.Span{Start: 2, End: 7}, "x"},
		{document.Span{Start: 1, End: 1}, `"n":0,`},
	}
	for i, step := range steps {
		before := d.Length()
		d.Write(step.span, step.text)
		want := before - step.span.Len() + len([]rune(step.text))
		require.Equal(t, want, d.Length(), "edit %d", i)
		require.NoError(t, d.Validate(), "edit %d", i)
	}
}

func TestIncrementalMatchesFromScratch(t *testing.T) {
	start := `{"a":[1,2,{"b":true}],"c":"s"}`
	d := newJSON(t, start)

	steps := []struct {
		span document.Span
		text string
	}{
		{document.Span{Start: 7, End: 8}, "99"},
		{document.Span{Start: 0, End: 0}, " "},
		{document.Span{Start: 15, End: 19}, `"z"`},
		{document.Span{Start: 3, End: 4}, ""},
	}
	for i, step := range steps {
		d.Write(step.span, step.text)
		require.NoError(t, d.Validate(), "edit %d", i)

		fresh := newJSON(t, d.Text())
		require.Equal(t, dump(fresh), dump(d), "structural divergence after edit %d (text %q)", i, d.Text())
	}
}

func TestWriteSubstringIsNoOp(t *testing.T) {
	d := newJSON(t, `{"a":[1,2,3]}`)
	before := dump(d)
	text := d.Text()
	rootBefore := d.RootNodeRef()

	span := document.Span{Start: 5, End: 10}
	d.Write(span, d.Substring(span))

	require.Equal(t, text, d.Text())
	require.Equal(t, before, dump(d))
	if _, ok := rootBefore.Deref(d); !ok {
		t.Fatal("no-op write retired the root cluster")
	}
}

func TestWriteUndoRestoresStructure(t *testing.T) {
	d := newJSON(t, `{"a":1,"b":[true,false]}`)
	before := dump(d)
	original := d.Substring(document.Span{Start: 5, End: 9})

	d.Write(document.Span{Start: 5, End: 9}, "null")
	require.NoError(t, d.Validate())
	d.Write(document.Span{Start: 5, End: 9}, original)

	require.Equal(t, `{"a":1,"b":[true,false]}`, d.Text())
	require.Equal(t, before, dump(d))
}

func TestEmptyDocumentBoundaries(t *testing.T) {
	d := newJSON(t, "")

	require.Equal(t, 0, d.Length())
	require.Equal(t, 0, d.TokenCount())

	d.Write(document.Span{Start: 0, End: 0}, "1")
	require.Equal(t, 1, d.Length())
	require.Equal(t, 1, d.TokenCount())
	require.Empty(t, d.Errors())
}

func TestEditAtDocumentEnd(t *testing.T) {
	d := newJSON(t, `[1,2`)
	require.NotEmpty(t, d.Errors())

	end := d.Length()
	d.Write(document.Span{Start: end, End: end}, `]`)

	require.NoError(t, d.Validate())
	require.Equal(t, `[1,2]`, d.Text())
	require.Empty(t, d.Errors())
}

func TestEditSpanningWholeDocument(t *testing.T) {
	d := newJSON(t, `{"a":1}`)
	rootBefore := d.RootNodeRef()
	tokenBefore := d.TokenRefAt(0)

	d.Write(document.Span{Start: 0, End: d.Length()}, `[true]`)

	require.NoError(t, d.Validate())
	require.Equal(t, `[true]`, d.Text())
	require.Empty(t, d.Errors())

	if _, ok := rootBefore.Deref(d); ok {
		t.Fatal("root cluster survived a whole-document rewrite")
	}
	if _, ok := tokenBefore.Deref(d); ok {
		t.Fatal("token handle survived a whole-document rewrite")
	}
}

func TestStaleHandleStaysStale(t *testing.T) {
	d := newJSON(t, `{"a":1}`)
	ref := d.TokenRefAt(5)

	d.Write(document.Span{Start: 5, End: 6}, "2")
	if _, ok := ref.Deref(d); ok {
		t.Fatal("handle to replaced chunk still resolves")
	}

	d.Write(document.Span{Start: 5, End: 6}, "1")
	if _, ok := ref.Deref(d); ok {
		t.Fatal("stale handle resurrected by a later edit")
	}
}

func TestCrossDocumentHandleFails(t *testing.T) {
	a := newJSON(t, `{"a":1}`)
	b := newJSON(t, `{"a":1}`)

	ref := a.TokenRefAt(0)
	if _, ok := ref.Deref(b); ok {
		t.Fatal("handle resolved against a foreign document")
	}
}

func TestSyntaxErrorRecovery(t *testing.T) {
	d := newJSON(t, `{"a" 1,"b":2}`)

	require.NoError(t, d.Validate())
	errs := d.Errors()
	require.NotEmpty(t, errs)

	// The object survives and still exposes both entries.
	es := entries(t, d)
	require.Len(t, es, 2)
}

func TestMismatchChunksAreSingleRunes(t *testing.T) {
	d := newJSON(t, "@@")

	require.Equal(t, 2, d.TokenCount())
	cursor := d.Cursor(document.Span{Start: 0, End: d.Length()})
	for {
		info, ok := cursor.Next()
		if !ok {
			break
		}
		require.Equal(t, 1, info.Span)
	}
}

func TestCoverFindsTightestNode(t *testing.T) {
	text := `{"a":[1,2,3]}`
	d := newJSON(t, text)

	// The span of "2" lies inside the array.
	site := strings.Index(text, "2")
	ref := d.Cover(document.Span{Start: site, End: site + 1})
	span, ok := ref.Span(d)
	require.True(t, ok)
	require.True(t, span.Start >= 5 && span.End <= 12, "cover span %v too wide", span)
}

func TestSubstringAndCursor(t *testing.T) {
	text := `{"key": [10, 20]}`
	d := newJSON(t, text)

	require.Equal(t, `"key"`, d.Substring(document.Span{Start: 1, End: 6}))
	require.Equal(t, text, d.Substring(document.Span{Start: 0, End: d.Length()}))

	var collected strings.Builder
	cursor := d.Cursor(document.Span{Start: 0, End: d.Length()})
	count := 0
	for {
		info, ok := cursor.Next()
		if !ok {
			break
		}
		collected.WriteString(info.Text)
		count++
	}
	require.Equal(t, text, collected.String())
	require.Equal(t, d.TokenCount(), count)
}

func TestLargeDocumentIncrementalEdit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 3000; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"k%d":%d}`, i, i)
	}
	sb.WriteString("]")
	text := sb.String()

	d := newJSON(t, text)
	require.Empty(t, d.Errors())
	rootBefore := d.RootNodeRef()

	// Edit one value deep inside.
	site := strings.Index(text, `"k1500":1500`) + len(`"k1500":`)
	d.Write(document.Span{Start: site, End: site + 4}, "7")

	require.NoError(t, d.Validate())
	require.Empty(t, d.Errors())
	require.Contains(t, d.Text(), `"k1500":7`)
	if _, ok := rootBefore.Deref(d); !ok {
		t.Fatal("single-value edit escalated to a root reparse")
	}
}

func TestDropRetiresEverything(t *testing.T) {
	d := newJSON(t, `{"a":1}`)
	token := d.TokenRefAt(0)
	root := d.RootNodeRef()

	d.Drop()

	if _, ok := token.Deref(d); ok {
		t.Fatal("token handle survived document drop")
	}
	if _, ok := root.Deref(d); ok {
		t.Fatal("root handle survived document drop")
	}
	require.Equal(t, 0, d.TokenCount())
}
