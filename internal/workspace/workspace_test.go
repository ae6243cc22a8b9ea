package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/lattice/internal/document"
	jsongrammar "github.com/orizon-lang/lattice/internal/grammar/json"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(Config{Grammar: jsongrammar.Grammar()})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestOpenAndApply(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "a.json")
	writeFile(t, path, `{"a":1}`)

	doc, err := w.Open(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, doc.Text())
	require.Empty(t, doc.Errors())

	_, err = w.Apply(path, document.Span{Start: 6, End: 6}, "23")
	require.NoError(t, err)
	require.Equal(t, `{"a":123}`, doc.Text())
}

func TestOpenIsIdempotent(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "a.json")
	writeFile(t, path, `[]`)

	first, err := w.Open(path)
	require.NoError(t, err)
	second, err := w.Open(path)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestBufferCacheReusesLexWork(t *testing.T) {
	w := newWorkspace(t)
	text := `{"shared": [1,2,3]}`

	a, err := w.OpenText("a.json", text)
	require.NoError(t, err)
	b, err := w.OpenText("b.json", text)
	require.NoError(t, err)

	require.Equal(t, a.Text(), b.Text())
	require.Equal(t, a.TokenCount(), b.TokenCount())
	require.Equal(t, 1, w.buffers.Len(), "identical content should share one buffer")
}

func TestReloadAppliesMinimalEdit(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "a.json")
	writeFile(t, path, `{"a":1,"b":2}`)

	doc, err := w.Open(path)
	require.NoError(t, err)
	rootBefore := doc.RootNodeRef()

	writeFile(t, path, `{"a":7,"b":2}`)
	require.NoError(t, w.Reload(path))

	require.Equal(t, `{"a":7,"b":2}`, doc.Text())
	require.Empty(t, doc.Errors())
	if _, ok := rootBefore.Deref(doc); !ok {
		t.Fatal("single-value reload escalated to a root reparse")
	}
}

func TestReloadNoChangeIsNoOp(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "a.json")
	writeFile(t, path, `[1]`)

	doc, err := w.Open(path)
	require.NoError(t, err)
	root := doc.RootNodeRef()

	require.NoError(t, w.Reload(path))
	if _, ok := root.Deref(doc); !ok {
		t.Fatal("no-op reload retired the root")
	}
}

func TestWatchFeedsFileChanges(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(t.TempDir(), "a.json")
	writeFile(t, path, `{"watch":1}`)

	doc, err := w.Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Watch())

	writeFile(t, path, `{"watch":2}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		text := doc.Text()
		w.mu.Unlock()
		if text == `{"watch":2}` {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher never applied the change")
}

func TestDiffEdit(t *testing.T) {
	tests := []struct {
		old          string
		new          string
		expectedSpan document.Span
		expectedText string
	}{
		{"abc", "abc", document.Span{Start: 3, End: 3}, ""},
		{"abc", "aXc", document.Span{Start: 1, End: 2}, "X"},
		{"abc", "abXc", document.Span{Start: 2, End: 2}, "X"},
		{"abXc", "abc", document.Span{Start: 2, End: 3}, ""},
		{"", "abc", document.Span{Start: 0, End: 0}, "abc"},
		{"abc", "", document.Span{Start: 0, End: 3}, ""},
	}
	for i, tt := range tests {
		span, text := diffEdit([]rune(tt.old), []rune(tt.new))
		if span != tt.expectedSpan || text != tt.expectedText {
			t.Fatalf("tests[%d] - diff wrong. expected=(%v %q), got=(%v %q)",
				i, tt.expectedSpan, tt.expectedText, span, text)
		}
	}
}
