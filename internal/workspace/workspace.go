// Package workspace manages a set of live documents over files on disk:
// it loads files into documents through a content-addressed token-buffer
// cache, re-feeds filesystem changes as incremental writes, and keeps the
// whole set consistent behind one lock.
package workspace

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/orizon-lang/lattice/internal/document"
	"github.com/orizon-lang/lattice/internal/grammar"
)

// DefaultBufferCache is the default number of token buffers retained.
const DefaultBufferCache = 64

// Config configures a workspace.
type Config struct {
	Grammar *grammar.Grammar

	// BufferCache bounds the content-addressed token-buffer cache.
	BufferCache int

	// OnError receives asynchronous watcher failures. Optional.
	OnError func(path string, err error)
}

// Workspace owns one document per open file path.
type Workspace struct {
	cfg     Config
	mu      sync.Mutex
	docs    map[string]*document.Document
	buffers *lru.Cache[[sha256.Size]byte, *document.TokenBuffer]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a workspace for one grammar.
func New(cfg Config) (*Workspace, error) {
	if cfg.Grammar == nil {
		return nil, fmt.Errorf("workspace: no grammar configured")
	}
	if err := grammar.CheckFormat(cfg.Grammar.Meta); err != nil {
		return nil, err
	}
	size := cfg.BufferCache
	if size <= 0 {
		size = DefaultBufferCache
	}
	buffers, err := lru.New[[sha256.Size]byte, *document.TokenBuffer](size)
	if err != nil {
		return nil, fmt.Errorf("workspace: buffer cache: %w", err)
	}
	return &Workspace{
		cfg:     cfg,
		docs:    map[string]*document.Document{},
		buffers: buffers,
	}, nil
}

// Open reads a file and builds its document. Reopening a path returns the
// existing document.
func (w *Workspace) Open(path string) (*document.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if doc, ok := w.docs[path]; ok {
		return doc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workspace: open %s: %w", path, err)
	}
	doc, err := w.buildLocked(string(data))
	if err != nil {
		return nil, err
	}
	w.docs[path] = doc
	if w.watcher != nil {
		if err := w.watcher.Add(path); err != nil {
			return nil, fmt.Errorf("workspace: watch %s: %w", path, err)
		}
	}
	return doc, nil
}

// OpenText builds a document for a path from in-memory text.
func (w *Workspace) OpenText(path, text string) (*document.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if doc, ok := w.docs[path]; ok {
		return doc, nil
	}
	doc, err := w.buildLocked(text)
	if err != nil {
		return nil, err
	}
	w.docs[path] = doc
	return doc, nil
}

// buildLocked constructs a document, reusing a cached token buffer when
// the same content was lexed before.
func (w *Workspace) buildLocked(text string) (*document.Document, error) {
	hash := sha256.Sum256([]byte(text))
	buffer, ok := w.buffers.Get(hash)
	if !ok {
		buffer = document.NewTokenBuffer(w.cfg.Grammar, text)
		w.buffers.Add(hash, buffer)
	}
	return document.NewFromBuffer(w.cfg.Grammar, buffer)
}

// Document returns the open document for a path.
func (w *Workspace) Document(path string) (*document.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[path]
	return doc, ok
}

// Apply performs an incremental write against an open document.
func (w *Workspace) Apply(path string, span document.Span, text string) (document.NodeRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, ok := w.docs[path]
	if !ok {
		return document.NodeRef{}, fmt.Errorf("workspace: %s is not open", path)
	}
	return doc.Write(span, text), nil
}

// Reload re-reads a file and applies the difference to its document as a
// single incremental write covering the changed middle.
func (w *Workspace) Reload(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloadLocked(path)
}

func (w *Workspace) reloadLocked(path string) error {
	doc, ok := w.docs[path]
	if !ok {
		return fmt.Errorf("workspace: %s is not open", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("workspace: reload %s: %w", path, err)
	}

	span, replacement := diffEdit([]rune(doc.Text()), []rune(string(data)))
	if span.IsEmpty() && replacement == "" {
		return nil
	}
	doc.Write(span, replacement)
	return nil
}

// diffEdit reduces two texts to a single replacement: the common rune
// prefix and suffix are kept, everything between is the edit.
func diffEdit(old, new []rune) (document.Span, string) {
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix] == new[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}
	span := document.Span{Start: prefix, End: len(old) - suffix}
	return span, string(new[prefix : len(new)-suffix])
}

// Watch starts feeding filesystem changes of every open file back into
// the documents. Watcher failures are reported through Config.OnError.
func (w *Workspace) Watch() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("workspace: watcher: %w", err)
	}
	for path := range w.docs {
		if err := watcher.Add(path); err != nil {
			watcher.Close()
			return fmt.Errorf("workspace: watch %s: %w", path, err)
		}
	}
	w.watcher = watcher
	w.done = make(chan struct{})
	go w.watchLoop(watcher, w.done)
	return nil
}

func (w *Workspace) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			_, open := w.docs[event.Name]
			var err error
			if open {
				err = w.reloadLocked(event.Name)
			}
			w.mu.Unlock()
			if err != nil && w.cfg.OnError != nil {
				w.cfg.OnError(event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if w.cfg.OnError != nil {
				w.cfg.OnError("", err)
			}
		}
	}
}

// Close stops the watcher and drops every document.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.watcher != nil {
		close(w.done)
		err = w.watcher.Close()
		w.watcher = nil
	}
	for path, doc := range w.docs {
		doc.Drop()
		delete(w.docs, path)
	}
	return err
}
