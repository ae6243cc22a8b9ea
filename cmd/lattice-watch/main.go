// Command lattice-watch watches JSON files and reports their syntax
// errors as they change, exercising the incremental path end to end: file
// modifications are diffed against the in-memory document and applied as
// single incremental writes.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orizon-lang/lattice/internal/document"
	jsongrammar "github.com/orizon-lang/lattice/internal/grammar/json"
	"github.com/orizon-lang/lattice/internal/position"
	"github.com/orizon-lang/lattice/internal/workspace"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s file.json [file.json ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	w, err := workspace.New(workspace.Config{
		Grammar: jsongrammar.Grammar(),
		OnError: func(path string, err error) {
			fmt.Fprintf(os.Stderr, "watch error: %s: %v\n", path, err)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	for _, path := range flag.Args() {
		doc, err := w.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		report(path, doc)
	}
	if err := w.Watch(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func report(path string, doc *document.Document) {
	errs := doc.Errors()
	if len(errs) == 0 {
		fmt.Printf("%s: ok (%d tokens)\n", path, doc.TokenCount())
		return
	}
	index := position.NewLineIndex(doc.Text())
	g := jsongrammar.Grammar()
	for _, err := range errs {
		site, _ := doc.ErrorSite(err)
		fmt.Printf("%s:%s: %s\n", path, index.Locate(site), err.Summary(g.Rules, g.Automaton.KindName))
	}
}
