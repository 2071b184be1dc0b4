// dialogd-inspect dumps the raw keyspace of a dialogd database for
// debugging. Run it only against a stopped server; pebble takes an
// exclusive lock.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

func main() {
	var path, prefix string
	flag.StringVar(&path, "path", "", "pebble db path")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (e.g. thread:, msgidx:, pair:)")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}

	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
		opts.UpperBound = append([]byte(prefix), 0xff)
	}
	iter, err := db.NewIter(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator failed: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		fmt.Printf("%s\t%s\n", iter.Key(), iter.Value())
		n++
	}
	if err := iter.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "iteration error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
