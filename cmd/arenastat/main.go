// Command arenastat opens a persisted arena file read-only and reports its
// bookkeeping counters as JSON, for inspecting a region a long-running
// process left on disk without disturbing it.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/arcbound/rarena/internal/arena"
)

func main() {
	path := flag.String("path", "", "path to a region file written by arena.OpenFile")
	flag.Parse()

	if *path == "" {
		log.Fatal("arenastat: -path is required")
	}

	a, err := arena.OpenFileReadOnly(*path)
	if err != nil {
		log.Fatalf("arenastat: %v", err)
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.Stats()); err != nil {
		log.Fatalf("arenastat: %v", err)
	}
}
