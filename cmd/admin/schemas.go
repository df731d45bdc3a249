package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"skirmish.io/internal/protocol"
)

// schemasCmd writes one JSON schema per packet payload for client authors.
func schemasCmd(args []string) {
	fs := flag.NewFlagSet("schemas", flag.ExitOnError)
	outDir := fs.String("out", "./schemas", "output directory")
	_ = fs.Parse(args)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "mkdir:", err)
		os.Exit(1)
	}
	schemas := protocol.Schemas()
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := json.MarshalIndent(schemas[name], "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "marshal:", name, err)
			os.Exit(1)
		}
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
		fmt.Println(path)
	}
}
