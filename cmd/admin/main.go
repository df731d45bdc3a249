package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "end":
			endCmd(os.Args[2:])
			return
		case "schemas":
			schemasCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the session runs that have logs under the data dir.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("session", "", "session name (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "sessions")
	names := []string{*name}
	if *name == "" {
		ents, err := os.ReadDir(base)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		names = names[:0]
		for _, e := range ents {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	for _, n := range names {
		runs, err := os.ReadDir(filepath.Join(base, n))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, r := range runs {
			if r.IsDir() {
				fmt.Printf("%s\t%s\n", n, r.Name())
			}
		}
	}
}
