package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"skirmish.io/internal/sim/game"
)

func main() {
	var (
		dir      = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (optional)")
		budgetMS = flag.Float64("budget_ms", 30, "tick budget used to count slow ticks")
		strict   = flag.Bool("strict", false, "exit non-zero on tick gaps")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}
	files, err := listTickFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *dir)
		os.Exit(1)
	}

	s := summary{budgetMS: *budgetMS, from: *fromTick, to: *toTick}
	for _, path := range files {
		if err := s.readFile(path); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	s.print(os.Stdout)
	if *strict && len(s.gaps) > 0 {
		os.Exit(1)
	}
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type gap struct{ after, next uint64 }

type summary struct {
	budgetMS float64
	from, to uint64

	sessions map[string]bool
	entries  uint64
	first    uint64
	last     uint64
	seen     bool
	gaps     []gap

	joins, leaves, kills int
	maxAlive             int
	sumStep, maxStep     float64
	slow                 int
	fullDirty            int
	partialDirty         int
}

func (s *summary) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e game.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if e.Tick < s.from || (s.to != 0 && e.Tick > s.to) {
			continue
		}
		s.add(e)
	}
	return sc.Err()
}

func (s *summary) add(e game.TickLogEntry) {
	if s.sessions == nil {
		s.sessions = map[string]bool{}
	}
	s.sessions[e.SessionID] = true
	if !s.seen {
		s.first = e.Tick
		s.seen = true
	} else if e.Tick != s.last+1 {
		s.gaps = append(s.gaps, gap{after: s.last, next: e.Tick})
	}
	s.last = e.Tick
	s.entries++

	s.joins += len(e.Joins)
	s.leaves += len(e.Leaves)
	s.kills += len(e.Kills)
	s.fullDirty += e.FullDirty
	s.partialDirty += e.PartialDirty
	s.maxAlive = max(s.maxAlive, e.Alive)
	s.sumStep += e.StepMS
	s.maxStep = max(s.maxStep, e.StepMS)
	if e.StepMS > s.budgetMS {
		s.slow++
	}
}

func (s *summary) print(w *os.File) {
	if s.entries == 0 {
		fmt.Fprintln(w, "no ticks in range")
		return
	}
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "sessions=%s ticks=%d range=[%d,%d] gaps=%d\n", strings.Join(ids, ","), s.entries, s.first, s.last, len(s.gaps))
	fmt.Fprintf(w, "joins=%d leaves=%d kills=%d max_alive=%d\n", s.joins, s.leaves, s.kills, s.maxAlive)
	fmt.Fprintf(w, "dirty full=%d partial=%d\n", s.fullDirty, s.partialDirty)
	fmt.Fprintf(w, "step_ms avg=%.3f max=%.3f slow(>%.0fms)=%d\n", s.sumStep/float64(s.entries), s.maxStep, s.budgetMS, s.slow)
	for _, g := range s.gaps {
		fmt.Fprintf(w, "gap: tick %d followed by %d\n", g.after, g.next)
	}
}
