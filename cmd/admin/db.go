package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"skirmish.io/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/sessions.sqlite)")
	session := fs.String("session", "", "session id (required for kills, leaderboard, slow)")
	limit := fs.Int("limit", 20, "result limit")
	budgetMS := fs.Float64("budget_ms", 30, "step budget for the slow query")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "sessions.sqlite")
	}
	if q != "sessions" && strings.TrimSpace(*session) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	if q == "leaderboard" {
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer idx.Close()
		rows, err := idx.TopKillers(context.Background(), *session, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
		return
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "sessions":
		rows, err := db.Query(`SELECT session_id,name,seed,tuning_digest,started_at,COALESCE(ended_at,'') FROM sessions ORDER BY started_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SessionID    string `json:"session_id"`
				Name         string `json:"name"`
				Seed         int64  `json:"seed"`
				TuningDigest string `json:"tuning_digest"`
				StartedAt    string `json:"started_at"`
				EndedAt      string `json:"ended_at,omitempty"`
			}
			if err := rows.Scan(&r.SessionID, &r.Name, &r.Seed, &r.TuningDigest, &r.StartedAt, &r.EndedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		exitOnRowsErr(rows)

	case "kills":
		rows, err := db.Query(`SELECT tick,killer_id,killed_id,weapon FROM kills WHERE session_id=? ORDER BY tick DESC, seq DESC LIMIT ?`, *session, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     uint64 `json:"tick"`
				KillerID uint32 `json:"killer_id"`
				KilledID uint32 `json:"killed_id"`
				Weapon   string `json:"weapon"`
			}
			if err := rows.Scan(&r.Tick, &r.KillerID, &r.KilledID, &r.Weapon); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		exitOnRowsErr(rows)

	case "slow":
		rows, err := db.Query(`SELECT tick,step_ms,alive,full_dirty,partial_dirty FROM ticks WHERE session_id=? AND step_ms > ? ORDER BY step_ms DESC LIMIT ?`, *session, *budgetMS, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick         uint64  `json:"tick"`
				StepMS       float64 `json:"step_ms"`
				Alive        int     `json:"alive"`
				FullDirty    int     `json:"full_dirty"`
				PartialDirty int     `json:"partial_dirty"`
			}
			if err := rows.Scan(&r.Tick, &r.StepMS, &r.Alive, &r.FullDirty, &r.PartialDirty); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		exitOnRowsErr(rows)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-session ID] sessions|kills|leaderboard|slow")
		os.Exit(2)
	}
}

func exitOnRowsErr(rows *sql.Rows) {
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
