package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/tuning"
)

func TestSQLiteIndex_IndexesSessionHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "skirmish.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.RecordSession(ctx, "s1", "arena", 42, tuning.Defaults()); err != nil {
		t.Fatalf("record session: %v", err)
	}

	entries := []game.TickLogEntry{
		{SessionID: "s1", Tick: 0, Alive: 3, Joins: []game.RecordedJoin{{PlayerID: 10, Name: "ann"}, {PlayerID: 11, Name: "bo"}, {PlayerID: 12, Name: "cy"}}},
		{SessionID: "s1", Tick: 1, Alive: 2, Kills: []protocol.KillMsg{{KillerID: 11, KilledID: 10, Weapon: "melee"}}},
		{SessionID: "s1", Tick: 2, Alive: 1, Kills: []protocol.KillMsg{{KillerID: 11, KilledID: 12, Weapon: "melee"}}},
		{SessionID: "s1", Tick: 3, Alive: 0, Leaves: []game.ObjectID{11}},
	}
	for _, e := range entries {
		if err := s.WriteTick(e); err != nil {
			t.Fatal(err)
		}
	}
	s.EndSession("s1")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.WriteTick(game.TickLogEntry{SessionID: "s1", Tick: 4}); err != nil {
		t.Fatalf("write after close should be a no-op, got %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	var ticks, joins, leaves int
	if err := s2.db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE session_id = 's1'`).Scan(&ticks); err != nil {
		t.Fatal(err)
	}
	if err := s2.db.QueryRow(`SELECT COUNT(*) FROM joins`).Scan(&joins); err != nil {
		t.Fatal(err)
	}
	if err := s2.db.QueryRow(`SELECT COUNT(*) FROM leaves`).Scan(&leaves); err != nil {
		t.Fatal(err)
	}
	if ticks != 4 || joins != 3 || leaves != 1 {
		t.Fatalf("row counts: ticks=%d joins=%d leaves=%d", ticks, joins, leaves)
	}

	var seed int64
	var digest string
	var ended sql.NullString
	if err := s2.db.QueryRow(`SELECT seed, tuning_digest, ended_at FROM sessions WHERE session_id = 's1'`).Scan(&seed, &digest, &ended); err != nil {
		t.Fatal(err)
	}
	if seed != 42 || len(digest) != 64 || !ended.Valid {
		t.Fatalf("session row: seed=%d digest=%q ended=%v", seed, digest, ended.String)
	}

	top, err := s2.TopKillers(ctx, "s1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0] != (KillCount{PlayerID: 11, Name: "bo", Kills: 2}) {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1), now: time.Now}
	s.ch <- req{kind: reqTick}

	_ = s.WriteTick(game.TickLogEntry{Tick: 2})
	_ = s.WriteTick(game.TickLogEntry{Tick: 3})
	s.EndSession("s1")

	st := s.Stats()
	if st.DropTickTotal != 2 {
		t.Fatalf("DropTickTotal=%d want=2", st.DropTickTotal)
	}
	if st.DropSessionEndTotal != 1 {
		t.Fatalf("DropSessionEndTotal=%d want=1", st.DropSessionEndTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(game.TickLogEntry{}); err != nil {
		t.Fatal(err)
	}
	s.EndSession("x")
	if err := s.RecordSession(context.Background(), "x", "y", 1, tuning.Defaults()); err != nil {
		t.Fatal(err)
	}
	if s.Stats() != (Stats{}) {
		t.Fatalf("expected zero stats")
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
