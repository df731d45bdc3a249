package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/tuning"
)

const queueSize = 65536

// SQLiteIndex is a queryable secondary index of session history. Writes are queued
// to a single writer goroutine and dropped when it falls behind; the JSONL tick
// logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick atomic.Uint64
	dropEnd  atomic.Uint64

	now func() time.Time
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSessionEnd
)

type req struct {
	kind reqKind

	tick      game.TickLogEntry
	sessionID string
	at        string
}

// Stats reports queue pressure; exported on /metrics.
type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropTickTotal       uint64
	DropSessionEndTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		ch:  make(chan req, queueSize),
		now: time.Now,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			seed INTEGER NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name, started_at);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			alive INTEGER NOT NULL,
			full_dirty INTEGER NOT NULL,
			partial_dirty INTEGER NOT NULL,
			step_ms REAL NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			kills INTEGER NOT NULL,
			PRIMARY KEY (session_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS joins (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (session_id, tick, player_id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaves (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			PRIMARY KEY (session_id, tick, player_id)
		);`,
		`CREATE TABLE IF NOT EXISTS kills (
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			killer_id INTEGER NOT NULL,
			killed_id INTEGER NOT NULL,
			weapon TEXT NOT NULL,
			PRIMARY KEY (session_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_kills_killer ON kills(session_id, killer_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropTickTotal:       s.dropTick.Load(),
		DropSessionEndTotal: s.dropEnd.Load(),
	}
}

// RecordSession stores a session row with the tuning it runs with. It writes
// synchronously so the row exists before the first tick is indexed.
func (s *SQLiteIndex) RecordSession(ctx context.Context, id, name string, seed int64, tune tuning.Tuning) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions(session_id,name,seed,tuning_digest,tuning_json,started_at,ended_at) VALUES(?,?,?,?,?,?,NULL)`,
		id, name, seed, hex.EncodeToString(sum[:]), string(b), s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteIndex) EndSession(id string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSessionEnd, sessionID: id, at: s.now().UTC().Format(time.RFC3339Nano)}:
	default:
		s.dropEnd.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry game.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

// KillCount is one row of a session leaderboard.
type KillCount struct {
	PlayerID uint32 `json:"player_id"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
}

// TopKillers ranks players of a session by kills, ties broken by player id.
// Rows still queued in the writer are not visible yet.
func (s *SQLiteIndex) TopKillers(ctx context.Context, sessionID string, limit int) ([]KillCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.killer_id, COALESCE(MAX(j.name), ''), COUNT(*) AS n
		FROM kills k
		LEFT JOIN joins j ON j.session_id = k.session_id AND j.player_id = k.killer_id
		WHERE k.session_id = ?
		GROUP BY k.killer_id
		ORDER BY n DESC, k.killer_id ASC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KillCount
	for rows.Next() {
		var kc KillCount
		if err := rows.Scan(&kc.PlayerID, &kc.Name, &kc.Kills); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(session_id,tick,alive,full_dirty,partial_dirty,step_ms,joins,leaves,kills) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO joins(session_id,tick,player_id,name) VALUES(?,?,?,?)`)
	insertLeave, _ := s.db.Prepare(`INSERT OR REPLACE INTO leaves(session_id,tick,player_id) VALUES(?,?,?)`)
	insertKill, _ := s.db.Prepare(`INSERT OR REPLACE INTO kills(session_id,tick,seq,killer_id,killed_id,weapon) VALUES(?,?,?,?,?,?)`)
	endSession, _ := s.db.Prepare(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertJoin, insertLeave, insertKill, endSession} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			tick := int64(t.Tick)
			if !exec(insertTick, t.SessionID, tick, t.Alive, t.FullDirty, t.PartialDirty, t.StepMS, len(t.Joins), len(t.Leaves), len(t.Kills)) {
				continue
			}
			ok := true
			for _, j := range t.Joins {
				if ok = exec(insertJoin, t.SessionID, tick, int64(j.PlayerID), j.Name); !ok {
					break
				}
			}
			for _, id := range t.Leaves {
				if !ok {
					break
				}
				ok = exec(insertLeave, t.SessionID, tick, int64(id))
			}
			for i, k := range t.Kills {
				if !ok {
					break
				}
				ok = exec(insertKill, t.SessionID, tick, i, int64(k.KillerID), int64(k.KilledID), k.Weapon)
			}

		case reqSessionEnd:
			exec(endSession, r.at, r.sessionID)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
