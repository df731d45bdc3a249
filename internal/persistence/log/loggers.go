package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"skirmish.io/internal/sim/game"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named <prefix>-<yyyy-mm-dd-hh>.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed) under <sessionDir>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(sessionDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e game.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                        { return l.w.Close() }

// Event kinds.
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventKill  = "kill"
)

// SessionEvent is one join, leave or kill pulled out of a tick entry.
type SessionEvent struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
	Kind      string `json:"kind"`
	PlayerID  uint32 `json:"player_id"`
	Name      string `json:"name,omitempty"`
	KillerID  uint32 `json:"killer_id,omitempty"`
	Weapon    string `json:"weapon,omitempty"`
}

// EventLogger keeps only ticks that changed the roster, one line per event,
// under <sessionDir>/events. Quiet ticks cost nothing.
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(sessionDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(sessionDir, "events"), "events")}
}

func (l *EventLogger) WriteTick(e game.TickLogEntry) error {
	for _, ev := range SplitEvents(e) {
		if err := l.w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

func (l *EventLogger) Close() error { return l.w.Close() }

// SplitEvents flattens a tick entry into joins, then leaves, then kills.
func SplitEvents(e game.TickLogEntry) []SessionEvent {
	n := len(e.Joins) + len(e.Leaves) + len(e.Kills)
	if n == 0 {
		return nil
	}
	out := make([]SessionEvent, 0, n)
	for _, j := range e.Joins {
		out = append(out, SessionEvent{SessionID: e.SessionID, Tick: e.Tick, Kind: EventJoin, PlayerID: uint32(j.PlayerID), Name: j.Name})
	}
	for _, id := range e.Leaves {
		out = append(out, SessionEvent{SessionID: e.SessionID, Tick: e.Tick, Kind: EventLeave, PlayerID: uint32(id)})
	}
	for _, k := range e.Kills {
		out = append(out, SessionEvent{SessionID: e.SessionID, Tick: e.Tick, Kind: EventKill, PlayerID: k.KilledID, KillerID: k.KillerID, Weapon: k.Weapon})
	}
	return out
}
