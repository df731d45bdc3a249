package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"skirmish.io/internal/persistence/indexdb"
	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/tuning"
)

// runtimeIndex is the read-model sink. It never feeds back into a session.
type runtimeIndex interface {
	game.TickLogger
	Close() error
	RecordSession(ctx context.Context, id, name string, seed int64, tune tuning.Tuning) error
	EndSession(id string)
	TopKillers(ctx context.Context, sessionID string, limit int) ([]indexdb.KillCount, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SKIRMISH_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "sessions.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported SKIRMISH_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
