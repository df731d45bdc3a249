package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skirmish.io/internal/persistence/indexdb"
	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/lobby"
	"skirmish.io/internal/sim/tuning"
)

func findRepoRootForServerTests(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func newTestManagerForServer(t *testing.T) *lobby.Manager {
	t.Helper()
	root := findRepoRootForServerTests(t)
	cfg, err := lobby.Load(filepath.Join(root, "configs", "sessions.yaml"))
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	tune := tuning.Defaults()
	tune.Obstacles = nil
	tune.TickMs = 10
	mgr, err := lobby.NewManager(cfg, tune, lobby.Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, g := range mgr.Sessions() {
		go func(g *game.Game) { _ = g.Run(ctx) }(g)
	}
	t.Cleanup(func() {
		cancel()
		for _, g := range mgr.Sessions() {
			<-g.Done()
		}
	})
	return mgr
}

func serve(mux *http.ServeMux, method, target, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestBuildSessionMux_SessionsAndMetrics(t *testing.T) {
	mgr := newTestManagerForServer(t)
	mux := buildSessionMux(mgr, nil, log.New(io.Discard, "", 0), muxOptions{})

	rec := serve(mux, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(mux, http.MethodGet, "/v1/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status=%d", rec.Code)
	}
	var body struct {
		ProtocolVersion string              `json:"protocol_version"`
		Sessions        []lobby.SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if body.ProtocolVersion != protocol.Version || len(body.Sessions) != 2 {
		t.Fatalf("unexpected sessions body %+v", body)
	}
	if body.Sessions[0].Name != "main" || !body.Sessions[0].Default {
		t.Fatalf("expected main as the default session, got %+v", body.Sessions[0])
	}

	rec = serve(mux, http.MethodGet, "/metrics", "")
	text := rec.Body.String()
	for _, want := range []string{
		`skirmish_session_tick{session="main"}`,
		`skirmish_session_alive{session="practice"} 0`,
		`skirmish_session_queue_depth{session="main",queue="input"}`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %s:\n%s", want, text)
		}
	}
	if strings.Contains(text, "skirmish_index_") {
		t.Fatalf("index metrics should be absent without an index")
	}

	rec = serve(mux, http.MethodGet, "/v1/sessions/main/leaderboard", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without an index, got %d", rec.Code)
	}
}

func TestBuildSessionMux_AdminEndAndLoopback(t *testing.T) {
	mgr := newTestManagerForServer(t)
	mux := buildSessionMux(mgr, nil, log.New(io.Discard, "", 0), muxOptions{EnableAdmin: true})

	if rec := serve(mux, http.MethodGet, "/admin/v1/sessions/state", "8.8.8.8:1234"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-loopback admin state, got %d", rec.Code)
	}
	if rec := serve(mux, http.MethodGet, "/admin/v1/sessions/practice/end", "127.0.0.1:1234"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET end, got %d", rec.Code)
	}
	if rec := serve(mux, http.MethodPost, "/admin/v1/sessions/nope/end", "127.0.0.1:1234"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}

	g, err := mgr.Lookup("practice")
	if err != nil {
		t.Fatal(err)
	}
	rec := serve(mux, http.MethodPost, "/admin/v1/sessions/practice/end", "127.0.0.1:1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("end status=%d body=%s", rec.Code, rec.Body.String())
	}
	select {
	case <-g.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not stop")
	}
	if _, err := mgr.Lookup("practice"); !errors.Is(err, lobby.ErrUnknownSession) {
		t.Fatalf("expected the ended session to be unregistered, got %v", err)
	}
}

func TestBuildSessionMux_Leaderboard(t *testing.T) {
	mgr := newTestManagerForServer(t)
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "sessions.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	mux := buildSessionMux(mgr, idx, log.New(io.Discard, "", 0), muxOptions{})

	rec := serve(mux, http.MethodGet, "/v1/sessions/main/leaderboard?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := serve(mux, http.MethodGet, "/v1/sessions/nope/leaderboard", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
	if !strings.Contains(serve(mux, http.MethodGet, "/metrics", "").Body.String(), "skirmish_index_queue_capacity 65536") {
		t.Fatalf("expected index metrics")
	}
}

type recordingTickLogger struct {
	n   int
	err error
}

func (r *recordingTickLogger) WriteTick(game.TickLogEntry) error {
	r.n++
	return r.err
}

func TestMultiTickLogger_WritesEverySink(t *testing.T) {
	a := &recordingTickLogger{err: errors.New("disk full")}
	b := &recordingTickLogger{}
	err := multiTickLogger{a, b}.WriteTick(game.TickLogEntry{Tick: 1})
	if err == nil || a.n != 1 || b.n != 1 {
		t.Fatalf("expected both sinks written and the error surfaced: a=%d b=%d err=%v", a.n, b.n, err)
	}
}
