package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/lobby"
	"skirmish.io/internal/transport/ws"
)

type muxOptions struct {
	Codec       protocol.Codec
	EnableAdmin bool
	EnablePprof bool
}

func buildSessionMux(mgr *lobby.Manager, idx runtimeIndex, logger *log.Logger, opts muxOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeSessionMetrics(rw, mgr)
		writeIndexMetrics(rw, idx)
	})
	mux.HandleFunc("/v1/sessions", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"protocol_version": protocol.Version,
			"sessions":         mgr.Infos(),
		})
	})
	mux.HandleFunc("/v1/sessions/", func(rw http.ResponseWriter, r *http.Request) {
		// Pattern: /v1/sessions/{id|name}/leaderboard
		path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
		parts := strings.Split(strings.Trim(path, "/"), "/")
		if len(parts) != 2 || parts[1] != "leaderboard" {
			http.NotFound(rw, r)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		g, err := mgr.Lookup(parts[0])
		if err != nil {
			http.Error(rw, err.Error(), http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ctx2, cancel2 := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel2()
		rows, err := idx.TopKillers(ctx2, g.ID().String(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"session_id": g.ID().String(), "leaderboard": rows})
	})

	if opts.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/sessions/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(mgr.Infos())
		})
		mux.HandleFunc("/admin/v1/sessions/", func(rw http.ResponseWriter, r *http.Request) {
			// Pattern: /admin/v1/sessions/{id|name}/end
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path := strings.TrimPrefix(r.URL.Path, "/admin/v1/sessions/")
			parts := strings.Split(strings.Trim(path, "/"), "/")
			if len(parts) != 2 || parts[1] != "end" {
				http.NotFound(rw, r)
				return
			}
			g, err := mgr.Lookup(parts[0])
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, lobby.ErrUnknownSession) {
					status = http.StatusNotFound
				}
				http.Error(rw, err.Error(), status)
				return
			}
			mgr.Remove(g.ID())
			logger.Printf("admin: ended session %s (%s)", g.Name(), g.ID())
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "session_id": g.ID().String(), "tick": g.CurrentTick()})
		})
	} else {
		logger.Printf("admin endpoints disabled (SKIRMISH_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, opts.Codec, logger).Handler())
	return mux
}

func writeSessionMetrics(rw http.ResponseWriter, mgr *lobby.Manager) {
	infos := mgr.Infos()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP skirmish_session_tick Current session tick.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_tick gauge\n")
	for _, s := range infos {
		fmt.Fprintf(rw, "skirmish_session_tick{session=%q} %d\n", s.Name, s.Metrics.Tick)
	}

	fmt.Fprintf(rw, "# HELP skirmish_session_objects Registered world objects, including removed players.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_objects gauge\n")
	for _, s := range infos {
		fmt.Fprintf(rw, "skirmish_session_objects{session=%q} %d\n", s.Name, s.Metrics.Objects)
	}

	fmt.Fprintf(rw, "# HELP skirmish_session_connected Players with an open connection.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_connected gauge\n")
	for _, s := range infos {
		fmt.Fprintf(rw, "skirmish_session_connected{session=%q} %d\n", s.Name, s.Metrics.Connected)
	}

	fmt.Fprintf(rw, "# HELP skirmish_session_alive Players alive.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_alive gauge\n")
	for _, s := range infos {
		fmt.Fprintf(rw, "skirmish_session_alive{session=%q} %d\n", s.Name, s.Metrics.Alive)
	}

	fmt.Fprintf(rw, "# HELP skirmish_session_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_queue_depth gauge\n")
	for _, s := range infos {
		q := s.Metrics.QueueDepths
		fmt.Fprintf(rw, "skirmish_session_queue_depth{session=%q,queue=%q} %d\n", s.Name, "join", q.Join)
		fmt.Fprintf(rw, "skirmish_session_queue_depth{session=%q,queue=%q} %d\n", s.Name, "leave", q.Leave)
		fmt.Fprintf(rw, "skirmish_session_queue_depth{session=%q,queue=%q} %d\n", s.Name, "input", q.Input)
	}

	fmt.Fprintf(rw, "# HELP skirmish_session_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_session_step_ms gauge\n")
	for _, s := range infos {
		fmt.Fprintf(rw, "skirmish_session_step_ms{session=%q} %.3f\n", s.Name, s.Metrics.StepMS)
	}
}

func writeIndexMetrics(rw http.ResponseWriter, idx runtimeIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP skirmish_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "skirmish_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP skirmish_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "skirmish_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP skirmish_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE skirmish_index_dropped_total counter\n")
	fmt.Fprintf(rw, "skirmish_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "skirmish_index_dropped_total{kind=%q} %d\n", "session_end", s.DropSessionEndTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
