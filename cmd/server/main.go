package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	persistlog "skirmish.io/internal/persistence/log"
	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/lobby"
	"skirmish.io/internal/sim/tuning"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		sessionsPath = flag.String("sessions", "", "path to sessions.yaml (default: <configs>/sessions.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		codecName    = flag.String("codec", "msgpack", "wire codec: msgpack or json")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite session index")
		disableLog   = flag.Bool("disable_ticklog", false, "disable compressed tick and event logs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	sp := strings.TrimSpace(*sessionsPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "sessions.yaml")
	}
	if _, err := os.Stat(sp); err != nil {
		logger.Printf("sessions config not found (%s); running a single default session", sp)
		sp = ""
	}
	lcfg, err := lobby.Load(sp)
	if err != nil {
		logger.Fatalf("load sessions: %v", err)
	}

	codec, err := protocol.CodecByName(*codecName)
	if err != nil {
		logger.Fatalf("codec: %v", err)
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	var (
		closersMu sync.Mutex
		closers   []io.Closer
	)
	defer func() {
		closersMu.Lock()
		defer closersMu.Unlock()
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	sessionLogger := log.New(os.Stdout, "[session]", log.LstdFlags|log.Lmicroseconds)
	mgr, err := lobby.NewManager(lcfg, tune, lobby.Options{
		Codec:  codec,
		Logger: sessionLogger,
		TickLogger: func(g *game.Game) game.TickLogger {
			var sinks multiTickLogger
			if !*disableLog {
				dir := filepath.Join(*dataDir, "sessions", g.Name(), g.ID().String())
				ticks := persistlog.NewTickLogger(dir)
				events := persistlog.NewEventLogger(dir)
				closersMu.Lock()
				closers = append(closers, ticks, events)
				closersMu.Unlock()
				sinks = append(sinks, ticks, events)
			}
			if idx != nil {
				ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
				if err := idx.RecordSession(ctx2, g.ID().String(), g.Name(), g.Seed(), g.Tuning()); err != nil {
					logger.Printf("index backend: record session %s: %v", g.Name(), err)
				}
				cancel2()
				sinks = append(sinks, idx)
			}
			if len(sinks) == 0 {
				return nil
			}
			return sinks
		},
	})
	if err != nil {
		logger.Fatalf("sessions: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	grp, gctx := errgroup.WithContext(ctx)
	for _, g := range mgr.Sessions() {
		g := g
		grp.Go(func() error {
			err := g.Run(gctx)
			if idx != nil {
				idx.EndSession(g.ID().String())
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("session stopped (%s): %v", g.Name(), err)
			}
			return nil
		})
	}

	mux := buildSessionMux(mgr, idx, logger, muxOptions{
		Codec:       codec,
		EnableAdmin: envBool("SKIRMISH_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("SKIRMISH_ENABLE_PPROF_HTTP", false),
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grp.Go(func() error {
		<-gctx.Done()
		mgr.EndAll()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	grp.Go(func() error {
		infos := mgr.Infos()
		names := make([]string, 0, len(infos))
		for _, s := range infos {
			names = append(names, s.Name)
		}
		logger.Printf("listening on %s codec=%s sessions=%v", *addr, codec.Name(), names)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		logger.Printf("server: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

// multiTickLogger fans a tick entry out to every sink; one failing sink does not starve the others.
type multiTickLogger []game.TickLogger

func (m multiTickLogger) WriteTick(entry game.TickLogEntry) error {
	var errs []error
	for _, l := range m {
		if err := l.WriteTick(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
