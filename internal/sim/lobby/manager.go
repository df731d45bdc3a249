// Package lobby maps session ids and names to running sessions. Sessions share no
// simulation state; the manager only routes connections to them.
package lobby

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"skirmish.io/internal/protocol"
	"skirmish.io/internal/sim/game"
	"skirmish.io/internal/sim/tuning"
)

var ErrUnknownSession = errors.New("unknown session")

type Options struct {
	Codec protocol.Codec
	// TickLogger, if set, is attached to every session the manager creates.
	TickLogger func(g *game.Game) game.TickLogger
	Logger     *log.Logger
}

// SessionInfo is the discovery view of a session.
type SessionInfo struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Seed    int64        `json:"seed"`
	Default bool         `json:"default,omitempty"`
	Metrics game.Metrics `json:"metrics"`
}

type Manager struct {
	mu deadlock.RWMutex

	byID      map[uuid.UUID]*game.Game
	byName    map[string]*game.Game
	order     []*game.Game
	defaultID uuid.UUID
}

// NewManager creates one session per spec. Sessions are not started; run each
// Session() with Game.Run.
func NewManager(cfg Config, tune tuning.Tuning, opts Options) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		byID:   map[uuid.UUID]*game.Game{},
		byName: map[string]*game.Game{},
	}
	for _, spec := range cfg.Sessions {
		t := tune
		t.Debug = t.Debug || spec.Debug
		if spec.MaxPlayers > 0 {
			t.MaxPlayers = spec.MaxPlayers
		}
		g, err := game.New(game.Config{
			Name:   spec.Name,
			Seed:   spec.Seed,
			Tuning: t,
			Codec:  opts.Codec,
			Logger: opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", spec.Name, err)
		}
		if opts.TickLogger != nil {
			if l := opts.TickLogger(g); l != nil {
				g.SetTickLogger(l)
			}
		}
		m.add(g)
		if spec.Name == cfg.DefaultSession {
			m.defaultID = g.ID()
		}
	}
	return m, nil
}

func (m *Manager) add(g *game.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[g.ID()] = g
	m.byName[g.Name()] = g
	m.order = append(m.order, g)
}

// Sessions returns every registered session in creation order.
func (m *Manager) Sessions() []*game.Game {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*game.Game(nil), m.order...)
}

// Lookup resolves a session by uuid or name. An empty key selects the default session.
func (m *Manager) Lookup(key string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key == "" {
		if g := m.byID[m.defaultID]; g != nil {
			return g, nil
		}
		return nil, ErrUnknownSession
	}
	if id, err := uuid.Parse(key); err == nil {
		if g := m.byID[id]; g != nil {
			return g, nil
		}
	}
	if g := m.byName[key]; g != nil {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSession, key)
}

// Remove ends the session and unregisters it.
func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	g := m.byID[id]
	if g != nil {
		delete(m.byID, id)
		delete(m.byName, g.Name())
		for i, s := range m.order {
			if s == g {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if g == nil {
		return false
	}
	g.End()
	return true
}

// EndAll ends every session. Sessions stay registered until their loops exit.
func (m *Manager) EndAll() {
	for _, g := range m.Sessions() {
		g.End()
	}
}

func (m *Manager) Infos() []SessionInfo {
	m.mu.RLock()
	defaultID := m.defaultID
	m.mu.RUnlock()

	sessions := m.Sessions()
	out := make([]SessionInfo, 0, len(sessions))
	for _, g := range sessions {
		out = append(out, SessionInfo{
			ID:      g.ID().String(),
			Name:    g.Name(),
			Seed:    g.Seed(),
			Default: g.ID() == defaultID,
			Metrics: g.Metrics(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
