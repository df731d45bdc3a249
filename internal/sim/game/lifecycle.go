package game

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"skirmish.io/internal/protocol"
)

const meleeWeapon = "melee"

func (g *Game) spawnPosition() mgl64.Vec2 {
	if g.tune.Debug {
		return mgl64.Vec2{g.tune.DebugSpawn[0], g.tune.DebugSpawn[1]}
	}
	return randomIn(g.rng, g.tune)
}

// addPlayer registers a new player and sends its join burst.
func (g *Game) addPlayer(ts *tickState, name string, conn Conn) (*Player, error) {
	if len(g.connected) >= g.tune.MaxPlayers {
		return nil, ErrSessionFull
	}
	if name == "" {
		name = "player"
	}
	p := &Player{
		object: object{
			g:     g,
			id:    ObjectID(len(g.objects)),
			kind:  KindPlayer,
			pos:   g.spawnPosition(),
			scale: 1,
		},
		Name:    name,
		facing:  mgl64.Vec2{1, 0},
		health:  g.tune.Player.Health,
		radius:  g.tune.Player.Radius,
		visible: map[ObjectID]struct{}{},
		conn:    conn,
	}
	p.body = g.engine.CreateBody(p.Hitbox(), true)
	g.grid.Insert(uint32(p.id), p.pos, p.radius, p.radius)

	g.objects = append(g.objects, p)
	g.players = append(g.players, p)
	g.byID[p.id] = p
	g.connected = append(g.connected, p)
	g.active = append(g.active, p)
	ts.dirtyPlayers = append(ts.dirtyPlayers, p)

	g.aliveCount++
	ts.aliveCountDirty = true
	ts.MarkFull(p.id)

	p.fullObjects.Add(p.id)
	g.refreshVisibility(p)

	update := protocol.UpdateMsg{Tick: ts.tick}
	for _, id := range p.fullObjects.IDs() {
		update.Full = append(update.Full, g.objects[id].SerializeFull())
	}
	burst := g.encode(
		&protocol.JoinedMsg{
			ProtocolVersion: protocol.Version,
			SessionID:       g.id.String(),
			PlayerID:        uint32(p.id),
			TickMs:          g.tune.TickMs,
		},
		&protocol.MapMsg{Name: g.name, Seed: g.seed, Width: g.tune.MapWidth, Height: g.tune.MapHeight},
		&update,
		&protocol.AliveCountsMsg{Alive: g.aliveCount},
	)
	p.fullObjects.Reset()
	p.gone = p.gone[:0]
	g.send(p, burst)
	return p, nil
}

// removePlayer disconnects p. The player stays addressable by id; a second call is a no-op.
func (g *Game) removePlayer(ts *tickState, p *Player) {
	if p.quit {
		return
	}
	p.facing = mgl64.Vec2{1, 0}
	p.rot = 0
	p.quit = true
	p.velocity = mgl64.Vec2{}
	ts.deletedIDs = append(ts.deletedIDs, p.id)
	ts.leaves = append(ts.leaves, p.id)
	ts.MarkPartial(p.id)

	g.active = without(g.active, p)
	g.connected = without(g.connected, p)
	p.removeBody()

	if !p.dead {
		g.aliveCount--
		ts.aliveCountDirty = true
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (g *Game) killPlayer(ts *tickState, p *Player, killer ObjectID) {
	if p.dead {
		return
	}
	p.dead = true
	p.velocity = mgl64.Vec2{}
	p.resetAnimation()
	g.active = without(g.active, p)
	p.removeBody()

	g.aliveCount--
	ts.aliveCountDirty = true
	ts.kills = append(ts.kills, protocol.KillMsg{KillerID: uint32(killer), KilledID: uint32(p.id), Weapon: meleeWeapon})
	ts.MarkFull(p.id)
}

// closeConnections runs once when the loop exits.
func (g *Game) closeConnections() {
	for _, p := range g.connected {
		if p.conn != nil {
			_ = p.conn.Close()
		}
	}
}

func without(list []*Player, p *Player) []*Player {
	return slices.DeleteFunc(list, func(q *Player) bool { return q == p })
}
