package game

import (
	"context"
	"time"

	"skirmish.io/internal/protocol"
)

// Run drives the session until ctx is done or End is called. Joins, leaves and
// inputs received between ticks are applied at the next tick boundary.
func (g *Game) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.tune.TickDelta())
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []ObjectID
	var pendingInputs []InputEnvelope

	defer func() {
		for _, req := range pendingJoins {
			if req.Resp != nil {
				req.Resp <- JoinResponse{Err: ErrSessionEnded}
			}
		}
		g.closeConnections()
		close(g.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-g.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-g.input:
			pendingInputs = append(pendingInputs, env)
		case <-ticker.C:
			g.step(g.now(), pendingJoins, pendingLeaves, pendingInputs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingInputs = pendingInputs[:0]
		}
	}
}

// step runs one tick: staged lifecycle and input, physics, combat, broadcast.
func (g *Game) step(now time.Time, joins []JoinRequest, leaves []ObjectID, inputs []InputEnvelope) {
	stepStart := time.Now()
	ts := newTickState(g.tick.Load(), now)

	failed := g.failed
	g.failed = nil
	for _, p := range failed {
		g.removePlayer(ts, p)
	}
	for _, id := range leaves {
		if p := g.byID[id]; p != nil {
			g.removePlayer(ts, p)
		}
	}
	for _, req := range joins {
		var resp JoinResponse
		p, err := g.addPlayer(ts, req.Name, req.Conn)
		if err != nil {
			g.logger.Printf("join %q rejected: %v", req.Name, err)
			resp.Err = err
		} else {
			resp.PlayerID = p.id
		}
		if req.Resp != nil {
			req.Resp <- resp
		}
	}
	for _, env := range inputs {
		p := g.byID[env.PlayerID]
		if p == nil || p.quit || p.dead {
			continue
		}
		p.applyInput(env.Input)
		if env.Input.Emote != "" {
			ts.emotes = append(ts.emotes, protocol.Emote{PlayerID: uint32(p.id), Type: env.Input.Emote})
		}
	}

	g.integrate()
	g.resolve(ts)
	g.broadcast(ts)
	g.endTick(ts, stepStart)
}

func (g *Game) integrate() {
	g.engine.Integrate(g.tune.TickDelta())
	for _, p := range g.active {
		pos, ok := g.engine.Position(p.body)
		if !ok {
			continue
		}
		p.pos = pos
		g.grid.Move(uint32(p.id), pos)
	}
}

// endTick drops the tick's transient state and publishes metrics and the tick log.
func (g *Game) endTick(ts *tickState, stepStart time.Time) {
	for _, id := range ts.deletedIDs {
		g.grid.Remove(uint32(id))
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000
	if d := g.tune.TickDelta(); time.Since(stepStart) > d {
		g.logger.Printf("tick %d took %.2fms (budget %v)", ts.tick, stepMS, d)
	}

	if g.tickLogger != nil {
		entry := TickLogEntry{
			SessionID:    g.id.String(),
			Tick:         ts.tick,
			Leaves:       ts.leaves,
			Kills:        ts.kills,
			Alive:        g.aliveCount,
			FullDirty:    ts.fullDirty.Len(),
			PartialDirty: ts.partialDirty.Len(),
			StepMS:       stepMS,
		}
		for _, p := range ts.dirtyPlayers {
			entry.Joins = append(entry.Joins, RecordedJoin{PlayerID: p.id, Name: p.Name})
		}
		if err := g.tickLogger.WriteTick(entry); err != nil {
			g.logger.Printf("tick log: %v", err)
		}
	}

	g.tick.Add(1)
	g.publishMetrics(stepMS)
}
