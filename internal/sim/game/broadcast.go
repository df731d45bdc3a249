package game

import (
	"slices"

	"skirmish.io/internal/protocol"
)

// broadcast finalizes every connected player's buffers and sends its packets.
func (g *Game) broadcast(ts *tickState) {
	for _, p := range g.connected {
		if p.connFailed {
			continue
		}
		skipObjectCalculations := ts.fullDirty.Len() == 0 && ts.partialDirty.Len() == 0 && !p.Moving()
		if !skipObjectCalculations {
			g.refreshVisibility(p)
		}

		for _, id := range ts.fullDirty.IDs() {
			if p.Sees(id) {
				p.fullObjects.Add(id)
			}
		}
		for _, id := range ts.partialDirty.IDs() {
			if p.Sees(id) {
				p.partialObjects.Add(id)
			}
		}

		packets := []protocol.Packet{g.updateFor(ts, p)}
		if ts.aliveCountDirty {
			packets = append(packets, &protocol.AliveCountsMsg{Alive: g.aliveCount})
		}
		for i := range ts.kills {
			packets = append(packets, &ts.kills[i])
		}
		g.send(p, g.encode(packets...))

		p.fullObjects.Reset()
		p.partialObjects.Reset()
		p.gone = p.gone[:0]
	}
}

func (g *Game) updateFor(ts *tickState, p *Player) *protocol.UpdateMsg {
	u := &protocol.UpdateMsg{Tick: ts.tick}
	for _, id := range p.fullObjects.IDs() {
		if p.Sees(id) {
			u.Full = append(u.Full, g.objects[id].SerializeFull())
		}
	}
	for _, id := range p.partialObjects.IDs() {
		if p.Sees(id) && !p.fullObjects.Has(id) {
			u.Partial = append(u.Partial, g.objects[id].SerializePartial())
		}
	}
	if len(ts.emotes) > 0 {
		u.Emotes = ts.emotes
	}
	if len(ts.explosions) > 0 {
		u.Explosions = ts.explosions
	}
	u.DeletedIDs = wireIDs(ts.deletedIDs)
	u.Gone = wireIDs(p.gone)
	return u
}

// refreshVisibility recomputes the set of objects within view of p. Objects entering
// the view are queued as full; objects leaving it are reported as gone.
func (g *Game) refreshVisibility(p *Player) {
	r := g.tune.ViewRadius
	ids := g.grid.Query(p.pos, r, r)

	next := make(map[ObjectID]struct{}, len(ids))
	for _, raw := range ids {
		id := ObjectID(raw)
		next[id] = struct{}{}
		if _, seen := p.visible[id]; !seen {
			p.fullObjects.Add(id)
		}
	}
	var left []ObjectID
	for id := range p.visible {
		if _, ok := next[id]; !ok {
			left = append(left, id)
			p.fullObjects.Remove(id)
			p.partialObjects.Remove(id)
		}
	}
	slices.Sort(left)
	p.gone = append(p.gone, left...)
	p.visible = next
}

func (g *Game) encode(packets ...protocol.Packet) []byte {
	var out []byte
	for _, pk := range packets {
		b, err := g.codec.Encode(pk)
		if err != nil {
			g.logger.Printf("encode %s: %v", pk.PacketType(), err)
			continue
		}
		out = append(out, b...)
	}
	return out
}

// send hands b to the player's connection. A failure stops all further emission to
// the player; it is removed at the next tick boundary.
func (g *Game) send(p *Player, b []byte) {
	if p.conn == nil || p.connFailed || len(b) == 0 {
		return
	}
	if err := p.conn.Send(b); err != nil {
		p.connFailed = true
		g.failed = append(g.failed, p)
		g.logger.Printf("player %d (%s): send failed: %v", p.id, p.Name, err)
	}
}

func wireIDs(ids []ObjectID) []uint32 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
