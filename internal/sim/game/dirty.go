package game

import (
	"time"

	"skirmish.io/internal/protocol"
)

// idSet is an insertion-ordered set of object ids.
type idSet struct {
	ids []ObjectID
	has map[ObjectID]struct{}
}

func (s *idSet) Add(id ObjectID) bool {
	if s.has == nil {
		s.has = map[ObjectID]struct{}{}
	}
	if _, ok := s.has[id]; ok {
		return false
	}
	s.has[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *idSet) Remove(id ObjectID) {
	if _, ok := s.has[id]; !ok {
		return
	}
	delete(s.has, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

func (s *idSet) Has(id ObjectID) bool {
	_, ok := s.has[id]
	return ok
}

func (s *idSet) Len() int        { return len(s.ids) }
func (s *idSet) IDs() []ObjectID { return s.ids }

func (s *idSet) Reset() {
	s.ids = s.ids[:0]
	clear(s.has)
}

// tickState holds everything that lives for exactly one tick. A fresh value is
// created by step and dropped when it returns.
type tickState struct {
	tick uint64
	now  time.Time

	fullDirty    idSet
	partialDirty idSet

	dirtyPlayers []*Player
	deletedIDs   []ObjectID
	emotes       []protocol.Emote
	explosions   []protocol.Explosion
	kills        []protocol.KillMsg

	aliveCountDirty bool

	leaves []ObjectID
}

func newTickState(tick uint64, now time.Time) *tickState {
	return &tickState{tick: tick, now: now}
}

// MarkFull records that id needs its complete state sent. It takes precedence over partial.
func (ts *tickState) MarkFull(id ObjectID) {
	ts.partialDirty.Remove(id)
	ts.fullDirty.Add(id)
}

// MarkPartial records a position-only change unless id is already full-dirty.
func (ts *tickState) MarkPartial(id ObjectID) {
	if ts.fullDirty.Has(id) {
		return
	}
	ts.partialDirty.Add(id)
}
