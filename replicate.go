package main

import (
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotHistory is how many per-tick snapshots a room retains for delta
// baselines. A connection whose last ack falls out of this window gets a
// full snapshot.
const SnapshotHistory = 64

// PlayerSnap is the replicated view of one player.
type PlayerSnap struct {
	ID          string     `msgpack:"id"`
	Name        string     `msgpack:"n"`
	Pos         [3]float64 `msgpack:"p"`
	Rot         [4]float64 `msgpack:"r"`
	Vel         [3]float64 `msgpack:"v"`
	HP          float64    `msgpack:"hp"`
	MaxHP       float64    `msgpack:"mhp"`
	Kills       int        `msgpack:"k"`
	Deaths      int        `msgpack:"d"`
	Missiles    int        `msgpack:"m"`
	MaxMissiles int        `msgpack:"mm"`
	Class       int        `msgpack:"c"`
	Upgrade     bool       `msgpack:"u"`
	Alive       bool       `msgpack:"a"`
	Seq         uint32     `msgpack:"seq"` // last input seq applied by the server
}

// ProjSnap is the replicated view of one projectile.
type ProjSnap struct {
	ID    string     `msgpack:"id"`
	Owner string     `msgpack:"o"`
	Pos   [3]float64 `msgpack:"p"`
	Dir   [3]float64 `msgpack:"d"`
	Speed float64    `msgpack:"s"`
	Auth  bool       `msgpack:"oa"` // owner-authoritative (homing missile)
}

// CollSnap is the replicated view of one collectible slot.
type CollSnap struct {
	ID     string     `msgpack:"id"`
	Type   int        `msgpack:"t"`
	Pos    [3]float64 `msgpack:"p"`
	Active bool       `msgpack:"a"`
}

// Snapshot is the full replicated world at one tick. The server keeps a ring
// of them as delta baselines; the client maintains one by applying deltas.
type Snapshot struct {
	Tick         uint64                `msgpack:"t"`
	Phase        int                   `msgpack:"ph"`
	PhaseT       float64               `msgpack:"pt"`
	Players      map[string]PlayerSnap `msgpack:"p"`
	Projectiles  map[string]ProjSnap   `msgpack:"pr"`
	Collectibles map[string]CollSnap   `msgpack:"c"`
}

// CaptureSnapshot copies the replicated fields out of the live world.
func CaptureSnapshot(w *World) *Snapshot {
	s := &Snapshot{
		Tick:         w.Tick,
		Phase:        int(w.Phase),
		PhaseT:       w.PhaseT,
		Players:      make(map[string]PlayerSnap, len(w.Players)),
		Projectiles:  make(map[string]ProjSnap, len(w.Projectiles)),
		Collectibles: make(map[string]CollSnap, len(w.Collectibles)),
	}
	for id, p := range w.Players {
		s.Players[id] = PlayerSnap{
			ID:          p.ID,
			Name:        p.Name,
			Pos:         vec3Array(p.Pos),
			Rot:         quatArray(p.Rot),
			Vel:         vec3Array(p.Vel),
			HP:          p.HP,
			MaxHP:       p.MaxHP,
			Kills:       p.Kills,
			Deaths:      p.Deaths,
			Missiles:    p.Missiles,
			MaxMissiles: GetClassDef(p.Class).MaxMissiles,
			Class:       int(p.Class),
			Upgrade:     p.LaserUpgrade,
			Alive:       p.Alive,
			Seq:         p.LastAckedSeq,
		}
	}
	for id, pr := range w.Projectiles {
		s.Projectiles[id] = ProjSnap{
			ID:    pr.ID,
			Owner: pr.OwnerID,
			Pos:   vec3Array(pr.Pos),
			Dir:   vec3Array(pr.Dir),
			Speed: pr.Speed,
			Auth:  pr.OwnerAuth,
		}
	}
	for id, c := range w.Collectibles {
		s.Collectibles[id] = CollSnap{
			ID:     c.ID,
			Type:   int(c.Type),
			Pos:    vec3Array(c.Pos),
			Active: c.Active,
		}
	}
	return s
}

// PlayerDelta carries only the fields that changed since the baseline.
// Nil pointer = unchanged. A player absent from the baseline has every
// field set.
type PlayerDelta struct {
	ID          string      `msgpack:"id"`
	Name        *string     `msgpack:"n,omitempty"`
	Pos         *[3]float64 `msgpack:"p,omitempty"`
	Rot         *[4]float64 `msgpack:"r,omitempty"`
	Vel         *[3]float64 `msgpack:"v,omitempty"`
	HP          *float64    `msgpack:"hp,omitempty"`
	MaxHP       *float64    `msgpack:"mhp,omitempty"`
	Kills       *int        `msgpack:"k,omitempty"`
	Deaths      *int        `msgpack:"d,omitempty"`
	Missiles    *int        `msgpack:"m,omitempty"`
	MaxMissiles *int        `msgpack:"mm,omitempty"`
	Class       *int        `msgpack:"c,omitempty"`
	Upgrade     *bool       `msgpack:"u,omitempty"`
	Alive       *bool       `msgpack:"a,omitempty"`
	Seq         *uint32     `msgpack:"seq,omitempty"`
}

// ProjDelta carries changed projectile fields.
type ProjDelta struct {
	ID    string      `msgpack:"id"`
	Owner *string     `msgpack:"o,omitempty"`
	Pos   *[3]float64 `msgpack:"p,omitempty"`
	Dir   *[3]float64 `msgpack:"d,omitempty"`
	Speed *float64    `msgpack:"s,omitempty"`
	Auth  *bool       `msgpack:"oa,omitempty"`
}

// CollDelta carries changed collectible fields.
type CollDelta struct {
	ID     string      `msgpack:"id"`
	Type   *int        `msgpack:"t,omitempty"`
	Pos    *[3]float64 `msgpack:"p,omitempty"`
	Active *bool       `msgpack:"a,omitempty"`
}

// Delta is the wire frame for one tick of state sync: the minimal set of
// fields changed since the receiver's acknowledged baseline, or a full
// snapshot (Full=true, Base=0).
type Delta struct {
	Tick uint64 `msgpack:"t"`
	Base uint64 `msgpack:"b"`
	Full bool   `msgpack:"f"`

	Phase  *int     `msgpack:"ph,omitempty"`
	PhaseT *float64 `msgpack:"pt,omitempty"`

	Players         []PlayerDelta `msgpack:"p,omitempty"`
	PlayersGone     []string      `msgpack:"pg,omitempty"`
	Projectiles     []ProjDelta   `msgpack:"pr,omitempty"`
	ProjectilesGone []string      `msgpack:"prg,omitempty"`
	Collectibles    []CollDelta   `msgpack:"c,omitempty"`
}

// FullDelta encodes a complete snapshot as a delta frame.
func FullDelta(cur *Snapshot) *Delta {
	empty := &Snapshot{
		Players:      map[string]PlayerSnap{},
		Projectiles:  map[string]ProjSnap{},
		Collectibles: map[string]CollSnap{},
	}
	d := DiffSnapshots(empty, cur)
	d.Full = true
	d.Base = 0
	return d
}

// DiffSnapshots computes the delta that turns base into cur. Entry order is
// sorted by id so identical snapshots always produce identical frames.
func DiffSnapshots(base, cur *Snapshot) *Delta {
	d := &Delta{Tick: cur.Tick, Base: base.Tick}

	if base.Phase != cur.Phase {
		ph := cur.Phase
		d.Phase = &ph
	}
	// The timer counts down every tick within a phase, so it diffs on its
	// own rather than riding the phase transition.
	if base.PhaseT != cur.PhaseT {
		pt := cur.PhaseT
		d.PhaseT = &pt
	}

	for _, id := range sortedSnapKeys(cur.Players) {
		c := cur.Players[id]
		b, had := base.Players[id]
		pd := diffPlayer(b, c, !had)
		if pd != nil {
			d.Players = append(d.Players, *pd)
		}
	}
	for _, id := range sortedSnapKeys(base.Players) {
		if _, ok := cur.Players[id]; !ok {
			d.PlayersGone = append(d.PlayersGone, id)
		}
	}

	for _, id := range sortedSnapKeys(cur.Projectiles) {
		c := cur.Projectiles[id]
		b, had := base.Projectiles[id]
		pd := diffProjectile(b, c, !had)
		if pd != nil {
			d.Projectiles = append(d.Projectiles, *pd)
		}
	}
	for _, id := range sortedSnapKeys(base.Projectiles) {
		if _, ok := cur.Projectiles[id]; !ok {
			d.ProjectilesGone = append(d.ProjectilesGone, id)
		}
	}

	for _, id := range sortedSnapKeys(cur.Collectibles) {
		c := cur.Collectibles[id]
		b, had := base.Collectibles[id]
		cd := diffCollectible(b, c, !had)
		if cd != nil {
			d.Collectibles = append(d.Collectibles, *cd)
		}
	}

	return d
}

func diffPlayer(b, c PlayerSnap, isNew bool) *PlayerDelta {
	pd := PlayerDelta{ID: c.ID}
	changed := false
	if isNew || b.Name != c.Name {
		pd.Name, changed = &c.Name, true
	}
	if isNew || b.Pos != c.Pos {
		pd.Pos, changed = &c.Pos, true
	}
	if isNew || b.Rot != c.Rot {
		pd.Rot, changed = &c.Rot, true
	}
	if isNew || b.Vel != c.Vel {
		pd.Vel, changed = &c.Vel, true
	}
	if isNew || b.HP != c.HP {
		pd.HP, changed = &c.HP, true
	}
	if isNew || b.MaxHP != c.MaxHP {
		pd.MaxHP, changed = &c.MaxHP, true
	}
	if isNew || b.Kills != c.Kills {
		pd.Kills, changed = &c.Kills, true
	}
	if isNew || b.Deaths != c.Deaths {
		pd.Deaths, changed = &c.Deaths, true
	}
	if isNew || b.Missiles != c.Missiles {
		pd.Missiles, changed = &c.Missiles, true
	}
	if isNew || b.MaxMissiles != c.MaxMissiles {
		pd.MaxMissiles, changed = &c.MaxMissiles, true
	}
	if isNew || b.Class != c.Class {
		pd.Class, changed = &c.Class, true
	}
	if isNew || b.Upgrade != c.Upgrade {
		pd.Upgrade, changed = &c.Upgrade, true
	}
	if isNew || b.Alive != c.Alive {
		pd.Alive, changed = &c.Alive, true
	}
	if isNew || b.Seq != c.Seq {
		pd.Seq, changed = &c.Seq, true
	}
	if !changed {
		return nil
	}
	return &pd
}

func diffProjectile(b, c ProjSnap, isNew bool) *ProjDelta {
	pd := ProjDelta{ID: c.ID}
	changed := false
	if isNew || b.Owner != c.Owner {
		pd.Owner, changed = &c.Owner, true
	}
	if isNew || b.Pos != c.Pos {
		pd.Pos, changed = &c.Pos, true
	}
	if isNew || b.Dir != c.Dir {
		pd.Dir, changed = &c.Dir, true
	}
	if isNew || b.Speed != c.Speed {
		pd.Speed, changed = &c.Speed, true
	}
	if isNew || b.Auth != c.Auth {
		pd.Auth, changed = &c.Auth, true
	}
	if !changed {
		return nil
	}
	return &pd
}

func diffCollectible(b, c CollSnap, isNew bool) *CollDelta {
	cd := CollDelta{ID: c.ID}
	changed := false
	if isNew || b.Type != c.Type {
		cd.Type, changed = &c.Type, true
	}
	if isNew || b.Pos != c.Pos {
		cd.Pos, changed = &c.Pos, true
	}
	if isNew || b.Active != c.Active {
		cd.Active, changed = &c.Active, true
	}
	if !changed {
		return nil
	}
	return &cd
}

// ApplyDelta mutates s in place. Out-of-order and duplicate frames
// (tick at or below the last applied) are dropped without effect. A delta
// whose baseline does not match the local state is an error; the caller
// should request a full resync.
func ApplyDelta(s *Snapshot, d *Delta) error {
	if d.Tick <= s.Tick {
		return nil
	}
	if d.Full {
		s.Players = make(map[string]PlayerSnap)
		s.Projectiles = make(map[string]ProjSnap)
		s.Collectibles = make(map[string]CollSnap)
	} else if d.Base != s.Tick {
		return fmt.Errorf("delta baseline %d does not match local tick %d", d.Base, s.Tick)
	}
	s.Tick = d.Tick
	if d.Phase != nil {
		s.Phase = *d.Phase
	}
	if d.PhaseT != nil {
		s.PhaseT = *d.PhaseT
	}

	for _, pd := range d.Players {
		p := s.Players[pd.ID]
		p.ID = pd.ID
		if pd.Name != nil {
			p.Name = *pd.Name
		}
		if pd.Pos != nil {
			p.Pos = *pd.Pos
		}
		if pd.Rot != nil {
			p.Rot = *pd.Rot
		}
		if pd.Vel != nil {
			p.Vel = *pd.Vel
		}
		if pd.HP != nil {
			p.HP = *pd.HP
		}
		if pd.MaxHP != nil {
			p.MaxHP = *pd.MaxHP
		}
		if pd.Kills != nil {
			p.Kills = *pd.Kills
		}
		if pd.Deaths != nil {
			p.Deaths = *pd.Deaths
		}
		if pd.Missiles != nil {
			p.Missiles = *pd.Missiles
		}
		if pd.MaxMissiles != nil {
			p.MaxMissiles = *pd.MaxMissiles
		}
		if pd.Class != nil {
			p.Class = *pd.Class
		}
		if pd.Upgrade != nil {
			p.Upgrade = *pd.Upgrade
		}
		if pd.Alive != nil {
			p.Alive = *pd.Alive
		}
		if pd.Seq != nil {
			p.Seq = *pd.Seq
		}
		s.Players[pd.ID] = p
	}
	for _, id := range d.PlayersGone {
		delete(s.Players, id)
	}

	for _, pd := range d.Projectiles {
		p := s.Projectiles[pd.ID]
		p.ID = pd.ID
		if pd.Owner != nil {
			p.Owner = *pd.Owner
		}
		if pd.Pos != nil {
			p.Pos = *pd.Pos
		}
		if pd.Dir != nil {
			p.Dir = *pd.Dir
		}
		if pd.Speed != nil {
			p.Speed = *pd.Speed
		}
		if pd.Auth != nil {
			p.Auth = *pd.Auth
		}
		s.Projectiles[pd.ID] = p
	}
	for _, id := range d.ProjectilesGone {
		delete(s.Projectiles, id)
	}

	for _, cd := range d.Collectibles {
		c := s.Collectibles[cd.ID]
		c.ID = cd.ID
		if cd.Type != nil {
			c.Type = *cd.Type
		}
		if cd.Pos != nil {
			c.Pos = *cd.Pos
		}
		if cd.Active != nil {
			c.Active = *cd.Active
		}
		s.Collectibles[cd.ID] = c
	}

	return nil
}

// EncodeDelta serializes a delta frame for the wire.
func EncodeDelta(d *Delta) ([]byte, error) {
	return msgpack.Marshal(d)
}

// DecodeDelta parses a wire frame.
func DecodeDelta(b []byte) (*Delta, error) {
	var d Delta
	if err := msgpack.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Replicator tracks per-connection acknowledged baselines and the room's
// snapshot history. All methods run on the room's tick goroutine.
type Replicator struct {
	history []*Snapshot // ring, newest last
	acks    map[string]uint64
}

func NewReplicator() *Replicator {
	return &Replicator{acks: make(map[string]uint64)}
}

// Capture snapshots the world and retains it as a potential baseline.
func (r *Replicator) Capture(w *World) *Snapshot {
	s := CaptureSnapshot(w)
	r.history = append(r.history, s)
	if len(r.history) > SnapshotHistory {
		r.history = r.history[len(r.history)-SnapshotHistory:]
	}
	return s
}

// Ack records that a connection holds the snapshot for the given tick.
// Regressions are ignored.
func (r *Replicator) Ack(connID string, tick uint64) {
	if tick > r.acks[connID] {
		r.acks[connID] = tick
	}
}

// ForceFull discards the connection's baseline so its next frame is a full
// snapshot (resync after a client-side decode failure).
func (r *Replicator) ForceFull(connID string) {
	delete(r.acks, connID)
}

// Drop forgets a departed connection.
func (r *Replicator) Drop(connID string) {
	delete(r.acks, connID)
}

// FrameFor builds the wire frame for one connection against its
// acknowledged baseline. Falls back to a full snapshot when the baseline is
// unknown or has left the history window.
func (r *Replicator) FrameFor(connID string, cur *Snapshot) *Delta {
	ack, ok := r.acks[connID]
	if !ok {
		return FullDelta(cur)
	}
	base := r.find(ack)
	if base == nil {
		return FullDelta(cur)
	}
	return DiffSnapshots(base, cur)
}

func (r *Replicator) find(tick uint64) *Snapshot {
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Tick == tick {
			return r.history[i]
		}
	}
	return nil
}

// ReplicaState is the client end of the delta stream. The server diffs
// against the last tick it saw acknowledged, which trails the client by the
// round trip, so the client keeps a ring of its recently applied snapshots
// and resolves each frame's baseline out of that ring. Frames the send
// buffer dropped are skipped over the same way: the baseline is an older
// retained tick, not the missing one.
type ReplicaState struct {
	current *Snapshot
	history []*Snapshot
}

func NewReplicaState() *ReplicaState {
	return &ReplicaState{}
}

// Current is the latest applied snapshot, nil before the first frame.
func (rs *ReplicaState) Current() *Snapshot { return rs.current }

// Apply consumes one wire frame and returns the tick to acknowledge back to
// the server. Duplicate and out-of-order frames return 0 with no effect. An
// error means no retained snapshot matches the frame's baseline; the caller
// should request a resync.
func (rs *ReplicaState) Apply(d *Delta) (uint64, error) {
	if rs.current != nil && d.Tick <= rs.current.Tick {
		return 0, nil
	}
	var base *Snapshot
	if d.Full {
		base = &Snapshot{
			Players:      map[string]PlayerSnap{},
			Projectiles:  map[string]ProjSnap{},
			Collectibles: map[string]CollSnap{},
		}
	} else {
		base = rs.find(d.Base)
		if base == nil {
			return 0, fmt.Errorf("no retained snapshot for baseline %d", d.Base)
		}
	}
	next := cloneSnapshot(base)
	if err := ApplyDelta(next, d); err != nil {
		return 0, err
	}
	rs.current = next
	rs.history = append(rs.history, next)
	if len(rs.history) > SnapshotHistory {
		rs.history = rs.history[len(rs.history)-SnapshotHistory:]
	}
	return d.Tick, nil
}

func (rs *ReplicaState) find(tick uint64) *Snapshot {
	for i := len(rs.history) - 1; i >= 0; i-- {
		if rs.history[i].Tick == tick {
			return rs.history[i]
		}
	}
	return nil
}

// cloneSnapshot deep-copies a snapshot. Entry values are plain structs, so
// copying the maps copies everything.
func cloneSnapshot(s *Snapshot) *Snapshot {
	c := &Snapshot{
		Tick:         s.Tick,
		Phase:        s.Phase,
		PhaseT:       s.PhaseT,
		Players:      make(map[string]PlayerSnap, len(s.Players)),
		Projectiles:  make(map[string]ProjSnap, len(s.Projectiles)),
		Collectibles: make(map[string]CollSnap, len(s.Collectibles)),
	}
	for k, v := range s.Players {
		c.Players[k] = v
	}
	for k, v := range s.Projectiles {
		c.Projectiles[k] = v
	}
	for k, v := range s.Collectibles {
		c.Collectibles[k] = v
	}
	return c
}

func sortedSnapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
