package main

import (
	"log"
	"sync/atomic"
	"time"
)

const (
	maxPlayersPerRoom     = 16
	maxProjectilesPerRoom = 400
	maxChatLen            = 200
	roomInboxSize         = 256
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Room commands, delivered through the inbox channel and handled between
// ticks on the room goroutine.
type joinCmd struct {
	name   string
	class  ShipClass
	authID int64
	conn   Broadcaster
	reply  chan<- joinResult
}

type joinResult struct {
	playerID string
	tick     uint64
	ok       bool
}

type leaveCmd struct{ pid string }
type chatCmd struct {
	pid  string
	text string
}
type ackCmd struct {
	pid  string
	tick uint64
}
type resyncCmd struct{ pid string }
type restartCmd struct{ pid string }

// Room owns one World and one tick goroutine. All authoritative state
// mutation happens on that goroutine; connections submit intents through
// the Ingestor and commands through the inbox.
type Room struct {
	ID   string
	Name string

	world   *World
	ingest  *Ingestor
	repl    *Replicator
	sweep   SweptQuery
	clients map[string]Broadcaster
	stats   *StatsWriter

	inbox chan interface{}
	stop  chan struct{}

	events   []Envelope
	intents  []interface{}
	nextSlot int
	restart  bool

	playerCount atomic.Int32
	phase       atomic.Int32

	// onEmpty is invoked from the room goroutine when the last player
	// leaves, so the manager can tear the room down.
	onEmpty func(roomID string)
}

// NewRoom creates a room over the given level. stats may be nil.
func NewRoom(id, name string, level *Level, stats *StatsWriter) *Room {
	return &Room{
		ID:      id,
		Name:    name,
		world:   NewWorld(level),
		ingest:  NewIngestor(),
		repl:    NewReplicator(),
		sweep:   SweptSphereHit,
		clients: make(map[string]Broadcaster),
		stats:   stats,
		inbox:   make(chan interface{}, roomInboxSize),
		stop:    make(chan struct{}),
	}
}

// Run drives the fixed-rate simulation until Stop. A panic in one room's
// tick is contained here: it kills this room only, never its siblings.
func (r *Room) Run() {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("room %s: simulation crashed: %v", r.ID, err)
		}
	}()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()
	clock := NewClock(time.Now())

	for {
		select {
		case <-r.stop:
			return
		case cmd := <-r.inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			for i, n := 0, clock.Advance(time.Now()); i < n; i++ {
				r.step()
			}
		}
	}
}

// Stop terminates the room goroutine.
func (r *Room) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// Submit exposes the input ingestor to connection goroutines.
func (r *Room) Submit() *Ingestor { return r.ingest }

// Send delivers a command to the room goroutine, dropping it if the room
// has stopped.
func (r *Room) Send(cmd interface{}) {
	select {
	case r.inbox <- cmd:
	case <-r.stop:
	}
}

// PlayerCount is safe to call from any goroutine.
func (r *Room) PlayerCount() int {
	return int(r.playerCount.Load())
}

// Phase mirrors the world's match phase for cross-goroutine reads (room list).
func (r *Room) Phase() MatchPhase {
	return MatchPhase(r.phase.Load())
}

func (r *Room) handleCommand(cmd interface{}) {
	w := r.world
	switch c := cmd.(type) {
	case joinCmd:
		if len(w.Players) >= maxPlayersPerRoom {
			c.reply <- joinResult{}
			return
		}
		id := GenerateID(4)
		slot := r.nextSlot
		r.nextSlot++
		p := NewPlayer(id, c.name, c.class, w.Level.SpawnPoint(slot), slot)
		p.AuthID = c.authID
		w.Players[id] = p
		r.clients[id] = c.conn
		r.playerCount.Store(int32(len(w.Players)))
		c.reply <- joinResult{playerID: id, tick: w.Tick, ok: true}

	case leaveCmd:
		r.removePlayer(c.pid)

	case chatCmd:
		p, ok := w.Players[c.pid]
		if !ok || c.text == "" {
			return
		}
		text := c.text
		if len(text) > maxChatLen {
			text = text[:maxChatLen]
		}
		r.broadcastJSON(Envelope{T: MsgChat, Data: ChatMsg{
			From: p.ID,
			Name: p.Name,
			Text: text,
		}})

	case ackCmd:
		r.repl.Ack(c.pid, c.tick)

	case resyncCmd:
		r.repl.ForceFull(c.pid)

	case restartCmd:
		if _, ok := w.Players[c.pid]; ok {
			r.restart = true
		}
	}
}

// removePlayer drops the player and their replication state. Any homing
// missiles they own are left in the world to extrapolate along their last
// heading until lifetime expiry; server-simulated lasers are unaffected.
func (r *Room) removePlayer(pid string) {
	delete(r.world.Players, pid)
	delete(r.clients, pid)
	r.ingest.Forget(pid)
	r.repl.Drop(pid)
	r.playerCount.Store(int32(len(r.world.Players)))
	if len(r.world.Players) == 0 && r.onEmpty != nil {
		go r.onEmpty(r.ID)
	}
}

// step runs one fixed simulation tick: ingest -> combat -> shields ->
// collectibles -> phase, then replication.
func (r *Room) step() {
	w := r.world
	w.Tick++
	r.events = r.events[:0]

	r.applyIntents()
	ResolveCombat(w, TickDt, r.sweep, &r.events)
	RegenShields(w, TickDt)
	UpdateCollectibles(w, TickDt)
	restart := r.restart
	r.restart = false
	UpdatePhase(w, TickDt, restart, &r.events)
	r.phase.Store(int32(w.Phase))

	r.broadcast()
}

func (r *Room) applyIntents() {
	r.intents = r.ingest.Drain(r.intents)
	for _, it := range r.intents {
		switch c := it.(type) {
		case moveIntent:
			r.applyMove(c.pid, c.msg)
		case fireIntent:
			r.applyFire(c.pid, c.msg)
		case missileIntent:
			r.applyMissile(c.pid, c.msg)
		}
	}

	// Laser cooldowns tick here so a fire queued the same tick the
	// cooldown elapses is honored.
	for _, p := range r.world.Players {
		if p.FireCD > 0 {
			p.FireCD -= TickDt
		}
	}
}

// applyMove stores client-computed movement after enforcing bounds:
// velocity capped at the class speed limit, displacement capped at one
// tick's worth of travel, position clamped to the arena.
func (r *Room) applyMove(pid string, msg InputMsg) {
	w := r.world
	p, ok := w.Players[pid]
	if !ok || !p.Alive {
		return
	}
	def := GetClassDef(p.Class)
	maxSpd := def.MaxSpeed * SpeedTolerance

	vel := arrayVec3(msg.Vel).ClampLength(maxSpd)
	pos := w.Level.ClampToBounds(arrayVec3(msg.Pos))

	// An out-of-bounds movement claim is clamped to the reachable step,
	// not rejected: the claim's direction is kept, the teleport is not.
	step := pos.Sub(p.Pos)
	maxStep := maxSpd * TickDt
	if step.Length() > maxStep {
		pos = p.Pos.Add(step.ClampLength(maxStep))
	}

	p.Pos = pos
	p.Vel = vel
	p.Rot = arrayQuat(msg.Rot).Normalized()
	p.LastAckedSeq = msg.Seq
}

func (r *Room) applyFire(pid string, msg FireMsg) {
	w := r.world
	p, ok := w.Players[pid]
	if !ok || !p.Alive || !CombatAllowed(w.Phase) {
		return
	}
	if len(w.Projectiles) >= maxProjectilesPerRoom {
		return
	}
	dir := arrayVec3(msg.Dir).Normalized()

	switch msg.Weapon {
	case WeaponLaser:
		if !p.CanFireLaser() {
			return
		}
		pr := NewLaser(p, dir, w.Tick)
		w.Projectiles[pr.ID] = pr
		p.FireCD = GetClassDef(p.Class).LaserCD

	case WeaponMissile:
		if p.Missiles <= 0 {
			return
		}
		p.Missiles--
		pr := NewMissile(p, dir, w.Tick)
		pr.lastUpdateTick = w.Tick
		w.Projectiles[pr.ID] = pr
	}
}

// applyMissile relays an owner's update for their homing missile. Only the
// declared owner may steer it, and only its position/direction change.
func (r *Room) applyMissile(pid string, msg MissileMsg) {
	w := r.world
	pr, ok := w.Projectiles[msg.ID]
	switch {
	case !ok:
		return
	case !pr.OwnerAuth:
		log.Printf("room %s: missile update for server projectile %s from %s", r.ID, msg.ID, pid)
		return
	case pr.OwnerID != pid:
		log.Printf("room %s: non-owner missile update for %s from %s", r.ID, msg.ID, pid)
		return
	}
	pr.Pos = w.Level.ClampToBounds(arrayVec3(msg.Pos))
	pr.Dir = arrayVec3(msg.Dir).Normalized()
	pr.lastUpdateTick = w.Tick
}

// broadcast sends each connection its delta frame, then the tick's discrete
// events. Delivery is fire-and-forget per socket: a slow client drops
// frames in its own send buffer and never blocks the loop.
func (r *Room) broadcast() {
	cur := r.repl.Capture(r.world)
	for id, conn := range r.clients {
		frame := r.repl.FrameFor(id, cur)
		data, err := EncodeDelta(frame)
		if err != nil {
			log.Printf("room %s: encode frame: %v", r.ID, err)
			continue
		}
		conn.SendBinary(data)
	}

	for _, ev := range r.events {
		if ev.T == MsgKill {
			r.recordKill(ev)
		}
		r.broadcastJSON(ev)
	}
}

func (r *Room) broadcastJSON(msg Envelope) {
	for _, conn := range r.clients {
		conn.SendJSON(msg)
	}
}

// recordKill forwards lifetime stats to the async writer for registered
// accounts. The simulation never blocks on storage.
func (r *Room) recordKill(ev Envelope) {
	if r.stats == nil {
		return
	}
	km, ok := ev.Data.(KillMsg)
	if !ok {
		return
	}
	var killerAuth, victimAuth int64
	if p, ok := r.world.Players[km.KillerID]; ok {
		killerAuth = p.AuthID
	}
	if p, ok := r.world.Players[km.VictimID]; ok {
		victimAuth = p.AuthID
	}
	r.stats.RecordKill(killerAuth, victimAuth)
}
