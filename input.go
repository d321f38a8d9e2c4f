package main

import (
	"fmt"
	"sync"
)

// ValidationError marks a rejected client message: it is logged and dropped
// with no state mutation, and the connection stays open.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...interface{}) error {
	return ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Queued intents, applied in per-connection arrival order at the next tick
// boundary.
type moveIntent struct {
	pid string
	msg InputMsg
}

type fireIntent struct {
	pid string
	msg FireMsg
}

type missileIntent struct {
	pid string
	msg MissileMsg
}

// Ingestor validates inbound gameplay messages and queues them for the next
// tick. Submit methods are called from connection goroutines; Drain runs on
// the room's tick goroutine.
type Ingestor struct {
	mu      sync.Mutex
	pending []interface{}
	lastSeq map[string]uint32
}

func NewIngestor() *Ingestor {
	return &Ingestor{lastSeq: make(map[string]uint32)}
}

// SubmitMove queues a movement update. The sequence number must be strictly
// greater than the last accepted one for this player; late or duplicate
// inputs are rejected.
func (in *Ingestor) SubmitMove(pid string, msg InputMsg) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if last, ok := in.lastSeq[pid]; ok && msg.Seq <= last {
		return validationErrorf("stale input seq %d (last %d) from %s", msg.Seq, last, pid)
	}
	in.lastSeq[pid] = msg.Seq
	in.pending = append(in.pending, moveIntent{pid: pid, msg: msg})
	return nil
}

// SubmitFire queues a fire request. The direction must be non-zero; it is
// normalized server-side when applied.
func (in *Ingestor) SubmitFire(pid string, msg FireMsg) error {
	if msg.Weapon != WeaponLaser && msg.Weapon != WeaponMissile {
		return validationErrorf("unknown weapon %q from %s", msg.Weapon, pid)
	}
	if arrayVec3(msg.Dir).IsZero() {
		return validationErrorf("zero fire direction from %s", pid)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, fireIntent{pid: pid, msg: msg})
	return nil
}

// SubmitMissile queues a homing missile update. Ownership is enforced when
// the intent is applied, against the authoritative projectile record.
func (in *Ingestor) SubmitMissile(pid string, msg MissileMsg) error {
	if msg.ID == "" {
		return validationErrorf("missile update without id from %s", pid)
	}
	if arrayVec3(msg.Dir).IsZero() {
		return validationErrorf("zero missile direction from %s", pid)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, missileIntent{pid: pid, msg: msg})
	return nil
}

// Drain removes and returns all queued intents, reusing buf's storage.
func (in *Ingestor) Drain(buf []interface{}) []interface{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	buf = append(buf[:0], in.pending...)
	in.pending = in.pending[:0]
	return buf
}

// Forget drops sequence tracking for a departed player.
func (in *Ingestor) Forget(pid string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.lastSeq, pid)
}
