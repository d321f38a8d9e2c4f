package main

// Client-side prediction for the locally-owned ship. The server trusts
// client-computed movement within bounds (see applyMove in room.go), so the
// predictor and the server share one integration model: thrust along
// facing, drag, speed cap, arena clamp.

const (
	// ReconcileThreshold is the divergence (world units) between predicted
	// and authoritative position above which the client corrects.
	ReconcileThreshold = 0.5
	// CorrectionWindow is how long a correction is blended into the
	// rendered position instead of snapping.
	CorrectionWindow = 0.25 // seconds
)

// PredictState is the reconciliation state for the locally-owned ship.
type PredictState int

const (
	// PredictSynced: the last authoritative snapshot agreed with the
	// prediction within the threshold.
	PredictSynced PredictState = iota
	// PredictPredicted: inputs applied locally, not yet confirmed.
	PredictPredicted
	// PredictReconciling: correcting a divergence, blending toward the
	// authoritative track.
	PredictReconciling
)

// IntegrateShip advances one movement step under the bounds the server
// enforces. thrust is 0..1.
func IntegrateShip(pos, vel Vec3, rot Quat, thrust float64, def ShipClassDef, level *Level, dt float64) (Vec3, Vec3) {
	if thrust > 0 {
		vel = vel.Add(rot.Forward().Scale(def.Accel * Clamp(thrust, 0, 1) * dt))
	}
	vel = vel.Scale(def.Drag)
	vel = vel.ClampLength(def.MaxSpeed)
	pos = level.ClampToBounds(pos.Add(vel.Scale(dt)))
	return pos, vel
}

// ControlFrame is one tick of local input, tagged with the sequence number
// sent to the server.
type ControlFrame struct {
	Seq    uint32
	Thrust float64
	Rot    Quat
	Dt     float64
}

type predictedFrame struct {
	frame ControlFrame
	pos   Vec3
	vel   Vec3
}

// Predictor applies local input immediately and reconciles against
// authoritative snapshots. One per locally-controlled ship.
type Predictor struct {
	def   ShipClassDef
	level *Level

	pos Vec3
	vel Vec3
	rot Quat

	history  []predictedFrame // predictions not yet acknowledged, seq ascending
	lastTick uint64           // newest applied snapshot tick
	state    PredictState

	// Correction blend: visualOffset decays to zero over CorrectionWindow.
	visualOffset Vec3
	correctT     float64
}

// NewPredictor creates a predictor for a ship of the given class starting
// at the given spawn.
func NewPredictor(class ShipClass, level *Level, spawn Vec3) *Predictor {
	return &Predictor{
		def:   GetClassDef(class),
		level: level,
		pos:   spawn,
		rot:   QuatIdentity,
		state: PredictSynced,
	}
}

// ApplyInput integrates one control frame immediately and records the
// predicted result under its sequence number.
func (pr *Predictor) ApplyInput(f ControlFrame) {
	pr.rot = f.Rot.Normalized()
	pr.pos, pr.vel = IntegrateShip(pr.pos, pr.vel, pr.rot, f.Thrust, pr.def, pr.level, f.Dt)
	pr.history = append(pr.history, predictedFrame{frame: f, pos: pr.pos, vel: pr.vel})
	if pr.state == PredictSynced {
		pr.state = PredictPredicted
	}
}

// OnSnapshot reconciles against the authoritative position for the local
// ship at the server-acknowledged input sequence. Out-of-order or duplicate
// snapshots (tick at or below the last applied) are dropped.
func (pr *Predictor) OnSnapshot(tick uint64, serverPos, serverVel Vec3, ackedSeq uint32) {
	if tick <= pr.lastTick {
		return
	}
	pr.lastTick = tick

	idx := -1
	for i, h := range pr.history {
		if h.frame.Seq == ackedSeq {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Ack for a frame we no longer hold (or never sent): if nothing is
		// pending, adopt the server state outright.
		if len(pr.history) == 0 {
			pr.pos, pr.vel = serverPos, serverVel
			pr.state = PredictSynced
		}
		return
	}

	err := serverPos.DistanceTo(pr.history[idx].pos)
	remaining := pr.history[idx+1:]

	if err <= ReconcileThreshold {
		// Trust the prediction; just drop confirmed frames.
		pr.history = append(pr.history[:0], remaining...)
		if len(pr.history) == 0 && pr.correctT <= 0 {
			pr.state = PredictSynced
		}
		return
	}

	// Divergence: rebase onto the authoritative state at ackedSeq, replay
	// the unconfirmed frames, and blend the rendered position over the
	// correction window instead of snapping.
	oldPos := pr.pos
	pos, vel := serverPos, serverVel
	rebased := make([]predictedFrame, 0, len(remaining))
	for _, h := range remaining {
		pos, vel = IntegrateShip(pos, vel, h.frame.Rot.Normalized(), h.frame.Thrust, pr.def, pr.level, h.frame.Dt)
		rebased = append(rebased, predictedFrame{frame: h.frame, pos: pos, vel: vel})
	}
	pr.pos, pr.vel = pos, vel
	pr.history = rebased
	pr.visualOffset = oldPos.Sub(pr.pos)
	pr.correctT = CorrectionWindow
	pr.state = PredictReconciling
}

// Advance ticks the correction blend.
func (pr *Predictor) Advance(dt float64) {
	if pr.correctT <= 0 {
		return
	}
	pr.correctT -= dt
	if pr.correctT <= 0 {
		pr.correctT = 0
		pr.visualOffset = Vec3{}
		if len(pr.history) == 0 {
			pr.state = PredictSynced
		} else {
			pr.state = PredictPredicted
		}
	}
}

// RenderPos is the position to draw: the predicted position plus the
// decaying correction offset (smoothstep falloff).
func (pr *Predictor) RenderPos() Vec3 {
	if pr.correctT <= 0 {
		return pr.pos
	}
	f := pr.correctT / CorrectionWindow
	s := f * f * (3 - 2*f)
	return pr.pos.Add(pr.visualOffset.Scale(s))
}

// Pos is the current predicted (authoritative-corrected) position.
func (pr *Predictor) Pos() Vec3 { return pr.pos }

// Vel is the current predicted velocity.
func (pr *Predictor) Vel() Vec3 { return pr.vel }

// State reports the reconciliation state.
func (pr *Predictor) State() PredictState { return pr.state }
