package main

// MatchPhase represents the lifecycle of a match
type MatchPhase int

const (
	PhaseLobby     MatchPhase = 0
	PhaseCountdown MatchPhase = 1
	PhasePlaying   MatchPhase = 2
	PhaseResults   MatchPhase = 3
)

const (
	MinPlayers        = 2
	CountdownDuration = 5.0   // seconds
	ResultsDuration   = 10.0  // seconds the scoreboard stays up
	ScoreLimit        = 10    // kills to end the round
	TimeLimit         = 300.0 // seconds per round
)

// UpdatePhase drives the match state machine:
// Lobby -> Countdown -> Playing -> Results -> Lobby.
// Transitions are time- or condition-triggered only, except the explicit
// restart request which ends the Results display early. Each transition is
// announced with a phase event carried in the same tick's broadcast.
func UpdatePhase(w *World, dt float64, restart bool, events *[]Envelope) {
	switch w.Phase {
	case PhaseLobby:
		if len(w.Players) >= MinPlayers {
			setPhase(w, PhaseCountdown, CountdownDuration, events)
		}

	case PhaseCountdown:
		// Losing the quorum before launch returns the room to the lobby.
		if len(w.Players) < MinPlayers {
			setPhase(w, PhaseLobby, 0, events)
			return
		}
		w.PhaseT -= dt
		if w.PhaseT <= 0 {
			resetForRound(w)
			setPhase(w, PhasePlaying, TimeLimit, events)
		}

	case PhasePlaying:
		w.PhaseT -= dt
		if w.PhaseT <= 0 || scoreLimitReached(w) {
			setPhase(w, PhaseResults, ResultsDuration, events)
		}

	case PhaseResults:
		w.PhaseT -= dt
		if w.PhaseT <= 0 || restart {
			setPhase(w, PhaseLobby, 0, events)
		}
	}
}

func setPhase(w *World, phase MatchPhase, timer float64, events *[]Envelope) {
	w.Phase = phase
	w.PhaseT = timer
	*events = append(*events, Envelope{T: MsgPhase, Data: PhaseMsg{
		Phase: int(phase),
		Time:  timer,
	}})
}

func scoreLimitReached(w *World) bool {
	for _, p := range w.Players {
		if p.Kills >= ScoreLimit {
			return true
		}
	}
	return false
}

// resetForRound returns every entity to its spawn state: players back to
// their slots with full health and zeroed scores, projectiles cleared,
// collectibles reactivated.
func resetForRound(w *World) {
	for _, p := range w.Players {
		p.ResetForMatch(w.Level.SpawnPoint(p.SpawnSlot))
	}
	for id := range w.Projectiles {
		delete(w.Projectiles, id)
	}
	for _, c := range w.Collectibles {
		c.Active = true
		c.RespawnT = 0
	}
}

// CombatAllowed reports whether fire requests are honored in the current
// phase. Lobby allows warmup fire; everything resets when the round starts.
func CombatAllowed(phase MatchPhase) bool {
	return phase == PhaseLobby || phase == PhasePlaying
}
