package session

import (
	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
)

// Training is a practice-room session: same telemetry accumulation as a
// game, no set bookkeeping and no winner.
type Training struct {
	Session
}

// NewTraining builds the two-participant training session. The console only
// reports the human and the CPU dummy.
func NewTraining(bus *events.Bus, mapping *domain.MappingInfo, stageID uint16, playerFighterID, cpuFighterID uint8, resumed bool) *Training {
	return &Training{
		Session: newSession(
			bus,
			mapping,
			stageID,
			[]uint8{playerFighterID, cpuFighterID},
			[]string{"Player 1", "CPU"},
			resumed,
		),
	}
}

func (t *Training) AddPlayerState(idx int, st domain.PlayerState) {
	t.addState(idx, st)
}

// Reset drops all accumulated telemetry. Fired when the player resets the
// training room counters on the console.
func (t *Training) Reset() {
	for i := range t.states {
		t.states[i] = nil
	}
	t.startedAt = 0
}
