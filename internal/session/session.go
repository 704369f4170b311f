package session

import (
	"time"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"

	"github.com/google/uuid"
)

// Session is the state shared by game and training sessions: a mapping-info
// snapshot taken at creation, the participants, and the deduplicated
// telemetry series per player.
type Session struct {
	id         string
	mapping    *domain.MappingInfo
	stageID    uint16
	fighterIDs []uint8
	tags       []string
	names      []string

	// resumed sessions joined mid-match; their telemetry has gaps, so
	// uniqueness compares status codes only instead of full sample data.
	resumed bool

	bus       *events.Bus
	states    [][]domain.PlayerState
	startedAt uint64
}

func newSession(bus *events.Bus, mapping *domain.MappingInfo, stageID uint16, fighterIDs []uint8, tags []string, resumed bool) Session {
	names := make([]string, len(tags))
	copy(names, tags)
	return Session{
		id:         uuid.New().String(),
		mapping:    mapping,
		stageID:    stageID,
		fighterIDs: fighterIDs,
		tags:       tags,
		names:      names,
		resumed:    resumed,
		bus:        bus,
		states:     make([][]domain.PlayerState, len(tags)),
	}
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Mapping() *domain.MappingInfo { return s.mapping }
func (s *Session) StageID() uint16              { return s.stageID }
func (s *Session) Resumed() bool                { return s.resumed }
func (s *Session) PlayerCount() int             { return len(s.tags) }
func (s *Session) PlayerTag(i int) string       { return s.tags[i] }
func (s *Session) PlayerName(i int) string      { return s.names[i] }
func (s *Session) FighterID(i int) uint8        { return s.fighterIDs[i] }

// States returns the stored series for one player. Callers must not mutate.
func (s *Session) States(i int) []domain.PlayerState { return s.states[i] }

func (s *Session) StateCount(i int) int { return len(s.states[i]) }

// StartedAt is the capture time of the first real gameplay sample, in ms
// since epoch. Zero until the session has proven it started.
func (s *Session) StartedAt() uint64 { return s.startedAt }

// EndedAt is the capture time of the last stored sample.
func (s *Session) EndedAt() uint64 {
	if len(s.states) == 0 || len(s.states[0]) == 0 {
		return s.startedAt
	}
	return s.states[0][len(s.states[0])-1].Timestamp
}

// Duration is derived lazily from the first and last sample timestamps.
func (s *Session) Duration() time.Duration {
	if s.startedAt == 0 {
		return 0
	}
	return time.Duration(s.EndedAt()-s.startedAt) * time.Millisecond
}

func (s *Session) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func (s *Session) sameState(a, b domain.PlayerState) bool {
	if s.resumed {
		return a.SameStatus(b)
	}
	return a.SameData(b)
}

// addState runs the accumulation contract and reports whether at least one
// unique state was accepted:
//
//  1. The first sample for a player is buffered without firing anything; a
//     single sample cannot prove the match started.
//  2. A second sample with the same frame number replaces the first in
//     place; the source repeats pre-match idle frames until gameplay
//     begins. A second sample with a new frame number proves the start:
//     the session start time is fixed to the first sample's capture time
//     and both buffered samples are emitted.
//  3. Afterwards every sample fires a frame event, and additionally a
//     unique event when it differs from the previous stored sample.
func (s *Session) addState(idx int, st domain.PlayerState) bool {
	if idx < 0 || idx >= len(s.states) {
		return false
	}
	list := s.states[idx]

	switch len(list) {
	case 0:
		s.states[idx] = append(list, st)
		return false

	case 1:
		if list[0].Frame == st.Frame {
			s.states[idx][0] = st
			return false
		}
		if s.startedAt == 0 {
			s.startedAt = list[0].Timestamp
		}
		s.states[idx] = append(list, st)
		s.publish(events.UniqueFrame{Player: idx, State: list[0]})
		s.publish(events.FrameReceived{Player: idx, State: list[0]})
		s.publish(events.UniqueFrame{Player: idx, State: st})
		s.publish(events.FrameReceived{Player: idx, State: st})
		return true
	}

	unique := false
	if !s.sameState(list[len(list)-1], st) {
		s.states[idx] = append(list, st)
		s.publish(events.UniqueFrame{Player: idx, State: st})
		unique = true
	}
	s.publish(events.FrameReceived{Player: idx, State: st})
	return unique
}
