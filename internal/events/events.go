package events

import (
	"ultimate-tracker/internal/domain"
)

// Event is the tagged union delivered to bus subscribers. Concrete types
// carry plain domain data so subscribers never hold references into live
// session state.
type Event interface{ isEvent() }

type ConnectionAttempted struct {
	Addr string
}

type ConnectionFailed struct {
	Addr string
	Err  string
}

type ConnectionEstablished struct {
	Addr string
}

type ConnectionClosed struct{}

// VersionReceived reports the console's protocol revision.
type VersionReceived struct {
	Major uint8
	Minor uint8
}

// MappingUpdated fires for every enum-table entry streamed by the console.
type MappingUpdated struct{}

// MappingComplete fires once the console has finished streaming its enum
// tables after a full mapping request.
type MappingComplete struct {
	Checksum uint32
}

type MatchStarted struct {
	SessionID   string
	Resumed     bool
	StageID     uint16
	PlayerCount int
	Tags        []string
	FighterIDs  []uint8
}

type MatchEnded struct {
	SessionID string
	Saved     bool
	Path      string
	Winner    int
}

type TrainingStarted struct {
	SessionID string
	Resumed   bool
	StageID   uint16
}

type TrainingEnded struct {
	SessionID string
}

type PlayerNameChanged struct {
	Player int
	Name   string
}

type FormatChanged struct {
	Format domain.SetFormat
}

type GameNumberChanged struct {
	Number int
}

type SetNumberChanged struct {
	Number int
}

type WinnerChanged struct {
	Winner int
}

// FrameReceived fires for every telemetry sample, stored or not. Live
// counters hang off this one.
type FrameReceived struct {
	Player int
	State  domain.PlayerState
}

// UniqueFrame fires only for samples accepted into the permanent series.
type UniqueFrame struct {
	Player int
	State  domain.PlayerState
}

func (ConnectionAttempted) isEvent()   {}
func (ConnectionFailed) isEvent()      {}
func (ConnectionEstablished) isEvent() {}
func (ConnectionClosed) isEvent()      {}
func (VersionReceived) isEvent()       {}
func (MappingUpdated) isEvent()        {}
func (MappingComplete) isEvent()       {}
func (MatchStarted) isEvent()          {}
func (MatchEnded) isEvent()            {}
func (TrainingStarted) isEvent()       {}
func (TrainingEnded) isEvent()         {}
func (PlayerNameChanged) isEvent()     {}
func (FormatChanged) isEvent()         {}
func (GameNumberChanged) isEvent()     {}
func (SetNumberChanged) isEvent()      {}
func (WinnerChanged) isEvent()         {}
func (FrameReceived) isEvent()         {}
func (UniqueFrame) isEvent()           {}
