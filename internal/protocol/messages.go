package protocol

// Wire message tags. One byte on the wire, followed by a type-specific
// payload. Values are protocol constants shared with the console-side
// instrumentation; changing them breaks the stream.
const (
	tagProtocolVersion = iota

	tagMappingInfoChecksum
	tagMappingInfoRequest
	tagMappingInfoFighterKinds
	tagMappingInfoFighterStatusKinds
	tagMappingInfoStageKinds
	tagMappingInfoHitStatusKinds
	tagMappingInfoRequestComplete

	tagMatchStart
	tagMatchResume
	tagMatchEnd
	tagTrainingStart
	tagTrainingResume
	tagTrainingReset
	tagTrainingEnd

	tagFighterState
)

// Message is the tagged union handed from the decoder goroutine to the
// single consumer. Concrete messages carry fully decoded values; no raw
// wire bytes cross the boundary.
type Message interface{ isMessage() }

type VersionMsg struct {
	Major uint8
	Minor uint8
}

// MappingChecksumMsg reports the checksum of the console's current enum
// tables, offered so a client with a cached table can skip the full dump.
type MappingChecksumMsg struct {
	Checksum uint32
}

// MappingBeginMsg announces the start of a full mapping dump. Everything
// accumulated so far for the connection is superseded.
type MappingBeginMsg struct {
	Checksum uint32
}

type FighterKindMsg struct {
	FighterID uint8
	Name      string
}

type FighterStatusKindMsg struct {
	FighterID uint8 // domain.BaseStatusFighterID for base statuses
	StatusID  uint16
	Name      string
}

type StageKindMsg struct {
	StageID uint16
	Name    string
}

type HitStatusKindMsg struct {
	HitStatusID uint8
	Name        string
}

type MappingCompleteMsg struct{}

type MatchStartedMsg struct {
	Resumed    bool
	StageID    uint16
	EntryIDs   []uint8
	FighterIDs []uint8
	Tags       []string
}

type MatchEndedMsg struct {
	// Synthesized is set when the end was generated locally because the
	// connection dropped before the console sent one.
	Synthesized bool
}

type TrainingStartedMsg struct {
	Resumed         bool
	StageID         uint16
	PlayerFighterID uint8
	CPUFighterID    uint8
}

type TrainingEndedMsg struct {
	Synthesized bool
}

type TrainingResetMsg struct{}

type FighterStateMsg struct {
	Timestamp       uint64 // ms since epoch, stamped at receipt
	Frame           uint32
	PlayerIndex     int // resolved from the wire entry id
	PosX            float32
	PosY            float32
	Damage          float32
	Hitstun         float32
	Shield          float32
	Status          uint16
	Motion          uint64
	HitStatus       uint8
	Stocks          uint8
	AttackConnected bool
	FacingDirection bool
}

// DisconnectedMsg is the final message on every connection, after any
// synthesized end messages.
type DisconnectedMsg struct {
	Err error
}

func (VersionMsg) isMessage()           {}
func (MappingChecksumMsg) isMessage()   {}
func (MappingBeginMsg) isMessage()      {}
func (FighterKindMsg) isMessage()       {}
func (FighterStatusKindMsg) isMessage() {}
func (StageKindMsg) isMessage()         {}
func (HitStatusKindMsg) isMessage()     {}
func (MappingCompleteMsg) isMessage()   {}
func (MatchStartedMsg) isMessage()      {}
func (MatchEndedMsg) isMessage()        {}
func (TrainingStartedMsg) isMessage()   {}
func (TrainingEndedMsg) isMessage()     {}
func (TrainingResetMsg) isMessage()     {}
func (FighterStateMsg) isMessage()      {}
func (DisconnectedMsg) isMessage()      {}
