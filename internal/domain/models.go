package domain

import (
	"time"
)

// PlayerState is a single telemetry sample for one player. Immutable once
// constructed; appended in arrival order per player.
type PlayerState struct {
	Timestamp       uint64 // wallclock ms since epoch, stamped at receipt
	Frame           uint32
	PosX            float32
	PosY            float32
	Damage          float32
	Hitstun         float32
	Shield          float32
	Status          uint16
	Motion          uint64 // hash40, low 40 bits
	HitStatus       uint8
	Stocks          uint8
	AttackConnected bool
	FacingDirection bool
}

// SameData reports whether two samples carry identical gameplay data.
// Timestamp and frame number are deliberately excluded: the source emits a
// sample every frame, so including them would defeat deduplication.
func (s PlayerState) SameData(o PlayerState) bool {
	return s.Motion == o.Motion &&
		s.PosX == o.PosX &&
		s.PosY == o.PosY &&
		s.Damage == o.Damage &&
		s.Hitstun == o.Hitstun &&
		s.Shield == o.Shield &&
		s.Status == o.Status &&
		s.HitStatus == o.HitStatus &&
		s.Stocks == o.Stocks &&
		s.AttackConnected == o.AttackConnected &&
		s.FacingDirection == o.FacingDirection
}

// SameStatus reports whether two samples share a status code. Used instead
// of SameData for sessions resumed mid-match, where only status transitions
// are worth keeping.
func (s PlayerState) SameStatus(o PlayerState) bool {
	return s.Status == o.Status
}

// ReplayRecord is a row in the replay index, written after a match is
// persisted to disk.
type ReplayRecord struct {
	ID         string // nanoid
	FilePath   string
	StageID    int
	StageName  string
	P1Name     string
	P2Name     string
	P1Fighter  string
	P2Fighter  string
	Format     string
	GameNumber int
	SetNumber  int
	Winner     int
	StartedAt  time.Time
	EndedAt    time.Time
	CreatedAt  time.Time
}
