package protocol

import (
	"encoding/binary"
	"io"
	"math"
	"time"
)

// Fixed-point divisors for the 16-bit telemetry fields. Wire contract.
const (
	damageScale  = 50.0
	hitstunScale = 100.0
	shieldScale  = 200.0
)

const fighterStatePayloadSize = 29

// Decoder turns the raw byte stream into Messages. It owns the per-match
// entry-id table: the console identifies a telemetry sample's player by a
// small per-match entry id, and the decoder resolves it to the stable player
// index assigned at match start.
type Decoder struct {
	r        io.Reader
	entryIDs []uint8

	// now stamps fighter-state samples at receipt. Overridable in tests.
	now func() uint64
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		now: func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

// Next reads messages until one is worth delivering. Fighter-state samples
// with an unknown entry id and unrecognized tag bytes are consumed silently.
// Any read failure is reported as-is; a short read means the connection
// closed.
func (d *Decoder) Next() (Message, error) {
	for {
		var tag [1]byte
		if _, err := io.ReadFull(d.r, tag[:]); err != nil {
			return nil, err
		}

		switch tag[0] {
		case tagProtocolVersion:
			var buf [2]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			return VersionMsg{Major: buf[0], Minor: buf[1]}, nil

		case tagMappingInfoChecksum:
			v, err := d.readU32()
			if err != nil {
				return nil, err
			}
			return MappingChecksumMsg{Checksum: v}, nil

		case tagMappingInfoRequest:
			v, err := d.readU32()
			if err != nil {
				return nil, err
			}
			return MappingBeginMsg{Checksum: v}, nil

		case tagMappingInfoFighterKinds:
			var buf [1]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			return FighterKindMsg{FighterID: buf[0], Name: name}, nil

		case tagMappingInfoFighterStatusKinds:
			var buf [3]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			return FighterStatusKindMsg{
				FighterID: buf[0],
				StatusID:  binary.BigEndian.Uint16(buf[1:3]),
				Name:      name,
			}, nil

		case tagMappingInfoStageKinds:
			var buf [2]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			return StageKindMsg{StageID: binary.BigEndian.Uint16(buf[:]), Name: name}, nil

		case tagMappingInfoHitStatusKinds:
			var buf [1]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			return HitStatusKindMsg{HitStatusID: buf[0], Name: name}, nil

		case tagMappingInfoRequestComplete:
			return MappingCompleteMsg{}, nil

		case tagMatchStart, tagMatchResume:
			msg, err := d.readMatchStart(tag[0] == tagMatchResume)
			if err != nil {
				return nil, err
			}
			return msg, nil

		case tagMatchEnd:
			return MatchEndedMsg{}, nil

		case tagTrainingStart, tagTrainingResume:
			var buf [4]byte
			if _, err := io.ReadFull(d.r, buf[:]); err != nil {
				return nil, err
			}
			return TrainingStartedMsg{
				Resumed:         tag[0] == tagTrainingResume,
				StageID:         binary.BigEndian.Uint16(buf[0:2]),
				PlayerFighterID: buf[2],
				CPUFighterID:    buf[3],
			}, nil

		case tagTrainingReset:
			return TrainingResetMsg{}, nil

		case tagTrainingEnd:
			return TrainingEndedMsg{}, nil

		case tagFighterState:
			msg, ok, err := d.readFighterState()
			if err != nil {
				return nil, err
			}
			if !ok {
				continue // unknown entry id, not a participant
			}
			return msg, nil

		default:
			// The console may speak a newer protocol revision. Without a
			// payload length there is nothing to skip, so resync on the
			// next byte the same way the reference client does.
			continue
		}
	}
}

// readMatchStart parses the match-start payload. The wire order is three
// separate fixed-size passes over the player array (entry ids, fighter ids,
// then length-prefixed tags), not one pass per player. This ordering is part
// of the wire contract.
func (d *Decoder) readMatchStart(resumed bool) (MatchStartedMsg, error) {
	var head [3]byte
	if _, err := io.ReadFull(d.r, head[:]); err != nil {
		return MatchStartedMsg{}, err
	}
	stageID := binary.BigEndian.Uint16(head[0:2])
	playerCount := int(head[2])

	entryIDs := make([]uint8, playerCount)
	if _, err := io.ReadFull(d.r, entryIDs); err != nil {
		return MatchStartedMsg{}, err
	}
	fighterIDs := make([]uint8, playerCount)
	if _, err := io.ReadFull(d.r, fighterIDs); err != nil {
		return MatchStartedMsg{}, err
	}
	tags := make([]string, playerCount)
	for i := 0; i < playerCount; i++ {
		tag, err := d.readString()
		if err != nil {
			return MatchStartedMsg{}, err
		}
		tags[i] = tag
	}

	d.entryIDs = entryIDs

	return MatchStartedMsg{
		Resumed:    resumed,
		StageID:    stageID,
		EntryIDs:   entryIDs,
		FighterIDs: fighterIDs,
		Tags:       tags,
	}, nil
}

// readFighterState parses one telemetry sample. The capture timestamp is
// stamped before the payload is read to keep latency skew out of it.
// Returns ok=false when the entry id does not belong to a participant.
func (d *Decoder) readFighterState() (FighterStateMsg, bool, error) {
	timestamp := d.now()

	var buf [fighterStatePayloadSize]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return FighterStateMsg{}, false, err
	}

	entryID := buf[4]
	playerIndex := -1
	for i, id := range d.entryIDs {
		if id == entryID {
			playerIndex = i
			break
		}
	}
	if playerIndex < 0 {
		return FighterStateMsg{}, false, nil
	}

	motion := uint64(buf[21])<<32 |
		uint64(buf[22])<<24 |
		uint64(buf[23])<<16 |
		uint64(buf[24])<<8 |
		uint64(buf[25])

	return FighterStateMsg{
		Timestamp:       timestamp,
		Frame:           binary.BigEndian.Uint32(buf[0:4]),
		PlayerIndex:     playerIndex,
		PosX:            math.Float32frombits(binary.BigEndian.Uint32(buf[5:9])),
		PosY:            math.Float32frombits(binary.BigEndian.Uint32(buf[9:13])),
		Hitstun:         float32(binary.BigEndian.Uint16(buf[13:15])) / hitstunScale,
		Damage:          float32(binary.BigEndian.Uint16(buf[15:17])) / damageScale,
		Shield:          float32(binary.BigEndian.Uint16(buf[17:19])) / shieldScale,
		Status:          binary.BigEndian.Uint16(buf[19:21]),
		Motion:          motion,
		HitStatus:       buf[26],
		Stocks:          buf[27],
		AttackConnected: buf[28]&0x01 != 0,
		FacingDirection: buf[28]&0x02 != 0,
	}, true, nil
}

func (d *Decoder) readU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// readString reads a 1-byte-length-prefixed string. No terminator on the
// wire.
func (d *Decoder) readString() (string, error) {
	var l [1]byte
	if _, err := io.ReadFull(d.r, l[:]); err != nil {
		return "", err
	}
	buf := make([]byte, l[0])
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
