package replay

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/session"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// FormatVersion is the replay document version this codec writes.
const FormatVersion = "1.4"

// stateRecordSize is the fixed width of one player-state record in the
// binary payload.
const stateRecordSize = 8 + 4 + 4 + 4 + 4 + 4 + 4 + 2 + 4 + 1 + 1 + 1 + 1

// Codec serializes completed game sessions to the on-disk replay format: a
// JSON document carrying match metadata, the pruned mapping tables and a
// base64 binary payload, the whole thing gzip-compressed.
type Codec struct {
	logger zerolog.Logger
}

func NewCodec(logger zerolog.Logger) *Codec {
	return &Codec{logger: logger}
}

type document struct {
	Version      string          `json:"version"`
	MappingInfo  mappingDoc      `json:"mappinginfo"`
	GameInfo     gameInfoDoc     `json:"gameinfo"`
	VideoInfo    videoInfoDoc    `json:"videoinfo"`
	PlayerInfo   []playerInfoDoc `json:"playerinfo"`
	PlayerStates string          `json:"playerstates"`
}

type mappingDoc struct {
	FighterStatus statusMappingDoc  `json:"fighterstatus"`
	FighterID     map[string]string `json:"fighterid"`
	StageID       map[string]string `json:"stageid"`
	HitStatus     map[string]string `json:"hitstatus"`
}

// Status entries are [name, shortName, customName] triples; the last two
// are reserved and written empty.
type statusMappingDoc struct {
	Base     map[string][]string            `json:"base"`
	Specific map[string]map[string][]string `json:"specific,omitempty"`
}

type gameInfoDoc struct {
	StageID        uint16 `json:"stageid"`
	TimestampStart uint64 `json:"timestampstart"`
	TimestampEnd   uint64 `json:"timestampend"`
	Format         string `json:"format"`
	Number         int    `json:"number"`
	Set            int    `json:"set"`
	Winner         int    `json:"winner"`
}

type videoInfoDoc struct {
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
	OffsetMs string `json:"offsetms"`
}

type playerInfoDoc struct {
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	FighterID uint8  `json:"fighterid"`
}

// Save writes the session to path. It returns an error (never panics) if
// the destination cannot be opened or written.
func (c *Codec) Save(g *session.Game, path string) error {
	doc := buildDocument(g)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode replay document: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open replay for writing: %w", err)
	}

	zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to init compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("failed to write replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finish replay stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close replay file: %w", err)
	}

	c.logger.Info().Str("path", path).Int("json_bytes", len(data)).Msg("replay saved")
	return nil
}

func buildDocument(g *session.Game) document {
	// Collect the ids actually referenced by the recorded states so the
	// document only carries the mapping entries this session needs.
	usedStatuses := make(map[uint16]struct{})
	usedHitStatuses := make(map[uint8]struct{})
	for i := 0; i < g.PlayerCount(); i++ {
		for _, st := range g.States(i) {
			usedStatuses[st.Status] = struct{}{}
			usedHitStatuses[st.HitStatus] = struct{}{}
		}
	}
	usedFighters := make(map[uint8]struct{})
	for i := 0; i < g.PlayerCount(); i++ {
		usedFighters[g.FighterID(i)] = struct{}{}
	}

	mapping := g.Mapping()

	base := make(map[string][]string)
	for id, name := range mapping.BaseStatusNames {
		if _, ok := usedStatuses[id]; ok {
			base[strconv.Itoa(int(id))] = []string{name, "", ""}
		}
	}

	specific := make(map[string]map[string][]string)
	for fighterID, statuses := range mapping.FighterStatusNames {
		if _, ok := usedFighters[fighterID]; !ok {
			continue
		}
		inner := make(map[string][]string)
		for id, name := range statuses {
			if _, ok := usedStatuses[id]; ok {
				inner[strconv.Itoa(int(id))] = []string{name, "", ""}
			}
		}
		if len(inner) > 0 {
			specific[strconv.Itoa(int(fighterID))] = inner
		}
	}

	fighterIDs := make(map[string]string)
	for id, name := range mapping.FighterNames {
		if _, ok := usedFighters[id]; ok {
			fighterIDs[strconv.Itoa(int(id))] = name
		}
	}

	stageIDs := make(map[string]string)
	if name, ok := mapping.StageNames[g.StageID()]; ok {
		stageIDs[strconv.Itoa(int(g.StageID()))] = name
	}

	hitStatuses := make(map[string]string)
	for id, name := range mapping.HitStatusNames {
		if _, ok := usedHitStatuses[id]; ok {
			hitStatuses[strconv.Itoa(int(id))] = name
		}
	}

	players := make([]playerInfoDoc, g.PlayerCount())
	for i := range players {
		players[i] = playerInfoDoc{
			Tag:       g.PlayerTag(i),
			Name:      g.PlayerName(i),
			FighterID: g.FighterID(i),
		}
	}

	return document{
		Version: FormatVersion,
		MappingInfo: mappingDoc{
			FighterStatus: statusMappingDoc{Base: base, Specific: specific},
			FighterID:     fighterIDs,
			StageID:       stageIDs,
			HitStatus:     hitStatuses,
		},
		GameInfo: gameInfoDoc{
			StageID:        g.StageID(),
			TimestampStart: g.StartedAt(),
			TimestampEnd:   g.EndedAt(),
			Format:         g.Format().Description(),
			Number:         g.GameNumber(),
			Set:            g.SetNumber(),
			Winner:         g.Winner(),
		},
		VideoInfo:    videoInfoDoc{},
		PlayerInfo:   players,
		PlayerStates: base64.StdEncoding.EncodeToString(encodeStates(g)),
	}
}

func encodeStates(g *session.Game) []byte {
	size := 0
	for i := 0; i < g.PlayerCount(); i++ {
		size += 4 + len(g.States(i))*stateRecordSize
	}

	buf := make([]byte, 0, size)
	var rec [stateRecordSize]byte
	for i := 0; i < g.PlayerCount(); i++ {
		states := g.States(i)

		var count [4]byte
		binary.LittleEndian.PutUint32(count[:], uint32(len(states)))
		buf = append(buf, count[:]...)

		for _, st := range states {
			binary.LittleEndian.PutUint64(rec[0:8], st.Timestamp)
			binary.LittleEndian.PutUint32(rec[8:12], st.Frame)
			binary.LittleEndian.PutUint32(rec[12:16], math.Float32bits(st.PosX))
			binary.LittleEndian.PutUint32(rec[16:20], math.Float32bits(st.PosY))
			binary.LittleEndian.PutUint32(rec[20:24], math.Float32bits(st.Damage))
			binary.LittleEndian.PutUint32(rec[24:28], math.Float32bits(st.Hitstun))
			binary.LittleEndian.PutUint32(rec[28:32], math.Float32bits(st.Shield))
			binary.LittleEndian.PutUint16(rec[32:34], st.Status)
			binary.LittleEndian.PutUint32(rec[34:38], uint32(st.Motion&0xFFFFFFFF))
			rec[38] = uint8(st.Motion >> 32)
			rec[39] = st.HitStatus
			rec[40] = st.Stocks
			var flags uint8
			if st.AttackConnected {
				flags |= 0x01
			}
			if st.FacingDirection {
				flags |= 0x02
			}
			rec[41] = flags
			buf = append(buf, rec[:]...)
		}
	}
	return buf
}

// loadDocument mirrors document with pointer fields so missing required
// keys are distinguishable from zero values. Loading fails closed: any
// missing required field, wrong type or malformed payload yields no
// session at all.
type loadDocument struct {
	Version      *string          `json:"version"`
	MappingInfo  *loadMappingDoc  `json:"mappinginfo"`
	GameInfo     *loadGameInfoDoc `json:"gameinfo"`
	PlayerInfo   *[]playerInfoDoc `json:"playerinfo"`
	PlayerStates *string          `json:"playerstates"`
}

type loadMappingDoc struct {
	FighterStatus *loadStatusMappingDoc `json:"fighterstatus"`
	FighterID     map[string]string     `json:"fighterid"`
	StageID       map[string]string     `json:"stageid"`
	HitStatus     map[string]string     `json:"hitstatus"`
}

type loadStatusMappingDoc struct {
	Base map[string][]string `json:"base"`
	// Specific is optional; older writers omit it entirely.
	Specific map[string]map[string][]string `json:"specific"`
}

type loadGameInfoDoc struct {
	StageID        *uint16 `json:"stageid"`
	TimestampStart *uint64 `json:"timestampstart"`
	TimestampEnd   *uint64 `json:"timestampend"`
	Format         *string `json:"format"`
	Number         *int    `json:"number"`
	Set            *int    `json:"set"`
	Winner         *int    `json:"winner"`
}

// Load reads a replay back into a session. The version string is recorded
// but not gated on: an older document loads fine as long as the required
// fields are present.
func (c *Codec) Load(path string) (*session.Game, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay: %w", err)
	}
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return nil, fmt.Errorf("%s is not a compressed replay", path)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer zr.Close()

	var doc loadDocument
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse replay document: %w", err)
	}

	if doc.Version == nil || doc.MappingInfo == nil || doc.GameInfo == nil ||
		doc.PlayerInfo == nil || doc.PlayerStates == nil {
		return nil, fmt.Errorf("replay document is missing required fields")
	}
	gi := doc.GameInfo
	if gi.StageID == nil || gi.TimestampStart == nil || gi.TimestampEnd == nil ||
		gi.Format == nil || gi.Number == nil || gi.Set == nil || gi.Winner == nil {
		return nil, fmt.Errorf("replay game info is missing required fields")
	}
	if doc.MappingInfo.FighterStatus == nil {
		return nil, fmt.Errorf("replay mapping info is missing required fields")
	}

	mapping := parseMapping(doc.MappingInfo)

	players := *doc.PlayerInfo
	tags := make([]string, len(players))
	names := make([]string, len(players))
	fighterIDs := make([]uint8, len(players))
	for i, p := range players {
		tags[i] = p.Tag
		names[i] = p.Name
		fighterIDs[i] = p.FighterID
	}

	payload, err := base64.StdEncoding.DecodeString(*doc.PlayerStates)
	if err != nil {
		return nil, fmt.Errorf("failed to decode player state payload: %w", err)
	}
	states, err := decodeStates(payload, len(players))
	if err != nil {
		return nil, fmt.Errorf("failed to decode player states: %w", err)
	}

	g := session.NewSavedGame(
		mapping,
		*gi.StageID,
		fighterIDs,
		tags,
		names,
		domain.SetFormatFromDescription(*gi.Format),
		*gi.Number,
		*gi.Set,
		*gi.Winner,
		*gi.TimestampStart,
		states,
	)
	c.logger.Debug().Str("path", path).Str("version", *doc.Version).Msg("replay loaded")
	return g, nil
}

// parseMapping rebuilds a MappingInfo from the pruned document tables.
// Individual malformed entries are skipped rather than failing the whole
// load, matching how other tooling treats these tables.
func parseMapping(doc *loadMappingDoc) *domain.MappingInfo {
	m := domain.NewMappingInfo(0)

	for key, entry := range doc.FighterStatus.Base {
		id, ok := parseKey(key, 16)
		if !ok || len(entry) < 1 {
			continue
		}
		m.AddBaseStatus(uint16(id), entry[0])
	}
	for fighterKey, statuses := range doc.FighterStatus.Specific {
		fighterID, ok := parseKey(fighterKey, 8)
		if !ok {
			continue
		}
		for key, entry := range statuses {
			id, ok := parseKey(key, 16)
			if !ok || len(entry) < 1 {
				continue
			}
			m.AddFighterStatus(uint8(fighterID), uint16(id), entry[0])
		}
	}
	for key, name := range doc.FighterID {
		if id, ok := parseKey(key, 8); ok {
			m.AddFighter(uint8(id), name)
		}
	}
	for key, name := range doc.StageID {
		if id, ok := parseKey(key, 16); ok {
			m.AddStage(uint16(id), name)
		}
	}
	for key, name := range doc.HitStatus {
		if id, ok := parseKey(key, 8); ok {
			m.AddHitStatus(uint8(id), name)
		}
	}
	return m
}

func parseKey(key string, bits int) (uint64, bool) {
	v, err := strconv.ParseUint(key, 10, bits)
	if err != nil {
		return 0, false
	}
	return v, true
}

func decodeStates(payload []byte, playerCount int) ([][]domain.PlayerState, error) {
	states := make([][]domain.PlayerState, playerCount)
	off := 0
	for i := 0; i < playerCount; i++ {
		if off+4 > len(payload) {
			return nil, fmt.Errorf("truncated payload at player %d", i)
		}
		count := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if off+count*stateRecordSize > len(payload) {
			return nil, fmt.Errorf("truncated payload at player %d", i)
		}

		list := make([]domain.PlayerState, count)
		for j := 0; j < count; j++ {
			rec := payload[off : off+stateRecordSize]
			off += stateRecordSize

			flags := rec[41]
			list[j] = domain.PlayerState{
				Timestamp:       binary.LittleEndian.Uint64(rec[0:8]),
				Frame:           binary.LittleEndian.Uint32(rec[8:12]),
				PosX:            math.Float32frombits(binary.LittleEndian.Uint32(rec[12:16])),
				PosY:            math.Float32frombits(binary.LittleEndian.Uint32(rec[16:20])),
				Damage:          math.Float32frombits(binary.LittleEndian.Uint32(rec[20:24])),
				Hitstun:         math.Float32frombits(binary.LittleEndian.Uint32(rec[24:28])),
				Shield:          math.Float32frombits(binary.LittleEndian.Uint32(rec[28:32])),
				Status:          binary.LittleEndian.Uint16(rec[32:34]),
				Motion:          uint64(binary.LittleEndian.Uint32(rec[34:38])) | uint64(rec[38])<<32,
				HitStatus:       rec[39],
				Stocks:          rec[40],
				AttackConnected: flags&0x01 != 0,
				FacingDirection: flags&0x02 != 0,
			}
		}
		states[i] = list
	}
	return states, nil
}
