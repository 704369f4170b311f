package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"ultimate-tracker/internal/domain"
)

// mappingFileVersion versions the local mapping cache, which is independent
// of the replay document format.
const mappingFileVersion = "1.0"

type mappingFile struct {
	Version       string                         `json:"version"`
	Checksum      uint32                         `json:"checksum"`
	FighterStatus statusMappingDoc               `json:"fighterstatus"`
	FighterID     map[string]string              `json:"fighterid"`
	StageID       map[string]string              `json:"stageid"`
	HitStatus     map[string]string              `json:"hitstatus"`
}

// SaveMapping caches the full connection-wide enum tables so the next run
// can offer the checksum instead of re-downloading everything.
func SaveMapping(m *domain.MappingInfo, path string) error {
	base := make(map[string][]string, len(m.BaseStatusNames))
	for id, name := range m.BaseStatusNames {
		base[strconv.Itoa(int(id))] = []string{name, "", ""}
	}
	specific := make(map[string]map[string][]string, len(m.FighterStatusNames))
	for fighterID, statuses := range m.FighterStatusNames {
		inner := make(map[string][]string, len(statuses))
		for id, name := range statuses {
			inner[strconv.Itoa(int(id))] = []string{name, "", ""}
		}
		specific[strconv.Itoa(int(fighterID))] = inner
	}
	fighters := make(map[string]string, len(m.FighterNames))
	for id, name := range m.FighterNames {
		fighters[strconv.Itoa(int(id))] = name
	}
	stages := make(map[string]string, len(m.StageNames))
	for id, name := range m.StageNames {
		stages[strconv.Itoa(int(id))] = name
	}
	hitStatuses := make(map[string]string, len(m.HitStatusNames))
	for id, name := range m.HitStatusNames {
		hitStatuses[strconv.Itoa(int(id))] = name
	}

	data, err := json.Marshal(mappingFile{
		Version:       mappingFileVersion,
		Checksum:      m.Checksum,
		FighterStatus: statusMappingDoc{Base: base, Specific: specific},
		FighterID:     fighters,
		StageID:       stages,
		HitStatus:     hitStatuses,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mapping info: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping info: %w", err)
	}
	return nil
}

// LoadMapping reads the cached tables back. A missing or unreadable cache
// is not an error worth distinguishing; callers fall back to a full
// request.
func LoadMapping(path string) (*domain.MappingInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping info: %w", err)
	}

	var f mappingFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse mapping info: %w", err)
	}

	m := domain.NewMappingInfo(f.Checksum)
	for key, entry := range f.FighterStatus.Base {
		if id, ok := parseKey(key, 16); ok && len(entry) > 0 {
			m.AddBaseStatus(uint16(id), entry[0])
		}
	}
	for fighterKey, statuses := range f.FighterStatus.Specific {
		fighterID, ok := parseKey(fighterKey, 8)
		if !ok {
			continue
		}
		for key, entry := range statuses {
			if id, ok := parseKey(key, 16); ok && len(entry) > 0 {
				m.AddFighterStatus(uint8(fighterID), uint16(id), entry[0])
			}
		}
	}
	for key, name := range f.FighterID {
		if id, ok := parseKey(key, 8); ok {
			m.AddFighter(uint8(id), name)
		}
	}
	for key, name := range f.StageID {
		if id, ok := parseKey(key, 16); ok {
			m.AddStage(uint16(id), name)
		}
	}
	for key, name := range f.HitStatus {
		if id, ok := parseKey(key, 8); ok {
			m.AddHitStatus(uint8(id), name)
		}
	}
	return m, nil
}
