package domain

// BaseStatusFighterID marks a fighter-status mapping entry that applies to
// all fighters rather than one specific fighter. Protocol constant.
const BaseStatusFighterID = 255

// MappingInfo accumulates the enum-name tables streamed by the console.
// Entries are only ever added, never removed or renamed, for the lifetime of
// a connection: the source sends each id's name at most once, so the table
// must be carried forward between matches. Sessions take a Clone() at
// creation time; later additions to the connection-wide table do not appear
// in snapshots taken earlier.
type MappingInfo struct {
	Checksum       uint32
	FighterNames   map[uint8]string
	StageNames     map[uint16]string
	HitStatusNames map[uint8]string

	// Status names come in two tables: one shared by all fighters and one
	// keyed by fighter id for fighter-specific statuses.
	BaseStatusNames    map[uint16]string
	FighterStatusNames map[uint8]map[uint16]string
}

func NewMappingInfo(checksum uint32) *MappingInfo {
	return &MappingInfo{
		Checksum:           checksum,
		FighterNames:       make(map[uint8]string),
		StageNames:         make(map[uint16]string),
		HitStatusNames:     make(map[uint8]string),
		BaseStatusNames:    make(map[uint16]string),
		FighterStatusNames: make(map[uint8]map[uint16]string),
	}
}

// Clone returns a deep copy. Used to snapshot the connection-wide table at
// the moment a session begins.
func (m *MappingInfo) Clone() *MappingInfo {
	c := NewMappingInfo(m.Checksum)
	for k, v := range m.FighterNames {
		c.FighterNames[k] = v
	}
	for k, v := range m.StageNames {
		c.StageNames[k] = v
	}
	for k, v := range m.HitStatusNames {
		c.HitStatusNames[k] = v
	}
	for k, v := range m.BaseStatusNames {
		c.BaseStatusNames[k] = v
	}
	for f, statuses := range m.FighterStatusNames {
		inner := make(map[uint16]string, len(statuses))
		for k, v := range statuses {
			inner[k] = v
		}
		c.FighterStatusNames[f] = inner
	}
	return c
}

func (m *MappingInfo) AddFighter(id uint8, name string) {
	if _, ok := m.FighterNames[id]; !ok {
		m.FighterNames[id] = name
	}
}

func (m *MappingInfo) AddStage(id uint16, name string) {
	if _, ok := m.StageNames[id]; !ok {
		m.StageNames[id] = name
	}
}

func (m *MappingInfo) AddHitStatus(id uint8, name string) {
	if _, ok := m.HitStatusNames[id]; !ok {
		m.HitStatusNames[id] = name
	}
}

func (m *MappingInfo) AddBaseStatus(id uint16, name string) {
	if _, ok := m.BaseStatusNames[id]; !ok {
		m.BaseStatusNames[id] = name
	}
}

func (m *MappingInfo) AddFighterStatus(fighterID uint8, statusID uint16, name string) {
	inner, ok := m.FighterStatusNames[fighterID]
	if !ok {
		inner = make(map[uint16]string)
		m.FighterStatusNames[fighterID] = inner
	}
	if _, ok := inner[statusID]; !ok {
		inner[statusID] = name
	}
}

// FighterName resolves a fighter id, falling back when the table has no
// entry for it.
func (m *MappingInfo) FighterName(id uint8, fallback string) string {
	if name, ok := m.FighterNames[id]; ok {
		return name
	}
	return fallback
}

func (m *MappingInfo) StageName(id uint16, fallback string) string {
	if name, ok := m.StageNames[id]; ok {
		return name
	}
	return fallback
}

func (m *MappingInfo) HitStatusName(id uint8, fallback string) string {
	if name, ok := m.HitStatusNames[id]; ok {
		return name
	}
	return fallback
}

// StatusName resolves a status code for a fighter, preferring the
// fighter-specific table over the base table.
func (m *MappingInfo) StatusName(fighterID uint8, statusID uint16, fallback string) string {
	if inner, ok := m.FighterStatusNames[fighterID]; ok {
		if name, ok := inner[statusID]; ok {
			return name
		}
	}
	if name, ok := m.BaseStatusNames[statusID]; ok {
		return name
	}
	return fallback
}
