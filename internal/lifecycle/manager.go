package lifecycle

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ultimate-tracker/internal/config"
	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
	"ultimate-tracker/internal/replay"
	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
)

// FileChecker is the filesystem collaborator used for unique-filename
// probing.
type FileChecker interface {
	Exists(path string) bool
}

type osFS struct{}

func (osFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Saver persists a finished game. Satisfied by replay.Codec.
type Saver interface {
	Save(g *session.Game, path string) error
}

// EndResult reports what happened when a match ended.
type EndResult struct {
	Game  *session.Game
	Path  string
	Saved bool
}

// Manager tracks match-to-match continuity: it decides when a new set
// begins, numbers games and sets, resolves collision-free filenames and
// triggers persistence. Fields edited while no match is active (names,
// format, numbers) are held here and copied onto the next match.
type Manager struct {
	logger zerolog.Logger
	bus    *events.Bus
	saver  Saver
	fs     FileChecker

	replayDir  string
	nameFormat string

	format     domain.SetFormat
	gameNumber int
	setNumber  int
	p1Name     string
	p2Name     string

	active *session.Game
	past   []*session.Game
}

func NewManager(cfg *config.Config, codec *replay.Codec, bus *events.Bus, logger zerolog.Logger) *Manager {
	return newManager(codec, osFS{}, bus, cfg.ReplayDir, cfg.FilenameFormat, logger)
}

func newManager(saver Saver, fs FileChecker, bus *events.Bus, replayDir, nameFormat string, logger zerolog.Logger) *Manager {
	return &Manager{
		logger:     logger,
		bus:        bus,
		saver:      saver,
		fs:         fs,
		replayDir:  replayDir,
		nameFormat: nameFormat,
		format:     domain.SetFormat{Type: domain.FormatFriendlies},
		gameNumber: 1,
		setNumber:  1,
	}
}

func (m *Manager) Active() *session.Game { return m.active }

// HandleMatchStarted copies the pending editable fields onto the new match,
// decides set continuity, and resolves a collision-free filename.
func (m *Manager) HandleMatchStarted(g *session.Game) {
	g.SetFormat(m.format)
	g.SetGameNumber(m.gameNumber)
	g.SetSetNumber(m.setNumber)
	if g.PlayerCount() == 2 {
		if m.p1Name != "" {
			g.SetPlayerName(0, m.p1Name)
		}
		if m.p2Name != "" {
			g.SetPlayerName(1, m.p2Name)
		}
	}

	if m.ShouldStartNewSet(g) {
		g.SetGameNumber(1)
		g.SetSetNumber(1)
		m.past = nil
	} else {
		g.SetGameNumber(g.GameNumber() + 1)
	}

	m.findUniqueNumbers(g)
	m.active = g

	m.logger.Info().
		Str("session_id", g.ID()).
		Int("game", g.GameNumber()).
		Int("set", g.SetNumber()).
		Str("format", g.Format().Description()).
		Msg("match started")
}

// HandleMatchEnded persists the active match and archives it. The match is
// appended to history regardless of save outcome so set continuity keeps
// working after a disk-write failure. Returns nil when no match is active.
func (m *Manager) HandleMatchEnded() *EndResult {
	g := m.active
	if g == nil {
		return nil
	}

	path := filepath.Join(m.replayDir, m.composeFileName(g))
	saved := true
	if err := m.saver.Save(g, path); err != nil {
		saved = false
		m.logger.Error().Err(err).Str("path", path).Msg("failed to save replay")
	}

	m.bus.Publish(events.MatchEnded{
		SessionID: g.ID(),
		Saved:     saved,
		Path:      path,
		Winner:    g.Winner(),
	})

	// Between matches the players sit in menus, but names, format and
	// numbers stay editable; carry the final values as defaults for the
	// next match.
	m.format = g.Format()
	m.gameNumber = g.GameNumber()
	m.setNumber = g.SetNumber()
	if g.PlayerCount() == 2 {
		m.p1Name = g.PlayerName(0)
		m.p2Name = g.PlayerName(1)
	}

	m.past = append(m.past, g)
	m.active = nil

	m.logger.Info().
		Str("session_id", g.ID()).
		Bool("saved", saved).
		Str("path", path).
		Int("winner", g.Winner()).
		Msg("match ended")

	return &EndResult{Game: g, Path: path, Saved: saved}
}

// ShouldStartNewSet reports whether the candidate match opens a new set
// rather than continuing the current one. Pure function of the past-match
// history and the candidate.
func (m *Manager) ShouldStartNewSet(g *session.Game) bool {
	// Sets only make sense for exactly two players.
	if g.PlayerCount() != 2 {
		return true
	}
	if len(m.past) == 0 {
		return true
	}

	prev := m.past[len(m.past)-1]
	if prev.PlayerTag(0) != g.PlayerTag(0) || prev.PlayerTag(1) != g.PlayerTag(1) {
		return true
	}
	if prev.PlayerName(0) != g.PlayerName(0) || prev.PlayerName(1) != g.PlayerName(1) {
		return true
	}
	if prev.Format().Type != g.Format().Type {
		return true
	}

	required := g.Format().WinsRequired()
	if required == 0 {
		return false
	}

	var wins [2]int
	for _, p := range m.past {
		if w := p.Winner(); w == 0 || w == 1 {
			wins[w]++
		}
	}
	return wins[0] >= required || wins[1] >= required
}

// SetReplayDir points persistence at a new directory. If a match is active
// its filename resolution is redone against the new destination.
func (m *Manager) SetReplayDir(dir string) {
	m.replayDir = dir
	if m.active != nil {
		m.findUniqueNumbers(m.active)
	}
}

// SetPlayerName edits a display name, applying to the active match or to
// the pending defaults when nothing is running.
func (m *Manager) SetPlayerName(i int, name string) {
	if m.active != nil {
		m.active.SetPlayerName(i, name)
		return
	}
	switch i {
	case 0:
		m.p1Name = name
	case 1:
		m.p2Name = name
	}
}

func (m *Manager) SetFormat(f domain.SetFormat) {
	if m.active != nil {
		m.active.SetFormat(f)
		return
	}
	m.format = f
}

func (m *Manager) SetGameNumber(n int) {
	if m.active != nil {
		m.active.SetGameNumber(n)
		return
	}
	m.gameNumber = n
}

func (m *Manager) SetSetNumber(n int) {
	if m.active != nil {
		m.active.SetSetNumber(n)
		return
	}
	m.setNumber = n
}

// findUniqueNumbers bumps the game number (friendlies/practice/free sets)
// or the set number (counted formats) until the composed filename no longer
// collides with an existing file.
func (m *Manager) findUniqueNumbers(g *session.Game) {
	prev := ""
	for {
		name := m.composeFileName(g)
		if name == prev {
			// Template without number placeholders; nothing left to vary.
			return
		}
		if !m.fs.Exists(filepath.Join(m.replayDir, name)) {
			return
		}
		prev = name
		switch g.Format().Type {
		case domain.FormatFriendlies, domain.FormatPractice, domain.FormatOther:
			g.SetGameNumber(g.GameNumber() + 1)
		default:
			g.SetSetNumber(g.SetNumber() + 1)
		}
	}
}

func (m *Manager) composeFileName(g *session.Game) string {
	stampMs := g.StartedAt()
	if stampMs == 0 {
		stampMs = uint64(time.Now().UnixMilli())
	}
	date := time.UnixMilli(int64(stampMs)).Format("2006-01-02")

	var p1Name, p2Name, p1Char, p2Char string
	if g.PlayerCount() > 0 {
		p1Name = g.PlayerName(0)
		p1Char = g.Mapping().FighterName(g.FighterID(0), "unknown fighter")
	}
	if g.PlayerCount() > 1 {
		p2Name = g.PlayerName(1)
		p2Char = g.Mapping().FighterName(g.FighterID(1), "unknown fighter")
	}

	r := strings.NewReplacer(
		"%date", date,
		"%format", g.Format().Description(),
		"%set", strconv.Itoa(g.SetNumber()),
		"%game", strconv.Itoa(g.GameNumber()),
		"%p1name", p1Name,
		"%p2name", p2Name,
		"%p1char", p1Char,
		"%p2char", p2Char,
	)
	return r.Replace(m.nameFormat)
}
