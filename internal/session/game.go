package session

import (
	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
)

// Game is a versus-match session. On top of the shared accumulator it
// carries the editable set metadata and derives the current winner.
type Game struct {
	Session

	format     domain.SetFormat
	gameNumber int
	setNumber  int
	winner     int
}

func NewGame(bus *events.Bus, mapping *domain.MappingInfo, stageID uint16, fighterIDs []uint8, tags []string, resumed bool) *Game {
	return &Game{
		Session:    newSession(bus, mapping, stageID, fighterIDs, tags, resumed),
		format:     domain.SetFormat{Type: domain.FormatFriendlies},
		gameNumber: 1,
		setNumber:  1,
	}
}

// NewSavedGame reconstructs a game from persisted data. No bus is attached;
// a loaded session emits nothing.
func NewSavedGame(
	mapping *domain.MappingInfo,
	stageID uint16,
	fighterIDs []uint8,
	tags, names []string,
	format domain.SetFormat,
	gameNumber, setNumber, winner int,
	startedAt uint64,
	states [][]domain.PlayerState,
) *Game {
	g := &Game{
		Session:    newSession(nil, mapping, stageID, fighterIDs, tags, true),
		format:     format,
		gameNumber: gameNumber,
		setNumber:  setNumber,
		winner:     winner,
	}
	copy(g.names, names)
	g.startedAt = startedAt
	g.states = states
	return g
}

func (g *Game) Format() domain.SetFormat { return g.format }
func (g *Game) GameNumber() int          { return g.gameNumber }
func (g *Game) SetNumber() int           { return g.setNumber }
func (g *Game) Winner() int              { return g.winner }

func (g *Game) SetPlayerName(i int, name string) {
	if name == "" || i < 0 || i >= len(g.names) {
		return
	}
	g.names[i] = name
	g.publish(events.PlayerNameChanged{Player: i, Name: name})
}

func (g *Game) SetFormat(f domain.SetFormat) {
	g.format = f
	g.publish(events.FormatChanged{Format: f})
}

func (g *Game) SetGameNumber(n int) {
	g.gameNumber = n
	g.publish(events.GameNumberChanged{Number: n})
}

func (g *Game) SetSetNumber(n int) {
	g.setNumber = n
	g.publish(events.SetNumberChanged{Number: n})
}

// AddPlayerState feeds one telemetry sample through the accumulator and
// rechecks the winner whenever a unique state lands.
func (g *Game) AddPlayerState(idx int, st domain.PlayerState) {
	if !g.addState(idx, st) {
		return
	}
	if w := g.findWinner(); w != g.winner {
		g.winner = w
		g.publish(events.WinnerChanged{Winner: w})
	}
}

// findWinner picks the player with the most stocks, ties broken by lower
// accumulated damage. A player with no recorded states is never a
// candidate.
func (g *Game) findWinner() int {
	winner := -1
	for i := range g.states {
		if len(g.states[i]) == 0 {
			continue
		}
		if winner < 0 {
			winner = i
			continue
		}
		cur := g.states[i][len(g.states[i])-1]
		win := g.states[winner][len(g.states[winner])-1]
		if cur.Stocks > win.Stocks {
			winner = i
		} else if cur.Stocks == win.Stocks && cur.Damage < win.Damage {
			winner = i
		}
	}
	if winner < 0 {
		return 0
	}
	return winner
}
