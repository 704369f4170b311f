package lifecycle

import (
	"errors"
	"path/filepath"
	"testing"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
)

type fakeFS struct {
	existing map[string]bool
}

func (f fakeFS) Exists(path string) bool { return f.existing[path] }

type fakeSaver struct {
	saved []string
	err   error
}

func (s *fakeSaver) Save(g *session.Game, path string) error {
	s.saved = append(s.saved, path)
	return s.err
}

func testManager(saver *fakeSaver, fs fakeFS, nameFormat string) *Manager {
	return newManager(saver, fs, events.NewBus(), "replays", nameFormat, zerolog.Nop())
}

func testGame(tags []string) *session.Game {
	fighterIDs := make([]uint8, len(tags))
	for i := range fighterIDs {
		fighterIDs[i] = uint8(i + 1)
	}
	return session.NewGame(nil, domain.NewMappingInfo(0), 1, fighterIDs, tags, false)
}

// playGame runs one match through the manager with the given winner, so the
// history used by set-continuity decisions fills up realistically.
func playGame(t *testing.T, m *Manager, tags []string, winner int) *session.Game {
	t.Helper()
	g := testGame(tags)
	m.HandleMatchStarted(g)

	loser := 1 - winner
	g.AddPlayerState(winner, domain.PlayerState{Frame: 10, Timestamp: 1000, Stocks: 3})
	g.AddPlayerState(winner, domain.PlayerState{Frame: 11, Timestamp: 1016, Stocks: 3, Damage: 1})
	g.AddPlayerState(loser, domain.PlayerState{Frame: 10, Timestamp: 1000, Stocks: 3})
	g.AddPlayerState(loser, domain.PlayerState{Frame: 11, Timestamp: 1016, Stocks: 0, Damage: 50})

	if res := m.HandleMatchEnded(); res == nil {
		t.Fatal("HandleMatchEnded returned nil for an active match")
	}
	if got := g.Winner(); got != winner {
		t.Fatalf("game winner = %d, want %d", got, winner)
	}
	return g
}

func TestShouldStartNewSet(t *testing.T) {
	tags := []string{"TAG1", "TAG2"}

	tests := []struct {
		name  string
		setup func(m *Manager)
		game  func() *session.Game
		want  bool
	}{
		{
			name: "no history always starts a set",
			game: func() *session.Game { return testGame(tags) },
			want: true,
		},
		{
			name: "not exactly two players always starts a set",
			setup: func(m *Manager) {
				playGame(t, m, tags, 0)
			},
			game: func() *session.Game { return testGame([]string{"A", "B", "C", "D"}) },
			want: true,
		},
		{
			name: "same players continue the set",
			setup: func(m *Manager) {
				playGame(t, m, tags, 0)
			},
			game: func() *session.Game { return testGame(tags) },
			want: false,
		},
		{
			name: "changed tag starts a set",
			setup: func(m *Manager) {
				playGame(t, m, tags, 0)
			},
			game: func() *session.Game { return testGame([]string{"TAG1", "OTHER"}) },
			want: true,
		},
		{
			name: "changed format starts a set",
			setup: func(m *Manager) {
				m.SetFormat(domain.SetFormat{Type: domain.FormatBo3})
				playGame(t, m, tags, 0)
				m.SetFormat(domain.SetFormat{Type: domain.FormatBo5})
			},
			game: func() *session.Game {
				g := testGame(tags)
				g.SetFormat(domain.SetFormat{Type: domain.FormatBo5})
				return g
			},
			want: true,
		},
		{
			name: "bo3 closes after two wins",
			setup: func(m *Manager) {
				m.SetFormat(domain.SetFormat{Type: domain.FormatBo3})
				playGame(t, m, tags, 0)
				playGame(t, m, tags, 0)
			},
			game: func() *session.Game {
				g := testGame(tags)
				g.SetFormat(domain.SetFormat{Type: domain.FormatBo3})
				return g
			},
			want: true,
		},
		{
			name: "bo3 continues at one win each",
			setup: func(m *Manager) {
				m.SetFormat(domain.SetFormat{Type: domain.FormatBo3})
				playGame(t, m, tags, 0)
				playGame(t, m, tags, 1)
			},
			game: func() *session.Game {
				g := testGame(tags)
				g.SetFormat(domain.SetFormat{Type: domain.FormatBo3})
				return g
			},
			want: false,
		},
		{
			name: "friendlies never auto-close",
			setup: func(m *Manager) {
				for i := 0; i < 10; i++ {
					playGame(t, m, tags, 0)
				}
			},
			game: func() *session.Game { return testGame(tags) },
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager(&fakeSaver{}, fakeFS{}, "%game.rfr")
			if tt.setup != nil {
				tt.setup(m)
			}

			g := tt.game()
			// Mirror what HandleMatchStarted applies before the decision.
			g.SetFormat(m.format)
			if got := m.ShouldStartNewSet(g); got != tt.want {
				t.Errorf("ShouldStartNewSet = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGameNumberAdvancesWithinSet(t *testing.T) {
	m := testManager(&fakeSaver{}, fakeFS{}, "%game.rfr")
	tags := []string{"TAG1", "TAG2"}

	g1 := playGame(t, m, tags, 0)
	if g1.GameNumber() != 1 {
		t.Fatalf("first game number = %d, want 1", g1.GameNumber())
	}

	g2 := testGame(tags)
	m.HandleMatchStarted(g2)
	if g2.GameNumber() != 2 {
		t.Errorf("second game number = %d, want 2", g2.GameNumber())
	}
}

func TestFilenameProbingIncrementsGameNumberForFriendlies(t *testing.T) {
	fs := fakeFS{existing: map[string]bool{
		filepath.Join("replays", "game-1.rfr"): true,
		filepath.Join("replays", "game-2.rfr"): true,
	}}
	m := testManager(&fakeSaver{}, fs, "game-%game.rfr")

	g := testGame([]string{"A", "B"})
	m.HandleMatchStarted(g)

	if g.GameNumber() != 3 {
		t.Errorf("game number = %d, want 3 after skipping existing files", g.GameNumber())
	}
	if g.SetNumber() != 1 {
		t.Errorf("set number = %d, want 1 (friendlies never bump sets)", g.SetNumber())
	}
}

func TestFilenameProbingIncrementsSetNumberForCountedFormats(t *testing.T) {
	fs := fakeFS{existing: map[string]bool{
		filepath.Join("replays", "set-1.rfr"): true,
	}}
	m := testManager(&fakeSaver{}, fs, "set-%set.rfr")
	m.SetFormat(domain.SetFormat{Type: domain.FormatBo3})

	g := testGame([]string{"A", "B"})
	m.HandleMatchStarted(g)

	if g.SetNumber() != 2 {
		t.Errorf("set number = %d, want 2 after skipping existing file", g.SetNumber())
	}
}

func TestFilenameProbingTerminatesWithoutPlaceholders(t *testing.T) {
	fs := fakeFS{existing: map[string]bool{
		filepath.Join("replays", "static.rfr"): true,
	}}
	m := testManager(&fakeSaver{}, fs, "static.rfr")

	g := testGame([]string{"A", "B"})
	// Must return even though every probe collides.
	m.HandleMatchStarted(g)
}

func TestMatchEndedArchivesEvenWhenSaveFails(t *testing.T) {
	saver := &fakeSaver{err: errSentinel}
	m := testManager(saver, fakeFS{}, "%game.rfr")
	tags := []string{"TAG1", "TAG2"}

	g := testGame(tags)
	m.HandleMatchStarted(g)
	res := m.HandleMatchEnded()
	if res == nil {
		t.Fatal("HandleMatchEnded returned nil")
	}
	if res.Saved {
		t.Error("result marked saved despite saver error")
	}
	if len(m.past) != 1 {
		t.Errorf("history length = %d, want 1 (archived regardless of save outcome)", len(m.past))
	}
}

func TestEditsApplyToPendingWhenNoMatchActive(t *testing.T) {
	m := testManager(&fakeSaver{}, fakeFS{}, "%game.rfr")

	m.SetPlayerName(0, "Mango")
	m.SetPlayerName(1, "Armada")
	m.SetFormat(domain.SetFormat{Type: domain.FormatBo5})
	m.SetGameNumber(4)
	m.SetSetNumber(2)

	g := testGame([]string{"TAG1", "TAG2"})
	m.HandleMatchStarted(g)

	// New-set detection resets the numbers, but names and format carry.
	if g.PlayerName(0) != "Mango" || g.PlayerName(1) != "Armada" {
		t.Errorf("names = %q/%q, want Mango/Armada", g.PlayerName(0), g.PlayerName(1))
	}
	if g.Format().Type != domain.FormatBo5 {
		t.Errorf("format = %v, want Bo5", g.Format().Type)
	}
	if g.GameNumber() != 1 || g.SetNumber() != 1 {
		t.Errorf("game/set = %d/%d, want 1/1 on a fresh set", g.GameNumber(), g.SetNumber())
	}
}

var errSentinel = errors.New("disk full")
