package session

import (
	"testing"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
)

func sample(frame uint32, ts uint64, damage float32, stocks uint8) domain.PlayerState {
	return domain.PlayerState{
		Timestamp: ts,
		Frame:     frame,
		Damage:    damage,
		Stocks:    stocks,
	}
}

// recorder collects every published event for inspection.
type recorder struct {
	events []events.Event
}

func (r *recorder) record(ev events.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) count(match func(events.Event) bool) int {
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func newTestGame(rec *recorder, players int) *Game {
	bus := events.NewBus()
	if rec != nil {
		bus.Subscribe(rec.record)
	}
	fighterIDs := make([]uint8, players)
	tags := make([]string, players)
	for i := range tags {
		fighterIDs[i] = uint8(i + 1)
		tags[i] = string(rune('A' + i))
	}
	return NewGame(bus, domain.NewMappingInfo(0), 1, fighterIDs, tags, false)
}

func TestFirstSampleIsBufferedSilently(t *testing.T) {
	rec := &recorder{}
	g := newTestGame(rec, 2)

	g.AddPlayerState(0, sample(10, 1000, 0, 3))

	if got := g.StateCount(0); got != 1 {
		t.Fatalf("StateCount = %d, want 1", got)
	}
	if g.StartedAt() != 0 {
		t.Errorf("StartedAt = %d, want 0 before the match is proven started", g.StartedAt())
	}
	if len(rec.events) != 0 {
		t.Errorf("published %d events, want 0", len(rec.events))
	}
}

func TestRepeatedFrameReplacesBufferedSample(t *testing.T) {
	rec := &recorder{}
	g := newTestGame(rec, 2)

	g.AddPlayerState(0, sample(10, 1000, 0, 3))
	g.AddPlayerState(0, sample(10, 1050, 5, 3))

	if got := g.StateCount(0); got != 1 {
		t.Fatalf("StateCount = %d, want 1 after in-place replacement", got)
	}
	if got := g.States(0)[0].Damage; got != 5 {
		t.Errorf("buffered Damage = %v, want the replacement's 5", got)
	}
	if len(rec.events) != 0 {
		t.Errorf("published %d events, want 0", len(rec.events))
	}
}

func TestNewFrameProvesMatchStarted(t *testing.T) {
	rec := &recorder{}
	g := newTestGame(rec, 2)

	g.AddPlayerState(0, sample(10, 1000, 0, 3))
	g.AddPlayerState(0, sample(11, 1016, 1, 3))

	if got := g.StateCount(0); got != 2 {
		t.Fatalf("StateCount = %d, want 2", got)
	}
	if g.StartedAt() != 1000 {
		t.Errorf("StartedAt = %d, want the first sample's 1000", g.StartedAt())
	}

	unique := rec.count(func(ev events.Event) bool { _, ok := ev.(events.UniqueFrame); return ok })
	frames := rec.count(func(ev events.Event) bool { _, ok := ev.(events.FrameReceived); return ok })
	if unique != 2 || frames != 2 {
		t.Errorf("unique/frame events = %d/%d, want 2/2 (both buffered samples emitted)", unique, frames)
	}
}

func TestDuplicateSamplesAreDroppedFromSeries(t *testing.T) {
	rec := &recorder{}
	g := newTestGame(rec, 2)

	g.AddPlayerState(0, sample(10, 1000, 0, 3))
	g.AddPlayerState(0, sample(11, 1016, 1, 3))
	// Same data on a later frame: stored series must not grow, but the
	// frame event still fires.
	g.AddPlayerState(0, sample(12, 1033, 1, 3))

	if got := g.StateCount(0); got != 2 {
		t.Fatalf("StateCount = %d, want 2 after duplicate", got)
	}
	frames := rec.count(func(ev events.Event) bool { _, ok := ev.(events.FrameReceived); return ok })
	if frames != 3 {
		t.Errorf("frame events = %d, want 3", frames)
	}
}

func TestResumedSessionComparesStatusOnly(t *testing.T) {
	bus := events.NewBus()
	g := NewGame(bus, domain.NewMappingInfo(0), 1, []uint8{1, 2}, []string{"A", "B"}, true)

	first := sample(10, 1000, 0, 3)
	first.Status = 7
	second := sample(11, 1016, 5, 3)
	second.Status = 7
	third := sample(12, 1033, 9, 3)
	third.Status = 7
	fourth := sample(13, 1050, 9, 3)
	fourth.Status = 8

	g.AddPlayerState(0, first)
	g.AddPlayerState(0, second)
	g.AddPlayerState(0, third) // same status, different damage: dropped
	g.AddPlayerState(0, fourth)

	if got := g.StateCount(0); got != 3 {
		t.Fatalf("StateCount = %d, want 3 (status transitions only)", got)
	}
}

func TestWinnerMostStocksThenLowerDamage(t *testing.T) {
	tests := []struct {
		name       string
		p0, p1     domain.PlayerState
		wantWinner int
	}{
		{
			name:       "more stocks wins",
			p0:         sample(20, 2000, 80, 1),
			p1:         sample(20, 2000, 10, 2),
			wantWinner: 1,
		},
		{
			name:       "tied stocks, lower damage wins",
			p0:         sample(20, 2000, 40, 2),
			p1:         sample(20, 2000, 90, 2),
			wantWinner: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(nil, 2)
			for i, final := range []domain.PlayerState{tt.p0, tt.p1} {
				g.AddPlayerState(i, sample(10, 1000, 0, 3))
				g.AddPlayerState(i, sample(11, 1016, 1, 3))
				g.AddPlayerState(i, final)
			}
			if got := g.Winner(); got != tt.wantWinner {
				t.Errorf("Winner = %d, want %d", got, tt.wantWinner)
			}
		})
	}
}

func TestWinnerIgnoresPlayersWithoutStates(t *testing.T) {
	g := newTestGame(nil, 2)
	// Only player 1 has telemetry; player 0 must not win by default.
	g.AddPlayerState(1, sample(10, 1000, 50, 1))
	g.AddPlayerState(1, sample(11, 1016, 51, 1))

	if got := g.Winner(); got != 1 {
		t.Errorf("Winner = %d, want 1 (only player with states)", got)
	}
}

func TestWinnerChangeFiresEvent(t *testing.T) {
	rec := &recorder{}
	g := newTestGame(rec, 2)

	for i := 0; i < 2; i++ {
		g.AddPlayerState(i, sample(10, 1000, 0, 3))
		g.AddPlayerState(i, sample(11, 1016, 1, 3))
	}
	// Player 0 loses a stock.
	g.AddPlayerState(0, sample(30, 3000, 0, 2))

	var changes []int
	for _, ev := range rec.events {
		if wc, ok := ev.(events.WinnerChanged); ok {
			changes = append(changes, wc.Winner)
		}
	}
	if len(changes) == 0 || changes[len(changes)-1] != 1 {
		t.Errorf("winner changes = %v, want final change to 1", changes)
	}
}

func TestTrainingResetClearsTelemetry(t *testing.T) {
	tr := NewTraining(events.NewBus(), domain.NewMappingInfo(0), 1, 5, 6, false)

	tr.AddPlayerState(0, sample(10, 1000, 0, 3))
	tr.AddPlayerState(0, sample(11, 1016, 1, 3))
	if tr.StartedAt() == 0 || tr.StateCount(0) == 0 {
		t.Fatal("training session did not accumulate telemetry")
	}

	tr.Reset()
	if tr.StartedAt() != 0 {
		t.Errorf("StartedAt = %d after reset, want 0", tr.StartedAt())
	}
	if got := tr.StateCount(0); got != 0 {
		t.Errorf("StateCount = %d after reset, want 0", got)
	}
}

func TestSessionTimesAndDuration(t *testing.T) {
	g := newTestGame(nil, 2)
	g.AddPlayerState(0, sample(10, 1000, 0, 3))
	g.AddPlayerState(0, sample(11, 1016, 1, 3))
	g.AddPlayerState(0, sample(12, 4000, 2, 3))

	if g.StartedAt() != 1000 {
		t.Errorf("StartedAt = %d, want 1000", g.StartedAt())
	}
	if g.EndedAt() != 4000 {
		t.Errorf("EndedAt = %d, want 4000", g.EndedAt())
	}
	if got := g.Duration().Milliseconds(); got != 3000 {
		t.Errorf("Duration = %dms, want 3000ms", got)
	}
}
