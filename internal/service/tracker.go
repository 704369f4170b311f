package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"ultimate-tracker/internal/config"
	"ultimate-tracker/internal/constants"
	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/events"
	"ultimate-tracker/internal/lifecycle"
	"ultimate-tracker/internal/protocol"
	"ultimate-tracker/internal/replay"
	"ultimate-tracker/internal/repository"
	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
)

const reconnectDelay = 5 * time.Second

// PlayerStatus is one player's slice of the live status snapshot.
type PlayerStatus struct {
	Name    string `json:"name"`
	Fighter string `json:"fighter"`
}

// Status is a point-in-time snapshot of the tracker, safe to serve from any
// goroutine.
type Status struct {
	Connected      bool           `json:"connected"`
	ConsoleAddr    string         `json:"console_addr"`
	MatchActive    bool           `json:"match_active"`
	TrainingActive bool           `json:"training_active"`
	Players        []PlayerStatus `json:"players,omitempty"`
	Format         string         `json:"format,omitempty"`
	GameNumber     int            `json:"game_number,omitempty"`
	SetNumber      int            `json:"set_number,omitempty"`
	Winner         int            `json:"winner"`
	FramesReceived uint64         `json:"frames_received"`
}

// Tracker is the single consumer of the console connection. It owns the
// connection-wide mapping table, routes telemetry into the active session,
// and hands finished matches to the lifecycle manager and the replay index.
type Tracker struct {
	cfg     *config.Config
	logger  zerolog.Logger
	bus     *events.Bus
	manager *lifecycle.Manager
	repo    *repository.ReplayRepository

	mu        sync.Mutex
	connected bool
	mapping   *domain.MappingInfo
	cached    *domain.MappingInfo
	training  *session.Training
	frames    uint64

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	client   *protocol.Client
	done     chan struct{}
}

func NewTracker(
	cfg *config.Config,
	bus *events.Bus,
	manager *lifecycle.Manager,
	repo *repository.ReplayRepository,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		manager: manager,
		repo:    repo,
		mapping: domain.NewMappingInfo(0),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (t *Tracker) mappingCachePath() string {
	return filepath.Join(filepath.Dir(t.cfg.DBPath), constants.MappingCacheFile)
}

// Start loads the cached mapping table and launches the connect/consume loop.
func (t *Tracker) Start() {
	if cached, err := replay.LoadMapping(t.mappingCachePath()); err == nil {
		t.logger.Info().Uint32("checksum", cached.Checksum).Msg("loaded cached mapping info")
		t.mu.Lock()
		t.cached = cached
		t.mu.Unlock()
	} else {
		t.logger.Debug().Err(err).Msg("no usable mapping info cache")
	}

	go t.run()
}

// Stop tears down the connection and waits for the consume loop to drain.
func (t *Tracker) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() { close(t.stopCh) })

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client != nil {
		client.Close()
	}
	<-t.done
}

func (t *Tracker) run() {
	defer close(t.done)

	for !t.stopped.Load() {
		addr := t.cfg.ConsoleAddr()
		t.bus.Publish(events.ConnectionAttempted{Addr: addr})

		t.mu.Lock()
		cached := t.cached
		t.mu.Unlock()
		var checksum uint32
		haveCached := cached != nil
		if haveCached {
			checksum = cached.Checksum
		}

		client, err := protocol.Dial(addr, checksum, haveCached, t.logger)
		if err != nil {
			t.logger.Warn().Err(err).Str("addr", addr).Msg("console connection failed")
			t.bus.Publish(events.ConnectionFailed{Addr: addr, Err: err.Error()})
			if !t.sleep(reconnectDelay) {
				return
			}
			continue
		}

		t.logger.Info().Str("addr", addr).Msg("connected to console")
		t.mu.Lock()
		t.client = client
		t.connected = true
		t.mu.Unlock()
		t.bus.Publish(events.ConnectionEstablished{Addr: addr})

		t.consume(client)

		t.mu.Lock()
		t.client = nil
		t.connected = false
		t.mu.Unlock()

		if !t.sleep(reconnectDelay) {
			return
		}
	}
}

// sleep waits out the reconnect delay, returning false when the tracker was
// stopped meanwhile.
func (t *Tracker) sleep(d time.Duration) bool {
	select {
	case <-t.stopCh:
		return false
	case <-time.After(d):
		return !t.stopped.Load()
	}
}

func (t *Tracker) consume(client *protocol.Client) {
	for msg := range client.Events() {
		t.mu.Lock()
		t.handle(msg)
		t.mu.Unlock()
	}
}

// handle processes one decoded message. Runs under t.mu; bus handlers fire
// inline, so subscribers observe a consistent tracker.
func (t *Tracker) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.VersionMsg:
		t.logger.Info().
			Uint8("major", m.Major).
			Uint8("minor", m.Minor).
			Msg("console protocol version")
		t.bus.Publish(events.VersionReceived{Major: m.Major, Minor: m.Minor})

	case protocol.MappingChecksumMsg:
		if t.cached != nil && t.cached.Checksum == m.Checksum {
			t.mapping = t.cached.Clone()
		}

	case protocol.MappingBeginMsg:
		// A full dump supersedes whatever this connection accumulated.
		t.mapping = domain.NewMappingInfo(m.Checksum)

	case protocol.FighterKindMsg:
		t.mapping.AddFighter(m.FighterID, m.Name)
		t.bus.Publish(events.MappingUpdated{})
	case protocol.FighterStatusKindMsg:
		if m.FighterID == domain.BaseStatusFighterID {
			t.mapping.AddBaseStatus(m.StatusID, m.Name)
		} else {
			t.mapping.AddFighterStatus(m.FighterID, m.StatusID, m.Name)
		}
		t.bus.Publish(events.MappingUpdated{})
	case protocol.StageKindMsg:
		t.mapping.AddStage(m.StageID, m.Name)
		t.bus.Publish(events.MappingUpdated{})
	case protocol.HitStatusKindMsg:
		t.mapping.AddHitStatus(m.HitStatusID, m.Name)
		t.bus.Publish(events.MappingUpdated{})

	case protocol.MappingCompleteMsg:
		if err := replay.SaveMapping(t.mapping, t.mappingCachePath()); err != nil {
			t.logger.Warn().Err(err).Msg("failed to cache mapping info")
		}
		t.cached = t.mapping.Clone()
		t.bus.Publish(events.MappingComplete{Checksum: t.mapping.Checksum})

	case protocol.MatchStartedMsg:
		g := session.NewGame(t.bus, t.mapping.Clone(), m.StageID, m.FighterIDs, m.Tags, m.Resumed)
		t.manager.HandleMatchStarted(g)
		t.bus.Publish(events.MatchStarted{
			SessionID:   g.ID(),
			Resumed:     m.Resumed,
			StageID:     m.StageID,
			PlayerCount: len(m.Tags),
			Tags:        m.Tags,
			FighterIDs:  m.FighterIDs,
		})

	case protocol.MatchEndedMsg:
		res := t.manager.HandleMatchEnded()
		if res != nil && res.Saved {
			t.indexReplay(res)
		}

	case protocol.TrainingStartedMsg:
		tr := session.NewTraining(t.bus, t.mapping.Clone(), m.StageID, m.PlayerFighterID, m.CPUFighterID, m.Resumed)
		t.training = tr
		t.bus.Publish(events.TrainingStarted{
			SessionID: tr.ID(),
			Resumed:   m.Resumed,
			StageID:   m.StageID,
		})

	case protocol.TrainingResetMsg:
		if t.training != nil {
			t.training.Reset()
		}

	case protocol.TrainingEndedMsg:
		if t.training != nil {
			t.bus.Publish(events.TrainingEnded{SessionID: t.training.ID()})
			t.training = nil
		}

	case protocol.FighterStateMsg:
		t.frames++
		st := domain.PlayerState{
			Timestamp:       m.Timestamp,
			Frame:           m.Frame,
			PosX:            m.PosX,
			PosY:            m.PosY,
			Damage:          m.Damage,
			Hitstun:         m.Hitstun,
			Shield:          m.Shield,
			Status:          m.Status,
			Motion:          m.Motion,
			HitStatus:       m.HitStatus,
			Stocks:          m.Stocks,
			AttackConnected: m.AttackConnected,
			FacingDirection: m.FacingDirection,
		}
		if g := t.manager.Active(); g != nil {
			g.AddPlayerState(m.PlayerIndex, st)
		} else if t.training != nil {
			t.training.AddPlayerState(m.PlayerIndex, st)
		}

	case protocol.DisconnectedMsg:
		t.bus.Publish(events.ConnectionClosed{})
	}
}

func (t *Tracker) indexReplay(res *lifecycle.EndResult) {
	rec := repository.RecordFromGame(res.Path, res.Game)

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := t.repo.Insert(ctx, rec); err != nil {
		t.logger.Error().Err(err).Str("path", res.Path).Msg("failed to index replay")
	}
}

// Status snapshots the tracker for the HTTP surface.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		Connected:      t.connected,
		ConsoleAddr:    t.cfg.ConsoleAddr(),
		TrainingActive: t.training != nil,
		FramesReceived: t.frames,
	}
	if g := t.manager.Active(); g != nil {
		s.MatchActive = true
		s.Format = g.Format().Description()
		s.GameNumber = g.GameNumber()
		s.SetNumber = g.SetNumber()
		s.Winner = g.Winner()
		for i := 0; i < g.PlayerCount(); i++ {
			s.Players = append(s.Players, PlayerStatus{
				Name:    g.PlayerName(i),
				Fighter: g.Mapping().FighterName(g.FighterID(i), "unknown fighter"),
			})
		}
	}
	return s
}
