package replay

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrStale marks a load whose generation was superseded before it finished;
// its results must be discarded, not applied.
var ErrStale = errors.New("replay load superseded by a newer request")

// Loaded pairs a decoded session with the file it came from.
type Loaded struct {
	Path string
	Game *session.Game
}

// GroupLoader decodes batches of replay files on a bounded worker pool. A
// single coordinating caller merges the sorted results. Each request
// carries a monotonically increasing generation id so results arriving for
// a cancelled or superseded request are dropped on arrival.
type GroupLoader struct {
	codec   *Codec
	workers int
	logger  zerolog.Logger
	gen     atomic.Uint64
}

func NewGroupLoader(codec *Codec, workers int, logger zerolog.Logger) *GroupLoader {
	if workers < 1 {
		workers = 1
	}
	return &GroupLoader{codec: codec, workers: workers, logger: logger}
}

// Begin claims a new generation, invalidating every load still in flight.
func (l *GroupLoader) Begin() uint64 {
	return l.gen.Add(1)
}

// Load decodes the given files in parallel and returns the survivors sorted
// by start timestamp. Files that fail to decode are logged and skipped; the
// batch only errors if the context dies or the generation went stale.
func (l *GroupLoader) Load(ctx context.Context, gen uint64, paths []string) ([]Loaded, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	var mu sync.Mutex
	results := make([]Loaded, 0, len(paths))

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			game, err := l.codec.Load(path)
			if err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable replay")
				return nil
			}
			mu.Lock()
			results = append(results, Loaded{Path: path, Game: game})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if l.gen.Load() != gen {
		return nil, ErrStale
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Game.StartedAt() < results[j].Game.StartedAt()
	})
	return results, nil
}
