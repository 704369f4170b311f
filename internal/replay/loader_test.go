package replay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ultimate-tracker/internal/domain"
	"ultimate-tracker/internal/session"

	"github.com/rs/zerolog"
)

func saveTestReplay(t *testing.T, codec *Codec, dir, name string, startMs uint64) string {
	t.Helper()
	g := session.NewGame(nil, testMapping(), 8, []uint8{1, 2}, []string{"A", "B"}, false)
	g.AddPlayerState(0, domain.PlayerState{Timestamp: startMs, Frame: 10, Stocks: 3})
	g.AddPlayerState(0, domain.PlayerState{Timestamp: startMs + 16, Frame: 11, Stocks: 3, Damage: 1})

	path := filepath.Join(dir, name)
	if err := codec.Save(g, path); err != nil {
		t.Fatalf("Save(%s) error = %v", name, err)
	}
	return path
}

func TestGroupLoaderSortsByStartTime(t *testing.T) {
	codec := NewCodec(zerolog.Nop())
	dir := t.TempDir()

	late := saveTestReplay(t, codec, dir, "late.rfr", 9000)
	early := saveTestReplay(t, codec, dir, "early.rfr", 1000)

	l := NewGroupLoader(codec, 2, zerolog.Nop())
	gen := l.Begin()
	results, err := l.Load(context.Background(), gen, []string{late, early})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("loaded %d replays, want 2", len(results))
	}
	if results[0].Path != early || results[1].Path != late {
		t.Errorf("order = %s, %s; want early then late", results[0].Path, results[1].Path)
	}
}

func TestGroupLoaderSkipsUnreadableFiles(t *testing.T) {
	codec := NewCodec(zerolog.Nop())
	dir := t.TempDir()

	good := saveTestReplay(t, codec, dir, "good.rfr", 1000)
	junk := filepath.Join(dir, "junk.rfr")
	if err := os.WriteFile(junk, []byte("not a replay"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewGroupLoader(codec, 2, zerolog.Nop())
	gen := l.Begin()
	results, err := l.Load(context.Background(), gen, []string{good, junk})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(results) != 1 || results[0].Path != good {
		t.Fatalf("results = %+v, want only the readable file", results)
	}
}

func TestGroupLoaderStaleGeneration(t *testing.T) {
	l := NewGroupLoader(NewCodec(zerolog.Nop()), 2, zerolog.Nop())

	gen := l.Begin()
	l.Begin() // supersedes gen

	_, err := l.Load(context.Background(), gen, nil)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("Load() error = %v, want ErrStale", err)
	}
}

func TestGroupLoaderCancelledContext(t *testing.T) {
	codec := NewCodec(zerolog.Nop())
	dir := t.TempDir()
	path := saveTestReplay(t, codec, dir, "match.rfr", 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewGroupLoader(codec, 1, zerolog.Nop())
	gen := l.Begin()
	if _, err := l.Load(ctx, gen, []string{path}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
