package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklist/model"
	"tracklist/repository"
)

// fakeCache behaves like the redis cache: every invalidation bumps a
// generation and a Set carrying an older generation is dropped.
type fakeCache struct {
	mu             sync.Mutex
	entries        map[string]*model.Playlist
	generation     int64
	skipped        int
	invalidated    []string
	trackInvalid   []string
	failEverything bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*model.Playlist{}}
}

func (c *fakeCache) Get(_ context.Context, id string) (*model.Playlist, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failEverything {
		return nil, 0, errors.New("cache down")
	}
	return c.entries[id], c.generation, nil
}

func (c *fakeCache) Set(_ context.Context, p *model.Playlist, gen int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failEverything {
		return false, errors.New("cache down")
	}
	if gen != c.generation {
		c.skipped++
		return false, nil
	}
	c.entries[p.ID()] = p
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, id := range ids {
		delete(c.entries, id)
		c.invalidated = append(c.invalidated, id)
	}
	if c.failEverything {
		return errors.New("cache down")
	}
	return nil
}

func (c *fakeCache) InvalidateTrack(_ context.Context, trackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for id, p := range c.entries {
		if p.Contains(trackID) {
			delete(c.entries, id)
		}
	}
	c.trackInvalid = append(c.trackInvalid, trackID)
	return nil
}

// writeBeforeFill runs write once, between GetPlaylist's database load and
// its cache fill.
type writeBeforeFill struct {
	*fakeCache
	write func()
}

func (c *writeBeforeFill) Set(ctx context.Context, p *model.Playlist, gen int64) (bool, error) {
	if c.write != nil {
		write := c.write
		c.write = nil
		write()
	}
	return c.fakeCache.Set(ctx, p, gen)
}

// racingRepo bumps the stored version right before the first n saves, the
// way a concurrent writer would.
type racingRepo struct {
	repository.PlaylistRepository
	races int
	saves int
}

func (r *racingRepo) Save(ctx context.Context, p *model.Playlist) error {
	r.saves++
	if r.races > 0 {
		r.races--
		other, err := r.PlaylistRepository.GetByID(ctx, p.ID())
		if err != nil {
			return err
		}
		if err := r.PlaylistRepository.Save(ctx, other); err != nil {
			return err
		}
	}
	return r.PlaylistRepository.Save(ctx, p)
}

type fixture struct {
	store     *repository.MemoryStore
	cache     *fakeCache
	tracks    *TrackService
	playlists *PlaylistService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	cache := newFakeCache()
	return &fixture{
		store:     store,
		cache:     cache,
		tracks:    NewTrackService(store.Tracks(), cache),
		playlists: NewPlaylistService(store.Playlists(), store.Tracks(), cache, 3),
	}
}

func (f *fixture) track(t *testing.T, title string, duration int) *model.Track {
	t.Helper()
	tr, err := f.tracks.CreateTrack(context.Background(), title, "Artist", duration)
	require.NoError(t, err)
	return tr
}

func (f *fixture) playlist(t *testing.T, name string) *model.Playlist {
	t.Helper()
	p, err := f.playlists.CreatePlaylist(context.Background(), name, true)
	require.NoError(t, err)
	return p
}

func order(p *model.Playlist) []string {
	var out []string
	for _, t := range p.Tracks() {
		out = append(out, t.Title)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestPlaylistService_EndToEndOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c, d := f.track(t, "A", 100), f.track(t, "B", 200), f.track(t, "C", 300), f.track(t, "D", 400)
	p := f.playlist(t, "mix")

	_, err := f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	_, err = f.playlists.AddTrackAtPosition(ctx, p.ID(), b.ID(), 0)
	require.NoError(t, err)
	got, err := f.playlists.AddTracks(ctx, p.ID(), []string{c.ID(), d.ID()}, intPtr(1))
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C", "D", "A"}, order(got))
	assert.Equal(t, 1000, got.TotalDuration())
	assert.Equal(t, int64(3), got.Version())

	tracks, err := f.playlists.GetPlaylistTracks(ctx, p.ID())
	require.NoError(t, err)
	assert.Len(t, tracks, 4)
}

func TestPlaylistService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 100)
	p := f.playlist(t, "p")

	tests := []struct {
		name string
		run  func() error
		want error
		kind string
	}{
		{
			name: "unknown playlist",
			run: func() error {
				_, err := f.playlists.AddTrack(ctx, "nope", a.ID())
				return err
			},
			want: model.ErrNotFound, kind: model.KindPlaylist,
		},
		{
			name: "unknown playlist wins over unknown track",
			run: func() error {
				_, err := f.playlists.AddTrack(ctx, "nope", "also-nope")
				return err
			},
			want: model.ErrNotFound, kind: model.KindPlaylist,
		},
		{
			name: "unknown track",
			run: func() error {
				_, err := f.playlists.AddTrack(ctx, p.ID(), "nope")
				return err
			},
			want: model.ErrNotFound, kind: model.KindTrack,
		},
		{
			name: "invalid position on empty playlist",
			run: func() error {
				_, err := f.playlists.AddTrackAtPosition(ctx, p.ID(), a.ID(), 1)
				return err
			},
			want: model.ErrInvalidPosition,
		},
		{
			name: "bulk with one unknown id",
			run: func() error {
				_, err := f.playlists.AddTracks(ctx, p.ID(), []string{a.ID(), "ghost"}, nil)
				return err
			},
			want: model.ErrNotFound, kind: model.KindTrack,
		},
		{
			name: "bulk with empty list",
			run: func() error {
				_, err := f.playlists.AddTracks(ctx, p.ID(), nil, nil)
				return err
			},
			want: model.ErrInvalidArgument,
		},
		{
			name: "remove track not in playlist",
			run: func() error {
				_, err := f.playlists.RemoveTrack(ctx, p.ID(), a.ID())
				return err
			},
			want: model.ErrNotFound, kind: model.KindPlaylistTrack,
		},
		{
			name: "get unknown track",
			run: func() error {
				_, err := f.tracks.GetTrack(ctx, "ghost")
				return err
			},
			want: model.ErrNotFound, kind: model.KindTrack,
		},
		{
			name: "delete unknown playlist",
			run: func() error {
				return f.playlists.DeletePlaylist(ctx, "ghost")
			},
			want: model.ErrNotFound, kind: model.KindPlaylist,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.ErrorIs(t, err, tc.want)
			if tc.kind != "" {
				var nf *model.NotFoundError
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, tc.kind, nf.Kind)
			}
		})
	}

	// Nothing above changed the playlist.
	stored, err := f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Zero(t, stored.TrackCount())
	assert.Equal(t, int64(0), stored.Version())
}

func TestPlaylistService_RetriesOnConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	racing := &racingRepo{PlaylistRepository: store.Playlists(), races: 2}
	tracks := NewTrackService(store.Tracks(), newFakeCache())
	svc := NewPlaylistService(racing, store.Tracks(), newFakeCache(), 3)
	ctx := context.Background()

	a, err := tracks.CreateTrack(ctx, "A", "X", 10)
	require.NoError(t, err)
	p, err := svc.CreatePlaylist(ctx, "p", true)
	require.NoError(t, err)

	got, err := svc.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, racing.saves)
	assert.Equal(t, 1, got.TrackCount())
}

func TestPlaylistService_GivesUpAfterMaxAttempts(t *testing.T) {
	store := repository.NewMemoryStore()
	racing := &racingRepo{PlaylistRepository: store.Playlists(), races: 10}
	svc := NewPlaylistService(racing, store.Tracks(), newFakeCache(), 3)
	ctx := context.Background()

	p, err := svc.CreatePlaylist(ctx, "p", true)
	require.NoError(t, err)

	_, err = svc.UpdatePlaylist(ctx, p.ID(), "renamed", false)
	require.ErrorIs(t, err, model.ErrVersionConflict)

	var conflict *model.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 3, conflict.Attempts)
	assert.Equal(t, 3, racing.saves)
}

func TestPlaylistService_ConcurrentAppendsAllLand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "busy")

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.track(t, string(rune('a'+i)), 10).ID()
	}

	svc := NewPlaylistService(f.store.Playlists(), f.store.Tracks(), f.cache, 50)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.AddTrack(ctx, p.ID(), id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, n, got.TrackCount())
}

func TestPlaylistService_CacheReadThroughAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 10)
	p := f.playlist(t, "p")

	_, err := f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Contains(t, f.cache.entries, p.ID())

	_, err = f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, p.ID())
	assert.Contains(t, f.cache.invalidated, p.ID())

	fresh, err := f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TrackCount())
}

func TestPlaylistService_FillRacingAWriteIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 10)
	p := f.playlist(t, "p")

	racing := &writeBeforeFill{fakeCache: f.cache}
	svc := NewPlaylistService(f.store.Playlists(), f.store.Tracks(), racing, 3)
	racing.write = func() {
		_, err := svc.AddTrack(ctx, p.ID(), a.ID())
		require.NoError(t, err)
	}

	stale, err := svc.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, stale.TrackCount())
	assert.Equal(t, 1, f.cache.skipped)
	assert.NotContains(t, f.cache.entries, p.ID())

	got, err := svc.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.TrackCount())
	assert.Equal(t, int64(1), got.Version())
}

func TestPlaylistService_FillRacingATrackUpdateIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 10)
	p := f.playlist(t, "p")
	_, err := f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)

	racing := &writeBeforeFill{fakeCache: f.cache}
	tracks := NewTrackService(f.store.Tracks(), racing)
	svc := NewPlaylistService(f.store.Playlists(), f.store.Tracks(), racing, 3)
	racing.write = func() {
		_, err := tracks.UpdateTrack(ctx, a.ID(), TrackUpdate{Title: "A2", Artist: "Y"})
		require.NoError(t, err)
	}

	_, err = svc.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)

	got, err := svc.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"A2"}, order(got))
}

func TestPlaylistService_CacheFailuresAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.playlist(t, "p")
	f.cache.failEverything = true

	got, err := f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, p.ID(), got.ID())

	_, err = f.playlists.UpdatePlaylist(ctx, p.ID(), "renamed", false)
	require.NoError(t, err)
}

func TestPlaylistService_DuplicatesAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.track(t, "A", 10), f.track(t, "B", 20)
	p := f.playlist(t, "p")

	_, err := f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	_, err = f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	got, err := f.playlists.AddTracks(ctx, p.ID(), []string{b.ID(), a.ID(), b.ID()}, intPtr(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, order(got))
}

func TestPlaylistService_RemoveTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.track(t, "A", 10), f.track(t, "B", 20)
	p := f.playlist(t, "p")

	_, err := f.playlists.AddTracks(ctx, p.ID(), []string{a.ID(), b.ID()}, nil)
	require.NoError(t, err)

	got, err := f.playlists.RemoveTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, order(got))
	assert.Equal(t, 20, got.TotalDuration())
}

// deletingTrackRepo removes the track right before Update, the way a
// concurrent DELETE would.
type deletingTrackRepo struct {
	repository.TrackRepository
}

func (r deletingTrackRepo) Update(ctx context.Context, track *model.Track) error {
	if _, err := r.TrackRepository.Delete(ctx, track.ID()); err != nil {
		return err
	}
	return r.TrackRepository.Update(ctx, track)
}

func TestTrackService_UpdateConcurrentlyDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 100)

	svc := NewTrackService(deletingTrackRepo{f.store.Tracks()}, f.cache)
	_, err := svc.UpdateTrack(ctx, a.ID(), TrackUpdate{Title: "A2", Artist: "Y"})

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, model.KindTrack, nf.Kind)
	assert.NotContains(t, f.cache.trackInvalid, a.ID())
}

func TestTrackService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 100)
	p := f.playlist(t, "p")
	_, err := f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)

	updated, err := f.tracks.UpdateTrack(ctx, a.ID(), TrackUpdate{Title: "A2", Artist: "Y"})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Title)
	assert.Equal(t, 100, updated.Duration)
	assert.Contains(t, f.cache.trackInvalid, a.ID())

	updated, err = f.tracks.UpdateTrack(ctx, a.ID(), TrackUpdate{Title: "A3", Artist: "Y", Duration: intPtr(150)})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.Duration)

	got, err := f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"A3"}, order(got))

	require.NoError(t, f.tracks.DeleteTrack(ctx, a.ID()))
	assert.Contains(t, f.cache.invalidated, p.ID())

	got, err = f.playlists.GetPlaylist(ctx, p.ID())
	require.NoError(t, err)
	assert.Zero(t, got.TrackCount())

	_, err = f.tracks.GetTrack(ctx, a.ID())
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, f.tracks.DeleteTrack(ctx, a.ID()), model.ErrNotFound)
}

func TestPlaylistService_DeleteKeepsTracks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.track(t, "A", 10)
	p := f.playlist(t, "p")
	_, err := f.playlists.AddTrack(ctx, p.ID(), a.ID())
	require.NoError(t, err)

	require.NoError(t, f.playlists.DeletePlaylist(ctx, p.ID()))

	_, err = f.playlists.GetPlaylist(ctx, p.ID())
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.tracks.GetTrack(ctx, a.ID())
	assert.NoError(t, err)
}
