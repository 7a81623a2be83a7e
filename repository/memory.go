package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"tracklist/model"
)

// MemoryStore keeps tracks and playlists in process memory with the same
// relational shape as the SQL tables: playlists hold track ids and are
// resolved against the current tracks on every read. It backs DB_DRIVER=memory
// and the service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	tracks    map[string]model.Track
	playlists map[string]*memPlaylist
}

type memPlaylist struct {
	id        string
	name      string
	isPublic  bool
	createdAt time.Time
	version   int64
	trackIDs  []string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracks:    make(map[string]model.Track),
		playlists: make(map[string]*memPlaylist),
	}
}

// Tracks returns a TrackRepository view of the store.
func (s *MemoryStore) Tracks() TrackRepository { return &memoryTrackRepository{s} }

// Playlists returns a PlaylistRepository view of the store.
func (s *MemoryStore) Playlists() PlaylistRepository { return &memoryPlaylistRepository{s} }

type memoryTrackRepository struct{ s *MemoryStore }

func (r *memoryTrackRepository) Create(_ context.Context, track *model.Track) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	track.Stamp(now())
	r.s.tracks[track.ID()] = *track
	return nil
}

func (r *memoryTrackRepository) Update(_ context.Context, track *model.Track) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.tracks[track.ID()]
	if !ok {
		return &model.NotFoundError{Kind: model.KindTrack, ID: track.ID()}
	}
	stored.Title = track.Title
	stored.Artist = track.Artist
	stored.Duration = track.Duration
	r.s.tracks[track.ID()] = stored
	return nil
}

func (r *memoryTrackRepository) GetByID(_ context.Context, id string) (*model.Track, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tracks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memoryTrackRepository) GetByIDs(_ context.Context, ids []string) (map[string]*model.Track, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make(map[string]*model.Track, len(ids))
	for _, id := range ids {
		if t, ok := r.s.tracks[id]; ok {
			result[id] = &t
		}
	}
	return result, nil
}

func (r *memoryTrackRepository) List(_ context.Context) ([]*model.Track, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tracks := make([]*model.Track, 0, len(r.s.tracks))
	for _, t := range r.s.tracks {
		t := t
		tracks = append(tracks, &t)
	}
	slices.SortFunc(tracks, func(a, b *model.Track) int {
		return olderFirst(a.CreatedAt(), b.CreatedAt(), a.ID(), b.ID())
	})
	return tracks, nil
}

func (r *memoryTrackRepository) Delete(_ context.Context, id string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var affected []string
	for _, p := range r.s.playlists {
		i := slices.Index(p.trackIDs, id)
		if i < 0 {
			continue
		}
		p.trackIDs = slices.Delete(p.trackIDs, i, i+1)
		p.version++
		affected = append(affected, p.id)
	}
	slices.Sort(affected)
	delete(r.s.tracks, id)
	return affected, nil
}

type memoryPlaylistRepository struct{ s *MemoryStore }

func (r *memoryPlaylistRepository) Create(_ context.Context, playlist *model.Playlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	playlist.Stamp(now())
	playlist.SetVersion(0)
	r.s.playlists[playlist.ID()] = &memPlaylist{
		id:        playlist.ID(),
		name:      playlist.Name(),
		isPublic:  playlist.IsPublic(),
		createdAt: playlist.CreatedAt(),
		trackIDs:  trackIDs(playlist),
	}
	return nil
}

func (r *memoryPlaylistRepository) Save(_ context.Context, playlist *model.Playlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.playlists[playlist.ID()]
	if !ok {
		return &model.NotFoundError{Kind: model.KindPlaylist, ID: playlist.ID()}
	}
	if stored.version != playlist.Version() {
		return model.ErrVersionConflict
	}

	stored.name = playlist.Name()
	stored.isPublic = playlist.IsPublic()
	stored.trackIDs = trackIDs(playlist)
	stored.version++
	playlist.SetVersion(stored.version)
	return nil
}

func (r *memoryPlaylistRepository) GetByID(_ context.Context, id string) (*model.Playlist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.playlists[id]
	if !ok {
		return nil, nil
	}
	return r.s.resolve(p), nil
}

func (r *memoryPlaylistRepository) List(_ context.Context) ([]*model.Playlist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*memPlaylist, 0, len(r.s.playlists))
	for _, p := range r.s.playlists {
		rows = append(rows, p)
	}
	slices.SortFunc(rows, func(a, b *memPlaylist) int {
		return olderFirst(a.createdAt, b.createdAt, a.id, b.id)
	})

	playlists := make([]*model.Playlist, 0, len(rows))
	for _, p := range rows {
		playlists = append(playlists, r.s.resolve(p))
	}
	return playlists, nil
}

func (r *memoryPlaylistRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.playlists, id)
	return nil
}

// resolve builds a fresh aggregate; callers hold at least the read lock.
func (s *MemoryStore) resolve(p *memPlaylist) *model.Playlist {
	tracks := make([]model.Track, 0, len(p.trackIDs))
	for _, id := range p.trackIDs {
		if t, ok := s.tracks[id]; ok {
			tracks = append(tracks, t)
		}
	}
	return model.RestorePlaylist(p.id, p.name, p.isPublic, p.createdAt, p.version, tracks)
}

func trackIDs(p *model.Playlist) []string {
	tracks := p.Tracks()
	ids := make([]string, 0, len(tracks))
	for i := range tracks {
		ids = append(ids, tracks[i].ID())
	}
	return ids
}

// olderFirst orders by creation time, then id, matching the SQL ORDER BY.
func olderFirst(a, b time.Time, aID, bID string) int {
	if c := a.Compare(b); c != 0 {
		return c
	}
	return cmp.Compare(aID, bID)
}
