package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Playlist is an ordered, duplicate-free sequence of tracks. The order is the
// playback order. Tracks are held by value and matched by identity, so a
// track appears at most once no matter which insertion path added it.
//
// A Playlist is not safe for concurrent use; callers own the value they
// loaded until it is saved or discarded.
type Playlist struct {
	id        string
	name      string
	isPublic  bool
	createdAt time.Time
	version   int64
	tracks    []Track
}

// NewPlaylist creates an empty playlist with a freshly generated identity.
func NewPlaylist(name string, isPublic bool) *Playlist {
	return &Playlist{
		id:       uuid.New().String(),
		name:     name,
		isPublic: isPublic,
		tracks:   make([]Track, 0),
	}
}

// RestorePlaylist rebuilds a playlist loaded from storage. Repeated track
// identities are dropped, keeping the first occurrence.
func RestorePlaylist(id, name string, isPublic bool, createdAt time.Time, version int64, tracks []Track) *Playlist {
	p := &Playlist{
		id:        id,
		name:      name,
		isPublic:  isPublic,
		createdAt: createdAt,
		version:   version,
		tracks:    make([]Track, 0, len(tracks)),
	}
	for _, t := range tracks {
		if !p.Contains(t.id) {
			p.tracks = append(p.tracks, t)
		}
	}
	return p
}

func (p *Playlist) ID() string           { return p.id }
func (p *Playlist) Name() string         { return p.name }
func (p *Playlist) IsPublic() bool       { return p.isPublic }
func (p *Playlist) CreatedAt() time.Time { return p.createdAt }

// Version is the optimistic concurrency counter of the stored row this value
// was loaded from.
func (p *Playlist) Version() int64 { return p.version }

// SetVersion is called by repositories after a successful write.
func (p *Playlist) SetVersion(v int64) { p.version = v }

// Stamp sets the creation time on first persistence. Later calls are ignored.
func (p *Playlist) Stamp(now time.Time) {
	if p.createdAt.IsZero() {
		p.createdAt = now
	}
}

// Rename replaces the playlist name.
func (p *Playlist) Rename(name string) { p.name = name }

// SetVisibility marks the playlist public or private.
func (p *Playlist) SetVisibility(public bool) { p.isPublic = public }

// Contains reports whether a track with the given identity is in the playlist.
func (p *Playlist) Contains(trackID string) bool {
	return p.indexOf(trackID) >= 0
}

func (p *Playlist) indexOf(trackID string) int {
	return slices.IndexFunc(p.tracks, func(t Track) bool { return t.id == trackID })
}

// AddTrack appends t to the end of the playlist. Adding a track that is
// already present is a no-op.
func (p *Playlist) AddTrack(t *Track) error {
	if t == nil {
		return &InvalidArgumentError{Reason: "Track cannot be nil"}
	}
	if !p.Contains(t.id) {
		p.tracks = append(p.tracks, *t)
	}
	return nil
}

// InsertTrackAt inserts t at position, shifting later tracks back by one.
// The position must lie in [0, TrackCount()]. A track that is already present
// is left where it is.
func (p *Playlist) InsertTrackAt(t *Track, position int) error {
	if t == nil {
		return &InvalidArgumentError{Reason: "Track cannot be nil"}
	}
	if err := p.checkPosition(position); err != nil {
		return err
	}
	if !p.Contains(t.id) {
		p.tracks = slices.Insert(p.tracks, position, *t)
	}
	return nil
}

// InsertTracks adds several tracks in one call.
//
// With a nil position every track is appended in input order. With a
// position the bound is checked once against the current length, then the
// surviving tracks are inserted as one contiguous block starting at that
// position, keeping their input order.
//
// Nil entries, tracks already in the playlist and repeats inside the input
// are skipped on both paths.
func (p *Playlist) InsertTracks(tracks []*Track, position *int) error {
	if len(tracks) == 0 {
		return &InvalidArgumentError{Reason: "Tracks list cannot be nil or empty"}
	}

	if position == nil {
		for _, t := range tracks {
			if t != nil && !p.Contains(t.id) {
				p.tracks = append(p.tracks, *t)
			}
		}
		return nil
	}

	if err := p.checkPosition(*position); err != nil {
		return err
	}

	accepted := make([]Track, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if t == nil || p.Contains(t.id) {
			continue
		}
		if _, dup := seen[t.id]; dup {
			continue
		}
		seen[t.id] = struct{}{}
		accepted = append(accepted, *t)
	}
	p.tracks = slices.Insert(p.tracks, *position, accepted...)
	return nil
}

// RemoveTrack removes the entry with t's identity and reports whether
// anything was removed.
func (p *Playlist) RemoveTrack(t *Track) bool {
	if t == nil {
		return false
	}
	return p.RemoveTrackByID(t.id)
}

// RemoveTrackByID removes the entry with the given identity and reports
// whether anything was removed.
func (p *Playlist) RemoveTrackByID(trackID string) bool {
	i := p.indexOf(trackID)
	if i < 0 {
		return false
	}
	p.tracks = slices.Delete(p.tracks, i, i+1)
	return true
}

// TotalDuration returns the summed duration of all tracks in seconds.
func (p *Playlist) TotalDuration() int {
	total := 0
	for _, t := range p.tracks {
		total += t.Duration
	}
	return total
}

// TrackCount returns the number of tracks.
func (p *Playlist) TrackCount() int {
	return len(p.tracks)
}

// Tracks returns a copy of the tracks in playback order.
func (p *Playlist) Tracks() []Track {
	result := make([]Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

func (p *Playlist) checkPosition(position int) error {
	if position < 0 || position > len(p.tracks) {
		return &InvalidPositionError{Position: position, Length: len(p.tracks)}
	}
	return nil
}

type playlistJSON struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsPublic      bool      `json:"isPublic"`
	CreatedAt     time.Time `json:"createdAt"`
	Version       int64     `json:"version"`
	Tracks        []Track   `json:"tracks"`
	TrackCount    int       `json:"trackCount"`
	TotalDuration int       `json:"totalDuration"`
}

// MarshalJSON implements json.Marshaler.
func (p *Playlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(playlistJSON{
		ID:            p.id,
		Name:          p.name,
		IsPublic:      p.isPublic,
		CreatedAt:     p.createdAt,
		Version:       p.version,
		Tracks:        p.Tracks(),
		TrackCount:    p.TrackCount(),
		TotalDuration: p.TotalDuration(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Derived fields are recomputed
// rather than trusted.
func (p *Playlist) UnmarshalJSON(data []byte) error {
	var v playlistJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = *RestorePlaylist(v.ID, v.Name, v.IsPublic, v.CreatedAt, v.Version, v.Tracks)
	return nil
}
