package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Track represents an audio track in the music library.
// Title, Artist and Duration are plain data and may be changed in place;
// the identity and creation time are fixed once assigned.
type Track struct {
	id        string
	Title     string
	Artist    string
	Duration  int // Duration in seconds
	createdAt time.Time
}

// NewTrack creates a track with a freshly generated identity.
func NewTrack(title, artist string, duration int) *Track {
	return &Track{
		id:       uuid.New().String(),
		Title:    title,
		Artist:   artist,
		Duration: duration,
	}
}

// RestoreTrack rebuilds a track loaded from storage.
func RestoreTrack(id, title, artist string, duration int, createdAt time.Time) *Track {
	return &Track{
		id:        id,
		Title:     title,
		Artist:    artist,
		Duration:  duration,
		createdAt: createdAt,
	}
}

// ID returns the track identity.
func (t *Track) ID() string {
	return t.id
}

// CreatedAt returns the time the track was first persisted.
func (t *Track) CreatedAt() time.Time {
	return t.createdAt
}

// Stamp sets the creation time on first persistence. Later calls are ignored.
func (t *Track) Stamp(now time.Time) {
	if t.createdAt.IsZero() {
		t.createdAt = now
	}
}

// Equal reports whether both tracks share the same identity.
func (t *Track) Equal(other *Track) bool {
	if t == nil || other == nil {
		return false
	}
	return t.id == other.id
}

type trackJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON implements json.Marshaler.
func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		ID:        t.id,
		Title:     t.Title,
		Artist:    t.Artist,
		Duration:  t.Duration,
		CreatedAt: t.createdAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It is used when reading cached
// snapshots back, so the identity and timestamp are restored as-is.
func (t *Track) UnmarshalJSON(data []byte) error {
	var v trackJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Track{
		id:        v.ID,
		Title:     v.Title,
		Artist:    v.Artist,
		Duration:  v.Duration,
		createdAt: v.CreatedAt,
	}
	return nil
}
