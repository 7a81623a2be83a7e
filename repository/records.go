package repository

import (
	"time"

	"tracklist/model"
)

// trackRecord is the row shape of the tracks table.
type trackRecord struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Title     string    `gorm:"type:varchar(100);not null"`
	Artist    string    `gorm:"type:varchar(100);not null"`
	Duration  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (trackRecord) TableName() string { return "tracks" }

func newTrackRecord(t *model.Track) *trackRecord {
	return &trackRecord{
		ID:        t.ID(),
		Title:     t.Title,
		Artist:    t.Artist,
		Duration:  t.Duration,
		CreatedAt: t.CreatedAt(),
	}
}

func (r *trackRecord) toModel() *model.Track {
	return model.RestoreTrack(r.ID, r.Title, r.Artist, r.Duration, r.CreatedAt)
}

// playlistRecord is the row shape of the playlists table. Version is bumped
// on every write and checked on Save.
type playlistRecord struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Name      string    `gorm:"type:varchar(150);not null"`
	IsPublic  bool      `gorm:"not null;default:false"`
	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (playlistRecord) TableName() string { return "playlists" }

// playlistTrackRecord links a playlist to a track at a position. The
// composite key keeps a track from appearing twice in one playlist.
type playlistTrackRecord struct {
	PlaylistID string `gorm:"primaryKey;type:varchar(36)"`
	TrackID    string `gorm:"primaryKey;type:varchar(36);index"`
	Position   int    `gorm:"not null"`
}

func (playlistTrackRecord) TableName() string { return "playlist_tracks" }

// Models returns the GORM models to migrate.
func Models() []interface{} {
	return []interface{}{&trackRecord{}, &playlistRecord{}, &playlistTrackRecord{}}
}

// now returns the creation timestamp used by every repository. It is
// truncated to milliseconds so that the value handed back on create matches
// what MySQL DATETIME(3) returns on the next read.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
