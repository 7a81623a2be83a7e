package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"tracklist/model"
)

const (
	playlistKey       = "playlist:%s"          // String: playlist JSON snapshot
	trackPlaylistsKey = "track:%s:playlists"   // Set: ids of cached playlists containing the track
	generationKey     = "playlists:generation" // String: counter bumped by every invalidation
)

// GetPlaylistKey returns the redis key of a cached playlist snapshot.
func GetPlaylistKey(playlistID string) string {
	return fmt.Sprintf(playlistKey, playlistID)
}

// GetTrackPlaylistsKey returns the redis key of the reverse index from a
// track to the cached playlists that contain it.
func GetTrackPlaylistsKey(trackID string) string {
	return fmt.Sprintf(trackPlaylistsKey, trackID)
}

// GetGenerationKey returns the redis key of the invalidation counter.
func GetGenerationKey() string {
	return generationKey
}

// setIfCurrent stores the snapshot only while the generation is still the
// one the reader saw before loading from the database.
//
// KEYS[1] generation, KEYS[2] snapshot, KEYS[3..] track reverse indexes
// ARGV[1] expected generation, ARGV[2] snapshot, ARGV[3] ttl ms, ARGV[4] playlist id
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
for i = 3, #KEYS do
	redis.call('SADD', KEYS[i], ARGV[4])
	redis.call('PEXPIRE', KEYS[i], ARGV[3])
end
return 1
`)

// PlaylistCache keeps read-only playlist snapshots in redis. Writers never go
// through it; they invalidate after persisting.
//
// Every invalidation bumps a generation counter. A reader takes the
// generation together with its cache miss and hands it back to Set, so a
// snapshot loaded before a concurrent write can never be stored after that
// write's invalidation.
type PlaylistCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPlaylistCache 创建歌单缓存
func NewPlaylistCache(client *redis.Client, ttl time.Duration) *PlaylistCache {
	return &PlaylistCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, or nil on a miss, along with the current
// generation to pass to Set.
func (c *PlaylistCache) Get(ctx context.Context, playlistID string) (*model.Playlist, int64, error) {
	if c.client == nil {
		return nil, 0, fmt.Errorf("Redis client not initialized")
	}

	vals, err := c.client.MGet(ctx, GetPlaylistKey(playlistID), generationKey).Result()
	if err != nil {
		return nil, 0, err
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}

	var p model.Playlist
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, gen, fmt.Errorf("failed to unmarshal cached playlist: %w", err)
	}
	return &p, gen, nil
}

func parseGeneration(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cache generation %q: %w", s, err)
	}
	return gen, nil
}

// Set stores the snapshot and records it in the reverse index of each of its
// tracks, unless an invalidation happened since gen was read. It reports
// whether the snapshot was stored.
func (c *PlaylistCache) Set(ctx context.Context, p *model.Playlist, gen int64) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal playlist: %w", err)
	}

	tracks := p.Tracks()
	keys := make([]string, 0, len(tracks)+2)
	keys = append(keys, generationKey, GetPlaylistKey(p.ID()))
	for i := range tracks {
		keys = append(keys, GetTrackPlaylistsKey(tracks[i].ID()))
	}

	stored, err := setIfCurrent.Run(ctx, c.client, keys,
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(), p.ID()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate drops the snapshots of the given playlists.
func (c *PlaylistCache) Invalidate(ctx context.Context, playlistIDs ...string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	keys := make([]string, 0, len(playlistIDs))
	for _, id := range playlistIDs {
		keys = append(keys, GetPlaylistKey(id))
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}

// InvalidateTrack drops every cached playlist that contains the track,
// together with the track's reverse index. The generation is bumped even when
// no playlist is indexed yet, which stops a fill that is still in flight.
func (c *PlaylistCache) InvalidateTrack(ctx context.Context, trackID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	indexKey := GetTrackPlaylistsKey(trackID)
	playlistIDs, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		for _, id := range playlistIDs {
			pipe.Del(ctx, GetPlaylistKey(id))
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	return err
}

// Nop is used when redis is disabled. Every read misses and nothing is
// stored.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.Playlist, int64, error) { return nil, 0, nil }
func (Nop) Set(context.Context, *model.Playlist, int64) (bool, error)   { return false, nil }
func (Nop) Invalidate(context.Context, ...string) error                 { return nil }
func (Nop) InvalidateTrack(context.Context, string) error               { return nil }
