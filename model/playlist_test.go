package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(id string, duration int) *Track {
	return RestoreTrack(id, "Title "+id, "Artist", duration, time.Time{})
}

func ids(p *Playlist) []string {
	out := make([]string, 0, p.TrackCount())
	for _, t := range p.Tracks() {
		out = append(out, t.ID())
	}
	return out
}

func seeded(trackIDs ...string) *Playlist {
	p := NewPlaylist("seeded", true)
	for _, id := range trackIDs {
		_ = p.AddTrack(track(id, 60))
	}
	return p
}

func intPtr(v int) *int { return &v }

func TestPlaylist_AddTrack(t *testing.T) {
	tests := []struct {
		name    string
		initial []string
		add     *Track
		want    []string
		wantErr error
	}{
		{name: "append to empty", add: track("a", 10), want: []string{"a"}},
		{name: "append after existing", initial: []string{"a"}, add: track("b", 10), want: []string{"a", "b"}},
		{name: "duplicate is ignored", initial: []string{"a", "b"}, add: track("a", 10), want: []string{"a", "b"}},
		{name: "nil track", initial: []string{"a"}, add: nil, want: []string{"a"}, wantErr: ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := seeded(tc.initial...)
			err := p.AddTrack(tc.add)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, ids(p))
		})
	}
}

func TestPlaylist_AddTrackIdempotent(t *testing.T) {
	p := NewPlaylist("p", false)
	a := track("a", 30)
	require.NoError(t, p.AddTrack(a))
	require.NoError(t, p.AddTrack(a))
	assert.Equal(t, 1, p.TrackCount())
	assert.Equal(t, 30, p.TotalDuration())
}

func TestPlaylist_InsertTrackAt(t *testing.T) {
	tests := []struct {
		name     string
		initial  []string
		add      *Track
		position int
		want     []string
		wantErr  error
	}{
		{name: "insert at head", initial: []string{"a", "b"}, add: track("x", 1), position: 0, want: []string{"x", "a", "b"}},
		{name: "insert in middle", initial: []string{"a", "b"}, add: track("x", 1), position: 1, want: []string{"a", "x", "b"}},
		{name: "insert at end", initial: []string{"a", "b"}, add: track("x", 1), position: 2, want: []string{"a", "b", "x"}},
		{name: "insert into empty at zero", add: track("x", 1), position: 0, want: []string{"x"}},
		{name: "duplicate is not moved", initial: []string{"a", "b", "c"}, add: track("c", 1), position: 0, want: []string{"a", "b", "c"}},
		{name: "negative position", initial: []string{"a"}, add: track("x", 1), position: -1, want: []string{"a"}, wantErr: ErrInvalidPosition},
		{name: "position past end", initial: []string{"a"}, add: track("x", 1), position: 2, want: []string{"a"}, wantErr: ErrInvalidPosition},
		{name: "position one on empty", add: track("x", 1), position: 1, want: []string{}, wantErr: ErrInvalidPosition},
		{name: "nil track", initial: []string{"a"}, add: nil, position: 0, want: []string{"a"}, wantErr: ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := seeded(tc.initial...)
			err := p.InsertTrackAt(tc.add, tc.position)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, ids(p))
		})
	}
}

func TestPlaylist_InvalidPositionMessage(t *testing.T) {
	p := NewPlaylist("empty", true)

	err := p.InsertTrackAt(track("a", 10), 1)

	var posErr *InvalidPositionError
	require.True(t, errors.As(err, &posErr))
	assert.Equal(t, 1, posErr.Position)
	assert.Equal(t, 0, posErr.Length)
	assert.Equal(t, "Invalid track position: 1. Position must be between 0 and 0", err.Error())
	assert.Zero(t, p.TrackCount())
}

func TestPlaylist_InsertTracks(t *testing.T) {
	a, b, c := track("a", 1), track("b", 1), track("c", 1)

	tests := []struct {
		name     string
		initial  []string
		add      []*Track
		position *int
		want     []string
		wantErr  error
	}{
		{name: "append keeps input order", initial: []string{"x"}, add: []*Track{a, b, c}, want: []string{"x", "a", "b", "c"}},
		{name: "append skips existing", initial: []string{"a"}, add: []*Track{a, b}, want: []string{"a", "b"}},
		{name: "append skips repeats in input", add: []*Track{a, b, a}, want: []string{"a", "b"}},
		{name: "append skips nil entries", add: []*Track{nil, a, nil}, want: []string{"a"}},
		{name: "positioned block at head", initial: []string{"x", "y"}, add: []*Track{a, b}, position: intPtr(0), want: []string{"a", "b", "x", "y"}},
		{name: "positioned block in middle", initial: []string{"x", "y"}, add: []*Track{a, b}, position: intPtr(1), want: []string{"x", "a", "b", "y"}},
		{name: "positioned block at end", initial: []string{"x", "y"}, add: []*Track{a, b}, position: intPtr(2), want: []string{"x", "y", "a", "b"}},
		{name: "positioned skips existing", initial: []string{"a", "y"}, add: []*Track{a, b}, position: intPtr(0), want: []string{"b", "a", "y"}},
		{name: "positioned skips repeats in input", add: []*Track{a, b, a, c}, position: intPtr(0), want: []string{"a", "b", "c"}},
		{name: "positioned skips nil entries", initial: []string{"x"}, add: []*Track{nil, a}, position: intPtr(1), want: []string{"x", "a"}},
		{name: "positioned all existing is no-op", initial: []string{"a", "b"}, add: []*Track{b, a}, position: intPtr(1), want: []string{"a", "b"}},
		{name: "position past end", initial: []string{"x"}, add: []*Track{a}, position: intPtr(2), want: []string{"x"}, wantErr: ErrInvalidPosition},
		{name: "negative position", initial: []string{"x"}, add: []*Track{a}, position: intPtr(-1), want: []string{"x"}, wantErr: ErrInvalidPosition},
		{name: "empty list", initial: []string{"x"}, add: []*Track{}, want: []string{"x"}, wantErr: ErrInvalidArgument},
		{name: "nil list", initial: []string{"x"}, add: nil, position: intPtr(0), want: []string{"x"}, wantErr: ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := seeded(tc.initial...)
			err := p.InsertTracks(tc.add, tc.position)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, ids(p))
		})
	}
}

func TestPlaylist_RemoveTrack(t *testing.T) {
	p := seeded("a", "b", "c")

	assert.True(t, p.RemoveTrack(track("b", 0)))
	assert.Equal(t, []string{"a", "c"}, ids(p))

	assert.False(t, p.RemoveTrack(track("b", 0)))
	assert.False(t, p.RemoveTrack(nil))
	assert.False(t, p.RemoveTrackByID("missing"))

	assert.True(t, p.RemoveTrackByID("a"))
	assert.Equal(t, []string{"c"}, ids(p))
	assert.False(t, p.Contains("a"))
	assert.True(t, p.Contains("c"))
}

func TestPlaylist_TracksReturnsCopy(t *testing.T) {
	p := seeded("a", "b")

	got := p.Tracks()
	got[0].Title = "changed"
	got = append(got, *track("c", 1))
	got[1] = *track("z", 1)

	assert.Equal(t, []string{"a", "b"}, ids(p))
	assert.Equal(t, "Title a", p.Tracks()[0].Title)
	assert.Len(t, got, 3)
}

func TestPlaylist_TracksNeverNil(t *testing.T) {
	assert.NotNil(t, NewPlaylist("p", true).Tracks())
	assert.NotNil(t, RestorePlaylist("id", "p", true, time.Now(), 0, nil).Tracks())
}

func TestPlaylist_TotalDuration(t *testing.T) {
	p := NewPlaylist("p", true)
	assert.Equal(t, 0, p.TotalDuration())

	require.NoError(t, p.AddTrack(track("a", 180)))
	require.NoError(t, p.AddTrack(track("b", 240)))
	require.NoError(t, p.AddTrack(track("a", 180)))

	assert.Equal(t, 420, p.TotalDuration())
	assert.Equal(t, 2, p.TrackCount())
}

// The insertion sequence from the reference scenario: A appended, B at 0,
// C and D as a block at 1.
func TestPlaylist_EndToEndOrdering(t *testing.T) {
	a, b, c, d := track("A", 100), track("B", 200), track("C", 300), track("D", 400)
	p := NewPlaylist("mix", true)

	require.NoError(t, p.AddTrack(a))
	require.NoError(t, p.InsertTrackAt(b, 0))
	require.NoError(t, p.InsertTracks([]*Track{c, d}, intPtr(1)))

	assert.Equal(t, []string{"B", "C", "D", "A"}, ids(p))
	assert.Equal(t, 4, p.TrackCount())
	assert.Equal(t, 1000, p.TotalDuration())
}

func TestPlaylist_RestoreDropsRepeats(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := RestorePlaylist("pl", "restored", false, created, 7,
		[]Track{*track("a", 1), *track("b", 1), *track("a", 1)})

	assert.Equal(t, "pl", p.ID())
	assert.Equal(t, "restored", p.Name())
	assert.False(t, p.IsPublic())
	assert.Equal(t, created, p.CreatedAt())
	assert.Equal(t, int64(7), p.Version())
	assert.Equal(t, []string{"a", "b"}, ids(p))
}

func TestPlaylist_Stamp(t *testing.T) {
	p := NewPlaylist("p", true)
	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	p.Stamp(first)
	p.Stamp(first.Add(time.Hour))

	assert.Equal(t, first, p.CreatedAt())
}

func TestPlaylist_JSONRoundTrip(t *testing.T) {
	p := seeded("a", "b")
	p.SetVersion(3)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(2), raw["trackCount"])
	assert.Equal(t, float64(120), raw["totalDuration"])
	assert.Equal(t, true, raw["isPublic"])

	var back Playlist
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.ID(), back.ID())
	assert.Equal(t, int64(3), back.Version())
	assert.Equal(t, ids(p), ids(&back))
}

func TestPlaylist_EmptyMarshalsTracksAsArray(t *testing.T) {
	data, err := json.Marshal(NewPlaylist("empty", false))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tracks":[]`)
}

// pool builds a fixed set of tracks addressed by small integers so quick
// can generate index lists.
func pool(n int) []*Track {
	out := make([]*Track, n)
	for i := range out {
		out[i] = track(fmt.Sprintf("t%d", i), i+1)
	}
	return out
}

func pick(tracks []*Track, idx []uint8) []*Track {
	out := make([]*Track, 0, len(idx))
	for _, i := range idx {
		out = append(out, tracks[int(i)%len(tracks)])
	}
	return out
}

func unique(p *Playlist) bool {
	seen := make(map[string]bool)
	for _, id := range ids(p) {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func TestPlaylist_PropertyNoDuplicates(t *testing.T) {
	tracks := pool(8)
	f := func(appends []uint8, batch []uint8, pos uint8) bool {
		p := NewPlaylist("q", true)
		for _, t := range pick(tracks, appends) {
			_ = p.AddTrack(t)
		}
		position := int(pos) % (p.TrackCount() + 1)
		if len(batch) > 0 {
			if err := p.InsertTracks(pick(tracks, batch), &position); err != nil {
				return false
			}
		}
		return unique(p)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestPlaylist_PropertyPositionBounds(t *testing.T) {
	tracks := pool(4)
	f := func(initial []uint8, pos int8) bool {
		p := NewPlaylist("q", true)
		for _, t := range pick(tracks, initial) {
			_ = p.AddTrack(t)
		}
		before := ids(p)
		err := p.InsertTrackAt(track("new", 1), int(pos))
		valid := int(pos) >= 0 && int(pos) <= len(before)
		if !valid {
			return errors.Is(err, ErrInvalidPosition) && len(ids(p)) == len(before)
		}
		return err == nil && ids(p)[int(pos)] == "new" && p.TrackCount() == len(before)+1
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestPlaylist_PropertyBulkInsertPreservesOrder(t *testing.T) {
	tracks := pool(10)
	f := func(initialN uint8, batch []uint8, pos uint8) bool {
		p := NewPlaylist("q", true)
		n := int(initialN) % 4
		for _, t := range tracks[:n] {
			_ = p.AddTrack(t)
		}
		if len(batch) == 0 {
			return true
		}
		position := int(pos) % (n + 1)
		input := pick(tracks, batch)

		var expected []string
		seen := map[string]bool{}
		for _, t := range input {
			if p.Contains(t.ID()) || seen[t.ID()] {
				continue
			}
			seen[t.ID()] = true
			expected = append(expected, t.ID())
		}

		if err := p.InsertTracks(input, &position); err != nil {
			return false
		}
		got := ids(p)[position : position+len(expected)]
		for i := range expected {
			if got[i] != expected[i] {
				return false
			}
		}
		return p.TrackCount() == n+len(expected)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestPlaylist_PropertyDurationAdditive(t *testing.T) {
	tracks := pool(6)
	f := func(idx []uint8) bool {
		p := NewPlaylist("q", true)
		want := 0
		for _, t := range pick(tracks, idx) {
			if !p.Contains(t.ID()) {
				want += t.Duration
			}
			_ = p.AddTrack(t)
		}
		return p.TotalDuration() == want
	}
	require.NoError(t, quick.Check(f, nil))
}
