package matcher

import (
	"testing"

	"github.com/csmith/likesync/model"
	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name    string
		desired []model.LovedTrack
		actual  []model.LovedTrack
		matched []model.LovedTrack
		missing []model.LovedTrack
		extra   []model.LovedTrack
	}{
		{
			name:    "both empty",
			matched: []model.LovedTrack{},
			missing: []model.LovedTrack{},
			extra:   []model.LovedTrack{},
		},
		{
			name:    "only desired",
			desired: []model.LovedTrack{{Track: "Song X", Artist: "Artist Y"}},
			matched: []model.LovedTrack{},
			missing: []model.LovedTrack{{Track: "Song X", Artist: "Artist Y"}},
			extra:   []model.LovedTrack{},
		},
		{
			name:    "disjoint",
			desired: []model.LovedTrack{{Track: "A", Artist: "Artist"}},
			actual:  []model.LovedTrack{{Track: "B", Artist: "Other"}},
			matched: []model.LovedTrack{},
			missing: []model.LovedTrack{{Track: "A", Artist: "Artist"}},
			extra:   []model.LovedTrack{{Track: "B", Artist: "Other"}},
		},
		{
			name: "prefers MBID pairing over name pairing",
			desired: []model.LovedTrack{
				{Track: "Song", Artist: "Artist", TrackMBID: "mbid-1"},
				{Track: "Song", Artist: "Artist", TrackMBID: "mbid-2"},
			},
			actual: []model.LovedTrack{
				{Track: "Song", Artist: "Artist", TrackMBID: "mbid-2"},
			},
			matched: []model.LovedTrack{
				{Track: "Song", Artist: "Artist", TrackMBID: "mbid-1"},
				{Track: "Song", Artist: "Artist", TrackMBID: "mbid-2"},
			},
			missing: []model.LovedTrack{},
			extra:   []model.LovedTrack{},
		},
		{
			name: "duplicates are reported once",
			desired: []model.LovedTrack{
				{Track: "Song", Artist: "Artist"},
				{Track: "SONG", Artist: "artist"},
			},
			actual: []model.LovedTrack{
				{Track: "Other", Artist: "Band"},
				{Track: "other", Artist: "band"},
			},
			matched: []model.LovedTrack{},
			missing: []model.LovedTrack{{Track: "Song", Artist: "Artist"}},
			extra:   []model.LovedTrack{{Track: "Other", Artist: "Band"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Segment(tt.desired, tt.actual)
			assert.Equal(t, tt.matched, result.Matched)
			assert.Equal(t, tt.missing, result.Missing)
			assert.Equal(t, tt.extra, result.Extra)
		})
	}
}
