package matcher

import (
	"testing"

	"github.com/csmith/likesync/model"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeForMatching(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase conversion",
			input:    "Artist Name",
			expected: "artist name",
		},
		{
			name:     "remove parentheses",
			input:    "Song (Remastered)",
			expected: "song",
		},
		{
			name:     "remove feat",
			input:    "Song feat. Other Artist",
			expected: "song",
		},
		{
			name:     "remove ft",
			input:    "Song ft. Other Artist",
			expected: "song",
		},
		{
			name:     "remove featuring",
			input:    "Song featuring Other Artist",
			expected: "song",
		},
		{
			name:     "remove leading the",
			input:    "The Beatles",
			expected: "beatles",
		},
		{
			name:     "normalize whitespace",
			input:    "Song   With    Spaces",
			expected: "song with spaces",
		},
		{
			name:     "complex example",
			input:    "The Song (Live) feat. Artist",
			expected: "song",
		},
		{
			name:     "transliterate diacritics",
			input:    "Beyoncé",
			expected: "beyonce",
		},
		{
			name:     "remove brackets",
			input:    "Song [Live at Wembley]",
			expected: "song",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeForMatching(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		trackA   model.LovedTrack
		trackB   model.LovedTrack
		expected Score
	}{
		{
			name: "track MBID match",
			trackA: model.LovedTrack{
				Track:     "Song",
				Artist:    "Artist",
				TrackMBID: "track-mbid-123",
			},
			trackB: model.LovedTrack{
				Track:     "Different Song",
				Artist:    "Different Artist",
				TrackMBID: "track-mbid-123",
			},
			expected: TrackMBID,
		},
		{
			name: "album and artist MBID match",
			trackA: model.LovedTrack{
				Track:      "Song",
				Artist:     "Artist",
				Album:      "Album",
				AlbumMBID:  "album-mbid-123",
				ArtistMBID: "artist-mbid-123",
			},
			trackB: model.LovedTrack{
				Track:      "Song",
				Artist:     "Artist",
				Album:      "Album",
				AlbumMBID:  "album-mbid-123",
				ArtistMBID: "artist-mbid-123",
			},
			expected: AlbumArtistMBID,
		},
		{
			name: "artist MBID and track name match",
			trackA: model.LovedTrack{
				Track:      "Song Name",
				Artist:     "Artist",
				ArtistMBID: "artist-mbid-123",
			},
			trackB: model.LovedTrack{
				Track:      "Song Name",
				Artist:     "Different Artist",
				ArtistMBID: "artist-mbid-123",
			},
			expected: ArtistMBID,
		},
		{
			name: "exact artist and track match",
			trackA: model.LovedTrack{
				Track:  "Song Name",
				Artist: "Artist Name",
			},
			trackB: model.LovedTrack{
				Track:  "Song Name",
				Artist: "Artist Name",
			},
			expected: ExactMatch,
		},
		{
			name: "exact match case insensitive",
			trackA: model.LovedTrack{
				Track:  "Song Name",
				Artist: "Artist Name",
			},
			trackB: model.LovedTrack{
				Track:  "SONG NAME",
				Artist: "ARTIST NAME",
			},
			expected: ExactMatch,
		},
		{
			name: "fuzzy match with parentheses",
			trackA: model.LovedTrack{
				Track:  "Song",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "Song (Remastered)",
				Artist: "Artist",
			},
			expected: FuzzyMatch,
		},
		{
			name: "fuzzy match with featuring",
			trackA: model.LovedTrack{
				Track:  "Song",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "Song feat. Other",
				Artist: "Artist",
			},
			expected: FuzzyMatch,
		},
		{
			name: "fuzzy match with typo",
			trackA: model.LovedTrack{
				Track:  "Song Name",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "Song Naem",
				Artist: "Artist",
			},
			expected: FuzzyMatch,
		},
		{
			name: "no match - different tracks",
			trackA: model.LovedTrack{
				Track:  "Song One",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "Completely Different Song",
				Artist: "Artist",
			},
			expected: NoMatch,
		},
		{
			name: "no match - short similar titles",
			trackA: model.LovedTrack{
				Track:  "Hello",
				Artist: "Adele",
			},
			trackB: model.LovedTrack{
				Track:  "Halo",
				Artist: "Adele",
			},
			expected: NoMatch,
		},
		{
			name: "no match - three letter titles",
			trackA: model.LovedTrack{
				Track:  "One",
				Artist: "U2",
			},
			trackB: model.LovedTrack{
				Track:  "Two",
				Artist: "U2",
			},
			expected: NoMatch,
		},
		{
			name: "no match - titles only in parentheses",
			trackA: model.LovedTrack{
				Track:  "(Intro)",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "(Outro)",
				Artist: "Artist",
			},
			expected: NoMatch,
		},
		{
			name: "no match - numbered songs",
			trackA: model.LovedTrack{
				Track:  "Song One",
				Artist: "Artist",
			},
			trackB: model.LovedTrack{
				Track:  "Song Two",
				Artist: "Artist",
			},
			expected: NoMatch,
		},
		{
			name: "fuzzy match with artist typo",
			trackA: model.LovedTrack{
				Track:  "Crazy in Love",
				Artist: "Beyonce",
			},
			trackB: model.LovedTrack{
				Track:  "Crazy In Love",
				Artist: "Beyonse",
			},
			expected: FuzzyMatch,
		},
		{
			name: "no match - empty fields",
			trackA: model.LovedTrack{
				Track:  "",
				Artist: "",
			},
			trackB: model.LovedTrack{
				Track:  "Song",
				Artist: "Artist",
			},
			expected: NoMatch,
		},
		{
			name: "track MBID takes precedence over exact match",
			trackA: model.LovedTrack{
				Track:     "Song",
				Artist:    "Artist",
				TrackMBID: "mbid-123",
			},
			trackB: model.LovedTrack{
				Track:     "Song",
				Artist:    "Artist",
				TrackMBID: "mbid-123",
			},
			expected: TrackMBID,
		},
		{
			name: "ISRC match",
			trackA: model.LovedTrack{
				Track:  "Song",
				Artist: "Artist",
				ISRC:   "GBAYE0601498",
			},
			trackB: model.LovedTrack{
				Track:  "Song - 2009 Remaster",
				Artist: "Artist",
				ISRC:   "gbaye0601498",
			},
			expected: ISRC,
		},
		{
			name: "exact match ignores whitespace",
			trackA: model.LovedTrack{
				Track:  "  Song   Name ",
				Artist: "Artist\tName",
			},
			trackB: model.LovedTrack{
				Track:  "song name",
				Artist: "artist name",
			},
			expected: ExactMatch,
		},
		{
			name: "fuzzy match with diacritics",
			trackA: model.LovedTrack{
				Track:  "Déjà Vu",
				Artist: "Beyoncé",
			},
			trackB: model.LovedTrack{
				Track:  "Deja Vu",
				Artist: "Beyonce",
			},
			expected: FuzzyMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Match(tt.trackA, tt.trackB))
			assert.Equal(t, tt.expected, Match(tt.trackB, tt.trackA), "match should be symmetric")
		})
	}
}
