package matcher

import (
	"fmt"
	"strings"

	"github.com/csmith/likesync/model"
)

// Strategy decides which tracks in two lists refer to the same song
type Strategy interface {
	// Segment splits desired and actual into the desired tracks that have a
	// counterpart in actual (Matched), those that don't (Missing) and the actual
	// tracks with no counterpart in desired (Extra). Missing and Extra contain
	// at most one track per song. Tracks with no artist or title that match
	// nothing go to Unnamed or UnnamedExtra instead.
	Segment(desired, actual []model.LovedTrack) SegmentResult
}

var (
	// Exact matches tracks with identical artists and titles, ignoring case and
	// whitespace.
	Exact Strategy = KeyFunc(ExactKey)

	// Normalized matches tracks whose NormalizedKey is equal.
	Normalized Strategy = KeyFunc(NormalizedKey)

	// Fuzzy pairs tracks by their best Match score.
	Fuzzy Strategy = fuzzyStrategy{}
)

// Strategies maps names accepted by ParseStrategy to their strategy
var Strategies = map[string]Strategy{
	"exact":      Exact,
	"normalized": Normalized,
	"fuzzy":      Fuzzy,
}

// ParseStrategy returns the named strategy
func ParseStrategy(name string) (Strategy, error) {
	s, ok := Strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown matching strategy: %q", name)
	}
	return s, nil
}

// KeyFunc derives a matching key from a track; tracks with equal non-empty keys
// are the same song. Tracks sharing a recording MBID or ISRC are also the same
// song, whatever their keys. A track with an empty key and no shared identifier
// matches nothing and is reported as unnamed.
type KeyFunc func(model.LovedTrack) string

// Segment implements Strategy using key and identifier equality
func (k KeyFunc) Segment(desired, actual []model.LovedTrack) SegmentResult {
	result := newSegmentResult()

	desiredKeys, desiredIDs := k.index(desired)
	actualKeys, actualIDs := k.index(actual)

	missing := make(map[string]bool)
	for _, track := range desired {
		key := k(track)
		switch {
		case actualKeys[key] || actualIDs.contains(track):
			result.Matched = append(result.Matched, track)
		case key == "":
			result.Unnamed = append(result.Unnamed, track)
		case !missing[key]:
			missing[key] = true
			result.Missing = append(result.Missing, track)
		}
	}

	extra := make(map[string]bool)
	for _, track := range actual {
		key := k(track)
		switch {
		case desiredKeys[key] || desiredIDs.contains(track):
		case key == "":
			result.UnnamedExtra = append(result.UnnamedExtra, track)
		case !extra[key]:
			extra[key] = true
			result.Extra = append(result.Extra, track)
		}
	}

	return result
}

func (k KeyFunc) index(tracks []model.LovedTrack) (map[string]bool, identifierSet) {
	keys := make(map[string]bool, len(tracks))
	ids := make(identifierSet)
	for _, track := range tracks {
		if key := k(track); key != "" {
			keys[key] = true
		}
		for _, id := range identifiers(track) {
			ids[id] = true
		}
	}
	return keys, ids
}

type identifierSet map[string]bool

func (s identifierSet) contains(track model.LovedTrack) bool {
	for _, id := range identifiers(track) {
		if s[id] {
			return true
		}
	}
	return false
}

// identifiers returns the cross-service identifiers of a track
func identifiers(track model.LovedTrack) []string {
	var ids []string
	if track.TrackMBID != "" {
		ids = append(ids, "mbid:"+track.TrackMBID)
	}
	if track.ISRC != "" {
		ids = append(ids, "isrc:"+strings.ToUpper(track.ISRC))
	}
	return ids
}
