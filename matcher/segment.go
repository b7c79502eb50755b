package matcher

import (
	"sort"

	"github.com/csmith/likesync/model"
)

type SegmentResult struct {
	Matched []model.LovedTrack
	Missing []model.LovedTrack
	Extra   []model.LovedTrack

	// Unnamed and UnnamedExtra hold the desired and actual tracks that lack an
	// artist or title and matched nothing by identifier. Copying them can't be
	// verified on a later run, so they belong in neither Missing nor Extra.
	Unnamed      []model.LovedTrack
	UnnamedExtra []model.LovedTrack
}

func newSegmentResult() SegmentResult {
	return SegmentResult{
		Matched:      make([]model.LovedTrack, 0),
		Missing:      make([]model.LovedTrack, 0),
		Extra:        make([]model.LovedTrack, 0),
		Unnamed:      make([]model.LovedTrack, 0),
		UnnamedExtra: make([]model.LovedTrack, 0),
	}
}

type matchCandidate struct {
	desiredIndex int
	actualIndex  int
	score        Score
}

type fuzzyStrategy struct{}

func (fuzzyStrategy) Segment(desired, actual []model.LovedTrack) SegmentResult {
	return Segment(desired, actual)
}

// Segment compares desired tracks against actual tracks
func Segment(desired []model.LovedTrack, actual []model.LovedTrack) SegmentResult {
	result := newSegmentResult()

	// Find all possible matches
	var candidates []matchCandidate
	for i, desiredTrack := range desired {
		for j, actualTrack := range actual {
			score := Match(desiredTrack, actualTrack)
			if score != NoMatch {
				candidates = append(candidates, matchCandidate{
					desiredIndex: i,
					actualIndex:  j,
					score:        score,
				})
			}
		}
	}

	// Sort by score descending
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	// Greedy matching: pick best scores first
	matchedDesired := make(map[int]bool)
	matchedActual := make(map[int]bool)

	for _, candidate := range candidates {
		if !matchedDesired[candidate.desiredIndex] && !matchedActual[candidate.actualIndex] {
			matchedDesired[candidate.desiredIndex] = true
			matchedActual[candidate.actualIndex] = true
		}
	}

	// A duplicate of an already-matched track counts as matched
	for i := range desired {
		if !matchedDesired[i] && duplicates(desired, i, matchedDesired) {
			matchedDesired[i] = true
		}
	}

	// Populate results
	for i, desiredTrack := range desired {
		switch {
		case matchedDesired[i]:
			result.Matched = append(result.Matched, desiredTrack)
		case !hasNames(desiredTrack):
			result.Unnamed = append(result.Unnamed, desiredTrack)
		case !repeated(result.Missing, desiredTrack):
			result.Missing = append(result.Missing, desiredTrack)
		}
	}

	for j, actualTrack := range actual {
		switch {
		case matchedActual[j] || duplicates(actual, j, matchedActual):
		case !hasNames(actualTrack):
			result.UnnamedExtra = append(result.UnnamedExtra, actualTrack)
		case !repeated(result.Extra, actualTrack):
			result.Extra = append(result.Extra, actualTrack)
		}
	}

	return result
}

// duplicates reports whether tracks[i] is the same song as a track already
// marked in matched
func duplicates(tracks []model.LovedTrack, i int, matched map[int]bool) bool {
	for j := range tracks {
		if j != i && matched[j] && Match(tracks[i], tracks[j]) >= ExactMatch {
			return true
		}
	}
	return false
}

func repeated(tracks []model.LovedTrack, track model.LovedTrack) bool {
	for i := range tracks {
		if Match(tracks[i], track) >= ExactMatch {
			return true
		}
	}
	return false
}
