package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/csmith/likesync/model"
	"github.com/gosimple/unidecode"
)

// Score represents the quality of a match between two tracks
type Score int

const (
	NoMatch         Score = 0
	FuzzyMatch      Score = 1
	ExactMatch      Score = 2
	ArtistMBID      Score = 3
	AlbumArtistMBID Score = 4
	ISRC            Score = 5
	TrackMBID       Score = 6
)

const maxLevenshteinDistance = 3

// Match compares two LovedTracks and returns a score indicating match quality.
// Match is symmetric: Match(a, b) == Match(b, a).
func Match(a, b model.LovedTrack) Score {
	// Best match: track MBID
	if a.TrackMBID != "" && b.TrackMBID != "" && a.TrackMBID == b.TrackMBID {
		return TrackMBID
	}

	if a.ISRC != "" && b.ISRC != "" && strings.EqualFold(a.ISRC, b.ISRC) {
		return ISRC
	}

	// Album + Artist MBID match
	if a.AlbumMBID != "" && b.AlbumMBID != "" && a.AlbumMBID == b.AlbumMBID &&
		a.ArtistMBID != "" && b.ArtistMBID != "" && a.ArtistMBID == b.ArtistMBID {
		return AlbumArtistMBID
	}

	// Artist MBID + track name match
	if a.ArtistMBID != "" && b.ArtistMBID != "" && a.ArtistMBID == b.ArtistMBID &&
		a.Track != "" && b.Track != "" && fold(a.Track) == fold(b.Track) {
		return ArtistMBID
	}

	if !hasNames(a) || !hasNames(b) {
		return NoMatch
	}

	// Exact artist and track name match
	if fold(a.Artist) == fold(b.Artist) && fold(a.Track) == fold(b.Track) {
		return ExactMatch
	}

	// Fuzzy match on artist + track name, each compared separately
	if similar(matchingForm(a.Artist), matchingForm(b.Artist)) &&
		similar(matchingForm(a.Track), matchingForm(b.Track)) {
		return FuzzyMatch
	}

	return NoMatch
}

func hasNames(t model.LovedTrack) bool {
	return strings.TrimSpace(t.Artist) != "" && strings.TrimSpace(t.Track) != ""
}

// fold lowercases s and collapses all runs of whitespace to a single space
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// similar reports whether a and b are within a small edit distance of each
// other. Short names get less leeway: a quarter of the shorter length, capped
// at maxLevenshteinDistance, so "Hello" and "Halo" stay different songs.
func similar(a, b string) bool {
	allowed := min(utf8.RuneCountInString(a), utf8.RuneCountInString(b)) / 4
	allowed = min(allowed, maxLevenshteinDistance)
	return levenshtein.ComputeDistance(a, b) <= allowed
}

// matchingForm normalizes s for fuzzy comparison. Names that normalize to
// nothing, like "(Intro)", are only folded.
func matchingForm(s string) string {
	if n := normalizeForMatching(s); n != "" {
		return n
	}
	return fold(s)
}

func normalizeForMatching(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))

	// Remove anything in parentheses or brackets
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		for {
			start := strings.Index(s, pair[0])
			if start == -1 {
				break
			}
			end := strings.Index(s[start:], pair[1])
			if end == -1 {
				break
			}
			s = s[:start] + " " + s[start+end+1:]
		}
	}

	// Remove anything after feat/ft/featuring
	for _, sep := range []string{" feat.", " feat ", " ft.", " ft ", " featuring "} {
		if idx := strings.Index(s, sep); idx != -1 {
			s = s[:idx]
		}
	}

	// Clean up whitespace
	s = strings.Join(strings.Fields(s), " ")

	// Remove "the " from the start
	s = strings.TrimPrefix(s, "the ")

	return s
}
