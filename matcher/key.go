package matcher

import "github.com/csmith/likesync/model"

const keySeparator = "\x00"

// ExactKey returns a key identifying a track by its artist and title, ignoring
// case and whitespace differences. Tracks without an artist or title have no
// key and ExactKey returns "".
func ExactKey(t model.LovedTrack) string {
	if !hasNames(t) {
		return ""
	}
	return fold(t.Artist) + keySeparator + fold(t.Track)
}

// NormalizedKey is like ExactKey but additionally transliterates to ASCII and
// strips decorations such as "(Remastered)", featured artists and a leading
// "The", so that differently-labelled releases of a song share a key.
func NormalizedKey(t model.LovedTrack) string {
	if !hasNames(t) {
		return ""
	}

	artist := normalizeForMatching(t.Artist)
	if artist == "" {
		artist = fold(t.Artist)
	}

	title := normalizeForMatching(t.Track)
	if title == "" {
		title = fold(t.Track)
	}

	return artist + keySeparator + title
}
