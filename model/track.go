package model

// LovedTrack represents a loved/starred track with metadata
type LovedTrack struct {
	// ID is the track's identifier on the service it was read from. It is
	// never compared across services.
	ID         string
	Track      string
	Artist     string
	Album      string
	TrackMBID  string
	ArtistMBID string
	AlbumMBID  string
	ISRC       string
}
