package sources

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/csmith/likesync/matcher"
	"github.com/csmith/likesync/model"
	"github.com/supersonic-app/go-subsonic/subsonic"
)

// Subsonic is a service that reads and stars songs on a Subsonic server
type Subsonic struct {
	BaseURL    string
	Username   string
	Password   string
	ClientName string

	mu          sync.Mutex
	client      *subsonic.Client
	artistMBIDs map[string]string
	albumMBIDs  map[string]string
	allSongs    []*subsonic.Child
}

// LovedTracks retrieves starred tracks from the Subsonic server.
// The server returns all starred songs in one response.
func (s *Subsonic) LovedTracks(ctx context.Context) iter.Seq2[model.LovedTrack, error] {
	return func(yield func(model.LovedTrack, error) bool) {
		tracks, err := s.starredTracks(ctx)
		if err != nil {
			yield(model.LovedTrack{}, err)
			return
		}

		for _, track := range tracks {
			if !yield(track, nil) {
				return
			}
		}
	}
}

func (s *Subsonic) starredTracks(ctx context.Context) ([]model.LovedTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	s.resetLibrary()

	slog.Debug("Retrieving starred tracks", "service", "subsonic")

	starred, err := client.GetStarred2(nil)
	if err != nil {
		return nil, fmt.Errorf("subsonic starred tracks: %w", classifySubsonic(err))
	}
	if starred == nil {
		starred = &subsonic.Starred2{}
	}

	slog.Debug("Retrieved starred tracks", "count", len(starred.Song), "service", "subsonic")

	// Get artist MBIDs
	artistMBIDs, err := s.getArtistMBIDs(client)
	if err != nil {
		return nil, err
	}

	// Get album MBIDs
	albumMBIDs, err := s.getAlbumMBIDs(client)
	if err != nil {
		return nil, err
	}

	return s.childToLovedTrack(starred.Song, artistMBIDs, albumMBIDs), nil
}

// Love stars a track on the Subsonic server. Starring an already-starred song
// is a no-op on the server.
func (s *Subsonic) Love(ctx context.Context, track model.LovedTrack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	song, err := s.findSong(track)
	if err != nil {
		return err
	}

	client, err := s.getClient()
	if err != nil {
		return err
	}

	slog.Debug("Starring song", "id", song.ID, "artist", song.Artist, "title", song.Title, "service", "subsonic")
	if err := client.Star(subsonic.StarParameters{SongIDs: []string{song.ID}}); err != nil {
		return fmt.Errorf("subsonic star %s: %w", song.ID, classifySubsonic(err))
	}

	return nil
}

// getClient lazily connects to the Subsonic server
func (s *Subsonic) getClient() (*subsonic.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client := &subsonic.Client{
		Client:     http.DefaultClient,
		BaseUrl:    s.BaseURL,
		User:       s.Username,
		ClientName: s.ClientName,
	}

	if s.Password != "" {
		if err := client.Authenticate(s.Password); err != nil {
			return nil, classifyLogin("subsonic", err)
		}
	}

	s.client = client
	return s.client, nil
}

// resetLibrary forgets the cached library, so that each listing of starred
// tracks starts a run against the server's current contents
func (s *Subsonic) resetLibrary() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artistMBIDs = nil
	s.albumMBIDs = nil
	s.allSongs = nil
}

// getArtistMBIDs retrieves all artist MBIDs from the Subsonic server
func (s *Subsonic) getArtistMBIDs(client *subsonic.Client) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.artistMBIDs != nil {
		return s.artistMBIDs, nil
	}

	slog.Debug("Retrieving artist MBIDs", "service", "subsonic")

	artists, err := client.GetArtists(nil)
	if err != nil {
		return nil, fmt.Errorf("subsonic artists: %w", classifySubsonic(err))
	}

	mbids := make(map[string]string)
	if artists == nil {
		artists = &subsonic.ArtistsID3{}
	}
	for _, index := range artists.Index {
		for _, artist := range index.Artist {
			if artist.MusicBrainzId != "" {
				mbids[artist.ID] = artist.MusicBrainzId
			}
		}
	}

	slog.Debug("Retrieved artist MBIDs", "count", len(mbids), "service", "subsonic")
	s.artistMBIDs = mbids
	return mbids, nil
}

// getAlbumMBIDs retrieves all album MBIDs from the Subsonic server
func (s *Subsonic) getAlbumMBIDs(client *subsonic.Client) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.albumMBIDs != nil {
		return s.albumMBIDs, nil
	}

	slog.Debug("Retrieving album MBIDs", "service", "subsonic")

	mbids := make(map[string]string)
	offset := 0
	const batchSize = 500

	for {
		albums, err := client.GetAlbumList("alphabeticalByName", map[string]string{
			"size":   strconv.Itoa(batchSize),
			"offset": strconv.Itoa(offset),
		})
		if err != nil {
			return nil, fmt.Errorf("subsonic albums: %w", classifySubsonic(err))
		}

		if len(albums) == 0 {
			break
		}

		for _, album := range albums {
			if album.MusicBrainzID != "" {
				mbids[album.ID] = album.MusicBrainzID
			}
		}

		if len(albums) < batchSize {
			break
		}
		offset += batchSize
	}

	slog.Debug("Retrieved album MBIDs", "count", len(mbids), "service", "subsonic")
	s.albumMBIDs = mbids
	return mbids, nil
}

// getAllSongs retrieves all songs from the Subsonic server
func (s *Subsonic) getAllSongs(client *subsonic.Client) ([]*subsonic.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.allSongs != nil {
		return s.allSongs, nil
	}

	slog.Debug("Retrieving all songs", "service", "subsonic")

	var allSongs []*subsonic.Child
	offset := 0
	const batchSize = 500

	for {
		results, err := client.Search3("", map[string]string{
			"songCount":   strconv.Itoa(batchSize),
			"songOffset":  strconv.Itoa(offset),
			"artistCount": "0",
			"albumCount":  "0",
		})
		if err != nil {
			return nil, fmt.Errorf("subsonic songs: %w", classifySubsonic(err))
		}

		if results == nil || len(results.Song) == 0 {
			break
		}

		allSongs = append(allSongs, results.Song...)

		if len(results.Song) < batchSize {
			break
		}
		offset += batchSize
	}

	slog.Debug("Retrieved all songs", "count", len(allSongs), "service", "subsonic")
	s.allSongs = allSongs
	return allSongs, nil
}

// childToLovedTrack converts Subsonic Children to LovedTracks
func (s *Subsonic) childToLovedTrack(songs []*subsonic.Child, artistMBIDs, albumMBIDs map[string]string) []model.LovedTrack {
	tracks := make([]model.LovedTrack, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, model.LovedTrack{
			ID:         song.ID,
			Track:      song.Title,
			Artist:     song.Artist,
			ArtistMBID: artistMBIDs[song.ArtistID],
			Album:      song.Album,
			AlbumMBID:  albumMBIDs[song.AlbumID],
			TrackMBID:  song.MusicBrainzID,
		})
	}
	return tracks
}

// findSong searches the library for the song best matching a track
func (s *Subsonic) findSong(track model.LovedTrack) (*subsonic.Child, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	allSongs, err := s.getAllSongs(client)
	if err != nil {
		return nil, err
	}

	artistMBIDs, err := s.getArtistMBIDs(client)
	if err != nil {
		return nil, err
	}

	albumMBIDs, err := s.getAlbumMBIDs(client)
	if err != nil {
		return nil, err
	}

	candidates := s.childToLovedTrack(allSongs, artistMBIDs, albumMBIDs)
	matchIndex, score := matcher.Find(candidates, track, matcher.FuzzyMatch)
	if matchIndex == -1 {
		return nil, fmt.Errorf("%w: %s - %s on subsonic", model.ErrNotFound, track.Artist, track.Track)
	}

	slog.Debug("Found song", "id", allSongs[matchIndex].ID, "score", score, "service", "subsonic")
	return allSongs[matchIndex], nil
}

// classifySubsonic maps the error codes a Subsonic server reports onto the
// model errors. The client library only passes them on as text.
func classifySubsonic(err error) error {
	var code int
	if err == nil || !strings.HasPrefix(err.Error(), "Error #") {
		return classify(err)
	}
	if _, scanErr := fmt.Sscanf(err.Error(), "Error #%d:", &code); scanErr != nil {
		return err
	}

	switch code {
	case 40, 41, 42, 43, 44, 50:
		return fmt.Errorf("%w: %w", model.ErrAuth, err)
	case 70:
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	default:
		return err
	}
}

var _ model.Service = &Subsonic{}
