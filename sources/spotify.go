package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/csmith/likesync/matcher"
	"github.com/csmith/likesync/model"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

const (
	spotifyPageSize    = 50
	spotifySearchLimit = 10
)

// Spotify is a service that reads and writes the user's saved ("liked") tracks
// on Spotify.
//
// Access is granted through the authorization code flow: the first run opens
// the authorization page in a browser and receives the callback on
// RedirectURL. The resulting token is cached in TokenFile and reused (and
// refreshed) on later runs.
type Spotify struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenFile    string

	mu     sync.Mutex
	client *spotify.Client

	// httpClient, if set, is used for API calls instead of the token from
	// TokenFile. It must authorize requests itself.
	httpClient *http.Client
}

// LovedTracks retrieves the user's saved tracks from Spotify, one page at a time
func (s *Spotify) LovedTracks(ctx context.Context) iter.Seq2[model.LovedTrack, error] {
	return func(yield func(model.LovedTrack, error) bool) {
		client, err := s.getClient(ctx)
		if err != nil {
			yield(model.LovedTrack{}, err)
			return
		}

		slog.Debug("Retrieving saved tracks", "service", "spotify")

		limit := spotifyPageSize
		page, err := client.CurrentUsersTracksOpt(&spotify.Options{Limit: &limit})
		if err != nil {
			yield(model.LovedTrack{}, fmt.Errorf("spotify saved tracks: %w", classifySpotify(err)))
			return
		}

		count := 0
		for {
			for _, saved := range page.Tracks {
				if !yield(spotifyTrack(saved.FullTrack), nil) {
					return
				}
				count++
			}

			if err := ctx.Err(); err != nil {
				yield(model.LovedTrack{}, err)
				return
			}

			err := client.NextPage(page)
			if errors.Is(err, spotify.ErrNoMorePages) {
				break
			}
			if err != nil {
				yield(model.LovedTrack{}, fmt.Errorf("spotify saved tracks offset %d: %w", count, classifySpotify(err)))
				return
			}
		}

		slog.Debug("Retrieved saved tracks", "count", count, "service", "spotify")
	}
}

// Love finds a track in the Spotify catalog and saves it to the user's
// library. Saving an already-saved track is a no-op on Spotify's side.
func (s *Spotify) Love(ctx context.Context, track model.LovedTrack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	found, err := s.search(client, track)
	if err != nil {
		return err
	}

	slog.Debug("Saving track", "id", found.ID, "artist", found.Artist, "title", found.Track, "service", "spotify")
	if err := client.AddTracksToLibrary(spotify.ID(found.ID)); err != nil {
		return fmt.Errorf("spotify save %s: %w", found.ID, classifySpotify(err))
	}

	return nil
}

// search looks a track up in the catalog, first with a field-filtered query and
// then with a plain one, and returns the best matching result
func (s *Spotify) search(client *spotify.Client, track model.LovedTrack) (model.LovedTrack, error) {
	if track.Artist == "" || track.Track == "" {
		return model.LovedTrack{}, fmt.Errorf("%w: no artist or title to search spotify with", model.ErrNotFound)
	}

	queries := []string{
		fmt.Sprintf("track:%q artist:%q", track.Track, track.Artist),
		track.Artist + " " + track.Track,
	}

	for _, query := range queries {
		limit := spotifySearchLimit
		results, err := client.SearchOpt(query, spotify.SearchTypeTrack, &spotify.Options{Limit: &limit})
		if err != nil {
			return model.LovedTrack{}, fmt.Errorf("spotify search %q: %w", query, classifySpotify(err))
		}

		if results.Tracks == nil {
			continue
		}

		candidates := make([]model.LovedTrack, 0, len(results.Tracks.Tracks))
		for _, result := range results.Tracks.Tracks {
			candidates = append(candidates, spotifyTrack(result))
		}

		if i, score := matcher.Find(candidates, track, matcher.FuzzyMatch); i != -1 {
			slog.Debug("Found track", "id", candidates[i].ID, "query", query, "score", score, "service", "spotify")
			return candidates[i], nil
		}
	}

	return model.LovedTrack{}, fmt.Errorf("%w: %s - %s on spotify", model.ErrNotFound, track.Artist, track.Track)
}

// Close writes the current (possibly refreshed) token back to the token file
func (s *Spotify) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	token, err := s.client.Token()
	if err != nil {
		return fmt.Errorf("spotify token: %w", err)
	}

	return saveToken(s.TokenFile, token)
}

// getClient lazily connects to Spotify, running the authorization flow if
// there is no cached token
func (s *Spotify) getClient(ctx context.Context) (*spotify.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	if s.httpClient != nil {
		client := spotify.NewClient(s.httpClient)
		s.client = &client
		return s.client, nil
	}

	auth := spotify.NewAuthenticator(s.RedirectURL, spotify.ScopeUserLibraryRead, spotify.ScopeUserLibraryModify)
	auth.SetAuthInfo(s.ClientID, s.ClientSecret)

	token, err := loadToken(s.TokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("No cached Spotify token, starting authorization", "token_file", s.TokenFile)
		token, err = authorize(ctx, &auth, s.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("%w: spotify authorization: %w", model.ErrAuth, err)
		}

		if err := saveToken(s.TokenFile, token); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuth, err)
	}

	client := auth.NewClient(token)
	client.AutoRetry = true

	s.client = &client
	return s.client, nil
}

// spotifyTrack converts a Spotify track to a LovedTrack, crediting only the
// first artist
func spotifyTrack(track spotify.FullTrack) model.LovedTrack {
	result := model.LovedTrack{
		ID:    string(track.ID),
		Track: track.Name,
		Album: track.Album.Name,
		ISRC:  track.ExternalIDs["isrc"],
	}

	if len(track.Artists) > 0 {
		result.Artist = track.Artists[0].Name
	}

	return result
}

// classifySpotify maps Spotify API and OAuth failures onto the model's errors
func classifySpotify(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return classifySpotifyStatus(apiErr.Status, err)
	}

	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifySpotifyStatus(apiErrPtr.Status, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: spotify token refresh: %w", model.ErrAuth, err)
	}

	return classify(err)
}

func classifySpotifyStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", model.ErrAuth, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	default:
		return err
	}
}

var _ model.Service = &Spotify{}
