package sources

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/csmith/likesync/model"
	"github.com/twoscott/gobble-fm/api"
	"github.com/twoscott/gobble-fm/lastfm"
	"github.com/twoscott/gobble-fm/session"
)

const lastfmPageSize = 200

// Lastfm is a service that reads and writes loved tracks on Last.fm
type Lastfm struct {
	APIKey   string
	Secret   string
	Username string
	Password string

	mu         sync.Mutex
	client     *session.Client
	httpClient api.HTTPClient
}

// LovedTracks retrieves loved tracks from Last.fm, one page at a time
func (l *Lastfm) LovedTracks(ctx context.Context) iter.Seq2[model.LovedTrack, error] {
	return func(yield func(model.LovedTrack, error) bool) {
		client, err := l.getClient()
		if err != nil {
			yield(model.LovedTrack{}, err)
			return
		}

		slog.Debug("Retrieving loved tracks", "service", "lastfm")

		count := 0
		page := uint(1)

		for {
			if err := ctx.Err(); err != nil {
				yield(model.LovedTrack{}, err)
				return
			}

			lovedTracks, err := client.User.LovedTracks(lastfm.LovedTracksParams{
				User:  l.Username,
				Page:  page,
				Limit: lastfmPageSize,
			})
			if err != nil {
				yield(model.LovedTrack{}, fmt.Errorf("last.fm loved tracks page %d: %w", page, classifyLastfm(err)))
				return
			}

			for _, track := range lovedTracks.Tracks {
				if !yield(model.LovedTrack{
					Track:      track.Title,
					TrackMBID:  track.MBID,
					Artist:     track.Artist.Name,
					ArtistMBID: track.Artist.MBID,
				}, nil) {
					return
				}
				count++
			}

			if page >= uint(lovedTracks.TotalPages) {
				break
			}
			page++
		}

		slog.Debug("Retrieved loved tracks", "count", count, "service", "lastfm")
	}
}

// Love marks a track as loved on Last.fm. Loving an already-loved track is a no-op.
func (l *Lastfm) Love(ctx context.Context, track model.LovedTrack) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := l.getClient()
	if err != nil {
		return err
	}

	artist, title, err := l.resolve(client, track)
	if err != nil {
		return err
	}

	slog.Debug("Loving track", "artist", artist, "title", title, "service", "lastfm")
	if err := client.Track.Love(artist, title); err != nil {
		return fmt.Errorf("last.fm love %s - %s: %w", artist, title, classifyLastfm(err))
	}

	return nil
}

// resolve finds the artist and title Last.fm knows a track by, preferring the
// MBID and falling back to the track's own artist and title.
func (l *Lastfm) resolve(client *session.Client, track model.LovedTrack) (string, string, error) {
	if track.TrackMBID != "" {
		trackInfo, err := client.Track.InfoByMBID(lastfm.TrackInfoMBIDParams{
			MBID: track.TrackMBID,
		})
		if err == nil && trackInfo.Artist.Name != "" && trackInfo.Title != "" {
			return trackInfo.Artist.Name, trackInfo.Title, nil
		}
		if err != nil {
			if err := classifyLastfm(err); errors.Is(err, model.ErrTransient) || errors.Is(err, model.ErrAuth) {
				return "", "", fmt.Errorf("last.fm track %s: %w", track.TrackMBID, err)
			}
		}

		slog.Info("Couldn't use MBID to find Last.fm track, falling back to artist/title", "mbid", track.TrackMBID, "artist", track.Artist, "title", track.Track)
	}

	if track.Artist == "" || track.Track == "" {
		return "", "", fmt.Errorf("%w: no artist or title to search last.fm with", model.ErrNotFound)
	}

	trackInfo, err := client.Track.Info(lastfm.TrackInfoParams{
		Artist: track.Artist,
		Track:  track.Track,
	})
	if err != nil {
		return "", "", fmt.Errorf("last.fm track %s - %s: %w", track.Artist, track.Track, classifyLastfm(err))
	}

	if trackInfo.Artist.Name == "" || trackInfo.Title == "" {
		return track.Artist, track.Track, nil
	}
	return trackInfo.Artist.Name, trackInfo.Title, nil
}

// getClient lazily connects to Last.fm
func (l *Lastfm) getClient() (*session.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	client := session.NewClient(l.APIKey, l.Secret)
	if l.httpClient != nil {
		client.Client = l.httpClient
	}

	if err := client.Login(l.Username, l.Password); err != nil {
		return nil, classifyLogin("last.fm", classifyLastfm(err))
	}

	l.client = client
	return l.client, nil
}

// classifyLastfm maps Last.fm API errors onto the model's errors. Only "invalid
// parameters", which Last.fm returns for unknown tracks, counts as not found.
func classifyLastfm(err error) error {
	var lfmErr *api.LastFMError
	if errors.As(err, &lfmErr) {
		switch lfmErr.Code {
		case api.ErrOperationFailed, api.ErrServiceOffline, api.ErrServiceUnavailable, api.ErrRateLimitExceeded:
			return fmt.Errorf("%w: %w", model.ErrTransient, err)
		case api.ErrAuthenticationFailed, api.ErrInvalidSessionKey, api.ErrInvalidAPIKey, api.ErrUnauthorizedToken,
			api.ErrAPIKeySuspended, api.ErrAPIKeyMissing, api.ErrSecretRequired, api.ErrSessionRequired:
			return fmt.Errorf("%w: %w", model.ErrAuth, err)
		case api.ErrInvalidParameters:
			return fmt.Errorf("%w: %w", model.ErrNotFound, err)
		default:
			return err
		}
	}

	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", model.ErrTransient, err)
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", model.ErrAuth, err)
		}
	}

	return classify(err)
}

var _ model.Service = &Lastfm{}
