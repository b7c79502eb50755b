package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/csmith/likesync/model"
	"golang.org/x/time/rate"
)

const (
	listenBrainzBaseURL    = "https://api.listenbrainz.org"
	listenBrainzPageSize   = 100
	listenBrainzMaxRetries = 3
)

// ListenBrainz is a service that reads and writes loved tracks on ListenBrainz
type ListenBrainz struct {
	Token    string
	Username string

	// BaseURL overrides the API address, defaulting to the public ListenBrainz API
	BaseURL string

	mu      sync.Mutex
	limiter *rate.Limiter
}

type listenBrainzFeedbackResponse struct {
	Feedback   []listenBrainzFeedback `json:"feedback"`
	Offset     int                    `json:"offset"`
	Count      int                    `json:"count"`
	TotalCount int                    `json:"total_count"`
}

type listenBrainzFeedback struct {
	RecordingMBID string                `json:"recording_mbid"`
	RecordingMSID string                `json:"recording_msid"`
	Score         int                   `json:"score"`
	TrackMetadata *listenBrainzMetadata `json:"track_metadata"`
}

type listenBrainzMetadata struct {
	ArtistName  string                   `json:"artist_name"`
	TrackName   string                   `json:"track_name"`
	ReleaseName string                   `json:"release_name"`
	MBIDMapping *listenBrainzMBIDMapping `json:"mbid_mapping"`
}

type listenBrainzMBIDMapping struct {
	RecordingMBID string   `json:"recording_mbid"`
	ReleaseMBID   string   `json:"release_mbid"`
	ArtistMBIDs   []string `json:"artist_mbids"`
}

type listenBrainzRecordingFeedback struct {
	RecordingMBID string `json:"recording_mbid"`
	Score         int    `json:"score"`
}

type listenBrainzLookup struct {
	RecordingMBID string   `json:"recording_mbid"`
	RecordingName string   `json:"recording_name"`
	ArtistName    string   `json:"artist_credit_name"`
	ReleaseMBID   string   `json:"release_mbid"`
	ArtistMBIDs   []string `json:"artist_mbids"`
}

// LovedTracks retrieves loved tracks from ListenBrainz, one page at a time
func (lb *ListenBrainz) LovedTracks(ctx context.Context) iter.Seq2[model.LovedTrack, error] {
	return func(yield func(model.LovedTrack, error) bool) {
		slog.Debug("Retrieving loved tracks", "service", "listenbrainz")

		offset := 0
		for {
			page, err := lb.fetchLovedTracksPage(ctx, offset, listenBrainzPageSize)
			if err != nil {
				yield(model.LovedTrack{}, err)
				return
			}

			for _, feedback := range page.Feedback {
				if !yield(feedback.lovedTrack(), nil) {
					return
				}
			}

			if len(page.Feedback) == 0 || offset+len(page.Feedback) >= page.TotalCount {
				slog.Debug("Retrieved loved tracks", "count", offset+len(page.Feedback), "service", "listenbrainz")
				return
			}
			offset += len(page.Feedback)
		}
	}
}

func (f listenBrainzFeedback) lovedTrack() model.LovedTrack {
	track := model.LovedTrack{
		ID:        f.RecordingMBID,
		TrackMBID: f.RecordingMBID,
	}
	if track.ID == "" {
		track.ID = f.RecordingMSID
	}

	if f.TrackMetadata != nil {
		track.Artist = f.TrackMetadata.ArtistName
		track.Track = f.TrackMetadata.TrackName
		track.Album = f.TrackMetadata.ReleaseName

		if m := f.TrackMetadata.MBIDMapping; m != nil {
			if track.TrackMBID == "" {
				track.TrackMBID = m.RecordingMBID
			}
			track.AlbumMBID = m.ReleaseMBID
			if len(m.ArtistMBIDs) == 1 {
				track.ArtistMBID = m.ArtistMBIDs[0]
			}
		}
	}

	return track
}

// fetchLovedTracksPage fetches a single page of loved tracks
func (lb *ListenBrainz) fetchLovedTracksPage(ctx context.Context, offset, count int) (*listenBrainzFeedbackResponse, error) {
	query := url.Values{}
	query.Set("score", "1")
	query.Set("metadata", "true")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("count", strconv.Itoa(count))

	var response listenBrainzFeedbackResponse
	path := fmt.Sprintf("/1/feedback/user/%s/get-feedback?%s", url.PathEscape(lb.Username), query.Encode())
	if err := lb.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// Love marks a track as loved on ListenBrainz. Tracks without a recording MBID
// are looked up by artist and title first.
func (lb *ListenBrainz) Love(ctx context.Context, track model.LovedTrack) error {
	mbid := track.TrackMBID
	if mbid == "" {
		found, err := lb.lookupRecording(ctx, track)
		if err != nil {
			return err
		}
		mbid = found
	}

	slog.Debug("Loving recording", "mbid", mbid, "artist", track.Artist, "title", track.Track, "service", "listenbrainz")
	return lb.do(ctx, http.MethodPost, "/1/feedback/recording-feedback", listenBrainzRecordingFeedback{
		RecordingMBID: mbid,
		Score:         1,
	}, nil)
}

// lookupRecording resolves a track's artist and title to a recording MBID
func (lb *ListenBrainz) lookupRecording(ctx context.Context, track model.LovedTrack) (string, error) {
	if track.Artist == "" || track.Track == "" {
		return "", fmt.Errorf("%w: no MBID, artist or title to search listenbrainz with", model.ErrNotFound)
	}

	query := url.Values{}
	query.Set("artist_name", track.Artist)
	query.Set("recording_name", track.Track)

	var result listenBrainzLookup
	if err := lb.do(ctx, http.MethodGet, "/1/metadata/lookup/?"+query.Encode(), nil, &result); err != nil {
		return "", err
	}

	if result.RecordingMBID == "" {
		return "", fmt.Errorf("%w: %s - %s on listenbrainz", model.ErrNotFound, track.Artist, track.Track)
	}

	return result.RecordingMBID, nil
}

// do performs an API request, retrying when rate limited, and decodes the
// response into result if it is non-nil
func (lb *ListenBrainz) do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 0; attempt < listenBrainzMaxRetries; attempt++ {
		if err := lb.getLimiter().Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, lb.baseURL()+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}

		if lb.Token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Token %s", lb.Token))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		retry, wait, err := lb.roundTrip(req, result)
		if retry {
			slog.Warn("Rate limited (429), retrying", "attempt", attempt+1, "sleep_seconds", wait.Seconds(), "service", "listenbrainz")
		}

		if wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		if !retry {
			return err
		}
	}

	return fmt.Errorf("%w: listenbrainz: max retries exceeded due to rate limiting", model.ErrTransient)
}

// roundTrip sends a single request. It reports whether the request should be
// retried, and how long to wait before making another request.
func (lb *ListenBrainz) roundTrip(req *http.Request, result any) (bool, time.Duration, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, 0, classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, lb.getSleepDuration(resp), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, 0, fmt.Errorf("%w: listenbrainz rejected token: %s", model.ErrAuth, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return false, 0, fmt.Errorf("%w: listenbrainz: %s", model.ErrNotFound, resp.Status)
	case resp.StatusCode >= 500:
		return false, 0, fmt.Errorf("%w: listenbrainz: %s", model.ErrTransient, resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return false, 0, fmt.Errorf("ListenBrainz API error: %s - %s", resp.Status, string(body))
	}

	wait := lb.rateLimitPause(resp)

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, wait, fmt.Errorf("listenbrainz: decoding response: %w", err)
		}
	}

	return false, wait, nil
}

// getSleepDuration calculates sleep duration from rate limit headers
func (lb *ListenBrainz) getSleepDuration(resp *http.Response) time.Duration {
	resetInStr := resp.Header.Get("X-RateLimit-Reset-In")
	if resetInStr != "" {
		if resetIn, err := strconv.Atoi(resetInStr); err == nil {
			return time.Duration(resetIn+5) * time.Second
		}
	}
	return 10 * time.Second
}

// rateLimitPause checks rate limit headers and returns how long to pause if the
// remaining allowance is nearly exhausted
func (lb *ListenBrainz) rateLimitPause(resp *http.Response) time.Duration {
	remainingStr := resp.Header.Get("X-RateLimit-Remaining")
	resetInStr := resp.Header.Get("X-RateLimit-Reset-In")
	limit := resp.Header.Get("X-RateLimit-Limit")

	if remainingStr == "" {
		return 0
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil || remaining > 1 {
		return 0
	}

	resetIn, err := strconv.Atoi(resetInStr)
	if err != nil {
		slog.Warn("Rate limit low but couldn't parse reset time", "remaining", remaining, "limit", limit, "service", "listenbrainz")
		return 0
	}

	sleepDuration := time.Duration(resetIn+5) * time.Second
	slog.Warn("Rate limit low, sleeping", "remaining", remaining, "limit", limit, "duration_seconds", sleepDuration.Seconds(), "service", "listenbrainz")
	return sleepDuration
}

func (lb *ListenBrainz) baseURL() string {
	if lb.BaseURL != "" {
		return lb.BaseURL
	}
	return listenBrainzBaseURL
}

// getLimiter lazily creates the limiter spacing requests one second apart
func (lb *ListenBrainz) getLimiter() *rate.Limiter {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.limiter == nil {
		lb.limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	return lb.limiter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ model.Service = &ListenBrainz{}
