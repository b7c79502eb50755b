// Package syncer makes two music services agree on which tracks are loved.
//
// A sync reads every loved track from both services, works out which tracks
// each side is missing, and loves them there. Nothing is ever unloved, so after
// a successful run both services hold the union of their loved tracks (apart
// from tracks one of them could not find in its catalog). Runs keep no state:
// every run starts from what the services currently report, so repeating a run
// is harmless and an interrupted run is caught up by the next one.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/csmith/likesync/matcher"
	"github.com/csmith/likesync/model"
)

var errUnnamed = fmt.Errorf("%w: no artist or title to match on", model.ErrNotFound)

// Direction controls which services a sync may love tracks on
type Direction string

const (
	// Both loves tracks on both services
	Both Direction = "both"
	// AToB only loves tracks on service B
	AToB Direction = "a-to-b"
	// BToA only loves tracks on service A
	BToA Direction = "b-to-a"
)

// Endpoint is a named service taking part in a sync
type Endpoint struct {
	Name    string
	Service model.Service
}

// Config describes a sync between two services
type Config struct {
	A Endpoint
	B Endpoint

	// Matcher decides which tracks are the same song. Defaults to matcher.Normalized.
	Matcher matcher.Strategy

	// Direction defaults to Both
	Direction Direction

	// DryRun logs the tracks that would be loved without loving them
	DryRun bool

	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// Syncer synchronizes loved tracks between two services
type Syncer struct {
	config Config
}

// New creates a Syncer, filling in defaults for unset config values
func New(config Config) (*Syncer, error) {
	if config.A.Service == nil || config.B.Service == nil {
		return nil, fmt.Errorf("both services must be provided")
	}

	if config.A.Name == "" {
		config.A.Name = "a"
	}
	if config.B.Name == "" {
		config.B.Name = "b"
	}
	if config.A.Name == config.B.Name {
		return nil, fmt.Errorf("services must have different names, both are %q", config.A.Name)
	}

	if config.Matcher == nil {
		config.Matcher = matcher.Normalized
	}

	switch config.Direction {
	case "":
		config.Direction = Both
	case Both, AToB, BToA:
	default:
		return nil, fmt.Errorf("invalid direction: %q", config.Direction)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Syncer{config: config}, nil
}

// Sync loves, on each service, the tracks that are loved on the other one.
//
// Tracks a service can't find are skipped and reported in the summary. Any
// other per-track failure is also recorded and the run carries on, except
// authentication failures and cancellation, which stop the run immediately.
// The summary is returned even when the run is stopped early.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	a, b := s.config.A, s.config.B
	log := s.config.Logger

	likedA, err := s.collect(ctx, a)
	if err != nil {
		return nil, err
	}

	likedB, err := s.collect(ctx, b)
	if err != nil {
		return nil, err
	}

	segment := s.config.Matcher.Segment(likedA, likedB)

	log.Info(
		"Calculated differences",
		"matched", len(segment.Matched),
		a.Name+"_count", len(likedA),
		b.Name+"_count", len(likedB),
		"missing_from_"+b.Name, len(segment.Missing),
		"missing_from_"+a.Name, len(segment.Extra),
		"unnamed", len(segment.Unnamed)+len(segment.UnnamedExtra),
		"direction", s.config.Direction,
	)

	summary := &Summary{DryRun: s.config.DryRun}

	if s.config.Direction != BToA {
		result := summary.add(a.Name, b.Name, len(segment.Missing)+len(segment.Unnamed))
		s.skipUnnamed(b, segment.Unnamed, result)
		if err := s.loveAll(ctx, b, segment.Missing, result); err != nil {
			return summary, err
		}
	}

	if s.config.Direction != AToB {
		result := summary.add(b.Name, a.Name, len(segment.Extra)+len(segment.UnnamedExtra))
		s.skipUnnamed(a, segment.UnnamedExtra, result)
		if err := s.loveAll(ctx, a, segment.Extra, result); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (s *Syncer) collect(ctx context.Context, endpoint Endpoint) ([]model.LovedTrack, error) {
	tracks, err := model.Collect(endpoint.Service.LovedTracks(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get loved tracks from %s: %w", endpoint.Name, err)
	}

	s.config.Logger.Debug("Retrieved loved tracks", "service", endpoint.Name, "count", len(tracks))
	return tracks, nil
}

// skipUnnamed records tracks that have no artist or title as unsynced. Nothing
// could tell on the next run whether a copy of them had been made.
func (s *Syncer) skipUnnamed(target Endpoint, tracks []model.LovedTrack, result *DirectionSummary) {
	for _, track := range tracks {
		s.config.Logger.Warn(
			"Track has no artist or title, skipping",
			"id", track.ID,
			"mbid", track.TrackMBID,
			"isrc", track.ISRC,
			"source", result.From,
			"destination", target.Name,
		)
		result.Unsynced = append(result.Unsynced, TrackError{Track: track, Err: errUnnamed})
	}
}

// loveAll loves each track on the target, recording the outcome in result. It
// returns an error only if the run must stop.
func (s *Syncer) loveAll(ctx context.Context, target Endpoint, tracks []model.LovedTrack, result *DirectionSummary) error {
	log := s.config.Logger.With("destination", target.Name, "source", result.From)

	for _, track := range tracks {
		if s.config.DryRun {
			log.Info("Would love", "artist", track.Artist, "title", track.Track, "mbid", track.TrackMBID)
			result.Added = append(result.Added, track)
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		err := target.Service.Love(ctx, track)
		switch {
		case err == nil:
			log.Info("Loved track", "artist", track.Artist, "title", track.Track)
			result.Added = append(result.Added, track)

		case errors.Is(err, model.ErrAuth):
			log.Error("Authentication failed, stopping", "error", err)
			return fmt.Errorf("failed to love tracks on %s: %w", target.Name, err)

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err

		case errors.Is(err, model.ErrNotFound):
			log.Warn("Track not found, skipping", "artist", track.Artist, "title", track.Track, "error", err)
			result.Unsynced = append(result.Unsynced, TrackError{Track: track, Err: err})

		default:
			log.Warn("Failed to love track", "artist", track.Artist, "title", track.Track, "error", err)
			result.Failed = append(result.Failed, TrackError{Track: track, Err: err})
		}
	}

	return nil
}
