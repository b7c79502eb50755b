package syncer

import (
	"errors"
	"fmt"

	"github.com/csmith/likesync/model"
)

// TrackError records a track that could not be loved, and why
type TrackError struct {
	Track model.LovedTrack
	Err   error
}

func (e TrackError) Error() string {
	return fmt.Sprintf("%s - %s: %v", e.Track.Artist, e.Track.Track, e.Err)
}

func (e TrackError) Unwrap() error {
	return e.Err
}

// DirectionSummary describes the tracks copied from one service to the other
type DirectionSummary struct {
	From string
	To   string

	// Missing is how many tracks loved on From were not loved on To
	Missing int

	// Added holds the tracks loved on To. In a dry run, the tracks that would have been.
	Added []model.LovedTrack

	// Unsynced holds the tracks To could not find, and those with no artist or
	// title to find them by
	Unsynced []TrackError

	// Failed holds the tracks that could not be loved for any other reason
	Failed []TrackError
}

// Summary is the outcome of a sync
type Summary struct {
	DryRun     bool
	Directions []*DirectionSummary
}

func (s *Summary) add(from, to string, missing int) *DirectionSummary {
	d := &DirectionSummary{From: from, To: to, Missing: missing}
	s.Directions = append(s.Directions, d)
	return d
}

// Added returns the total number of tracks loved across all directions
func (s *Summary) Added() int {
	total := 0
	for _, d := range s.Directions {
		total += len(d.Added)
	}
	return total
}

// Unsynced returns every track that was skipped because the target service
// couldn't find it
func (s *Summary) Unsynced() []TrackError {
	var res []TrackError
	for _, d := range s.Directions {
		res = append(res, d.Unsynced...)
	}
	return res
}

// Failed returns every track that couldn't be loved for a reason other than
// not being found
func (s *Summary) Failed() []TrackError {
	var res []TrackError
	for _, d := range s.Directions {
		res = append(res, d.Failed...)
	}
	return res
}

// Err returns the failures joined together, or nil if every track was either
// loved or not found.
func (s *Summary) Err() error {
	var errs []error
	for _, d := range s.Directions {
		for _, f := range d.Failed {
			errs = append(errs, fmt.Errorf("loving on %s: %w", d.To, f))
		}
	}
	return errors.Join(errs...)
}
