package model

import (
	"context"
	"iter"
)

// Source represents a music service that can enumerate loved tracks.
//
// The returned sequence is lazy: pages are fetched from the service as it is
// ranged over, and ranging over it again fetches the current state afresh. If
// fetching fails the error is yielded once and the sequence ends.
type Source interface {
	LovedTracks(ctx context.Context) iter.Seq2[LovedTrack, error]
}

// Sink represents a music service that tracks can be loved on.
//
// Love must be idempotent: loving a track that is already loved is not an error.
type Sink interface {
	Love(ctx context.Context, track LovedTrack) error
}

// Service is a music service that can both provide and accept loved tracks
type Service interface {
	Source
	Sink
}

// Collect ranges over a sequence of tracks and returns them all, stopping at the
// first error.
func Collect(seq iter.Seq2[LovedTrack, error]) ([]LovedTrack, error) {
	var tracks []LovedTrack
	for track, err := range seq {
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
