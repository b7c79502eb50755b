package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csmith/envflag/v2"
	"github.com/csmith/likesync/model"
	"github.com/csmith/likesync/syncer"
	"github.com/csmith/slogflags"
)

var (
	serviceA  = flag.String("service-a", "spotify", "First service to sync (spotify, lastfm, subsonic, listenbrainz)")
	serviceB  = flag.String("service-b", "lastfm", "Second service to sync (spotify, lastfm, subsonic, listenbrainz)")
	direction = flag.String("direction", "both", "Which way to copy loved tracks: both, a-to-b or b-to-a")
	match     = flag.String("match", "normalized", "How to decide tracks are the same: exact, normalized or fuzzy")
	dryRun    = flag.Bool("dry-run", false, "Don't actually do anything, just print the differences in loves")
	period    = flag.Duration("period", 0, "Length of time between each update. If zero, will update once and exit.")

	spotifyClientID     = flag.String("spotify-client-id", "", "Spotify application client ID")
	spotifyClientSecret = flag.String("spotify-client-secret", "", "Spotify application client secret")
	spotifyRedirectURL  = flag.String("spotify-redirect-url", "http://localhost:8888/callback", "Redirect URL registered for the Spotify application")
	spotifyTokenFile    = flag.String("spotify-token-file", "", "Where to cache the Spotify token (defaults to the user cache directory)")

	lastfmKey      = flag.String("lastfm-key", "", "Last.fm API key")
	lastfmSecret   = flag.String("lastfm-secret", "", "Last.fm API secret")
	lastfmUsername = flag.String("lastfm-username", "", "Last.fm username")
	lastfmPassword = flag.String("lastfm-password", "", "Last.fm password")

	subsonicServer   = flag.String("subsonic-server", "", "Subsonic server base address")
	subsonicUsername = flag.String("subsonic-username", "", "Subsonic username")
	subsonicPassword = flag.String("subsonic-password", "", "Subsonic password")

	listenbrainzToken    = flag.String("listenbrainz-token", "", "ListenBrainz token")
	listenbrainzUsername = flag.String("listenbrainz-username", "", "ListenBrainz username")
)

func main() {
	envflag.Parse()
	_ = slogflags.Logger(slogflags.WithSetDefault(true))

	opts := optionsFromFlags()
	if err := opts.validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	available := opts.services()
	config, err := opts.syncerConfig(available)
	if err != nil {
		slog.Error("Failed to configure services", "error", err)
		os.Exit(1)
	}

	s, err := syncer.New(config)
	if err != nil {
		slog.Error("Failed to create syncer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if period.Minutes() < 1 {
		slog.Debug("Period is less than 1 minute, doing a one-shot run")
		err := run(ctx, s, available)
		stop()
		os.Exit(exitCode(err))
	}

	for {
		if err := run(ctx, s, available); stopsLoop(ctx, err) {
			stop()
			os.Exit(exitCode(err))
		}

		slog.Info("Sleeping until next update", "period", period)
		select {
		case <-ctx.Done():
			return
		case <-time.After(*period):
		}
	}
}

// stopsLoop reports whether a failed periodic run should end the program.
// Authentication failures will keep failing, and a run cut short by a signal
// must not look like a clean exit.
func stopsLoop(ctx context.Context, err error) bool {
	return errors.Is(err, model.ErrAuth) || (err != nil && ctx.Err() != nil)
}

// run performs a single sync, logging its outcome
func run(ctx context.Context, s *syncer.Syncer, services map[string]model.Service) error {
	defer closeServices(services)

	summary, err := s.Sync(ctx)
	if summary != nil {
		logSummary(summary)
	}

	if err != nil {
		slog.Error("Sync failed", "error", err)
		return err
	}

	if err := summary.Err(); err != nil {
		slog.Error("Some tracks could not be loved", "error", err)
		return err
	}

	return nil
}

func logSummary(summary *syncer.Summary) {
	for _, d := range summary.Directions {
		slog.Info(
			"Sync complete",
			"source", d.From,
			"destination", d.To,
			"missing", d.Missing,
			"added", len(d.Added),
			"unsynced", len(d.Unsynced),
			"failed", len(d.Failed),
			"dry_run", summary.DryRun,
		)

		for _, u := range d.Unsynced {
			slog.Warn("Track not synced", "artist", u.Track.Artist, "title", u.Track.Track, "source", d.From, "destination", d.To)
		}
	}
}

// closeServices closes the services that hold resources between runs
func closeServices(services map[string]model.Service) {
	for name, service := range services {
		if closer, ok := service.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("Failed to close service", "service", name, "error", err)
			}
		}
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrAuth):
		return 2
	default:
		return 1
	}
}
