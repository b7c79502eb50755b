package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/csmith/likesync/matcher"
	"github.com/csmith/likesync/model"
	"github.com/csmith/likesync/sources"
	"github.com/csmith/likesync/syncer"
	"github.com/go-playground/validator/v10"
)

type options struct {
	ServiceA  string `validate:"required,oneof=spotify lastfm subsonic listenbrainz,nefield=ServiceB"`
	ServiceB  string `validate:"required,oneof=spotify lastfm subsonic listenbrainz"`
	Direction string `validate:"required,oneof=both a-to-b b-to-a"`
	Match     string `validate:"required,oneof=exact normalized fuzzy"`
	DryRun    bool
	Period    time.Duration

	SpotifyClientID     string
	SpotifyClientSecret string `validate:"required_with=SpotifyClientID"`
	SpotifyRedirectURL  string `validate:"omitempty,url"`
	SpotifyTokenFile    string

	LastfmKey      string
	LastfmSecret   string `validate:"required_with=LastfmKey"`
	LastfmUsername string `validate:"required_with=LastfmKey"`
	LastfmPassword string `validate:"required_with=LastfmKey"`

	SubsonicServer   string `validate:"omitempty,url"`
	SubsonicUsername string `validate:"required_with=SubsonicServer"`
	SubsonicPassword string

	ListenBrainzToken    string
	ListenBrainzUsername string `validate:"required_with=ListenBrainzToken"`
}

func optionsFromFlags() options {
	return options{
		ServiceA:  *serviceA,
		ServiceB:  *serviceB,
		Direction: *direction,
		Match:     *match,
		DryRun:    *dryRun,
		Period:    *period,

		SpotifyClientID:     *spotifyClientID,
		SpotifyClientSecret: *spotifyClientSecret,
		SpotifyRedirectURL:  *spotifyRedirectURL,
		SpotifyTokenFile:    *spotifyTokenFile,

		LastfmKey:      *lastfmKey,
		LastfmSecret:   *lastfmSecret,
		LastfmUsername: *lastfmUsername,
		LastfmPassword: *lastfmPassword,

		SubsonicServer:   *subsonicServer,
		SubsonicUsername: *subsonicUsername,
		SubsonicPassword: *subsonicPassword,

		ListenBrainzToken:    *listenbrainzToken,
		ListenBrainzUsername: *listenbrainzUsername,
	}
}

func (o *options) validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// services returns every service that has credentials configured
func (o *options) services() map[string]model.Service {
	available := make(map[string]model.Service)

	if o.SpotifyClientID != "" {
		tokenFile := o.SpotifyTokenFile
		if tokenFile == "" {
			tokenFile = defaultTokenFile()
		}

		available["spotify"] = &sources.Spotify{
			ClientID:     o.SpotifyClientID,
			ClientSecret: o.SpotifyClientSecret,
			RedirectURL:  o.SpotifyRedirectURL,
			TokenFile:    tokenFile,
		}
	}

	if o.LastfmKey != "" && o.LastfmSecret != "" {
		available["lastfm"] = &sources.Lastfm{
			APIKey:   o.LastfmKey,
			Secret:   o.LastfmSecret,
			Username: o.LastfmUsername,
			Password: o.LastfmPassword,
		}
	}

	if o.SubsonicServer != "" {
		available["subsonic"] = &sources.Subsonic{
			BaseURL:    o.SubsonicServer,
			Username:   o.SubsonicUsername,
			Password:   o.SubsonicPassword,
			ClientName: "likesync",
		}
	}

	if o.ListenBrainzToken != "" {
		available["listenbrainz"] = &sources.ListenBrainz{
			Token:    o.ListenBrainzToken,
			Username: o.ListenBrainzUsername,
		}
	}

	return available
}

// syncerConfig resolves the selected services and strategy into a syncer.Config
func (o *options) syncerConfig(available map[string]model.Service) (syncer.Config, error) {
	a, ok := available[o.ServiceA]
	if !ok {
		return syncer.Config{}, fmt.Errorf("service not configured: %s", o.ServiceA)
	}

	b, ok := available[o.ServiceB]
	if !ok {
		return syncer.Config{}, fmt.Errorf("service not configured: %s", o.ServiceB)
	}

	strategy, err := matcher.ParseStrategy(o.Match)
	if err != nil {
		return syncer.Config{}, err
	}

	return syncer.Config{
		A:         syncer.Endpoint{Name: o.ServiceA, Service: a},
		B:         syncer.Endpoint{Name: o.ServiceB, Service: b},
		Matcher:   strategy,
		Direction: syncer.Direction(o.Direction),
		DryRun:    o.DryRun,
	}, nil
}

func defaultTokenFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "likesync", "spotify-token.json")
}
