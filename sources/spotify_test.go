package sources

import (
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/csmith/likesync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

func TestClassifySpotify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "unauthorized", err: spotify.Error{Status: http.StatusUnauthorized, Message: "The access token expired"}, expected: model.ErrAuth},
		{name: "forbidden", err: spotify.Error{Status: http.StatusForbidden, Message: "Insufficient client scope"}, expected: model.ErrAuth},
		{name: "not found", err: spotify.Error{Status: http.StatusNotFound, Message: "Non existing id"}, expected: model.ErrNotFound},
		{name: "rate limited", err: spotify.Error{Status: http.StatusTooManyRequests}, expected: model.ErrTransient},
		{name: "server error", err: spotify.Error{Status: http.StatusBadGateway}, expected: model.ErrTransient},
		{name: "refresh failure", err: &url.Error{Op: "Get", URL: "https://api.spotify.com/v1/me/tracks", Err: &oauth2.RetrieveError{Response: &http.Response{Status: "400 Bad Request"}, ErrorCode: "invalid_grant"}}, expected: model.ErrAuth},
		{name: "network failure", err: &url.Error{Op: "Get", URL: "https://api.spotify.com/v1/me/tracks", Err: errors.New("connection refused")}, expected: model.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifySpotify(tt.err), tt.expected)
		})
	}

	t.Run("bad request is left alone", func(t *testing.T) {
		err := classifySpotify(spotify.Error{Status: http.StatusBadRequest})
		assert.NotErrorIs(t, err, model.ErrAuth)
		assert.NotErrorIs(t, err, model.ErrNotFound)
		assert.NotErrorIs(t, err, model.ErrTransient)
	})
}

func TestSpotifyTrack(t *testing.T) {
	track := spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:   "4uLU6hMCjMI75M1A2tKUQC",
			Name: "Never Gonna Give You Up",
			Artists: []spotify.SimpleArtist{
				{Name: "Rick Astley"},
				{Name: "Someone Else"},
			},
		},
		Album:       spotify.SimpleAlbum{Name: "Whenever You Need Somebody"},
		ExternalIDs: map[string]string{"isrc": "GBARL9300135"},
	}

	assert.Equal(t, model.LovedTrack{
		ID:     "4uLU6hMCjMI75M1A2tKUQC",
		Track:  "Never Gonna Give You Up",
		Artist: "Rick Astley",
		Album:  "Whenever You Need Somebody",
		ISRC:   "GBARL9300135",
	}, spotifyTrack(track))
}

type fakeAuthenticator struct {
	token *oauth2.Token
	err   error
}

func (f *fakeAuthenticator) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeAuthenticator) Token(state string, r *http.Request) (*oauth2.Token, error) {
	if r.URL.Query().Get("state") != state {
		return nil, errors.New("state mismatch")
	}
	return f.token, f.err
}

func TestCallbackHandler(t *testing.T) {
	t.Run("delivers token", func(t *testing.T) {
		token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}
		handler := newCallbackHandler(&fakeAuthenticator{token: token}, "state-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=state-123", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		result := <-handler.result
		require.NoError(t, result.err)
		assert.Equal(t, token, result.token)
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		handler := newCallbackHandler(&fakeAuthenticator{token: &oauth2.Token{}}, "state-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		result := <-handler.result
		assert.Error(t, result.err)
		assert.Nil(t, result.token)
	})

	t.Run("only the first callback counts", func(t *testing.T) {
		token := &oauth2.Token{AccessToken: "access"}
		handler := newCallbackHandler(&fakeAuthenticator{token: token}, "state-123")

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=state-123", nil))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil))

		result := <-handler.result
		require.NoError(t, result.err)
		assert.Equal(t, token, result.token)
		assert.Empty(t, handler.result)
	})

	t.Run("spotify authenticator rejects forged state", func(t *testing.T) {
		auth := spotify.NewAuthenticator("http://localhost:8888/callback", spotify.ScopeUserLibraryRead)
		handler := newCallbackHandler(&auth, "state-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Error(t, (<-handler.result).err)
	})
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	_, err := loadToken(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	token := &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, saveToken(path, token))

	loaded, err := loadToken(path)
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, loaded.AccessToken)
	assert.Equal(t, token.RefreshToken, loaded.RefreshToken)
	assert.True(t, token.Expiry.Equal(loaded.Expiry))
}

func TestClassifyLogin(t *testing.T) {
	assert.NoError(t, classifyLogin("last.fm", nil))
	assert.ErrorIs(t, classifyLogin("last.fm", errors.New("invalid password")), model.ErrAuth)
	assert.ErrorIs(t, classifyLogin("last.fm", &url.Error{Op: "Post", URL: "https://ws.audioscrobbler.com", Err: errors.New("timeout")}), model.ErrTransient)
}

func TestListenAddress(t *testing.T) {
	tests := []struct {
		redirect string
		want     string
	}{
		{redirect: "http://127.0.0.1:8080/callback", want: "127.0.0.1:8080"},
		{redirect: "http://localhost/callback", want: "localhost:80"},
		{redirect: "https://localhost/callback", want: "localhost:443"},
		{redirect: "http://[::1]/callback", want: "[::1]:80"},
		{redirect: "http://[::1]:9000/", want: "[::1]:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.redirect, func(t *testing.T) {
			u, err := url.Parse(tt.redirect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, listenAddress(u))
		})
	}
}
