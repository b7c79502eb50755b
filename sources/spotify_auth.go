package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

// authenticator starts the authorization code flow and exchanges the callback
// for a token
type authenticator interface {
	AuthURL(state string) string
	Token(state string, r *http.Request) (*oauth2.Token, error)
}

// authorize serves redirectURL locally, opens the authorization page in a
// browser, and waits for the service to call back with a code to exchange.
func authorize(ctx context.Context, auth authenticator, redirectURL string) (*oauth2.Token, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	addr := listenAddress(u)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
	}

	handler := newCallbackHandler(auth, uuid.NewString())
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Callback server failed", "error", err)
		}
	}()
	defer srv.Close()

	authURL := auth.AuthURL(handler.state)
	slog.Info("Open this address to authorize access", "url", authURL)
	if err := browser.OpenURL(authURL); err != nil {
		slog.Warn("Failed to open browser", "error", err)
	}

	select {
	case result := <-handler.result:
		return result.token, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// listenAddress is the host and port the callback server binds to. A redirect
// URL without a port uses the scheme's default.
func listenAddress(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

// callbackHandler handles the single redirect back from the authorization page
type callbackHandler struct {
	auth   authenticator
	state  string
	once   sync.Once
	result chan callbackResult
}

func newCallbackHandler(auth authenticator, state string) *callbackHandler {
	return &callbackHandler{
		auth:   auth,
		state:  state,
		result: make(chan callbackResult, 1),
	}
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Token(h.state, r)
	if err != nil {
		slog.Warn("Authorization callback failed", "error", err)
		http.Error(w, "Authorization failed", http.StatusForbidden)
		h.send(callbackResult{err: err})
		return
	}

	h.send(callbackResult{token: token})
	_, _ = fmt.Fprintln(w, "Authorization complete, you can close this window.")
}

// send delivers the first result only; later callbacks are ignored
func (h *callbackHandler) send(result callbackResult) {
	h.once.Do(func() {
		h.result <- result
	})
}
