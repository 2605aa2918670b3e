// Package auth holds the authenticated session: the access token delivered
// through the login callback and the user profile fetched with it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"thecrate/internal/core"
)

// FilePermission is the permission for the session file
const FilePermission = 0600

// ErrNotAuthenticated reports an operation that needs a session token.
var ErrNotAuthenticated = errors.New("no authenticated session")

// Profile is the subset of the streaming account profile the app keeps.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// sessionData is the persisted shape: two static keys, not per-user.
type sessionData struct {
	AccessToken string   `json:"access_token,omitempty"`
	Profile     *Profile `json:"profile,omitempty"`
}

// Session owns the access token and profile for the current user. The token
// arrives once through the login callback URL and is stripped from it; both
// entries persist across restarts in a session file.
type Session struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	token   string
	profile *Profile
}

func NewSession(config *core.SessionConfig, logger *zap.Logger) *Session {
	return &Session{
		path:   config.Path,
		logger: logger,
	}
}

// Load restores a persisted session if one exists. A missing file is a
// clean unauthenticated start, not an error.
func (s *Session) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading session file: %w", err)
	}

	var stored sessionData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decoding session file: %w", err)
	}

	s.mu.Lock()
	s.token = stored.AccessToken
	s.profile = stored.Profile
	s.mu.Unlock()

	if stored.AccessToken != "" {
		s.logger.Info("Restored persisted session")
	}
	return nil
}

// ConsumeCallbackToken extracts the access token from a login callback URL.
// The token is taken exactly once: the returned URL has the parameter
// stripped so it can never be re-read or leak into history. A URL without
// the parameter is returned unchanged with found=false.
func (s *Session) ConsumeCallbackToken(rawURL string) (string, bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false, fmt.Errorf("parsing callback URL: %w", err)
	}

	query := parsed.Query()
	token := query.Get("access_token")
	if token == "" {
		return rawURL, false, nil
	}

	query.Del("access_token")
	parsed.RawQuery = query.Encode()

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		s.logger.Warn("Failed to persist session token", zap.Error(err))
	}

	s.logger.Info("Consumed callback token")
	return parsed.String(), true, nil
}

// Token returns the current access token, or empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Profile returns the fetched profile, or nil before FetchProfile.
func (s *Session) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return nil
	}
	profile := *s.profile
	return &profile
}

// TokenSource adapts the session for API clients. It re-reads the current
// token on every pull, so a re-login is picked up without rebuilding
// clients.
func (s *Session) TokenSource() oauth2.TokenSource {
	return tokenSource{session: s}
}

type tokenSource struct {
	session *Session
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	token := ts.session.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// FetchProfile resolves the account profile for the session token. A
// rejected fetch means the token is no longer usable, which forces a
// logout.
func (s *Session) FetchProfile(ctx context.Context) (*Profile, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	client := spotify.New(oauth2.NewClient(ctx, s.TokenSource()))
	user, err := client.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("Profile fetch rejected, forcing logout", zap.Error(err))
		s.Logout()
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}

	profile := &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		s.logger.Warn("Failed to persist session profile", zap.Error(err))
	}

	s.logger.Info("Fetched user profile", zap.String("userID", profile.ID))
	return s.Profile(), nil
}

// Logout clears the session from memory and removes the persisted entries.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove session file", zap.Error(err))
	}
}

func (s *Session) persist() error {
	s.mu.RLock()
	stored := sessionData{AccessToken: s.token, Profile: s.profile}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, FilePermission)
}
