package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// UserInfo is what the identity provider hands back after a completed login.
// Identity() is the one value the rest of the system trusts.
type UserInfo struct {
	Subject string
	Email   string
	Name    string
}

// Identity returns the stable opaque identifier used as the score-ledger key.
func (u UserInfo) Identity() string {
	return "google:" + u.Subject
}

// OAuthService runs the Google OAuth code flow. There is no user table and no
// passwords; the provider subject is the identity.
type OAuthService struct {
	config     *oauth2.Config
	logger     zerolog.Logger
	httpClient *http.Client
}

func NewOAuthService(clientID, clientSecret, redirectURL string, logger zerolog.Logger) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		logger:     logger.With().Str("component", "oauth").Logger(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether provider credentials are present.
func (s *OAuthService) Configured() bool {
	return s.config.ClientID != "" && s.config.ClientSecret != ""
}

// AuthURL builds the provider authorization URL carrying the CSRF state.
func (s *OAuthService) AuthURL(state string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("oauth not configured")
	}
	return s.config.AuthCodeURL(state), nil
}

// Exchange trades the callback code for the provider's view of the user.
func (s *OAuthService) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		s.logger.Error().Err(err).Msg("oauth token exchange failed")
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var payload struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("userinfo missing subject")
	}

	return &UserInfo{Subject: payload.ID, Email: payload.Email, Name: payload.Name}, nil
}
