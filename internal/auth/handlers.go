package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/auth/jwt"
	httperrors "github.com/mguilba/quizrun/pkg/http/errors"
)

const stateCookieName = "oauth_state"

// HTTPHandlers serves the login endpoints of the session service.
type HTTPHandlers struct {
	oauth  *OAuthService
	tokens *jwt.Manager
	logger zerolog.Logger
}

func NewHTTPHandlers(oauth *OAuthService, tokens *jwt.Manager, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		oauth:  oauth,
		tokens: tokens,
		logger: logger.With().Str("component", "auth_http").Logger(),
	}
}

// OAuthStart handles GET /v1/oauth/google/start: sets the CSRF state cookie
// and redirects to the provider.
func (h *HTTPHandlers) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || !h.oauth.Configured() {
		httperrors.RespondError(w, http.StatusNotImplemented, httperrors.ErrCodeOAuthNotConfigured, "OAuth is not configured")
		return
	}

	state := uuid.NewString()
	authURL, err := h.oauth.AuthURL(state)
	if err != nil {
		h.logger.Error().Err(err).Msg("oauth start failed")
		httperrors.RespondInternalError(w, "failed to start login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback handles GET /v1/oauth/google/callback: verifies state,
// exchanges the code and issues the session's access token.
func (h *HTTPHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || !h.oauth.Configured() {
		httperrors.RespondError(w, http.StatusNotImplemented, httperrors.ErrCodeOAuthNotConfigured, "OAuth is not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthMissingCode, "missing authorization code")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthInvalidState, "state mismatch")
		return
	}

	info, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("oauth callback failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeOAuthCallbackFailed, "login failed, try again")
		return
	}

	token, err := h.tokens.Generate(jwt.Identity{
		UserID:      info.Identity(),
		Email:       info.Email,
		DisplayName: info.Name,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("token generation failed")
		httperrors.RespondInternalError(w, "failed to issue token")
		return
	}

	// Clear the one-shot state cookie.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	h.logger.Info().Str("user_id", info.Identity()).Msg("user logged in")
	h.respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user": map[string]string{
			"user_id":      info.Identity(),
			"email":        info.Email,
			"display_name": info.Name,
		},
	})
}

// GetMe handles GET /v1/users/me for an authenticated session.
func (h *HTTPHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"user_id":      claims.UserID,
		"email":        claims.Email,
		"display_name": claims.DisplayName,
	})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
