package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/auth"
	"github.com/mguilba/quizrun/internal/auth/jwt"
	"github.com/mguilba/quizrun/internal/bankclient"
	httperrors "github.com/mguilba/quizrun/pkg/http/errors"
)

// Runner is the state machine surface the HTTP layer drives; implemented by *Service.
type Runner interface {
	Start(ctx context.Context, userID string) (*Progress, error)
	Submit(ctx context.Context, userID, answer string) (*SubmitResult, error)
	Current(ctx context.Context, userID string) (*Progress, error)
	End(ctx context.Context, userID string) error
	PersistedScore(ctx context.Context, userID string) (int64, error)
	ForwardQuestion(ctx context.Context, add bankclient.AddQuestionRequest) (bool, error)
}

// HTTPHandlers serves the quiz run endpoints. All of them require an
// authenticated session; identity comes from the auth middleware.
type HTTPHandlers struct {
	runner Runner
	logger zerolog.Logger
}

func NewHTTPHandlers(runner Runner, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		runner: runner,
		logger: logger.With().Str("component", "session_http").Logger(),
	}
}

// StartRun handles POST /v1/quiz/start.
func (h *HTTPHandlers) StartRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	progress, err := h.runner.Start(r.Context(), claims.UserID)
	if err != nil {
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, progress)
}

type submitRequest struct {
	Answer string `json:"answer"`
}

// SubmitAnswer handles POST /v1/quiz/answer.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "answer is required", "answer")
		return
	}

	result, err := h.runner.Submit(r.Context(), claims.UserID, req.Answer)
	if err != nil {
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// CurrentQuestion handles GET /v1/quiz/current: resume the run in progress.
func (h *HTTPHandlers) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	progress, err := h.runner.Current(r.Context(), claims.UserID)
	if err != nil {
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusOK, progress)
}

// GetScore handles GET /v1/quiz/score: the persisted ledger score.
func (h *HTTPHandlers) GetScore(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}

	score, err := h.runner.PersistedScore(r.Context(), claims.UserID)
	if err != nil {
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"user_id": claims.UserID, "score": score})
}

// AddQuestion handles POST /v1/quiz/questions: validated forward to the bank.
func (h *HTTPHandlers) AddQuestion(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bankclient.AddQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	created, err := h.runner.ForwardQuestion(r.Context(), req)
	if err != nil {
		var apiErr *bankclient.APIError
		if errors.As(err, &apiErr) {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, apiErr.Message, apiErr.Field)
			return
		}
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"created": created})
}

// Logout handles POST /v1/auth/logout: tears down the run state. Tokens are
// stateless, so the client simply discards its token afterwards.
func (h *HTTPHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.runner.End(r.Context(), claims.UserID); err != nil {
		h.respondRunError(w, claims.UserID, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *HTTPHandlers) authenticated(w http.ResponseWriter, r *http.Request) (*jwt.Claims, bool) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return nil, false
	}
	return claims, true
}

func (h *HTTPHandlers) respondRunError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrNoQuestions):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoQuestions, "the question bank is empty")
	case errors.Is(err, ErrNoActiveRun):
		httperrors.RespondConflict(w, httperrors.ErrCodeNoActiveRun, "no quiz run in progress, start one first")
	case errors.Is(err, ErrRunInconsistent):
		httperrors.RespondConflict(w, httperrors.ErrCodeRunInconsistent, "the quiz changed under your run, start a new one")
	case errors.Is(err, ErrRunBusy):
		httperrors.RespondConflict(w, httperrors.ErrCodeRunBusy, "another request for this session is in flight")
	case errors.Is(err, bankclient.ErrUnavailable):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeBankUnavailable, "question service unavailable, try again")
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("quiz run operation failed")
		httperrors.RespondInternalError(w, "unexpected error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
