package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/db/repository"
	httperrors "github.com/mguilba/quizrun/pkg/http/errors"
)

// Store is the operation surface the HTTP layer exposes; implemented by *Service.
type Store interface {
	QuestionAt(ctx context.Context, offset int) (repository.Question, error)
	TotalCount(ctx context.Context) (int64, error)
	RecordAnswer(ctx context.Context, userID, answer string, offset int, idempotencyKey string) (AnswerResult, error)
	ScoreOf(ctx context.Context, userID string) (int64, error)
	AddQuestion(ctx context.Context, req AddQuestionRequest) (bool, error)
}

// HTTPHandlers serves the question bank API.
type HTTPHandlers struct {
	store  Store
	logger zerolog.Logger
}

func NewHTTPHandlers(store Store, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		store:  store,
		logger: logger.With().Str("component", "bank_http").Logger(),
	}
}

// GetQuestion handles GET /quiz?offset=N. Past the last question it responds
// with the finished marker and the total count instead of an error.
func (h *HTTPHandlers) GetQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "offset must be a non-negative integer", "offset")
			return
		}
		offset = parsed
	}

	q, err := h.store.QuestionAt(r.Context(), offset)
	if errors.Is(err, repository.ErrQuestionNotFound) {
		total, err := h.store.TotalCount(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("count questions failed")
			httperrors.RespondInternalError(w, "failed to count questions")
			return
		}
		h.respondJSON(w, http.StatusOK, FinishedResponse{Finished: true, Total: total})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int("offset", offset).Msg("fetch question failed")
		httperrors.RespondInternalError(w, "failed to fetch question")
		return
	}

	h.respondJSON(w, http.StatusOK, questionResponse(q))
}

type submitAnswerRequest struct {
	UserID         string `json:"user_id"`
	Answer         string `json:"answer"`
	Offset         int    `json:"offset"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SubmitAnswer handles POST /quiz.
func (h *HTTPHandlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.UserID == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "user_id is required", "user_id")
		return
	}
	if req.Offset < 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "offset must be a non-negative integer", "offset")
		return
	}

	result, err := h.store.RecordAnswer(r.Context(), req.UserID, req.Answer, req.Offset, req.IdempotencyKey)
	if errors.Is(err, repository.ErrQuestionNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuestionNotFound, "no question at the submitted offset")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("record answer failed")
		httperrors.RespondInternalError(w, "failed to record answer")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// CountQuestions handles GET /questions/count.
func (h *HTTPHandlers) CountQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	total, err := h.store.TotalCount(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("count questions failed")
		httperrors.RespondInternalError(w, "failed to count questions")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"count": total})
}

// GetScore handles GET /user/score?user_id=.
func (h *HTTPHandlers) GetScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "user_id is required", "user_id")
		return
	}

	score, err := h.store.ScoreOf(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("fetch score failed")
		httperrors.RespondInternalError(w, "failed to fetch score")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "score": score})
}

// AddQuestion handles POST /add-question.
func (h *HTTPHandlers) AddQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AddQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	created, err := h.store.AddQuestion(r.Context(), req)
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, vErr.Message, vErr.Field)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("add question failed")
		httperrors.RespondInternalError(w, "failed to add question")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"created": created})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
