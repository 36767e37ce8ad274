package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/bankclient"
)

var (
	runsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizrun_session_runs_started_total",
		Help: "Quiz runs started.",
	})

	runsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizrun_session_runs_completed_total",
		Help: "Quiz runs completed normally.",
	})

	runsAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizrun_session_runs_abandoned_total",
		Help: "Quiz runs abandoned by restart or logout.",
	})
)

// BankClient is the question bank surface the state machine drives.
type BankClient interface {
	FetchQuestion(ctx context.Context, offset int) (bankclient.QuestionPage, error)
	SubmitAnswer(ctx context.Context, submit bankclient.SubmitRequest) (bankclient.SubmitResponse, error)
	Score(ctx context.Context, userID string) (int64, error)
	AddQuestion(ctx context.Context, add bankclient.AddQuestionRequest) (bool, error)
}

// Service is the quiz run state machine. One run per authenticated session:
// NotStarted -> InProgress(offset, score) -> Finished(score, total), plus the
// degraded "no questions" start outcome. All state lives in the RunStore; the
// service itself is stateless and safe for concurrent use.
type Service struct {
	bank   BankClient
	runs   RunStore
	logger zerolog.Logger
}

func NewService(bank BankClient, runs RunStore, logger zerolog.Logger) *Service {
	return &Service{
		bank:   bank,
		runs:   runs,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Start begins a fresh run for the session, abandoning any run in progress.
// Returns ErrNoQuestions when the bank is empty; nothing is stored in that
// case. A transport failure leaves any existing run untouched.
func (s *Service) Start(ctx context.Context, userID string) (*Progress, error) {
	unlock, err := s.runs.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	page, err := s.bank.FetchQuestion(ctx, 0)
	if err != nil {
		return nil, err
	}
	if page.Finished {
		// Zero questions in the bank: degraded outcome, no run created. Any
		// stale previous run is dropped so it cannot be resumed against the
		// empty bank.
		if err := s.runs.Delete(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to drop stale run")
		}
		return nil, ErrNoQuestions
	}

	prev, err := s.runs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := RunState{
		RunID:     uuid.NewString(),
		Offset:    0,
		Score:     0,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.runs.Put(ctx, userID, state); err != nil {
		return nil, err
	}

	runsStartedTotal.Inc()
	if prev != nil {
		runsAbandonedTotal.Inc()
	}
	s.logger.Info().Str("user_id", userID).Str("run_id", state.RunID).Msg("quiz run started")

	return &Progress{Question: view(page.Question, 0), Score: 0}, nil
}

// Submit records the answer to the run's current question and advances the
// run. Completion is decided solely by whether a question exists at the next
// offset, never by comparing against a precomputed total. On any failure the
// (offset, score) pair is left exactly as it was; a client retry replays the
// same idempotency key and cannot double-count.
func (s *Service) Submit(ctx context.Context, userID, answer string) (*SubmitResult, error) {
	unlock, err := s.runs.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.runs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoActiveRun
	}

	resp, err := s.bank.SubmitAnswer(ctx, bankclient.SubmitRequest{
		UserID:         userID,
		Answer:         answer,
		Offset:         state.Offset,
		IdempotencyKey: idempotencyKey(userID, state.RunID, state.Offset),
	})
	if errors.Is(err, bankclient.ErrQuestionNotFound) {
		// The bank shrank under the run. The run is unrecoverable; drop it so
		// the user can start over.
		if delErr := s.runs.Delete(ctx, userID); delErr != nil {
			s.logger.Warn().Err(delErr).Str("user_id", userID).Msg("failed to drop inconsistent run")
		}
		return nil, fmt.Errorf("%w: offset %d", ErrRunInconsistent, state.Offset)
	}
	if err != nil {
		return nil, err
	}

	score := state.Score
	if resp.Correct {
		score++
	}
	nextOffset := state.Offset + 1

	page, err := s.bank.FetchQuestion(ctx, nextOffset)
	if err != nil {
		// The answer may already be recorded; the untouched run state plus
		// the idempotency key make a retry of this submission safe.
		return nil, err
	}

	if page.Finished {
		if err := s.runs.Delete(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to tear down finished run")
		}
		runsCompletedTotal.Inc()
		s.logger.Info().
			Str("user_id", userID).
			Str("run_id", state.RunID).
			Int("score", score).
			Int64("total", page.Total).
			Msg("quiz run finished")
		return &SubmitResult{Correct: resp.Correct, Score: score, Finished: true, Total: page.Total}, nil
	}

	state.Offset = nextOffset
	state.Score = score
	state.UpdatedAt = time.Now().UTC()
	if err := s.runs.Put(ctx, userID, *state); err != nil {
		return nil, err
	}

	next := view(page.Question, nextOffset)
	return &SubmitResult{Correct: resp.Correct, Score: score, Next: &next}, nil
}

// Current re-presents the run's current question, reflecting exactly the last
// persisted (offset, score) pair. ErrNoActiveRun when nothing is in progress.
func (s *Service) Current(ctx context.Context, userID string) (*Progress, error) {
	state, err := s.runs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoActiveRun
	}

	page, err := s.bank.FetchQuestion(ctx, state.Offset)
	if err != nil {
		return nil, err
	}
	if page.Finished {
		return nil, fmt.Errorf("%w: offset %d", ErrRunInconsistent, state.Offset)
	}

	return &Progress{Question: view(page.Question, state.Offset), Score: state.Score}, nil
}

// End tears down the session's run state (logout). A no-op when idle.
func (s *Service) End(ctx context.Context, userID string) error {
	state, err := s.runs.Get(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	if err := s.runs.Delete(ctx, userID); err != nil {
		return err
	}
	runsAbandonedTotal.Inc()
	s.logger.Info().Str("user_id", userID).Str("run_id", state.RunID).Msg("quiz run abandoned")
	return nil
}

// PersistedScore reads the user's durable score from the bank.
func (s *Service) PersistedScore(ctx context.Context, userID string) (int64, error) {
	return s.bank.Score(ctx, userID)
}

// ForwardQuestion relays an add-question request to the bank.
func (s *Service) ForwardQuestion(ctx context.Context, add bankclient.AddQuestionRequest) (bool, error) {
	return s.bank.AddQuestion(ctx, add)
}

// idempotencyKey derives the dedup key for one (session, run, offset) answer.
// A retried submission reuses it; a new run generation changes it.
func idempotencyKey(userID, runID string, offset int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", userID, runID, offset))
	return hex.EncodeToString(sum[:])
}

func view(q *bankclient.Question, offset int) QuestionView {
	return QuestionView{
		Offset:   offset,
		Question: q.Question,
		Choices:  q.Choices(),
	}
}
