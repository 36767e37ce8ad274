package bank

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/mguilba/quizrun/internal/db/repository"
)

var (
	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizrun_bank_answers_total",
		Help: "Answers recorded by the question bank, by outcome.",
	}, []string{"result"})

	questionsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizrun_bank_questions_added_total",
		Help: "Questions inserted through the add-question endpoint.",
	})
)

// QuestionStore is the repository surface the service requires for questions.
type QuestionStore interface {
	AtOffset(ctx context.Context, offset int) (repository.Question, error)
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, q repository.Question) (bool, error)
}

// ScoreStore is the repository surface for the per-user score ledger.
type ScoreStore interface {
	RecordAnswer(ctx context.Context, key, userID string, offset int, correct bool) (bool, error)
	ScoreOf(ctx context.Context, userID string) (int64, error)
}

// Service implements the question bank operations over Postgres repositories.
type Service struct {
	questions QuestionStore
	scores    ScoreStore
	logger    zerolog.Logger
}

func NewService(questions QuestionStore, scores ScoreStore, logger zerolog.Logger) *Service {
	return &Service{
		questions: questions,
		scores:    scores,
		logger:    logger.With().Str("component", "bank").Logger(),
	}
}

// QuestionAt returns the question at the given ordinal offset.
// repository.ErrQuestionNotFound past the end is the completion signal.
func (s *Service) QuestionAt(ctx context.Context, offset int) (repository.Question, error) {
	return s.questions.AtOffset(ctx, offset)
}

// TotalCount returns the number of questions in the bank.
func (s *Service) TotalCount(ctx context.Context) (int64, error) {
	return s.questions.Count(ctx)
}

// RecordAnswer checks a submitted answer against the question at offset and
// applies the outcome to the user's ledger atomically. An empty idempotency
// key gets a random one, which disables retry dedup for that call.
func (s *Service) RecordAnswer(ctx context.Context, userID, answer string, offset int, idempotencyKey string) (AnswerResult, error) {
	q, err := s.questions.AtOffset(ctx, offset)
	if err != nil {
		return AnswerResult{}, err
	}

	correct := answer == q.Answer

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	duplicate, err := s.scores.RecordAnswer(ctx, idempotencyKey, userID, offset, correct)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("record answer for user %s: %w", userID, err)
	}

	if duplicate {
		answersTotal.WithLabelValues("duplicate").Inc()
	} else if correct {
		answersTotal.WithLabelValues("correct").Inc()
	} else {
		answersTotal.WithLabelValues("incorrect").Inc()
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("offset", offset).
		Bool("correct", correct).
		Bool("duplicate", duplicate).
		Msg("answer recorded")

	return AnswerResult{Correct: correct, Duplicate: duplicate, NextOffset: offset + 1}, nil
}

// ScoreOf returns the persisted score for a user, 0 when unknown.
func (s *Service) ScoreOf(ctx context.Context, userID string) (int64, error) {
	return s.scores.ScoreOf(ctx, userID)
}

// AddQuestion validates and inserts a question, deduplicating on prompt text.
func (s *Service) AddQuestion(ctx context.Context, req AddQuestionRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	created, err := s.questions.Insert(ctx, repository.Question{
		Prompt:  req.Question,
		Choices: req.choices(),
		Answer:  req.Answer,
	})
	if err != nil {
		return false, err
	}

	if created {
		questionsAddedTotal.Inc()
		s.logger.Info().Str("prompt", req.Question).Msg("question added")
	}
	return created, nil
}
