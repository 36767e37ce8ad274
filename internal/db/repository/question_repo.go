package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the pgx query surface the repositories need; *pgxpool.Pool satisfies it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrQuestionNotFound signals an offset at or beyond the end of the question
// ordering. Callers use it as the quiz completion signal, not a failure.
var ErrQuestionNotFound = errors.New("question not found")

// Question is a row of the questions table. The ordinal offset of a question
// is its position under ORDER BY question_id, not the id itself.
type Question struct {
	ID      int64
	Prompt  string
	Choices [4]string
	Answer  string
}

// QuestionRepository exposes offset-ordered access to the question bank.
type QuestionRepository struct {
	db DBTX
}

func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// AtOffset fetches the question at the given 0-based ordinal offset.
// Returns ErrQuestionNotFound when offset >= total count.
func (r *QuestionRepository) AtOffset(ctx context.Context, offset int) (Question, error) {
	const q = `
		SELECT question_id, prompt, choice1, choice2, choice3, choice4, answer
		FROM questions
		ORDER BY question_id
		LIMIT 1 OFFSET $1`

	var out Question
	err := r.db.QueryRow(ctx, q, offset).Scan(
		&out.ID, &out.Prompt,
		&out.Choices[0], &out.Choices[1], &out.Choices[2], &out.Choices[3],
		&out.Answer,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Question{}, ErrQuestionNotFound
	}
	if err != nil {
		return Question{}, fmt.Errorf("select question at offset %d: %w", offset, err)
	}
	return out, nil
}

// Count returns the total number of questions.
func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// Insert adds a question, deduplicating silently on prompt collision.
// Returns false when an identical prompt already exists.
func (r *QuestionRepository) Insert(ctx context.Context, q Question) (bool, error) {
	const stmt = `
		INSERT INTO questions (prompt, choice1, choice2, choice3, choice4, answer)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (prompt) DO NOTHING`

	tag, err := r.db.Exec(ctx, stmt, q.Prompt, q.Choices[0], q.Choices[1], q.Choices[2], q.Choices[3], q.Answer)
	if err != nil {
		return false, fmt.Errorf("insert question: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
