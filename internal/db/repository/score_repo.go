package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ScoreRepository owns the per-user score ledger and its answer-event dedup log.
type ScoreRepository struct {
	db DBTX
}

func NewScoreRepository(db DBTX) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// recordAnswerStmt performs the whole dual-path write in one atomic statement:
// the idempotency key is claimed first, and the score upsert only runs when the
// claim succeeded. A correct answer increments by 1, an incorrect one ensures a
// zero-score row exists without touching an existing score. A replayed key
// changes nothing.
const recordAnswerStmt = `
	WITH event AS (
		INSERT INTO answer_events (idempotency_key, user_id, question_offset, correct)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING 1
	), upsert AS (
		INSERT INTO user_scores (user_id, score)
		SELECT $2, CASE WHEN $4 THEN 1 ELSE 0 END FROM event
		ON CONFLICT (user_id) DO UPDATE SET score = user_scores.score + excluded.score
		RETURNING 1
	)
	SELECT COUNT(*) FROM event`

// RecordAnswer applies an answer outcome to the ledger. Returns duplicate=true
// when the idempotency key was seen before, in which case the ledger is untouched.
func (r *ScoreRepository) RecordAnswer(ctx context.Context, key, userID string, offset int, correct bool) (duplicate bool, err error) {
	var claimed int64
	if err := r.db.QueryRow(ctx, recordAnswerStmt, key, userID, offset, correct).Scan(&claimed); err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	return claimed == 0, nil
}

// ScoreOf returns the persisted score for a user, 0 when the user is unknown.
func (r *ScoreRepository) ScoreOf(ctx context.Context, userID string) (int64, error) {
	var score int64
	err := r.db.QueryRow(ctx, `SELECT score FROM user_scores WHERE user_id = $1`, userID).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select score: %w", err)
	}
	return score, nil
}
