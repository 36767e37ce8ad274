package session

import (
	"errors"
	"time"
)

var (
	// ErrNoQuestions is the degraded start outcome: the bank holds zero
	// questions. Distinct from a normal completion.
	ErrNoQuestions = errors.New("no questions available")

	// ErrNoActiveRun means Submit or Current was called without a run in
	// progress for the session.
	ErrNoActiveRun = errors.New("no active quiz run")

	// ErrRunInconsistent means the bank no longer has a question at the run's
	// recorded offset (e.g. the bank shrank mid-run). Fatal to the run, never
	// treated as completion.
	ErrRunInconsistent = errors.New("quiz run out of sync with question bank")

	// ErrRunBusy means another request holds the session's run lock.
	ErrRunBusy = errors.New("another submission is in progress")
)

// RunState is the ephemeral per-session quiz progress. Offset and Score are
// always persisted together as one value; readers never observe a
// half-updated pair.
type RunState struct {
	RunID     string    `json:"run_id"`
	Offset    int       `json:"offset"`
	Score     int       `json:"score"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionView is a question as presented to the end user: the stored answer
// is stripped before it leaves the session service.
type QuestionView struct {
	Offset   int      `json:"offset"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

// Progress pairs a presented question with the run's current tally.
type Progress struct {
	Question QuestionView `json:"question"`
	Score    int          `json:"score"`
}

// SubmitResult is the outcome of one answer submission: either the next
// question, or the final result when the run completed.
type SubmitResult struct {
	Correct  bool          `json:"correct"`
	Score    int           `json:"score"`
	Finished bool          `json:"finished"`
	Total    int64         `json:"total,omitempty"`
	Next     *QuestionView `json:"next,omitempty"`
}
