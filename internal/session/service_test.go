package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mguilba/quizrun/internal/bankclient"
)

// memRunStore keeps run state in memory with a held/free lock flag, mirroring
// the Redis store's contract.
type memRunStore struct {
	mu      sync.Mutex
	states  map[string]RunState
	locked  map[string]bool
	putErr  error
	puts    int
	deletes int
}

func newMemRunStore() *memRunStore {
	return &memRunStore{states: map[string]RunState{}, locked: map[string]bool{}}
}

func (s *memRunStore) Get(_ context.Context, userID string) (*RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *memRunStore) Put(_ context.Context, userID string, state RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.states[userID] = state
	return nil
}

func (s *memRunStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.states, userID)
	return nil
}

func (s *memRunStore) Lock(_ context.Context, userID string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[userID] {
		return nil, ErrRunBusy
	}
	s.locked[userID] = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.locked[userID] = false
		return nil
	}, nil
}

// stubBank serves a fixed question list and records answers with idempotency
// key dedup, like the real bank.
type stubBank struct {
	mu        sync.Mutex
	questions []bankclient.Question
	seenKeys  map[string]bool
	scores    map[string]int64
	fetchErr  error
	submitErr error
	submits   []bankclient.SubmitRequest
}

func newStubBank(questions ...bankclient.Question) *stubBank {
	return &stubBank{
		questions: questions,
		seenKeys:  map[string]bool{},
		scores:    map[string]int64{},
	}
}

func (b *stubBank) FetchQuestion(_ context.Context, offset int) (bankclient.QuestionPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return bankclient.QuestionPage{}, b.fetchErr
	}
	if offset >= len(b.questions) {
		return bankclient.QuestionPage{Finished: true, Total: int64(len(b.questions))}, nil
	}
	q := b.questions[offset]
	return bankclient.QuestionPage{Question: &q}, nil
}

func (b *stubBank) SubmitAnswer(_ context.Context, submit bankclient.SubmitRequest) (bankclient.SubmitResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return bankclient.SubmitResponse{}, b.submitErr
	}
	if submit.Offset >= len(b.questions) {
		return bankclient.SubmitResponse{}, bankclient.ErrQuestionNotFound
	}
	b.submits = append(b.submits, submit)

	correct := submit.Answer == b.questions[submit.Offset].Answer
	duplicate := b.seenKeys[submit.IdempotencyKey]
	if !duplicate {
		b.seenKeys[submit.IdempotencyKey] = true
		if correct {
			b.scores[submit.UserID]++
		}
	}
	return bankclient.SubmitResponse{Correct: correct, Duplicate: duplicate, NextOffset: submit.Offset + 1}, nil
}

func (b *stubBank) Score(_ context.Context, userID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[userID], nil
}

func (b *stubBank) AddQuestion(_ context.Context, add bankclient.AddQuestionRequest) (bool, error) {
	return true, nil
}

func twoQuestions() []bankclient.Question {
	return []bankclient.Question{
		{ID: 1, Question: "How much is 2 + 2?", Choice1: "3", Choice2: "4", Choice3: "5", Choice4: "6", Answer: "4"},
		{ID: 2, Question: "What is the capital of France?", Choice1: "Paris", Choice2: "Lyon", Choice3: "Marseille", Choice4: "Toulouse", Answer: "Paris"},
	}
}

func newTestService(bank BankClient, runs RunStore) *Service {
	return NewService(bank, runs, zerolog.New(io.Discard))
}

const userID = "google:u1"

func TestStartPresentsFirstQuestion(t *testing.T) {
	runs := newMemRunStore()
	svc := newTestService(newStubBank(twoQuestions()...), runs)

	progress, err := svc.Start(context.Background(), userID)

	assert.NoError(t, err)
	assert.Equal(t, 0, progress.Question.Offset)
	assert.Equal(t, "How much is 2 + 2?", progress.Question.Question)
	assert.Equal(t, []string{"3", "4", "5", "6"}, progress.Question.Choices)
	assert.Equal(t, 0, progress.Score)

	state, _ := runs.Get(context.Background(), userID)
	if assert.NotNil(t, state) {
		assert.Equal(t, 0, state.Offset)
		assert.Equal(t, 0, state.Score)
		assert.NotEmpty(t, state.RunID)
	}
}

func TestStartAgainstEmptyBank(t *testing.T) {
	runs := newMemRunStore()
	svc := newTestService(newStubBank(), runs)

	_, err := svc.Start(context.Background(), userID)

	assert.ErrorIs(t, err, ErrNoQuestions)
	state, _ := runs.Get(context.Background(), userID)
	assert.Nil(t, state, "a degraded start must not create a run")
}

func TestFullRunAllCorrect(t *testing.T) {
	// Bank with exactly two questions; answering both correctly must finish
	// with runScore == total == 2.
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	progress, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, "How much is 2 + 2?", progress.Question.Question)

	first, err := svc.Submit(context.Background(), userID, "4")
	assert.NoError(t, err)
	assert.True(t, first.Correct)
	assert.False(t, first.Finished)
	assert.Equal(t, 1, first.Score)
	if assert.NotNil(t, first.Next) {
		assert.Equal(t, 1, first.Next.Offset)
		assert.Equal(t, "What is the capital of France?", first.Next.Question)
	}

	second, err := svc.Submit(context.Background(), userID, "Paris")
	assert.NoError(t, err)
	assert.True(t, second.Correct)
	assert.True(t, second.Finished)
	assert.Equal(t, 2, second.Score)
	assert.Equal(t, int64(2), second.Total)
	assert.Nil(t, second.Next)

	state, _ := runs.Get(context.Background(), userID)
	assert.Nil(t, state, "a finished run must be torn down")

	persisted, _ := svc.PersistedScore(context.Background(), userID)
	assert.Equal(t, int64(2), persisted)
}

func TestSubmitTracksIncorrectAnswers(t *testing.T) {
	svc := newTestService(newStubBank(twoQuestions()...), newMemRunStore())

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)

	result, err := svc.Submit(context.Background(), userID, "5")
	assert.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Equal(t, 0, result.Score)

	result, err = svc.Submit(context.Background(), userID, "Paris")
	assert.NoError(t, err)
	assert.True(t, result.Finished)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, int64(2), result.Total)
}

func TestSubmitWithoutRun(t *testing.T) {
	svc := newTestService(newStubBank(twoQuestions()...), newMemRunStore())

	_, err := svc.Submit(context.Background(), userID, "4")

	assert.ErrorIs(t, err, ErrNoActiveRun)
}

func TestSubmitPastEndIsInconsistency(t *testing.T) {
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)

	// The bank shrinks under the run.
	bank.mu.Lock()
	bank.questions = nil
	bank.mu.Unlock()

	_, err = svc.Submit(context.Background(), userID, "4")

	assert.ErrorIs(t, err, ErrRunInconsistent)
	assert.NotErrorIs(t, err, ErrNoQuestions)

	state, _ := runs.Get(context.Background(), userID)
	assert.Nil(t, state, "an inconsistent run is unrecoverable and must be dropped")
}

func TestTransportFailureLeavesStateUntouched(t *testing.T) {
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	before, _ := runs.Get(context.Background(), userID)

	bank.mu.Lock()
	bank.submitErr = bankclient.ErrUnavailable
	bank.mu.Unlock()

	_, err = svc.Submit(context.Background(), userID, "4")
	assert.ErrorIs(t, err, bankclient.ErrUnavailable)

	after, _ := runs.Get(context.Background(), userID)
	assert.Equal(t, before, after, "a failed submit must not advance offset or score")
}

func TestRetryAfterFetchFailureDoesNotDoubleCount(t *testing.T) {
	// Answer lands in the bank, then the next-question fetch fails. The retry
	// resubmits the same idempotency key, so the score stays at one.
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)

	bank.mu.Lock()
	bank.fetchErr = bankclient.ErrUnavailable
	bank.mu.Unlock()

	_, err = svc.Submit(context.Background(), userID, "4")
	assert.ErrorIs(t, err, bankclient.ErrUnavailable)

	bank.mu.Lock()
	bank.fetchErr = nil
	bank.mu.Unlock()

	result, err := svc.Submit(context.Background(), userID, "4")
	assert.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.Score)

	assert.Len(t, bank.submits, 2)
	assert.Equal(t, bank.submits[0].IdempotencyKey, bank.submits[1].IdempotencyKey,
		"a retried submission must reuse its idempotency key")
	assert.Equal(t, int64(1), bank.scores[userID], "the ledger must count the answer once")
}

func TestRestartAbandonsRunWithoutPenalty(t *testing.T) {
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	_, err = svc.Submit(context.Background(), userID, "4")
	assert.NoError(t, err)

	firstState, _ := runs.Get(context.Background(), userID)

	progress, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, 0, progress.Question.Offset)
	assert.Equal(t, 0, progress.Score)

	state, _ := runs.Get(context.Background(), userID)
	if assert.NotNil(t, state) {
		assert.Equal(t, 0, state.Offset)
		assert.Equal(t, 0, state.Score)
		assert.NotEqual(t, firstState.RunID, state.RunID, "a restart is a new run generation")
	}

	// Progress already recorded in the ledger stays recorded.
	assert.Equal(t, int64(1), bank.scores[userID])
}

func TestCurrentReflectsLastPersistedPair(t *testing.T) {
	svc := newTestService(newStubBank(twoQuestions()...), newMemRunStore())

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	_, err = svc.Submit(context.Background(), userID, "4")
	assert.NoError(t, err)

	progress, err := svc.Current(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, 1, progress.Question.Offset)
	assert.Equal(t, "What is the capital of France?", progress.Question.Question)
	assert.Equal(t, 1, progress.Score)
}

func TestCurrentWithoutRun(t *testing.T) {
	svc := newTestService(newStubBank(twoQuestions()...), newMemRunStore())

	_, err := svc.Current(context.Background(), userID)

	assert.ErrorIs(t, err, ErrNoActiveRun)
}

func TestConcurrentSubmitIsRejectedWhileLockHeld(t *testing.T) {
	runs := newMemRunStore()
	svc := newTestService(newStubBank(twoQuestions()...), runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)

	unlock, err := runs.Lock(context.Background(), userID)
	assert.NoError(t, err)

	_, err = svc.Submit(context.Background(), userID, "4")
	assert.ErrorIs(t, err, ErrRunBusy)

	assert.NoError(t, unlock())

	_, err = svc.Submit(context.Background(), userID, "4")
	assert.NoError(t, err)
}

func TestEndTearsDownRun(t *testing.T) {
	runs := newMemRunStore()
	svc := newTestService(newStubBank(twoQuestions()...), runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)

	assert.NoError(t, svc.End(context.Background(), userID))

	state, _ := runs.Get(context.Background(), userID)
	assert.Nil(t, state)

	// Ending an idle session is a no-op.
	assert.NoError(t, svc.End(context.Background(), userID))
}

func TestStartTransportFailureKeepsExistingRun(t *testing.T) {
	bank := newStubBank(twoQuestions()...)
	runs := newMemRunStore()
	svc := newTestService(bank, runs)

	_, err := svc.Start(context.Background(), userID)
	assert.NoError(t, err)
	before, _ := runs.Get(context.Background(), userID)

	bank.mu.Lock()
	bank.fetchErr = errors.New("dial tcp: connection refused")
	bank.mu.Unlock()

	_, err = svc.Start(context.Background(), userID)
	assert.Error(t, err)

	after, _ := runs.Get(context.Background(), userID)
	assert.Equal(t, before, after)
}
