package bankclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchQuestionDecodesQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quiz", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(map[string]any{
			"id": 4, "question": "How much is 2 + 2?",
			"choice1": "3", "choice2": "4", "choice3": "5", "choice4": "6",
			"answer": "4",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	page, err := client.FetchQuestion(context.Background(), 3)

	assert.NoError(t, err)
	assert.False(t, page.Finished)
	if assert.NotNil(t, page.Question) {
		assert.Equal(t, "How much is 2 + 2?", page.Question.Question)
		assert.Equal(t, []string{"3", "4", "5", "6"}, page.Question.Choices())
	}
}

func TestFetchQuestionFinishedMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"finished": true, "total": 4})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	page, err := client.FetchQuestion(context.Background(), 4)

	assert.NoError(t, err)
	assert.True(t, page.Finished)
	assert.Equal(t, int64(4), page.Total)
	assert.Nil(t, page.Question)
}

func TestSubmitAnswer404IsQuestionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "question_not_found"})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	_, err := client.SubmitAnswer(context.Background(), SubmitRequest{UserID: "u", Answer: "4", Offset: 9})

	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestSubmitAnswerForwardsIdempotencyKey(t *testing.T) {
	var got SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(SubmitResponse{Correct: true, NextOffset: got.Offset + 1})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	resp, err := client.SubmitAnswer(context.Background(), SubmitRequest{
		UserID: "google:u1", Answer: "Paris", Offset: 1, IdempotencyKey: "abc",
	})

	assert.NoError(t, err)
	assert.True(t, resp.Correct)
	assert.Equal(t, 2, resp.NextOffset)
	assert.Equal(t, "abc", got.IdempotencyKey)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	_, err := client.Count(context.Background())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := New(srv.URL, nil)
	_, err := client.FetchQuestion(context.Background(), 0)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestValidationErrorSurfacesField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "validation_failed", "message": "answer must be one of the choices", "field": "answer",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	_, err := client.AddQuestion(context.Background(), AddQuestionRequest{Question: "q"})

	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "answer", apiErr.Field)
	}
}

func TestScoreDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google:u1", r.URL.Query().Get("user_id"))
		json.NewEncoder(w).Encode(map[string]any{"user_id": "google:u1", "score": 7})
	}))
	defer srv.Close()

	client := New(srv.URL, nil)
	score, err := client.Score(context.Background(), "google:u1")

	assert.NoError(t, err)
	assert.Equal(t, int64(7), score)
}
