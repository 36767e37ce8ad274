// Package bankclient is the session service's typed HTTP client for the
// question bank API.
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnavailable wraps transport failures and 5xx responses. Callers may
	// retry; the client itself never does.
	ErrUnavailable = errors.New("question bank unavailable")

	// ErrQuestionNotFound maps the bank's 404 on answer submission.
	ErrQuestionNotFound = errors.New("question not found")
)

// APIError carries a non-retryable error response from the bank (e.g. a 400
// validation rejection), preserving its code and field.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bank request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Question is a bank question row. Answer is populated because the bank API
// is an internal trust boundary; callers must not expose it to end users.
type Question struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Choice1  string `json:"choice1"`
	Choice2  string `json:"choice2"`
	Choice3  string `json:"choice3"`
	Choice4  string `json:"choice4"`
	Answer   string `json:"answer"`
}

// Choices returns the four options in presentation order.
func (q Question) Choices() []string {
	return []string{q.Choice1, q.Choice2, q.Choice3, q.Choice4}
}

// QuestionPage is the result of fetching a question by offset: either a
// question, or the finished marker with the total count.
type QuestionPage struct {
	Finished bool
	Total    int64
	Question *Question
}

// SubmitRequest carries one answer submission.
type SubmitRequest struct {
	UserID         string `json:"user_id"`
	Answer         string `json:"answer"`
	Offset         int    `json:"offset"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SubmitResponse is the bank's verdict on a submission.
type SubmitResponse struct {
	Correct    bool `json:"correct"`
	Duplicate  bool `json:"duplicate"`
	NextOffset int  `json:"next_offset"`
}

// AddQuestionRequest mirrors the bank's add-question payload.
type AddQuestionRequest struct {
	Question string `json:"question"`
	Choice1  string `json:"choice1"`
	Choice2  string `json:"choice2"`
	Choice3  string `json:"choice3"`
	Choice4  string `json:"choice4"`
	Answer   string `json:"answer"`
}

// Client talks to the question bank service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchQuestion returns the question at offset, or the finished marker when
// offset is past the end of the bank.
func (c *Client) FetchQuestion(ctx context.Context, offset int) (QuestionPage, error) {
	values := url.Values{}
	values.Set("offset", fmt.Sprint(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/quiz?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return QuestionPage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return QuestionPage{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return QuestionPage{}, err
	}

	// The two success shapes share no fields, so decode into a superset.
	var payload struct {
		Finished bool  `json:"finished"`
		Total    int64 `json:"total"`
		Question
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return QuestionPage{}, fmt.Errorf("decode question response: %w", err)
	}

	if payload.Finished {
		return QuestionPage{Finished: true, Total: payload.Total}, nil
	}
	q := payload.Question
	return QuestionPage{Question: &q}, nil
}

// SubmitAnswer records an answer at an offset. ErrQuestionNotFound means the
// bank no longer has a question at that offset.
func (c *Client) SubmitAnswer(ctx context.Context, submit SubmitRequest) (SubmitResponse, error) {
	body, err := json.Marshal(submit)
	if err != nil {
		return SubmitResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quiz", bytes.NewReader(body))
	if err != nil {
		return SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return SubmitResponse{}, ErrQuestionNotFound
	}
	if err := c.checkStatus(resp); err != nil {
		return SubmitResponse{}, err
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SubmitResponse{}, fmt.Errorf("decode submit response: %w", err)
	}
	return out, nil
}

// Count returns the total number of questions in the bank.
func (c *Client) Count(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/questions/count", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return 0, err
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count, nil
}

// Score returns the persisted score for a user.
func (c *Client) Score(ctx context.Context, userID string) (int64, error) {
	values := url.Values{}
	values.Set("user_id", userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/user/score?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return 0, err
	}

	var out struct {
		Score int64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return out.Score, nil
}

// AddQuestion forwards a validated question to the bank.
func (c *Client) AddQuestion(ctx context.Context, add AddQuestionRequest) (bool, error) {
	body, err := json.Marshal(add)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/add-question", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return false, err
	}

	var out struct {
		Created bool `json:"created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode add-question response: %w", err)
	}
	return out.Created, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
		apiErr.Field = payload.Field
	}
	return apiErr
}
