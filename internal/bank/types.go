package bank

import (
	"github.com/mguilba/quizrun/internal/db/repository"
)

// QuestionResponse is the wire shape of a question row served by GET /quiz.
// The stored answer is included: this API is an internal trust boundary and
// the session service is responsible for stripping it before rendering.
type QuestionResponse struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Choice1  string `json:"choice1"`
	Choice2  string `json:"choice2"`
	Choice3  string `json:"choice3"`
	Choice4  string `json:"choice4"`
	Answer   string `json:"answer"`
}

func questionResponse(q repository.Question) QuestionResponse {
	return QuestionResponse{
		ID:       q.ID,
		Question: q.Prompt,
		Choice1:  q.Choices[0],
		Choice2:  q.Choices[1],
		Choice3:  q.Choices[2],
		Choice4:  q.Choices[3],
		Answer:   q.Answer,
	}
}

// FinishedResponse is returned by GET /quiz when offset is past the last
// question. It carries the total so the caller can finalize a run without a
// second round-trip.
type FinishedResponse struct {
	Finished bool  `json:"finished"`
	Total    int64 `json:"total"`
}

// AnswerResult is the outcome of recording an answer.
type AnswerResult struct {
	Correct    bool `json:"correct"`
	Duplicate  bool `json:"duplicate"`
	NextOffset int  `json:"next_offset"`
}

// AddQuestionRequest carries the six required fields for a new question.
type AddQuestionRequest struct {
	Question string `json:"question"`
	Choice1  string `json:"choice1"`
	Choice2  string `json:"choice2"`
	Choice3  string `json:"choice3"`
	Choice4  string `json:"choice4"`
	Answer   string `json:"answer"`
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate enforces the question invariants: no blank field, four distinct
// choices, and an answer that is one of them.
func (r *AddQuestionRequest) Validate() error {
	fields := map[string]string{
		"question": r.Question,
		"choice1":  r.Choice1,
		"choice2":  r.Choice2,
		"choice3":  r.Choice3,
		"choice4":  r.Choice4,
		"answer":   r.Answer,
	}
	for _, name := range []string{"question", "choice1", "choice2", "choice3", "choice4", "answer"} {
		if fields[name] == "" {
			return &ValidationError{Field: name, Message: name + " is required"}
		}
	}

	choices := r.choices()
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		if seen[c] {
			return &ValidationError{Field: "choices", Message: "choices must be distinct"}
		}
		seen[c] = true
	}

	if !seen[r.Answer] {
		return &ValidationError{Field: "answer", Message: "answer must be one of the choices"}
	}
	return nil
}

func (r *AddQuestionRequest) choices() [4]string {
	return [4]string{r.Choice1, r.Choice2, r.Choice3, r.Choice4}
}
