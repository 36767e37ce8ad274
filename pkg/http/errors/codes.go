package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Question bank errors
	ErrCodeQuestionNotFound = "question_not_found"
	ErrCodeStoreError       = "store_error"

	// Quiz run errors
	ErrCodeNoQuestions     = "no_questions"
	ErrCodeNoActiveRun     = "no_active_run"
	ErrCodeRunInconsistent = "run_inconsistent"
	ErrCodeRunBusy         = "run_busy"

	// Upstream errors
	ErrCodeBankUnavailable = "bank_unavailable"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"

	// OAuth errors
	ErrCodeOAuthNotConfigured  = "oauth_not_configured"
	ErrCodeOAuthStartFailed    = "oauth_start_failed"
	ErrCodeOAuthCallbackFailed = "oauth_callback_failed"
	ErrCodeOAuthMissingCode    = "missing_code"
	ErrCodeOAuthInvalidState   = "invalid_state"
)
