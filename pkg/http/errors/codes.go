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

	// Resource errors
	ErrCodeUnknownGame = "unknown_game"

	// Player errors
	ErrCodeGuestCreationFailed = "guest_creation_failed"
	ErrCodeRefreshFailed       = "refresh_failed"

	// Session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeSessionStartFailed = "session_start_failed"
	ErrCodeSessionActive      = "session_already_active"
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeUnsupportedAction  = "unsupported_action"
	ErrCodeUnknownElement     = "unknown_element"
	ErrCodeJudgmentRejected   = "judgment_rejected"

	// Progress errors
	ErrCodeProgressFetchFailed  = "progress_fetch_failed"
	ErrCodeProgressRecordFailed = "progress_record_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"

	// Leaderboard errors
	ErrCodeUnknownWindow = "unknown_leaderboard_window"
)
