package handlers

// Error codes sent in ErrorResponse.Code. Clients branch on these.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInvalidBody      = "invalid_body"
	ErrCodeBadJSON          = "bad_json"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	ErrCodeChatNotFound    = "chat_not_found"
	ErrCodeNotLinked       = "chat_not_linked_to_avito"
	ErrCodeNotManager      = "chat_not_in_manager_queue"
	ErrCodeEmptyText       = "empty_text"
	ErrCodeSendFailed      = "avito_send_failed"
	ErrCodeMessagesFailed  = "avito_messages_failed"
	ErrCodeReadFailed      = "avito_read_failed"
	ErrCodeSubscribeFailed = "avito_subscribe_failed"
	ErrCodeNothingToUpdate = "nothing_to_update"
	ErrCodeMockMode        = "mock_mode"
	ErrCodeNoWebhookURL    = "webhook_url_not_configured"
	ErrCodeStreamFailed    = "stream_failed"
)
