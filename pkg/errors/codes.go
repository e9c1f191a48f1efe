package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code        ErrorCode
	Retryable   bool
	Description string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrCodeTimeout: {
		Code:        ErrCodeTimeout,
		Retryable:   true,
		Description: "Inference call exceeded its time limit",
	},
	ErrCodeQuotaExceeded: {
		Code:        ErrCodeQuotaExceeded,
		Retryable:   false,
		Description: "Upstream inference quota exhausted",
	},
	ErrCodeTransport: {
		Code:        ErrCodeTransport,
		Retryable:   true,
		Description: "Network or service failure reaching the inference capability",
	},
	ErrCodeMalformedResponse: {
		Code:        ErrCodeMalformedResponse,
		Retryable:   false,
		Description: "Inference output did not match the requested structure",
	},
	ErrCodeCancelled: {
		Code:        ErrCodeCancelled,
		Retryable:   false,
		Description: "Operation cancelled by caller or shutdown",
	},
	ErrCodeUnknown: {
		Code:        ErrCodeUnknown,
		Retryable:   false,
		Description: "Unclassified inference failure",
	},
}
