package webhook

// Webhook result labels, used both as counter label values and as the
// "result" field of the per-request log line.
const (
	ResultCreated          = "created"
	ResultDuplicate        = "duplicate"
	ResultInvalidSignature = "invalid_signature"
	ResultValidationError  = "validation_error"
)

// Result is the pipeline's terminal outcome for one request. It is
// framework-free: the HTTP layer forwards Status and Body verbatim and
// feeds the remaining fields into logging.
type Result struct {
	// Status is the HTTP status code to return.
	Status int
	// Result is one of the Result* labels, or empty for storage
	// failures (those carry no webhook result).
	Result string
	// MessageID is set once the payload has been validated.
	MessageID string
	// Duplicate reports whether the insert hit an existing row.
	Duplicate bool
	// Body is the JSON response body.
	Body any
}

// StatusResponse is the success body for accepted webhooks.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse carries every failing field of a rejected
// payload.
type ValidationErrorResponse struct {
	Detail []FieldError `json:"detail"`
}
