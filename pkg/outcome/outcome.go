package outcome

// Result is what providers hand back to the presentation layer for a
// mutation: a success flag and a user-facing message. The underlying cause is
// kept for status mapping but never serialized.
type Result struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`

	cause error
}

func OK(data interface{}) Result {
	return Result{Success: true, Data: data}
}

func Fail(message string, cause error) Result {
	return Result{Error: message, cause: cause}
}

// Cause returns the error that produced a failed result.
func (r Result) Cause() error { return r.cause }
