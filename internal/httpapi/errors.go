package httpapi

import "net/http"

// errorBody is the payload inside the error envelope. The request id lets a
// client line a failure up with the access log.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// APIError is the envelope every non-2xx JSON response uses.
type APIError struct {
	Error errorBody `json:"error"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, APIError{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFrom(r.Context()),
	}})
}
