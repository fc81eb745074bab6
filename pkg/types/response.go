package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope carries the error and, for flow endpoints, the page state left behind by it.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
	Data  any      `json:"data,omitempty"`
}
