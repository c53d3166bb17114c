package models

import (
	"encoding/json"
	"fmt"
)

// HttpError is the status part of every error descriptor.
type HttpError struct {
	StatusCode int    `json:"statusCode"`
	StatusName string `json:"statusName"`
}

var (
	HTTPERROR_400 = HttpError{StatusCode: 400, StatusName: "Bad Request"}
	HTTPERROR_401 = HttpError{StatusCode: 401, StatusName: "Unauthorized"}
	HTTPERROR_402 = HttpError{StatusCode: 402, StatusName: "Payment Required"}
	HTTPERROR_403 = HttpError{StatusCode: 403, StatusName: "Forbidden"}
	HTTPERROR_404 = HttpError{StatusCode: 404, StatusName: "Not Found"}
	HTTPERROR_405 = HttpError{StatusCode: 405, StatusName: "Method Not Allowed"}
	HTTPERROR_406 = HttpError{StatusCode: 406, StatusName: "Not Acceptable"}
	HTTPERROR_407 = HttpError{StatusCode: 407, StatusName: "Proxy Authentication Required"}
	HTTPERROR_408 = HttpError{StatusCode: 408, StatusName: "Request Timeout"}
	HTTPERROR_409 = HttpError{StatusCode: 409, StatusName: "Conflict"}
	HTTPERROR_429 = HttpError{StatusCode: 429, StatusName: "Too Many Requests"}
	HTTPERROR_500 = HttpError{StatusCode: 500, StatusName: "Internal Server Error"}
	HTTPERROR_501 = HttpError{StatusCode: 501, StatusName: "Not Implemented"}
	HTTPERROR_502 = HttpError{StatusCode: 502, StatusName: "Bad Gateway"}
	HTTPERROR_503 = HttpError{StatusCode: 503, StatusName: "Service Unavailable"}
	HTTPERROR_504 = HttpError{StatusCode: 504, StatusName: "Gateway Timeout"}
)

// LambdaError is the HTTP-shaped error descriptor returned by the caller
// pipeline and the action helpers. Detail may carry internal identifiers and
// settings, so it must be redacted before reaching an untrusted client.
type LambdaError struct {
	StatusCode int                    `json:"statusCode"`
	StatusName string                 `json:"statusName,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Types      []string               `json:"types,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	Inner      interface{}            `json:"error,omitempty"`
}

// NewLambdaError builds an error descriptor from a status and a type tag.
func NewLambdaError(status HttpError, errorType, source string, detail map[string]interface{}) *LambdaError {
	return &LambdaError{
		StatusCode: status.StatusCode,
		StatusName: status.StatusName,
		Type:       errorType,
		Source:     source,
		Detail:     detail,
	}
}

func (e *LambdaError) Error() string {
	return fmt.Sprintf("%d %s: %s (%s)", e.StatusCode, e.StatusName, e.Type, e.Source)
}

// ToJSON converts the error to a JSON string for logging
func (e *LambdaError) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}
