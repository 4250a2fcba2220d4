// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
)

// UpstreamError carries the status code and body of a failed call to an
// external dependency so handlers can pass the status straight through.
// Transport-level failures use status 502.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// ErrQuotaExhausted is returned when the aggregated GitHub rate limit has no
// remaining quota, before any further upstream call is made.
var ErrQuotaExhausted = stderrors.New("github api rate limit exceeded")

// ErrIneligible is the business-rule rejection for users who have not starred
// the required repository. Distinct from an upstream failure: the starred
// listing was fetched successfully and the repository was absent.
var ErrIneligible = stderrors.New("required repository is not starred")

// MalformedAnalysisError means the AI endpoint answered successfully but its
// message content did not parse as JSON. No fallback analysis is synthesized;
// the request fails.
type MalformedAnalysisError struct {
	Raw string
	Err error
}

func (e *MalformedAnalysisError) Error() string {
	return fmt.Sprintf("ai analysis is not valid JSON: %v", e.Err)
}

func (e *MalformedAnalysisError) Unwrap() error {
	return e.Err
}
