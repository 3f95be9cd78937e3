package platform

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// APIError is a call Slack rejected or that never got an answer.
type APIError struct {
	Op string
	// Code is Slack's error string, e.g. "channel_not_found", or the
	// transport error text.
	Code string
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error %s: %s", e.Op, e.Code)
}

func (e *APIError) Unwrap() error { return e.Err }

func newAPIError(op string, err error) error {
	code := err.Error()
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		code = slackErr.Err
	}
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		code = "ratelimited"
	}
	return &APIError{Op: op, Code: code, Err: err}
}
