package website

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/mailqueue"
	"github.com/luminagoods/site/src/subscriptions"
)

const (
	msgNotConfigured = "Service not configured"
	msgInternal      = "Something went wrong. Please try again later."
)

func FourOhFour(c *RequestContext) ResponseData {
	return apiFailure(http.StatusNotFound, "Not found")
}

// A SafeError can be used to wrap another error and explicitly provide
// an error message that is safe to show to a user. This allows the original
// error to easily be logged and for servers to consistently return errors
// in a standard format, without having to worry about leaking sensitive
// info (assuming you use the right middleware!).
type SafeError struct {
	Wrapped error
	Msg     string
}

func NewSafeError(err error, msg string, args ...interface{}) error {
	return &SafeError{
		Wrapped: err,
		Msg:     fmt.Sprintf(msg, args...),
	}
}

func (s *SafeError) Error() string {
	return s.Msg
}

func (s *SafeError) Unwrap() error {
	return s.Wrapped
}

/*
ErrorResponse maps err onto the JSON failure shape:

	validation problems              400 with the validation message
	missing database or email config 503 "Service not configured"
	anything else                    500 with a generic message

Only the 500 case records err for logging; the others are the caller's fault or
an expected deployment state.
*/
func (c *RequestContext) ErrorResponse(err error) ResponseData {
	var verr *subscriptions.ValidationError
	var safe *SafeError
	switch {
	case errors.As(err, &verr):
		return apiFailure(http.StatusBadRequest, verr.Message)
	case errors.Is(err, subscriptions.ErrStoreNotConfigured),
		errors.Is(err, mailqueue.ErrStoreNotConfigured),
		errors.Is(err, db.ErrNotConfigured),
		errors.Is(err, email.ErrNotConfigured),
		errors.Is(err, errEngagementNotConfigured):
		c.Logger.Warn().Err(err).Msg("Request needs a service that is not configured")
		return apiFailure(http.StatusServiceUnavailable, msgNotConfigured)
	case errors.As(err, &safe):
		res := apiFailure(http.StatusInternalServerError, safe.Msg)
		res.Errors = append(res.Errors, err)
		return res
	}

	res := apiFailure(http.StatusInternalServerError, msgInternal)
	res.Errors = append(res.Errors, err)
	return res
}
