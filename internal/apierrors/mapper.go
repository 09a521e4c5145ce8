package apierrors

import (
	"errors"

	waitlistProcessor "waitlist-server/internal/waitlist/processor"
)

// MapError converts processor errors to APIErrors.
//
// If the error is already an APIError, it returns it as-is.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, waitlistProcessor.ErrInvalidEmail):
		return BadRequest(CodeInvalidEmail, MessageInvalidEmail)

	case errors.Is(err, waitlistProcessor.ErrSpamRejected):
		return Forbidden(CodeSpamRejected, MessageSpamRejected)

	case errors.Is(err, waitlistProcessor.ErrRateLimitExceeded):
		return TooManyRequests(CodeRateLimitExceeded, MessageRateLimitExceeded)

	case errors.Is(err, waitlistProcessor.ErrAlreadyOnWaitlist):
		return Conflict(CodeAlreadyOnWaitlist, MessageAlreadyOnWaitlist)

	case errors.Is(err, waitlistProcessor.ErrPersistence):
		return InternalError(CodePersistence, err)

	default:
		return InternalError(CodeInternal, err)
	}
}
