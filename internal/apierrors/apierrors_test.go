package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	waitlistProcessor "waitlist-server/internal/waitlist/processor"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"invalid email", fmt.Errorf("%w: bad", waitlistProcessor.ErrInvalidEmail), http.StatusBadRequest, CodeInvalidEmail, "A valid email address is required."},
		{"spam", waitlistProcessor.ErrSpamRejected, http.StatusForbidden, CodeSpamRejected, "This email domain is not allowed."},
		{"rate limit", waitlistProcessor.ErrRateLimitExceeded, http.StatusTooManyRequests, CodeRateLimitExceeded, "Daily email limit reached. Please try again tomorrow."},
		{"duplicate", waitlistProcessor.ErrAlreadyOnWaitlist, http.StatusConflict, CodeAlreadyOnWaitlist, "You are already on the waitlist."},
		{"persistence", fmt.Errorf("%w: disk full", waitlistProcessor.ErrPersistence), http.StatusInternalServerError, CodePersistence, "There was an error saving your request. Please try again."},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal, "There was an error saving your request. Please try again."},
		{"already mapped", NotFound(CodeNotFound, MessageNotFound), http.StatusNotFound, CodeNotFound, "Not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := MapError(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}

	assert.Nil(t, MapError(nil))
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	apiErr := InternalError(CodePersistence, cause)
	assert.ErrorIs(t, apiErr, cause)
	assert.NotContains(t, apiErr.Message, "disk full")
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/subscribe", nil)

	RespondWithError(c, fmt.Errorf("%w: open /var/data/waitlist.json: permission denied", waitlistProcessor.ErrPersistence))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"There was an error saving your request. Please try again."}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "/var/data")
	assert.True(t, c.IsAborted())
}

func TestRespondWithError_Nil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/subscribe", nil)

	RespondWithError(c, nil)
	assert.False(t, c.IsAborted())
	assert.Empty(t, w.Body.String())
}
