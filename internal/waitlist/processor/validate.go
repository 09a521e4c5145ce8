package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes is the largest request body accepted by Subscribe.
const MaxBodyBytes = 64 << 10

var validate = validator.New()

type subscriptionRequest struct {
	Email *string `json:"email"`
}

// ParseEmail extracts and validates the email field of a JSON body. Any
// problem, including a non-string email, is reported as ErrInvalidEmail.
func ParseEmail(body []byte) (string, error) {
	if len(body) > MaxBodyBytes {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidEmail, MaxBodyBytes)
	}

	var req subscriptionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	if req.Email == nil {
		return "", fmt.Errorf("%w: email is missing", ErrInvalidEmail)
	}

	email := *req.Email
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	return email, nil
}

// EmailDomain returns the text after the last '@'.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
