package handler

import (
	"fmt"
	"io"
	"net/http"

	"waitlist-server/internal/apierrors"
	"waitlist-server/internal/observability"
	"waitlist-server/internal/ratelimit"
	"waitlist-server/internal/waitlist/processor"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	processor processor.WaitlistProcessor
	logger    *observability.Logger
}

func New(processor processor.WaitlistProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// HandleSubscribe handles POST /subscribe
func (h *Handler) HandleSubscribe(c *gin.Context) {
	ctx := c.Request.Context()

	// One byte over the cap is enough for the processor to reject the body.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, processor.MaxBodyBytes+1))
	if err != nil {
		h.logger.WarnWithError(ctx, "failed to read request body", err)
		apierrors.RespondWithError(c, fmt.Errorf("%w: %w", processor.ErrInvalidEmail, err))
		return
	}

	result, err := h.processor.Subscribe(ctx, body)
	if result.RateLimit != nil {
		ratelimit.WriteHeaders(c, *result.RateLimit)
	}
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
