// Callback HTTP handlers.
//
// This file exposes the endpoint the chat transport calls when a user presses
// an inline button:
//   - POST /callbacks
//
// The request carries the raw callback token plus the actor identity; the
// response tells the transport what to render next (alert, text, control).
// Decoding happens exactly once, here at the boundary; everything behind it
// works with the typed payload.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slowjam/go-vinyl-backend/internal/callback"
	"github.com/slowjam/go-vinyl-backend/internal/http/middleware"
	"github.com/slowjam/go-vinyl-backend/internal/services"
)

// CallbackRequest is the JSON payload for an inbound control press.
type CallbackRequest struct {
	// Data is the encoded callback token from the pressed button.
	Data string `json:"data" binding:"required"`
	// ActorMention is a renderable handle used in moderation reports.
	ActorMention string `json:"actor_mention,omitempty"`
}

// HandleCallback decodes and executes one control press, answering with the
// next UI state. Unknown records produce a 404 with a user-displayable alert;
// anything unexpected falls through to a generic apology so the dispatcher
// itself never breaks the transport's callback loop.
func (h *Handlers) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "data is required")
		return
	}

	p, err := callback.Decode(req.Data)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("undecodable callback token")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed callback data")
		return
	}

	actor := services.Actor{ID: userID(c), Mention: req.ActorMention}
	re, err := h.socialSvc.HandleCallback(c.Request.Context(), p, actor)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			// The reaction already carries the user-facing alert.
			c.JSON(http.StatusNotFound, re)
		case errors.Is(err, services.ErrInvalidCallback):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid callback payload")
		default:
			c.JSON(http.StatusInternalServerError, services.Reaction{
				Alert: "😱 Something wrong happened! Please try again or come back later...",
			})
		}
		return
	}

	ok(c, http.StatusOK, re)
}
