// Match HTTP handlers.
//
// This file exposes read access to match records and the out-of-band
// moderation action:
//   - GET  /matches/:fingerprint  (record + freshly rendered share control)
//   - POST /matches/:id/forbid    (moderation marks a record forbidden)
//
// The forbid endpoint is the only way the forbidden flag is ever set; the
// report flow merely escalates and leaves the decision to moderation.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/slowjam/go-vinyl-backend/internal/callback"
	"github.com/slowjam/go-vinyl-backend/internal/domain"
	"github.com/slowjam/go-vinyl-backend/internal/services"
)

// MatchResponse is the JSON shape for one match record plus its share control.
type MatchResponse struct {
	Match   *domain.Match     `json:"match"`
	Control *callback.Control `json:"control,omitempty"`
}

// GetMatch fetches the record for a source fingerprint so the transport can
// re-render its controls. Records suppressed by moderation are not served.
func (h *Handlers) GetMatch(c *gin.Context) {
	fingerprint := c.Param("fingerprint")

	m, err := h.matchSvc.Lookup(c.Request.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "match not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if m.Forbidden {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "match removed by moderation")
		return
	}

	resp := MatchResponse{Match: m}
	if ctl, err := callback.ShareControl(m.Fingerprint, m.Private, h.callbackMaxBytes); err == nil {
		resp.Control = &ctl
	}
	ok(c, http.StatusOK, resp)
}

// ForbidMatch marks a record forbidden. The flag is monotonic; repeating the
// call is a harmless no-op that still answers 204.
func (h *Handlers) ForbidMatch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}

	if err := h.matchSvc.SetForbidden(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "match not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
