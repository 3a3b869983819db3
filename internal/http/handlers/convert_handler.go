// Conversion HTTP handlers.
//
// This file exposes the endpoints for submitting conversion requests and
// inspecting the queue:
//   - POST /conversions  (submit; cached result or queue position)
//   - GET  /queue        (current depth)
//
// The source size is observed here at the boundary and passed along; the
// orchestrator owns the cap decision but never touches the filesystem.
package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/slowjam/go-vinyl-backend/internal/http/middleware"
	"github.com/slowjam/go-vinyl-backend/internal/services"
)

// SubmitConversionRequest is the JSON payload for a conversion submission.
type SubmitConversionRequest struct {
	// Fingerprint is the stable content identity of the source media.
	Fingerprint string `json:"fingerprint" binding:"required,max=128"`
	// SourcePath is the local path of the already-downloaded source file.
	SourcePath string `json:"source_path" binding:"required"`
	// DisplayName optionally names the track in notifications.
	DisplayName string `json:"display_name,omitempty"`
}

// SubmitConversionResponse reports how the submission was handled.
type SubmitConversionResponse struct {
	// Status is "cached" or "queued".
	Status string `json:"status"`
	// DerivedRef is set on cache hits.
	DerivedRef string `json:"derived_ref,omitempty"`
	// MatchID is set on cache hits.
	MatchID int64 `json:"match_id,omitempty"`
	// Position is the advisory 1-based queue position when queued.
	Position int `json:"position,omitempty"`
}

// SubmitConversion accepts a conversion request. Known fingerprints are
// served from the match store synchronously; fresh ones are queued.
func (h *Handlers) SubmitConversion(c *gin.Context) {
	var req SubmitConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "fingerprint and source_path are required")
		return
	}

	var sourceSize int64
	if fi, err := os.Stat(req.SourcePath); err == nil {
		sourceSize = fi.Size()
	}

	out, err := h.convSvc.Submit(c.Request.Context(), services.ConversionRequest{
		Fingerprint: req.Fingerprint,
		SourcePath:  req.SourcePath,
		SourceSize:  sourceSize,
		OwnerID:     userID(c),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		if errors.Is(err, services.ErrSourceTooBig) {
			middleware.LoggerFrom(c).Warn().
				Str("fingerprint", req.Fingerprint).
				Int64("size", sourceSize).
				Msg("source file too big")
			fail(c, http.StatusUnprocessableEntity, ErrCodeTooBig, "💾 File is too big. Max file size is 20 MB.")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if out.Cached != nil {
		ok(c, http.StatusOK, SubmitConversionResponse{
			Status:     "cached",
			DerivedRef: out.Cached.DerivedRef,
			MatchID:    out.Cached.ID,
		})
		return
	}
	ok(c, http.StatusAccepted, SubmitConversionResponse{
		Status:   "queued",
		Position: out.Position,
	})
}

// QueueStatus reports the current queue depth, including the in-flight job.
func (h *Handlers) QueueStatus(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"depth": h.convSvc.QueueDepth()})
}
