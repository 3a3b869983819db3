// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the Handlers aggregate and shared request helpers.
// Handlers are transport-thin: they validate input, delegate to application
// services, and translate service errors into HTTP results.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/slowjam/go-vinyl-backend/internal/services"
)

// Handlers bundles the services behind the public endpoints.
type Handlers struct {
	convSvc   *services.ConversionService
	matchSvc  *services.MatchService
	socialSvc *services.SocialService

	// callbackMaxBytes caps rendered callback tokens in responses.
	callbackMaxBytes int
}

// New constructs the handler set with its service dependencies injected.
func New(conv *services.ConversionService, match *services.MatchService, social *services.SocialService, callbackMaxBytes int) *Handlers {
	return &Handlers{
		convSvc:          conv,
		matchSvc:         match,
		socialSvc:        social,
		callbackMaxBytes: callbackMaxBytes,
	}
}

// userID resolves the caller identity: Gin context (set by auth middleware)
// first, then the X-User-ID header, then a demo fallback. Authentication
// proper is the transport's job; this backend trusts the supplied identity.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if s := c.GetHeader("X-User-ID"); s != "" {
		return s
	}
	return "anonymous"
}
