// internal/interfaces/http/handlers/session.go
package handlers

import (
	"net/http"

	"github.com/clubwear/storefront/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Sessions identifies the cart of the calling browser. The id travels in a
// cookie or, for clients without cookies, in a header.
type Sessions struct {
	cookie string
	header string
	maxAge int
	secure bool
}

// NewSessions builds the session resolver from the cart config
func NewSessions(cfg *config.Config) *Sessions {
	return &Sessions{
		cookie: cfg.Cart.SessionCookie,
		header: cfg.Cart.SessionHeader,
		maxAge: int(cfg.Cart.SessionTTL.Seconds()),
		secure: cfg.IsProduction(),
	}
}

// Resolve returns the session id of the request, issuing a new one when the
// request carries none or an invalid one
func (s *Sessions) Resolve(c *gin.Context) string {
	sessionID := c.GetHeader(s.header)
	if !validSessionID(sessionID) {
		sessionID, _ = c.Cookie(s.cookie)
	}
	if !validSessionID(sessionID) {
		sessionID = uuid.New().String()
	}

	// Refresh the cookie so it lives as long as the stored cart
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie, sessionID, s.maxAge, "/", "", s.secure, true)
	c.Header(s.header, sessionID)
	return sessionID
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
