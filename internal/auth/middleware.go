package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	CookieName  = "token"
	identityKey = "identity"
)

// Identity is the authenticated caller for one request.
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Authenticator turns the session cookie into an Identity.
type Authenticator struct {
	tokens       *TokenIssuer
	sessions     SessionStore
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthenticator(tokens *TokenIssuer, sessions SessionStore, cookieSecure bool, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{tokens: tokens, sessions: sessions, cookieSecure: cookieSecure, logger: logger}
}

// Identify attaches the caller's Identity when a valid, unrevoked cookie is
// present. It never rejects a request.
func (a *Authenticator) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := a.tokens.Parse(token)
		if err != nil {
			c.Next()
			return
		}

		revoked, err := a.sessions.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			a.logger.Error("session lookup failed", "session", claims.ID, "error", err)
			c.Next()
			return
		}
		if revoked {
			c.Next()
			return
		}

		c.Set(identityKey, &Identity{
			UserID:    claims.UserID,
			SessionID: claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		})
		c.Next()
	}
}

// RequireSession rejects requests that Identify did not authenticate.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

// StartSession issues a token for userID and sets it as an HTTP-only cookie.
func (a *Authenticator) StartSession(c *gin.Context, userID string) error {
	token, _, err := a.tokens.Issue(userID)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, int(a.tokens.TTL().Seconds()), "/", "", a.cookieSecure, true)
	return nil
}

// EndSession clears the cookie and revokes the current session, if any.
func (a *Authenticator) EndSession(c *gin.Context) error {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", a.cookieSecure, true)

	id, ok := IdentityFrom(c)
	if !ok {
		return nil
	}
	return a.sessions.Revoke(c.Request.Context(), id.SessionID, id.ExpiresAt)
}
