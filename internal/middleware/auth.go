package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tutordesk/backend/pkg/utils"
)

const (
	SessionKey = "session"

	// SessionCookie carries the token issued by the OAuth callback.
	SessionCookie = "access_token"
)

var (
	errMissingToken = errors.New("missing token")
	errBadHeader    = errors.New("malformed authorization header")
)

// Session is the caller resolved from a valid token.
type Session struct {
	UserID int64
	Role   string
}

// SessionFrom returns the session stored by AuthRequired.
func SessionFrom(c *fiber.Ctx) (*Session, bool) {
	session, ok := c.Locals(SessionKey).(*Session)
	return session, ok && session != nil
}

// WithSession stores a session on the request.
func WithSession(c *fiber.Ctx, session *Session) {
	c.Locals(SessionKey, session)
}

// AuthRequired accepts a bearer header or the session cookie.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			message := "Missing authorization header"
			if errors.Is(err, errBadHeader) {
				message = "Invalid authorization header format"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": message,
			})
		}

		session, err := ParseSession(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		WithSession(c, session)
		return c.Next()
	}
}

// ParseSession validates a token and converts its claims.
func ParseSession(tokenString, secret string) (*Session, error) {
	claims, err := utils.ValidateToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.New("invalid subject")
	}
	if claims.Role == "" {
		return nil, errors.New("missing role")
	}
	return &Session{UserID: userID, Role: claims.Role}, nil
}

// RequireRoles must run after AuthRequired.
func RequireRoles(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		session, ok := SessionFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		if _, ok := allowed[session.Role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Next()
	}
}

func tokenFromRequest(c *fiber.Ctx) (string, error) {
	if authHeader := strings.TrimSpace(c.Get("Authorization")); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errBadHeader
		}
		return parts[1], nil
	}
	if cookie := strings.TrimSpace(c.Cookies(SessionCookie)); cookie != "" {
		return cookie, nil
	}
	return "", errMissingToken
}
