package handlers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tutordesk/backend/internal/middleware"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/services"
	"github.com/tutordesk/backend/pkg/utils"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieTTL   = 10 * time.Minute
)

type authApplicationService interface {
	Register(ctx context.Context, input services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email string, password string) (*services.AuthResult, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	OAuthEnabled() bool
	AuthCodeURL(state string) (string, error)
	Callback(ctx context.Context, code string) (*services.AuthResult, error)
}

type AuthHandler struct {
	service       authApplicationService
	siteURL       string
	secureCookies bool
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func NewAuthHandler(service authApplicationService, siteURL string, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		service:       service,
		siteURL:       strings.TrimRight(siteURL, "/"),
		secureCookies: secureCookies,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	result, err := h.service.Register(c.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return mapAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(authResponse(result))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondInvalidBody(c, err)
	}

	result, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(c, err)
	}

	return c.JSON(authResponse(result))
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session, err := currentSession(c)
	if err != nil {
		return respondUnauthorized(c)
	}

	user, err := h.service.Me(c.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return respondInternal(c, "Failed to fetch user", err)
	}

	return c.JSON(fiber.Map{"user": user})
}

// OAuthLogin starts the provider flow. A relative next path is remembered for the callback.
func (h *AuthHandler) OAuthLogin(c *fiber.Ctx) error {
	if !h.service.OAuthEnabled() {
		return h.redirectLoginError(c, "oauth_unavailable")
	}

	state := uuid.NewString()
	authURL, err := h.service.AuthCodeURL(state)
	if err != nil {
		return h.redirectLoginError(c, "oauth_unavailable")
	}

	h.setShortCookie(c, oauthStateCookie, state)
	if next := safeNextPath(c.Query("next")); next != "" {
		h.setShortCookie(c, oauthNextCookie, next)
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	if providerErr := c.Query("error"); providerErr != "" {
		return h.redirectLoginError(c, providerErr)
	}

	state := c.Query("state")
	expected := c.Cookies(oauthStateCookie)
	h.clearCookie(c, oauthStateCookie)
	if state == "" || expected == "" || state != expected {
		return h.redirectLoginError(c, "invalid_state")
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return h.redirectLoginError(c, "missing_code")
	}

	result, err := h.service.Callback(c.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrOAuthUnavailable) {
			return h.redirectLoginError(c, "oauth_unavailable")
		}
		return h.redirectLoginError(c, "auth_failed")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  time.Now().Add(utils.TokenTTL()),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	destination := "/dashboard"
	if models.IsStaffRole(result.User.Role) {
		destination = "/admin"
	}
	if next := safeNextPath(c.Cookies(oauthNextCookie)); next != "" {
		destination = next
	}
	h.clearCookie(c, oauthNextCookie)

	return c.Redirect(h.siteURL+destination, fiber.StatusFound)
}

func (h *AuthHandler) redirectLoginError(c *fiber.Ctx, code string) error {
	return c.Redirect(h.siteURL+"/login?error="+url.QueryEscape(code), fiber.StatusFound)
}

func (h *AuthHandler) setShortCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(oauthCookieTTL),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookies,
	})
}

// safeNextPath only allows same-site relative paths.
func safeNextPath(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	if strings.ContainsAny(next, "\r\n") {
		return ""
	}
	return next
}

func authResponse(result *services.AuthResult) fiber.Map {
	return fiber.Map{
		"token": result.Token,
		"user": fiber.Map{
			"id":        result.User.ID,
			"email":     result.User.Email,
			"role":      result.User.Role,
			"full_name": result.User.FullName,
		},
	}
}

func mapAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrEmailExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email or password format"})
	default:
		return respondInternal(c, "Failed to authenticate", err)
	}
}
