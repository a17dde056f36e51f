package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tutordesk/backend/pkg/utils"
	"go.uber.org/zap"
)

func newSessionApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append([]fiber.Handler{AuthRequired("secret")}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		session, ok := SessionFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": session.UserID, "role": session.Role})
	})
	app.Get("/protected", chain...)
	return app
}

func TestAuthRequiredTokenSources(t *testing.T) {
	token, err := utils.GenerateToken("42", "student", "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	app := newSessionApp()

	cases := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "bearer header",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "cookie",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "query token is not a session source",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "missing",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/protected", nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "malformed header",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				req.Header.Set("Authorization", "Token "+token)
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			build: func() *http.Request {
				other, _ := utils.GenerateToken("42", "student", "other")
				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				req.Header.Set("Authorization", "Bearer "+other)
				return req
			},
			status: http.StatusUnauthorized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(tc.build())
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestParseSessionRejectsNonNumericSubject(t *testing.T) {
	token, _ := utils.GenerateToken("abc", "student", "secret")
	if _, err := ParseSession(token, "secret"); err == nil {
		t.Fatal("expected non-numeric subject to be rejected")
	}
}

func TestRequireRoles(t *testing.T) {
	app := newSessionApp(RequireRoles("teacher", "admin"))

	for role, want := range map[string]int{"teacher": http.StatusOK, "admin": http.StatusOK, "student": http.StatusForbidden} {
		token, _ := utils.GenerateToken("7", role, "secret")
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("role %s: expected %d, got %d", role, want, resp.StatusCode)
		}
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID(), RequestLogger(zap.NewNop()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", resp.Header.Get(RequestIDHeader))
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if len(resp.Header.Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected generated uuid, got %q", resp.Header.Get(RequestIDHeader))
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Post("/login", RateLimit(2, time.Minute), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected third request to be limited, got %d", last)
	}
}
