package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tutordesk/backend/internal/config"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/pkg/utils"
)

type stubAuthUsers struct {
	byEmail   map[string]*models.User
	nextID    int64
	createErr error
	created   []*models.User
}

func newStubAuthUsers() *stubAuthUsers {
	return &stubAuthUsers{byEmail: make(map[string]*models.User), nextID: 100}
}

func (s *stubAuthUsers) CreateUser(_ context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return &pgconn.PgError{Code: "23505"}
	}
	s.nextID++
	user.ID = s.nextID
	s.byEmail[user.Email] = user
	s.created = append(s.created, user)
	return nil
}

func (s *stubAuthUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (s *stubAuthUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	users := newStubAuthUsers()
	service := &AuthService{users: users, jwtSecret: "secret"}
	ctx := context.Background()

	registered, err := service.Register(ctx, RegisterInput{Email: " Ana@Example.com ", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registered.User.Role != models.RoleStudent || registered.User.Email != "ana@example.com" {
		t.Fatalf("expected lowercase student account, got %+v", registered.User)
	}
	claims, err := utils.ValidateToken(registered.Token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != strconv.FormatInt(registered.User.ID, 10) || claims.Role != models.RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := service.Register(ctx, RegisterInput{Email: "ana@example.com", Password: "password2"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if _, err := service.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}

	if _, err := service.Login(ctx, "ana@example.com", "password1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := service.Login(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := service.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthServiceLoginRejectsOAuthOnlyAccounts(t *testing.T) {
	users := newStubAuthUsers()
	users.byEmail["oauth@example.com"] = &models.User{ID: 5, Email: "oauth@example.com", Role: models.RoleStudent}
	service := &AuthService{users: users, jwtSecret: "secret"}

	if _, err := service.Login(context.Background(), "oauth@example.com", "anything1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthServiceOAuthUnavailable(t *testing.T) {
	service := NewAuthService(nil, &config.Config{JWTSecret: "secret"})

	if service.OAuthEnabled() {
		t.Fatal("expected oauth to be disabled")
	}
	if _, err := service.AuthCodeURL("state"); !errors.Is(err, ErrOAuthUnavailable) {
		t.Fatalf("expected ErrOAuthUnavailable, got %v", err)
	}
	if _, err := service.Callback(context.Background(), "code"); !errors.Is(err, ErrOAuthUnavailable) {
		t.Fatalf("expected ErrOAuthUnavailable, got %v", err)
	}
}

func TestAuthServiceOAuthCallbackCreatesStudent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"email": "Lea@Example.com", "name": "Lea"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := &config.Config{
		JWTSecret:         "secret",
		OAuthClientID:     "client",
		OAuthClientSecret: "shh",
		OAuthAuthURL:      server.URL + "/authorize",
		OAuthTokenURL:     server.URL + "/token",
		OAuthUserInfoURL:  server.URL + "/userinfo",
		OAuthRedirectURL:  "https://api.example.com/auth/callback",
		OAuthScopes:       []string{"email"},
	}
	users := newStubAuthUsers()
	service := NewAuthService(nil, cfg)
	service.users = users

	authURL, err := service.AuthCodeURL("xyz")
	if err != nil {
		t.Fatalf("AuthCodeURL: %v", err)
	}
	if !strings.HasPrefix(authURL, server.URL+"/authorize?") || !strings.Contains(authURL, "state=xyz") {
		t.Fatalf("unexpected auth url %q", authURL)
	}

	ctx := context.Background()
	first, err := service.Callback(ctx, "good-code")
	if err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if first.User.Email != "lea@example.com" || first.User.Role != models.RoleStudent || first.User.FullName == nil || *first.User.FullName != "Lea" {
		t.Fatalf("unexpected user %+v", first.User)
	}

	second, err := service.Callback(ctx, "good-code")
	if err != nil {
		t.Fatalf("second Callback: %v", err)
	}
	if second.User.ID != first.User.ID || len(users.created) != 1 {
		t.Fatalf("expected the existing account to be reused, got %d accounts", len(users.created))
	}

	if _, err := service.Callback(ctx, "bad-code"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a rejected code, got %v", err)
	}
}
