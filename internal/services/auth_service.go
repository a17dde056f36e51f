package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tutordesk/backend/internal/config"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/pkg/utils"
	"golang.org/x/oauth2"
)

const minPasswordLength = 8

type authUserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthService struct {
	users       authUserStore
	jwtSecret   string
	oauth       *oauth2.Config
	userInfoURL string
}

// AuthResult is returned by every sign-in path.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type RegisterInput struct {
	Email    string
	Password string
	FullName *string
}

func NewAuthService(users *repository.UserRepository, cfg *config.Config) *AuthService {
	s := &AuthService{users: users, jwtSecret: cfg.JWTSecret}
	if cfg.OAuthEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		}
		s.userInfoURL = cfg.OAuthUserInfoURL
	}
	return s
}

// Register creates a student account. Staff accounts are provisioned by an admin.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	fullName, err := trimOptional(input.FullName)
	if err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &hashed,
		Role:         models.RoleStudent,
		FullName:     fullName,
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (*AuthResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, mapNoRows(err, ErrInvalidCredentials)
	}
	if user.PasswordHash == nil || !utils.CheckPassword(password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

func (s *AuthService) AuthCodeURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrOAuthUnavailable
	}
	return s.oauth.AuthCodeURL(state), nil
}

// Callback exchanges the provider code, reads the user's email and signs them in, creating a
// student account on first login.
func (s *AuthService) Callback(ctx context.Context, code string) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, ErrOAuthUnavailable
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrInvalidInput
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrInvalidCredentials, err)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(info.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	user = &models.User{Email: email, Role: models.RoleStudent}
	if name := strings.TrimSpace(info.Name); name != "" {
		user.FullName = &name
	}
	if err := s.createUser(ctx, user); err != nil {
		if !errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		// Lost a race with a concurrent first login.
		if user, err = s.users.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
	}
	return s.issue(user)
}

type oauthUserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *AuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*oauthUserInfo, error) {
	client := s.oauth.Client(ctx, token)
	client.Timeout = 10 * time.Second

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("fetch user info: status %d: %s", res.StatusCode, body)
	}

	var info oauthUserInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	if err := s.users.CreateUser(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(value string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return strings.ToLower(parsed.Address), nil
}
