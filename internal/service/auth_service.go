package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

// TokenType distinguishes exam taker vs admin tokens.
type TokenType string

const (
	TokenTypeUser  TokenType = "user"
	TokenTypeAdmin TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions,omitempty"` // Admin only
}

// HasPermission reports whether the claims grant code.
func (c *Claims) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// AuthService handles accounts, JWT issuance and logout.
type AuthService struct {
	cfg    *config.Config
	users  UserStore
	admins AdminStore
	tokens TokenStore
	log    zerolog.Logger
}

// NewAuthService creates a new AuthService. tokens may be nil, which disables logout.
func NewAuthService(cfg *config.Config, users UserStore, admins AdminStore, tokens TokenStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		admins: admins,
		tokens: tokens,
		log:    log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register creates an exam taker account.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Message: "Email already registered"}
		}
		return nil, unavailable("create user", err)
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("User registered")
	return u, nil
}

// Login verifies user credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, unavailable("find user", err)
	}
	if err := s.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateUserToken(u)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{Token: token, User: *u}, nil
}

// AdminLogin verifies admin credentials and issues a token carrying its permissions.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*model.AdminLoginResponse, error) {
	a, err := s.admins.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, unavailable("find admin", err)
	}
	if err := s.CheckPassword(a.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateAdminToken(a)
	if err != nil {
		return nil, err
	}
	return &model.AdminLoginResponse{Token: token, Admin: *a, Permissions: a.Permissions}, nil
}

// CreateAdmin stores a new admin with a hashed password.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string, permissions []string) (*model.Admin, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &model.Admin{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Permissions:  permissions,
	}
	if err := s.admins.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Message: "Admin email already registered"}
		}
		return nil, unavailable("create admin", err)
	}
	return a, nil
}

// GenerateUserToken creates a JWT for an exam taker.
func (s *AuthService) GenerateUserToken(u *model.User) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(u.ID.String()),
		TokenType:        TokenTypeUser,
		UserID:           u.ID.String(),
		Email:            u.Email,
	})
}

// GenerateAdminToken creates a JWT for an admin with permissions embedded.
func (s *AuthService) GenerateAdminToken(a *model.Admin) (string, error) {
	id := strconv.Itoa(a.ID)
	return s.sign(Claims{
		RegisteredClaims: s.registered(id),
		TokenType:        TokenTypeAdmin,
		UserID:           id,
		Email:            a.Email,
		Permissions:      a.Permissions,
	})
}

func (s *AuthService) registered(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
	}
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// CheckNotRevoked fails with ErrTokenRevoked for logged-out tokens.
func (s *AuthService) CheckNotRevoked(ctx context.Context, claims *Claims) error {
	if s.tokens == nil || claims.ID == "" {
		return nil
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return unavailable("check token", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// Logout revokes the token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if s.tokens == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.tokens.Revoke(ctx, claims.ID, ttl); err != nil {
		return unavailable("revoke token", err)
	}
	return nil
}

// CountUsers returns the number of registered exam takers.
func (s *AuthService) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, unavailable("count users", err)
	}
	return n, nil
}
