package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stemsi/exstem-quiz/internal/model"
)

func newAuth() (*AuthService, *fakeTokenStore) {
	tokens := &fakeTokenStore{}
	return NewAuthService(testConfig(), &fakeUserStore{}, &fakeAdminStore{}, tokens, quietLogger()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newAuth()
	ctx := context.Background()

	u, err := auth.Register(ctx, model.RegisterRequest{Username: "Ada", Email: "Ada@Example.com", Password: "Secret1!x"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	if _, err := auth.Register(ctx, model.RegisterRequest{Username: "Ada", Email: "ada@example.com", Password: "Secret1!x"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: want ErrConflict, got %v", err)
	}

	resp, err := auth.Login(ctx, "ada@example.com", "Secret1!x")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeUser || claims.UserID != u.ID.String() || claims.Email != u.Email {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := auth.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := auth.Login(ctx, "nobody@example.com", "Secret1!x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestAdminTokenCarriesPermissions(t *testing.T) {
	auth, _ := newAuth()
	ctx := context.Background()

	if _, err := auth.CreateAdmin(ctx, "Root", "root@example.com", "hunter22", []string{"questions:write"}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	resp, err := auth.AdminLogin(ctx, "root@example.com", "hunter22")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	claims, err := auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin || !claims.HasPermission("questions:write") || claims.HasPermission("settings:write") {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newAuth()
	foreign := testConfig()
	foreign.JWTSecret = "someone-else"
	other := NewAuthService(foreign, nil, nil, nil, quietLogger())
	token, err := other.GenerateUserToken(&model.User{Email: "x@y.z"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ValidateToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	auth, tokens := newAuth()
	ctx := context.Background()

	token, _ := auth.GenerateUserToken(&model.User{Email: "a@b.co"})
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if err := auth.CheckNotRevoked(ctx, claims); err != nil {
		t.Fatalf("fresh token revoked: %v", err)
	}
	if err := auth.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ttl := tokens.revoked[claims.ID]; ttl <= 0 {
		t.Fatalf("revocation ttl = %v", ttl)
	}
	if err := auth.CheckNotRevoked(ctx, claims); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("want ErrTokenRevoked, got %v", err)
	}
}
