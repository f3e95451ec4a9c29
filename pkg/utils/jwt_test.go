package utils

import (
	"strings"
	"testing"
	"time"

	"project-collab-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateToken(t *testing.T) {
	t.Parallel()

	svc := NewJWTService("secret", "auth.example")
	good, err := svc.GenerateAccessToken("user-1", "u@example.com", "U", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	expired, err := svc.GenerateAccessToken("user-1", "u@example.com", "U", -time.Minute)
	if err != nil {
		t.Fatalf("generate expired: %v", err)
	}
	otherIssuer, err := NewJWTService("secret", "elsewhere").GenerateAccessToken("user-1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("generate other issuer: %v", err)
	}
	wrongKey, err := NewJWTService("other", "auth.example").GenerateAccessToken("user-1", "", "", time.Minute)
	if err != nil {
		t.Fatalf("generate wrong key: %v", err)
	}
	refresh := signClaims(t, "secret", &models.TokenClaims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "auth.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	noExpiry := signClaims(t, "secret", &models.TokenClaims{
		Type:             models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "auth.example"},
	})

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: good},
		{name: "expired", token: expired, wantErr: true},
		{name: "issuer mismatch", token: otherIssuer, wantErr: true},
		{name: "wrong key", token: wrongKey, wantErr: true},
		{name: "refresh token", token: refresh, wantErr: true},
		{name: "no expiry", token: noExpiry, wantErr: true},
		{name: "garbage", token: "not.a.token", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			claims, err := svc.ValidateToken(tc.token)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != "user-1" || claims.Email != "u@example.com" {
				t.Fatalf("unexpected claims %+v", claims)
			}
		})
	}
}

func TestValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.TokenClaims{
		Type: models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = NewJWTService("secret", "").ValidateToken(signed)
	if err == nil || !strings.Contains(err.Error(), "failed to parse token") {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func signClaims(t *testing.T, secret string, claims *models.TokenClaims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}
