// Package auth verifies caller origins. An origin is a signed JWT whose
// subject is the caller's account id.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"adopt-go/internal/adopt"
	"adopt-go/internal/config"
	"adopt-go/internal/model"
	"adopt-go/internal/treasury"
)

// MinSecretLen is the shortest HMAC secret accepted, in bytes.
const MinSecretLen = 32

// Claims are the registered JWT claims carried by an origin token.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTVerifier issues and verifies HS256 origin tokens.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	clock    adopt.Clock
}

// NewJWTVerifier creates a verifier. Expiry is checked against clock.
func NewJWTVerifier(secret []byte, issuer, audience string, clock adopt.Clock) (*JWTVerifier, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	if clock == nil {
		clock = adopt.RealClock{}
	}
	return &JWTVerifier{
		secret:   append([]byte(nil), secret...),
		issuer:   issuer,
		audience: audience,
		clock:    clock,
	}, nil
}

// NewFromConfig loads the signing secret named by cfg.
func NewFromConfig(cfg config.AuthConfig, clock adopt.Clock) (*JWTVerifier, error) {
	secret, err := LoadSecret(cfg.SecretPath)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifier(secret, cfg.Issuer, cfg.Audience, clock)
}

// Issue signs a token for account that expires after ttl.
func (v *JWTVerifier) Issue(account model.AccountID, ttl time.Duration) (string, error) {
	if err := treasury.ValidateAccount(account); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := v.clock.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   string(account),
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses origin as a token and returns its subject.
// Every failure matches adopt.ErrUnauthenticated.
func (v *JWTVerifier) Verify(ctx context.Context, origin adopt.Origin) (model.AccountID, error) {
	if origin == "" {
		return "", fmt.Errorf("%w: no token", adopt.ErrUnauthenticated)
	}

	token, err := jwt.ParseWithClaims(string(origin), &Claims{}, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", adopt.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: %w", adopt.ErrUnauthenticated, jwt.ErrTokenSignatureInvalid)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", adopt.ErrUnauthenticated)
	}
	// Another issuer holding the secret may sign subjects Issue would refuse.
	account := model.AccountID(claims.Subject)
	if err := treasury.ValidateAccount(account); err != nil {
		return "", fmt.Errorf("%w: %w", adopt.ErrUnauthenticated, err)
	}
	return account, nil
}

func (v *JWTVerifier) keyFunc(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}

// GenerateSecret writes a new random secret to path. An existing file is kept.
func GenerateSecret(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("secret already exists at %s", path)
	}

	raw := make([]byte, MinSecretLen)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(raw)+"\n"), 0600); err != nil {
		return fmt.Errorf("writing secret: %w", err)
	}
	return nil
}

// LoadSecret reads a secret written by GenerateSecret.
func LoadSecret(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("secret_path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token secret: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

// Compile-time check that JWTVerifier implements adopt.Verifier interface
var _ adopt.Verifier = (*JWTVerifier)(nil)
