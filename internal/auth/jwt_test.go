package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adopt-go/internal/adopt"
	"adopt-go/internal/config"
	"adopt-go/internal/testutil"
)

var testSecret = []byte(strings.Repeat("s", MinSecretLen))

func newTestVerifier(t *testing.T, clock adopt.Clock) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret, "adopt", "ledger", clock)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestJWTVerifier_IssueVerify(t *testing.T) {
	clock := testutil.FixedClock()
	v := newTestVerifier(t, clock)

	token, err := v.Issue("bob", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := v.Verify(context.Background(), adopt.Origin(token))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "bob" {
		t.Errorf("Verify() = %q, want bob", got)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("empty origin", func(t *testing.T) {
		v := newTestVerifier(t, testutil.FixedClock())
		if _, err := v.Verify(ctx, ""); !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		v := newTestVerifier(t, testutil.FixedClock())
		if _, err := v.Verify(ctx, "not-a-token"); !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		clock := testutil.FixedClock()
		v := newTestVerifier(t, clock)
		token, _ := v.Issue("bob", time.Minute)

		clock.Advance(2 * time.Minute)
		_, err := v.Verify(ctx, adopt.Origin(token))
		if !errors.Is(err, adopt.ErrUnauthenticated) || !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated wrapping ErrTokenExpired", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		clock := testutil.FixedClock()
		other, _ := NewJWTVerifier([]byte(strings.Repeat("x", MinSecretLen)), "adopt", "ledger", clock)
		token, _ := other.Issue("mallory", time.Hour)

		_, err := newTestVerifier(t, clock).Verify(ctx, adopt.Origin(token))
		if !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("wrong audience", func(t *testing.T) {
		clock := testutil.FixedClock()
		other, _ := NewJWTVerifier(testSecret, "adopt", "elsewhere", clock)
		token, _ := other.Issue("bob", time.Hour)

		_, err := newTestVerifier(t, clock).Verify(ctx, adopt.Origin(token))
		if !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("unsigned token", func(t *testing.T) {
		clock := testutil.FixedClock()
		now := clock.Now()
		claims := jwt.RegisteredClaims{
			Subject:   "mallory",
			Issuer:    "adopt",
			Audience:  jwt.ClaimStrings{"ledger"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("signing none token: %v", err)
		}

		_, err = newTestVerifier(t, clock).Verify(ctx, adopt.Origin(token))
		if !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
		}
	})
}

func TestJWTVerifier_RejectsMalformedSubject(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	v := newTestVerifier(t, clock)

	// Tokens signed with the shared secret but not minted by Issue.
	for _, subject := range []string{"a\x00b", "bob\n", "alice bob", "\t"} {
		t.Run(subject, func(t *testing.T) {
			now := clock.Now()
			claims := jwt.RegisteredClaims{
				Subject:   subject,
				Issuer:    "adopt",
				Audience:  jwt.ClaimStrings{"ledger"},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
			if err != nil {
				t.Fatalf("signing token: %v", err)
			}

			got, err := v.Verify(ctx, adopt.Origin(token))
			if !errors.Is(err, adopt.ErrUnauthenticated) || !errors.Is(err, adopt.ErrInvalidIdentity) {
				t.Errorf("Verify() = %q, %v; want ErrUnauthenticated wrapping ErrInvalidIdentity", got, err)
			}
		})
	}
}

func TestJWTVerifier_Issue_Rejects(t *testing.T) {
	v := newTestVerifier(t, testutil.FixedClock())

	if _, err := v.Issue("", time.Hour); !errors.Is(err, adopt.ErrInvalidIdentity) {
		t.Errorf("Issue(\"\") error = %v, want ErrInvalidIdentity", err)
	}
	if _, err := v.Issue("bob", 0); err == nil {
		t.Error("Issue() with zero ttl should fail")
	}
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier([]byte("short"), "adopt", "ledger", nil); err == nil {
		t.Error("NewJWTVerifier() expected error for short secret")
	}
}

func TestSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "token.secret")

	if err := GenerateSecret(path); err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if err := GenerateSecret(path); err == nil {
		t.Error("second GenerateSecret() should refuse to overwrite")
	}

	secret, err := LoadSecret(path)
	if err != nil {
		t.Fatalf("LoadSecret() error = %v", err)
	}
	if len(secret) < MinSecretLen {
		t.Errorf("secret is %d bytes, want at least %d", len(secret), MinSecretLen)
	}

	v, err := NewFromConfig(config.AuthConfig{SecretPath: path, Issuer: "adopt", Audience: "ledger"}, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	token, _ := v.Issue("carol", time.Hour)
	if got, err := v.Verify(context.Background(), adopt.Origin(token)); err != nil || got != "carol" {
		t.Errorf("Verify() = %q, %v", got, err)
	}
}
