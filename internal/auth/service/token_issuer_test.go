package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/personal-manager/backend/internal/auth/service"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
)

const testSecret = "test-secret-key-must-be-at-least-32-bytes-long"

func newTestIssuer(ttl time.Duration) (*service.TokenIssuer, *clock.MockClock) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return service.NewTokenIssuer(testSecret, &mockIDGenerator{}, ttl, mockClock), mockClock
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Hour)

	access, err := issuer.IssueAccessToken("user-123", []string{"user", "admin"})
	require.NoError(t, err)

	assert.NotEmpty(t, access.Token)
	assert.Equal(t, "id-1", access.JTI)
	assert.Equal(t, mockClock.Now(), access.IssuedAt)
	assert.Equal(t, mockClock.Now().Add(time.Hour), access.ExpiresAt)

	claims, err := issuer.VerifyAccessToken(access.Token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.Equal(t, access.JTI, claims.JTI)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	assert.True(t, access.ExpiresAt.Equal(claims.ExpiresAt))
}

func TestTokenIssuer_IDGenerationError(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	gen := &mockIDGenerator{newIDFunc: func() (string, error) {
		return "", errors.New("id generation failed")
	}}
	issuer := service.NewTokenIssuer(testSecret, gen, time.Hour, mockClock)

	_, err := issuer.IssueAccessToken("user-123", nil)

	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Second)

	access, err := issuer.IssueAccessToken("user-123", nil)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(access.Token)
	require.NoError(t, err)

	mockClock.Advance(999 * time.Millisecond)
	_, err = issuer.VerifyAccessToken(access.Token)
	require.NoError(t, err, "token should still be valid just before exp")

	mockClock.Advance(2 * time.Second)
	_, err = issuer.VerifyAccessToken(access.Token)
	assert.True(t, errors.Is(err, service.ErrTokenExpired), "got %v", err)
	assert.Equal(t, commonerrors.KindExpired, commonerrors.KindOf(err))
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Hour)
	other := service.NewTokenIssuer("different-secret-key-must-be-at-least-32-bytes", &mockIDGenerator{}, time.Hour, mockClock)

	access, err := other.IssueAccessToken("user-123", nil)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(access.Token)

	if !errors.Is(err, service.ErrTokenInvalidSignature) {
		t.Errorf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestTokenIssuer_ExpiredAndWrongSecretReportsSignature(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Second)
	other := service.NewTokenIssuer("different-secret-key-must-be-at-least-32-bytes", &mockIDGenerator{}, time.Second, mockClock)

	access, err := other.IssueAccessToken("user-123", nil)
	require.NoError(t, err)
	mockClock.Advance(time.Hour)

	_, err = issuer.VerifyAccessToken(access.Token)

	assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
}

func TestTokenIssuer_Malformed(t *testing.T) {
	issuer, _ := newTestIssuer(time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "invalid-token"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"bad base64", "!!!.@@@.###"},
		{"non json header", "bm90anNvbg.bm90anNvbg.c2ln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.VerifyAccessToken(tt.token)
			assert.True(t, errors.Is(err, service.ErrTokenMalformed), "got %v", err)
		})
	}
}

func signRaw(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		IssuedAt:  jwt.NewNumericDate(mockClock.Now()),
		ExpiresAt: jwt.NewNumericDate(mockClock.Now().Add(time.Hour)),
	}

	none := signRaw(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)
	hs512 := signRaw(t, jwt.SigningMethodHS512, []byte(testSecret), claims)

	for name, token := range map[string]string{"none": none, "HS512": hs512} {
		_, err := issuer.VerifyAccessToken(token)
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "%s: got %v", name, err)
	}
}

func TestTokenIssuer_MissingRequiredClaims(t *testing.T) {
	issuer, mockClock := newTestIssuer(time.Hour)

	noSubject := signRaw(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(mockClock.Now().Add(time.Hour)),
	})
	noExpiry := signRaw(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject: "user-123",
	})

	for name, token := range map[string]string{"no sub": noSubject, "no exp": noExpiry} {
		_, err := issuer.VerifyAccessToken(token)
		assert.True(t, errors.Is(err, service.ErrTokenMalformed), "%s: got %v", name, err)
	}
}

// Every single-bit change to a valid token must be rejected, and only as
// malformed or with a bad signature.
func TestTokenIssuer_TamperDetection(t *testing.T) {
	issuer, _ := newTestIssuer(time.Hour)

	access, err := issuer.IssueAccessToken("user-123", []string{"user"})
	require.NoError(t, err)

	raw := []byte(access.Token)
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[i] ^= 1 << bit

			_, err := issuer.VerifyAccessToken(string(tampered))
			if err == nil {
				t.Fatalf("tampered token accepted: byte %d bit %d", i, bit)
			}
			kind := commonerrors.KindOf(err)
			if kind != commonerrors.KindMalformed && kind != commonerrors.KindInvalidSignature {
				t.Fatalf("byte %d bit %d: unexpected kind %s", i, bit, kind)
			}
		}
	}
}

func TestTokenIssuer_TruncatedSignature(t *testing.T) {
	issuer, _ := newTestIssuer(time.Hour)

	access, err := issuer.IssueAccessToken("user-123", nil)
	require.NoError(t, err)

	cut := access.Token[:strings.LastIndex(access.Token, ".")+5]
	_, err = issuer.VerifyAccessToken(cut)

	assert.Error(t, err)
}
