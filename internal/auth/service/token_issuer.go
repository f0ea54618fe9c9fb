package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/personal-manager/backend/internal/common/crypto"
)

type accessClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens with a key fixed at
// construction. Verification never touches storage.
type TokenIssuer struct {
	jwtSecret      []byte
	idGenerator    commoncrypto.IDGenerator
	clock          clock.Clock
	accessTokenTTL time.Duration
	parser         *jwt.Parser
}

func NewTokenIssuer(
	jwtSecret string,
	idGenerator commoncrypto.IDGenerator,
	accessTokenTTL time.Duration,
	clk clock.Clock,
) *TokenIssuer {
	return &TokenIssuer{
		jwtSecret:      []byte(jwtSecret),
		idGenerator:    idGenerator,
		clock:          clk,
		accessTokenTTL: accessTokenTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithStrictDecoding(),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}
}

func (ti *TokenIssuer) TTL() time.Duration {
	return ti.accessTokenTTL
}

func (ti *TokenIssuer) IssueAccessToken(userID string, roles []string) (authdomain.AccessToken, error) {
	jti, err := ti.idGenerator.NewID()
	if err != nil {
		return authdomain.AccessToken{}, err
	}

	now := ti.clock.Now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ti.accessTokenTTL))

	claims := accessClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := t.SignedString(ti.jwtSecret)
	if err != nil {
		return authdomain.AccessToken{}, err
	}

	incrementAccessTokensIssued()
	return authdomain.AccessToken{
		Token:     tokenString,
		JTI:       jti,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// VerifyAccessToken returns ErrTokenMalformed, ErrTokenInvalidSignature or
// ErrTokenExpired on rejection. Structure is checked before the signature
// and the signature before expiry.
func (ti *TokenIssuer) VerifyAccessToken(tokenString string) (authdomain.Claims, error) {
	var claims accessClaims
	_, err := ti.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return ti.jwtSecret, nil
	})
	if err != nil {
		mapped := classifyParseError(err)
		incrementVerification(kindLabel(mapped))
		return authdomain.Claims{}, mapped
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		incrementVerification("malformed")
		return authdomain.Claims{}, ErrTokenMalformed
	}

	incrementVerification("valid")

	out := authdomain.Claims{
		UserID:    claims.Subject,
		Roles:     claims.Roles,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed.WithCause(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature.WithCause(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired.WithCause(err)
	default:
		return ErrTokenMalformed.WithCause(err)
	}
}

func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}
