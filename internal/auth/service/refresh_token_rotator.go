package service

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	authrepo "github.com/AlibekovAA/personal-manager/backend/internal/auth/repository"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/personal-manager/backend/internal/common/crypto"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/personal-manager/backend/internal/user/repository"
)

// AccessIssuer mints the access token paired with a rotated refresh token.
// It runs inside the rotation transaction and must not touch storage; an
// error rolls the rotation back.
type AccessIssuer func(user userdomain.User) (authdomain.AccessToken, error)

type Rotation struct {
	User    userdomain.User
	Access  authdomain.AccessToken
	Refresh authdomain.RefreshToken
}

type RefreshTokenRotator struct {
	refreshTokenRepo authrepo.RefreshTokenRepository
	idGenerator      commoncrypto.IDGenerator
	clock            clock.Clock
	maxRefreshTokens int
	refreshTokenTTL  time.Duration
	log              *logger.Logger
}

func NewRefreshTokenRotator(
	refreshTokenRepo authrepo.RefreshTokenRepository,
	idGenerator commoncrypto.IDGenerator,
	refreshTokenTTL time.Duration,
	maxRefreshTokens int,
	clk clock.Clock,
	log *logger.Logger,
) *RefreshTokenRotator {
	if maxRefreshTokens < 1 {
		maxRefreshTokens = 1
	}
	return &RefreshTokenRotator{
		refreshTokenRepo: refreshTokenRepo,
		idGenerator:      idGenerator,
		clock:            clk,
		maxRefreshTokens: maxRefreshTokens,
		refreshTokenTTL:  refreshTokenTTL,
		log:              log,
	}
}

// IssueRefreshToken revokes the user's oldest active tokens beyond the cap
// and stores a fresh one. Both steps run in one transaction under a per-user
// lock, so concurrent logins cannot push the user past the cap. The raw
// secret is only present on the return value.
func (rtr *RefreshTokenRotator) IssueRefreshToken(ctx context.Context, userID string) (authdomain.RefreshToken, error) {
	now := rtr.clock.Now()

	token, err := rtr.newRefreshToken(userID, now)
	if err != nil {
		return authdomain.RefreshToken{}, internalError("failed to issue refresh token", err)
	}

	var revoked int64
	err = rtr.refreshTokenRepo.WithTx(ctx, func(ctx context.Context, tx authrepo.RefreshTokenTx) error {
		if err := tx.LockUserSessions(ctx, userID); err != nil {
			return err
		}
		n, err := tx.RevokeExcessByUserID(ctx, userID, rtr.maxRefreshTokens-1, now)
		if err != nil {
			return err
		}
		revoked = n
		return tx.Create(ctx, token)
	})
	if err != nil {
		rtr.logFailure(ctx, userID, "issue_refresh_token_failed", err)
		return authdomain.RefreshToken{}, internalError("failed to issue refresh token", err)
	}

	addRefreshTokensRevoked("session_cap", revoked)
	incrementRefreshTokensIssued()
	return token, nil
}

// Rotate consumes rawToken and issues its successor in one transaction. The
// owner is loaded on the same connection; a deleted owner makes the token
// invalid. Of any number of concurrent calls with the same secret at most
// one succeeds and the rest get ErrInvalidRefreshToken.
func (rtr *RefreshTokenRotator) Rotate(ctx context.Context, rawToken string, issue AccessIssuer) (Rotation, error) {
	if rawToken == "" {
		incrementRefreshTokensRejected()
		return Rotation{}, ErrInvalidRefreshToken
	}

	hash := commoncrypto.SHA256Hex(rawToken)
	now := rtr.clock.Now()

	var result Rotation
	err := rtr.refreshTokenRepo.WithTx(ctx, func(ctx context.Context, tx authrepo.RefreshTokenTx) error {
		old, err := tx.RevokeActiveByTokenHash(ctx, hash, now)
		if err != nil {
			if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		user, err := tx.FindUser(ctx, old.UserID)
		if err != nil {
			if errors.Is(err, userrepo.ErrUserNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		access, err := issue(user)
		if err != nil {
			return err
		}

		successor, err := rtr.newRefreshToken(old.UserID, now)
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, successor); err != nil {
			return err
		}

		result = Rotation{User: user, Access: access, Refresh: successor}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			incrementRefreshTokensRejected()
			rtr.log.WithFields(ctx, logger.Fields{
				"action": "refresh_token_rejected",
			}).Warn("refresh token rejected: unknown, revoked or expired")
			return Rotation{}, ErrInvalidRefreshToken
		}
		rtr.logFailure(ctx, "", "rotate_refresh_token_failed", err)
		return Rotation{}, internalError("failed to rotate refresh token", err)
	}

	incrementRefreshTokensRotated()
	addRefreshTokensRevoked("rotation", 1)
	return result, nil
}

// RevokeBySecret revokes the token matching rawToken. Unknown or already
// revoked secrets are not an error.
func (rtr *RefreshTokenRotator) RevokeBySecret(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	token, err := rtr.refreshTokenRepo.RevokeByTokenHash(ctx, commoncrypto.SHA256Hex(rawToken), rtr.clock.Now())
	if err != nil {
		if errors.Is(err, authrepo.ErrRefreshTokenNotFound) {
			return nil
		}
		rtr.logFailure(ctx, "", "revoke_refresh_token_failed", err)
		return internalError("failed to revoke refresh token", err)
	}

	addRefreshTokensRevoked("logout", 1)
	rtr.log.WithFields(ctx, logger.Fields{
		"user_id": token.UserID,
		"action":  "refresh_token_revoked",
	}).Info("refresh token revoked")
	return nil
}

func (rtr *RefreshTokenRotator) Revoke(ctx context.Context, id string) error {
	if err := rtr.refreshTokenRepo.Revoke(ctx, id, rtr.clock.Now()); err != nil {
		rtr.logFailure(ctx, "", "revoke_refresh_token_failed", err)
		return internalError("failed to revoke refresh token", err)
	}
	return nil
}

func (rtr *RefreshTokenRotator) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := rtr.refreshTokenRepo.RevokeAllForUser(ctx, userID, rtr.clock.Now())
	if err != nil {
		rtr.logFailure(ctx, userID, "revoke_all_refresh_tokens_failed", err)
		return 0, internalError("failed to revoke refresh tokens", err)
	}
	addRefreshTokensRevoked("logout_all", n)
	return n, nil
}

func (rtr *RefreshTokenRotator) newRefreshToken(userID string, now time.Time) (authdomain.RefreshToken, error) {
	rawToken, err := commoncrypto.RandomSecret(constants.RefreshTokenSize)
	if err != nil {
		return authdomain.RefreshToken{}, err
	}

	id, err := rtr.idGenerator.NewID()
	if err != nil {
		return authdomain.RefreshToken{}, err
	}

	return authdomain.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: commoncrypto.SHA256Hex(rawToken),
		ExpiresAt: now.Add(rtr.refreshTokenTTL),
		CreatedAt: now,
		RawToken:  rawToken,
	}, nil
}

func (rtr *RefreshTokenRotator) logFailure(ctx context.Context, userID, action string, err error) {
	fields := logger.Fields{"action": action}
	if userID != "" {
		fields["user_id"] = userID
	}
	if isCircuitOpen(err) {
		rtr.log.WithFields(ctx, fields).Error("database circuit breaker is open")
		return
	}
	rtr.log.WithFields(ctx, fields).Errorf("refresh token storage error: %v", err)
}
