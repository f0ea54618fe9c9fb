package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AlibekovAA/personal-manager/backend/internal/common/clock"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/personal-manager/backend/internal/common/crypto"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
	userrepo "github.com/AlibekovAA/personal-manager/backend/internal/user/repository"
)

const dummyPassword = "dummy-password-for-unknown-accounts"

// CredentialStore checks email/password pairs. Unknown emails and wrong
// passwords are indistinguishable to the caller, in result and in cost.
type CredentialStore struct {
	users       userrepo.Repository
	hasher      commoncrypto.PasswordHasher
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	log         *logger.Logger
	dummyHash   string
}

func NewCredentialStore(
	users userrepo.Repository,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) (*CredentialStore, error) {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{
		users:       users,
		hasher:      hasher,
		idGenerator: idGenerator,
		clock:       clk,
		log:         log,
		dummyHash:   dummyHash,
	}, nil
}

func (cs *CredentialStore) Authenticate(ctx context.Context, email, password string) (userdomain.User, error) {
	user, _, err := cs.authenticate(ctx, email, password)
	return user, err
}

// authenticate also reports whether the email belongs to an account.
func (cs *CredentialStore) authenticate(ctx context.Context, email, password string) (userdomain.User, bool, error) {
	email = userdomain.NormalizeEmail(email)

	user, err := cs.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			cs.hasher.Verify(cs.dummyHash, password)
			return userdomain.User{}, false, ErrInvalidCredentials
		}
		cs.logStorageError(ctx, "find_user_failed", err)
		return userdomain.User{}, false, internalError("failed to authenticate", err)
	}

	if !cs.hasher.Verify(user.PasswordHash, password) {
		return userdomain.User{}, true, ErrInvalidCredentials
	}

	if cs.hasher.NeedsRehash(user.PasswordHash) {
		cs.rehash(ctx, &user, password)
	}

	return user, true, nil
}

func (cs *CredentialStore) rehash(ctx context.Context, user *userdomain.User, password string) {
	hash, err := cs.hasher.Hash(password)
	if err != nil {
		cs.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "password_rehash_failed",
		}).Warnf("password rehash failed: %v", err)
		return
	}
	if err := cs.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		cs.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "password_rehash_failed",
		}).Warnf("password rehash not stored: %v", err)
		return
	}
	user.PasswordHash = hash
	incrementPasswordRehashes()
}

// Register creates an account with the default role. The email is stored
// normalized; a taken email yields ErrEmailTaken.
func (cs *CredentialStore) Register(ctx context.Context, name, email, password string) (userdomain.User, error) {
	name = strings.TrimSpace(name)
	email = userdomain.NormalizeEmail(email)

	if err := validateName(name); err != nil {
		return userdomain.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return userdomain.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return userdomain.User{}, err
	}

	hash, err := cs.hasher.Hash(password)
	if err != nil {
		return userdomain.User{}, internalError("failed to register", err)
	}

	id, err := cs.idGenerator.NewID()
	if err != nil {
		return userdomain.User{}, internalError("failed to register", err)
	}

	now := cs.clock.Now().UTC()
	user := userdomain.User{
		ID:           userdomain.ID(id),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{constants.DefaultUserRole},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := cs.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrEmailAlreadyExists) {
			return userdomain.User{}, ErrEmailTaken
		}
		cs.logStorageError(ctx, "create_user_failed", err)
		return userdomain.User{}, internalError("failed to register", err)
	}

	return user, nil
}

func (cs *CredentialStore) FindByID(ctx context.Context, id string) (userdomain.User, error) {
	user, err := cs.users.FindByID(ctx, userdomain.ID(id))
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return userdomain.User{}, ErrUserNotFound
		}
		cs.logStorageError(ctx, "find_user_failed", err)
		return userdomain.User{}, internalError("failed to load user", err)
	}
	return user, nil
}

func (cs *CredentialStore) logStorageError(ctx context.Context, action string, err error) {
	entry := cs.log.WithFields(ctx, logger.Fields{"action": action})
	if isCircuitOpen(err) {
		entry.Error("database circuit breaker is open")
		return
	}
	entry.Errorf("user storage error: %v", err)
}
