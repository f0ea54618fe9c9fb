package service

import (
	"context"
	"errors"
	"strings"
	"time"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/constants"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
)

type AuthService struct {
	credentials *CredentialStore
	tokens      *TokenIssuer
	refresh     *RefreshTokenRotator
	log         *logger.Logger
}

func NewAuthService(
	credentials *CredentialStore,
	tokens *TokenIssuer,
	refresh *RefreshTokenRotator,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		credentials: credentials,
		tokens:      tokens,
		refresh:     refresh,
		log:         log,
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// SigninInput logs in when the account exists and registers it otherwise.
// An empty Name falls back to the default display name.
type SigninInput struct {
	Name     string
	Email    string
	Password string
}

type AuthResult struct {
	User         userdomain.User
	AccessToken  authdomain.AccessToken
	RefreshToken authdomain.RefreshToken
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (result AuthResult, err error) {
	defer observeOperation("signup", time.Now(), &err)

	user, err := s.credentials.Register(ctx, input.Name, input.Email, input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "signup_failed",
		}).Warnf("signup failed: %v", err)
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "signup_success",
	}).Info("user registered")

	return s.issueSession(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (result AuthResult, err error) {
	defer observeOperation("login", time.Now(), &err)

	user, err := s.credentials.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "login_failed",
		}).Warnf("login failed: %v", err)
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("user logged in")

	return s.issueSession(ctx, user)
}

func (s *AuthService) Signin(ctx context.Context, input SigninInput) (result AuthResult, err error) {
	defer observeOperation("signin", time.Now(), &err)

	user, exists, err := s.credentials.authenticate(ctx, input.Email, input.Password)
	switch {
	case err == nil:
		return s.issueSession(ctx, user)
	case exists || !errors.Is(err, ErrInvalidCredentials):
		s.log.WithFields(ctx, logger.Fields{
			"action": "signin_failed",
		}).Warnf("signin failed: %v", err)
		return AuthResult{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = constants.DefaultUserName
	}

	user, err = s.credentials.Register(ctx, name, input.Email, input.Password)
	if err != nil {
		// Lost a registration race: the account now exists with whatever
		// password the winner chose.
		if errors.Is(err, ErrEmailTaken) {
			return s.Login(ctx, LoginInput{Email: input.Email, Password: input.Password})
		}
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "signin_registered",
	}).Info("user registered via signin")

	return s.issueSession(ctx, user)
}

// Refresh rotates the refresh token and returns a new pair. The user is
// reloaded by the rotation so role changes take effect on the next access
// token.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (result AuthResult, err error) {
	defer observeOperation("refresh", time.Now(), &err)

	rotation, err := s.refresh.Rotate(ctx, rawRefreshToken, func(user userdomain.User) (authdomain.AccessToken, error) {
		return s.tokens.IssueAccessToken(string(user.ID), user.Roles)
	})
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         rotation.User,
		AccessToken:  rotation.Access,
		RefreshToken: rotation.Refresh,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) (err error) {
	defer observeOperation("logout", time.Now(), &err)
	return s.refresh.RevokeBySecret(ctx, rawRefreshToken)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID string) (err error) {
	defer observeOperation("logout_all", time.Now(), &err)

	n, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"revoked": n,
		"action":  "logout_all",
	}).Info("all sessions revoked")
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (userdomain.User, error) {
	return s.credentials.FindByID(ctx, userID)
}

func (s *AuthService) issueSession(ctx context.Context, user userdomain.User) (AuthResult, error) {
	access, err := s.tokens.IssueAccessToken(string(user.ID), user.Roles)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "issue_access_token_failed",
		}).Errorf("failed to sign access token: %v", err)
		return AuthResult{}, internalError("failed to issue access token", err)
	}

	refresh, err := s.refresh.IssueRefreshToken(ctx, string(user.ID))
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
