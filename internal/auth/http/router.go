package http

import (
	"context"
	"net/http"
	"time"

	"github.com/AlibekovAA/personal-manager/backend/internal/auth/gate"
	"github.com/AlibekovAA/personal-manager/backend/internal/auth/service"
	commonhttp "github.com/AlibekovAA/personal-manager/backend/internal/common/http"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	userdomain "github.com/AlibekovAA/personal-manager/backend/internal/user/domain"
)

type AuthService interface {
	Signup(ctx context.Context, input service.SignupInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Signin(ctx context.Context, input service.SigninInput) (service.AuthResult, error)
	Refresh(ctx context.Context, rawRefreshToken string) (service.AuthResult, error)
	Logout(ctx context.Context, rawRefreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (userdomain.User, error)
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signinRequest struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type authResponse struct {
	Token            string        `json:"token"`
	TokenExpiresAt   time.Time     `json:"tokenExpiresAt"`
	RefreshToken     string        `json:"refreshToken"`
	RefreshExpiresAt time.Time     `json:"refreshExpiresAt"`
	User             *userResponse `json:"user,omitempty"`
}

// Options carries the optional pieces of the router. A nil Throttle disables
// per-IP credential throttling.
type Options struct {
	RequestTimeout time.Duration
	Throttle       *commonhttp.CredentialThrottle
	HealthChecks   map[string]commonhttp.HealthCheck
}

type Handler struct {
	auth         AuthService
	errorHandler *commonhttp.ErrorHandler
	log          *logger.Logger
}

func NewHandler(auth AuthService, g *gate.Gate, opts Options, log *logger.Logger) http.Handler {
	h := &Handler{
		auth:         auth,
		errorHandler: commonhttp.NewErrorHandler(log),
		log:          log,
	}

	public := g.Middleware(gate.Public)
	protected := g.Middleware(gate.Protected())

	endpoint := func(method string, fn http.HandlerFunc) http.Handler {
		return commonhttp.RequireMethod(method)(commonhttp.WithTimeout(opts.RequestTimeout)(fn))
	}
	credential := func(scope string, next http.Handler) http.Handler {
		if opts.Throttle == nil {
			return public(next)
		}
		return public(opts.Throttle.Middleware(scope)(next))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, opts.HealthChecks))
	mux.Handle("/", public(http.HandlerFunc(h.index)))
	mux.Handle("/auth/signup", credential("signup", endpoint(http.MethodPost, h.signup)))
	mux.Handle("/auth/login", credential("login", endpoint(http.MethodPost, h.login)))
	mux.Handle("/auth/signin", credential("signin", endpoint(http.MethodPost, h.signin)))
	mux.Handle("/auth/refresh", credential("refresh", endpoint(http.MethodPost, h.refresh)))
	mux.Handle("/auth/logout", public(endpoint(http.MethodPost, h.logout)))
	mux.Handle("/auth/logout-all", protected(endpoint(http.MethodPost, h.logoutAll)))
	mux.Handle("/api/me", protected(endpoint(http.MethodGet, h.me)))
	return mux
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Personal Manager Backend API",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"auth": map[string]string{
				"signup":     "/auth/signup",
				"login":      "/auth/login",
				"signin":     "/auth/signin",
				"refresh":    "/auth/refresh",
				"logout":     "/auth/logout",
				"logout_all": "/auth/logout-all",
			},
			"me":      "/api/me",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, toAuthResponse(result, true))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toAuthResponse(result, true))
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Signin(r.Context(), service.SigninInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toAuthResponse(result, true))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toAuthResponse(result, false))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.IdentityFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, gate.ErrUnauthenticated)
		return
	}

	if err := h.auth.LogoutAll(r.Context(), identity.UserID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.IdentityFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, gate.ErrUnauthenticated)
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := commonhttp.DecodeJSON(r, v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	if err := commonhttp.Validate(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

func toAuthResponse(result service.AuthResult, withUser bool) authResponse {
	resp := authResponse{
		Token:            result.AccessToken.Token,
		TokenExpiresAt:   result.AccessToken.ExpiresAt.UTC(),
		RefreshToken:     result.RefreshToken.RawToken,
		RefreshExpiresAt: result.RefreshToken.ExpiresAt.UTC(),
	}
	if withUser {
		user := toUserResponse(result.User)
		resp.User = &user
	}
	return resp
}

func toUserResponse(user userdomain.User) userResponse {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:        string(user.ID),
		Name:      user.Name,
		Email:     user.Email,
		Roles:     roles,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}
