package gate

import (
	"net/http"
	"strconv"
	"strings"

	authdomain "github.com/AlibekovAA/personal-manager/backend/internal/auth/domain"
	commonerrors "github.com/AlibekovAA/personal-manager/backend/internal/common/errors"
	commonhttp "github.com/AlibekovAA/personal-manager/backend/internal/common/http"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/httpmetrics"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/logger"
	"github.com/AlibekovAA/personal-manager/backend/internal/common/ratelimit"
	"github.com/AlibekovAA/personal-manager/backend/internal/observability/metrics"
)

var (
	ErrUnauthenticated = commonerrors.NewDomainError(
		commonerrors.KindUnauthenticated,
		"missing or invalid authorization",
	)

	ErrForbidden = commonerrors.NewDomainError(
		commonerrors.KindForbidden,
		"insufficient permissions",
	)
)

type Admitter interface {
	Admit(key string) ratelimit.Decision
}

type TokenVerifier interface {
	VerifyAccessToken(token string) (authdomain.Claims, error)
}

// Policy describes what a route requires. Optional routes admit anonymous
// requests but still reject a token that is present and invalid.
type Policy struct {
	Optional bool
	Roles    []string
}

var Public = Policy{Optional: true}

func Protected(roles ...string) Policy {
	return Policy{Roles: roles}
}

type Stage int

const (
	StageStart Stage = iota
	StageRateChecked
	StageTokenExtracted
	StageTokenValidated
	StageAuthorized
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageRateChecked:
		return "rate_checked"
	case StageTokenExtracted:
		return "token_extracted"
	case StageTokenValidated:
		return "token_validated"
	case StageAuthorized:
		return "authorized"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of one pass through the gate. Stage is either
// StageAuthorized or StageRejected; FailedAt names the step that rejected.
type Outcome struct {
	Stage    Stage
	FailedAt Stage
	Identity *authdomain.Identity
	Decision ratelimit.Decision
	Err      error
}

func (o Outcome) Allowed() bool {
	return o.Stage == StageAuthorized
}

func (o Outcome) Kind() commonerrors.Kind {
	return commonerrors.KindOf(o.Err)
}

type Gate struct {
	limiter      Admitter
	verifier     TokenVerifier
	clientIP     *commonhttp.ClientIPResolver
	errorHandler *commonhttp.ErrorHandler
	log          *logger.Logger
}

// New builds a gate. Anonymous requests are keyed by clientIP, which may be
// nil to key on the TCP peer alone.
func New(limiter Admitter, verifier TokenVerifier, clientIP *commonhttp.ClientIPResolver, log *logger.Logger) *Gate {
	return &Gate{
		limiter:      limiter,
		verifier:     verifier,
		clientIP:     clientIP,
		errorHandler: commonhttp.NewErrorHandler(log),
		log:          log,
	}
}

// Evaluate runs the rate check, bearer extraction, token validation and
// role check in that order. The token is verified once up front to pick
// the rate key, but a rate rejection always wins over a token rejection.
func (g *Gate) Evaluate(r *http.Request, policy Policy) Outcome {
	token, hasToken := bearerToken(r)

	var (
		claims    authdomain.Claims
		verifyErr error
	)
	if hasToken {
		claims, verifyErr = g.verifier.VerifyAccessToken(token)
	}

	key := "ip:" + g.clientIP.ClientIP(r)
	if hasToken && verifyErr == nil {
		key = "user:" + claims.UserID
	}

	decision := g.limiter.Admit(key)
	if !decision.Allowed {
		return rejected(StageRateChecked, decision, commonerrors.ErrTooManyRequests)
	}

	if !hasToken {
		if policy.Optional {
			return Outcome{Stage: StageAuthorized, Decision: decision}
		}
		return rejected(StageTokenExtracted, decision, ErrUnauthenticated)
	}

	if verifyErr != nil {
		if !commonerrors.IsDomainError(verifyErr) {
			verifyErr = ErrUnauthenticated.WithCause(verifyErr)
		}
		return rejected(StageTokenValidated, decision, verifyErr)
	}

	identity := claims.Identity()
	if !identity.HasAllRoles(policy.Roles) {
		return rejected(StageAuthorized, decision, ErrForbidden)
	}

	return Outcome{Stage: StageAuthorized, Identity: &identity, Decision: decision}
}

func rejected(at Stage, decision ratelimit.Decision, err error) Outcome {
	return Outcome{Stage: StageRejected, FailedAt: at, Decision: decision, Err: err}
}

func (g *Gate) Middleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := g.Evaluate(r, policy)
			writeRateHeaders(w, outcome.Decision)

			if !outcome.Allowed() {
				g.reject(w, r, outcome)
				return
			}

			if outcome.Identity == nil {
				metrics.GateDecisionsTotal.WithLabelValues("anonymous").Inc()
				next.ServeHTTP(w, r)
				return
			}

			metrics.GateDecisionsTotal.WithLabelValues("authorized").Inc()
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *outcome.Identity)))
		})
	}
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, outcome Outcome) {
	label := decisionLabel(outcome)
	metrics.GateDecisionsTotal.WithLabelValues(label).Inc()

	if outcome.FailedAt == StageRateChecked {
		metrics.RateLimitBlocked.WithLabelValues(httpmetrics.NormalizePath(r.URL.Path), "fixed_window").Inc()
		w.Header().Set("Retry-After", strconv.Itoa(commonhttp.CeilSeconds(outcome.Decision.RetryAfter)))
	} else {
		g.log.WithFields(r.Context(), logger.Fields{
			"path":   r.URL.Path,
			"stage":  outcome.FailedAt.String(),
			"action": "gate_rejected",
		}).Warnf("auth failed: %v", outcome.Err)
	}

	g.errorHandler.HandleError(w, r, outcome.Err)
}

func decisionLabel(outcome Outcome) string {
	switch outcome.FailedAt {
	case StageRateChecked:
		return "rate_limited"
	case StageTokenExtracted:
		return "unauthenticated"
	case StageTokenValidated:
		return "invalid_token"
	case StageAuthorized:
		return "forbidden"
	default:
		return "rejected"
	}
}

func writeRateHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// bearerToken reports whether the request carries a Bearer authorization
// header. Any other scheme counts as no token.
func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
