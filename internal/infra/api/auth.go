package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/infra/logging"
	"interview-sessions/internal/infra/metrics"
)

type Role string

const (
	RolePlatformAdmin      Role = "platform_admin"
	RoleInstitutionAdmin   Role = "institution_admin"
	RoleDepartmentReviewer Role = "department_reviewer"
	RoleStudent            Role = "student"
	// RoleService is used by internal callers such as billing.
	RoleService Role = "service"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID            string
	Role          Role
	InstitutionID string
	DepartmentID  string
}

func (a Actor) is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// InInstitution reports whether the actor may act on data of institutionID.
// Platform admins and services are not bound to an institution.
func (a Actor) InInstitution(institutionID string) bool {
	if a.is(RolePlatformAdmin, RoleService) {
		return true
	}
	return institutionID != "" && a.InstitutionID == institutionID
}

// CanReview reports whether the actor may decide a request filed in the
// given institution and department.
func (a Actor) CanReview(institutionID, departmentID string) bool {
	switch a.Role {
	case RolePlatformAdmin:
		return true
	case RoleInstitutionAdmin:
		return a.InstitutionID == institutionID
	case RoleDepartmentReviewer:
		return a.InstitutionID == institutionID && a.DepartmentID == departmentID
	}
	return false
}

type actorCtxKey struct{}

func withActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

func actorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(Actor)
	return a, ok
}

// ===== JWT primitives =====

type Claims struct {
	Role          Role   `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	DepartmentID  string `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewAuthManager(secret, issuer string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Mint signs a token for a. Tokens are issued by the identity service in
// production; Mint exists for tooling and tests.
func (m *AuthManager) Mint(a Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:          a.Role,
		InstitutionID: a.InstitutionID,
		DepartmentID:  a.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

var errUnauthenticated = errors.New("missing or invalid bearer token")

func (m *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errUnauthenticated
	}
	return m.parse(strings.TrimSpace(hdr[7:]))
}

func (m *AuthManager) parse(tok string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errUnauthenticated
	}
	if claims.Subject == "" {
		return nil, errUnauthenticated
	}
	switch claims.Role {
	case RolePlatformAdmin, RoleInstitutionAdmin, RoleDepartmentReviewer, RoleStudent, RoleService:
	default:
		return nil, errUnauthenticated
	}
	return claims, nil
}

// Authenticate puts the Actor of a valid bearer token into the context.
func (m *AuthManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := m.ParseFromRequest(r)
		if err != nil {
			metrics.IncAuthDecision("", "unauthenticated")
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: err.Error()})
			return
		}
		a := Actor{ID: c.Subject, Role: c.Role, InstitutionID: c.InstitutionID, DepartmentID: c.DepartmentID}
		ctx := withActor(r.Context(), a)
		ctx = logging.WithActorID(ctx, a.ID)
		if a.InstitutionID != "" {
			ctx = logging.WithInstitutionID(ctx, a.InstitutionID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects actors outside roles with 403.
func RequireRole(roles ...Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := actorFrom(r.Context())
			if !ok || !a.is(roles...) {
				metrics.IncAuthDecision(string(a.Role), "denied")
				writeError(w, r, nil, domain.ErrPermissionDenied)
				return
			}
			metrics.IncAuthDecision(string(a.Role), "allowed")
			next.ServeHTTP(w, r)
		})
	}
}
