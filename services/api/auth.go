package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"goongoom/pkg/audit"
	"goongoom/services/qna"
)

const bearerPrefix = "Bearer "

var errInvalidToken = errors.New("invalid or expired token")

// TokenManager issues and verifies the HS256 bearer tokens that identify
// authenticated subjects.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager from the shared signing secret.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for the given subject id.
func (m *TokenManager) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("subject id is required")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		Issuer:    "goongoom",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses a token and returns its subject id.
func (m *TokenManager) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

type authContextKey int

const (
	subjectContextKey authContextKey = iota
	userContextKey
)

func withSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subjectID)
}

func subjectFrom(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}

func withUser(ctx context.Context, user qna.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func userFrom(ctx context.Context) (qna.User, bool) {
	user, ok := ctx.Value(userContextKey).(qna.User)
	return user, ok
}

// authenticate resolves an optional bearer token into the request context.
// Requests without an Authorization header pass through anonymously; a
// malformed or expired token is rejected outright. A verified subject that
// has not registered a profile yet keeps only its subject id.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			respondError(w, http.StatusUnauthorized, errInvalidToken)
			return
		}

		subject, err := a.tokens.Verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}

		ctx := withSubject(r.Context(), subject)
		user, err := a.service.UserBySubject(ctx, subject)
		switch {
		case err == nil:
			ctx = withUser(ctx, user)
			ctx = audit.WithActor(ctx, user.ID.String())
		case errors.Is(err, qna.ErrUserNotFound):
			// Token is valid but no profile exists yet; registration only.
		default:
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser rejects requests whose context carries no registered profile.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFrom(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
