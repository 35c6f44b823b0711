package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingIdentity = errors.New("missing identity")
	ErrInvalidToken    = errors.New("invalid token")
)

// Principal is the authenticated caller. Roles come from the token or the
// trusted headers; they are not re-read from the member store.
type Principal struct {
	MemberID string
	IsAdmin  bool
	IsBoard  bool
}

type Claims struct {
	Admin bool `json:"admin,omitempty"`
	Board bool `json:"board,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens. A Verifier with an empty secret
// trusts the X-User-Id, X-User-Admin and X-User-Board headers instead.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret string, issuer string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer)}
}

func (v *Verifier) TrustsHeaders() bool {
	return v == nil || len(v.secret) == 0
}

// Issue signs a token for p. Used by the CLI for local tokens and by tests.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	if v.TrustsHeaders() {
		return "", errors.New("jwt secret is not configured")
	}
	if strings.TrimSpace(p.MemberID) == "" {
		return "", ErrMissingIdentity
	}
	now := time.Now().UTC()
	claims := Claims{
		Admin: p.IsAdmin,
		Board: p.IsBoard,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.MemberID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (v *Verifier) Verify(raw string) (Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{MemberID: claims.Subject, IsAdmin: claims.Admin, IsBoard: claims.Board}, nil
}

// Resolve extracts the caller from r.
func (v *Verifier) Resolve(r *http.Request) (Principal, error) {
	if v.TrustsHeaders() {
		memberID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if memberID == "" {
			return Principal{}, ErrMissingIdentity
		}
		return Principal{
			MemberID: memberID,
			IsAdmin:  headerBool(r, "X-User-Admin"),
			IsBoard:  headerBool(r, "X-User-Board"),
		}, nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Principal{}, ErrMissingIdentity
	}
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return Principal{}, ErrInvalidToken
	}
	return v.Verify(strings.TrimSpace(raw))
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Middleware rejects requests without a resolvable caller. onError writes
// the failure response so callers keep their own error envelope.
func Middleware(
	v *Verifier,
	logger *slog.Logger,
	onError func(w http.ResponseWriter, err error),
) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Resolve(r)
			if err != nil {
				logger.Debug("request identity rejected",
					"event", "identity_rejected",
					"module", "internal/platform/identity",
					"layer", "platform",
					"path", r.URL.Path,
					"error", err.Error(),
				)
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func headerBool(r *http.Request, name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(name)))
	return err == nil && value
}
