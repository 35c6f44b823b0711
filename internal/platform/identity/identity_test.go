package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	verifier := NewVerifier("test-secret", "bureausocial")
	token, err := verifier.Issue(Principal{MemberID: "ana", IsBoard: true}, time.Minute)
	require.NoError(t, err)

	principal, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, Principal{MemberID: "ana", IsBoard: true}, principal)
}

func TestVerifierRejectsForeignAndExpiredTokens(t *testing.T) {
	verifier := NewVerifier("test-secret", "bureausocial")

	foreign, err := NewVerifier("other-secret", "bureausocial").Issue(Principal{MemberID: "ana"}, time.Minute)
	require.NoError(t, err)
	_, err = verifier.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := verifier.Issue(Principal{MemberID: "ana"}, -time.Minute)
	require.NoError(t, err)
	_, err = verifier.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewVerifier("test-secret", "elsewhere").Issue(Principal{MemberID: "ana"}, time.Minute)
	require.NoError(t, err)
	_, err = verifier.Verify(otherIssuer)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolveTrustedHeaders(t *testing.T) {
	verifier := NewVerifier("", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "bruno")
	req.Header.Set("X-User-Admin", "true")

	principal, err := verifier.Resolve(req)
	require.NoError(t, err)
	require.Equal(t, Principal{MemberID: "bruno", IsAdmin: true}, principal)

	_, err = verifier.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, ErrMissingIdentity)
}

func TestMiddlewareBearer(t *testing.T) {
	verifier := NewVerifier("test-secret", "")
	var seen Principal
	handler := Middleware(verifier, nil, func(w http.ResponseWriter, _ error) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Trusted headers are ignored once a secret is configured.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "mallory")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.Issue(Principal{MemberID: "carla", IsAdmin: true}, time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, Principal{MemberID: "carla", IsAdmin: true}, seen)
}
