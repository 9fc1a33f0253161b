package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deskrelay/domain"

	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("test_secret_for_unit_tests_only", "deskrelay")
	operator := domain.Participant{ID: "o1", Class: domain.ClassOperator}

	token, err := verifier.Generate(operator, time.Hour)
	req.NoError(err)

	parsed, err := verifier.Validate(token)
	req.NoError(err)
	req.Equal(operator, parsed)
}

func TestVerifier_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("test_secret_for_unit_tests_only", "deskrelay")
	other := NewVerifier("a_different_secret_entirely_here", "deskrelay")

	token, err := other.Generate(domain.Participant{ID: "o1", Class: domain.ClassOperator}, time.Hour)
	req.NoError(err)

	_, err = verifier.Validate(token)
	req.Error(err)
}

func TestVerifier_Rejects_Claims_Without_A_Participant(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("test_secret_for_unit_tests_only", "deskrelay")

	token, err := verifier.Generate(domain.Participant{ID: "x", Class: "ghost"}, time.Hour)
	req.NoError(err)

	_, err = verifier.Validate(token)
	req.Error(err)
}

func TestMiddleware_Injects_The_Participant(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("test_secret_for_unit_tests_only", "deskrelay")
	member := domain.Participant{ID: "m1", Class: domain.ClassMember}

	var seen domain.Participant
	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		req.True(ok)
		seen = p
	}))

	token, err := verifier.Generate(member, time.Hour)
	req.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/api/unread", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(member, seen)
}

func TestMiddleware_Rejects_Missing_Or_Invalid_Tokens(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("test_secret_for_unit_tests_only", "deskrelay")

	handler := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Fail("handler must not run without identity")
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/unread", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/api/unread", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)
}
