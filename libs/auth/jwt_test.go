package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	caller := Caller{UserID: uuid.New(), Role: RoleNurse}
	token, err := Sign("test-secret", caller, time.Hour)
	require.NoError(t, err)

	got, err := NewVerifier("test-secret").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, caller, got)

	_, err = NewVerifier("wrong-secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	token, err := Sign("s", Caller{UserID: uuid.New(), Role: RolePatient}, -time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("s").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" doctor ")
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, r)
	assert.True(t, r.IsStaff())
	assert.False(t, RolePatient.IsStaff())

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("s")
	caller := Caller{UserID: uuid.New(), Role: RoleDoctor}
	var seen Caller
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rw.Code)

	token, err := Sign("s", caller, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, caller, seen)
}
