package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hailo/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)
	return mgr
}

func TestIssueAndParse(t *testing.T) {
	mgr := newManager(t)

	token, claims, err := mgr.Issue("driver-7", user.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "driver-7", claims.ActorID())

	parsed, err := mgr.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "driver-7", parsed.ActorID())
	assert.Equal(t, user.RoleDriver, parsed.Role)
	assert.Equal(t, Issuer, parsed.Issuer)
}

func TestIssueRejectsBadInput(t *testing.T) {
	mgr := newManager(t)

	_, _, err := mgr.Issue("", user.RoleRider)
	assert.Error(t, err)

	_, _, err = mgr.Issue("rider-1", user.Role("ADMIN"))
	assert.ErrorIs(t, err, user.ErrInvalidRole)

	_, err = NewManager("  ", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	mgr := newManager(t)
	other, err := NewManager("other-secret", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("rider-1", user.RoleRider)
	require.NoError(t, err)
	_, err = mgr.Parse(token)
	assert.Error(t, err)

	expired := NewActorClaims("rider-1", user.RoleRider, -time.Minute)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, expired).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = mgr.Parse(signed)
	assert.ErrorIs(t, err, jwtlib.ErrTokenExpired)

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, NewActorClaims("rider-1", user.RoleRider, time.Hour)).
		SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = mgr.Parse(unsigned)
	assert.Error(t, err)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := newManager(t)
	token, _, err := mgr.Issue("rider-1", user.RoleRider)
	require.NoError(t, err)

	claims, err := ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+token+`"}`), mgr, user.RoleRider)
	require.NoError(t, err)
	assert.Equal(t, "rider-1", claims.ActorID())

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"Bearer `+token+`"}`), mgr, user.RoleDriver)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"`+token+`"}`), mgr)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	_, err = ValidateWSAuth([]byte(`{"type":"hello"}`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)

	_, err = ValidateWSAuth([]byte(`not json`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)
}

func TestAuthMiddleware(t *testing.T) {
	mgr := newManager(t)
	rider, _, err := mgr.Issue("rider-1", user.RoleRider)
	require.NoError(t, err)
	driver, _, err := mgr.Issue("driver-1", user.RoleDriver)
	require.NoError(t, err)

	var seen string
	h := AuthMiddlewareFunc(mgr, user.RoleRider)(func(w http.ResponseWriter, r *http.Request) {
		seen = RequireClaims(r).ActorID()
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + driver, want: http.StatusForbidden},
		{name: "ok", header: "Bearer " + rider, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rides/active", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "rider-1", seen)
}
