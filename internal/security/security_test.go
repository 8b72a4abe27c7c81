package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkquest/internal/models"
)

func TestIdentityVerifier(t *testing.T) {
	v, err := NewIdentityVerifier("secret", "idp")
	require.NoError(t, err)

	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	t.Run("parent keeps children", func(t *testing.T) {
		token, err := v.Sign(&models.Identity{UserID: "p1", Role: models.RoleParent, Name: "Pat", Children: []string{"c1", "c2"}}, valid)
		require.NoError(t, err)

		id, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "p1", id.UserID)
		assert.True(t, id.IsParent())
		assert.Equal(t, []string{"c1", "c2"}, id.Children)
	})

	t.Run("child drops children claim", func(t *testing.T) {
		token, err := v.Sign(&models.Identity{UserID: "c1", Role: models.RoleChild, Children: []string{"x"}}, valid)
		require.NoError(t, err)

		id, err := v.Verify(token)
		require.NoError(t, err)
		assert.Empty(t, id.Children)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Sign(&models.Identity{UserID: "c1", Role: models.RoleChild},
			jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token, err := v.Sign(&models.Identity{UserID: "c1", Role: models.RoleChild}, jwt.RegisteredClaims{})
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewIdentityVerifier("other", "idp")
		require.NoError(t, err)
		token, err := other.Sign(&models.Identity{UserID: "c1", Role: models.RoleChild}, valid)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewIdentityVerifier("secret", "elsewhere")
		require.NoError(t, err)
		token, err := other.Sign(&models.Identity{UserID: "c1", Role: models.RoleChild}, valid)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := v.Sign(&models.Identity{UserID: "a1", Role: models.Role("admin")}, valid)
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	_, err = NewIdentityVerifier("", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc", want: "abc"},
		{name: "lower case scheme", header: "bearer abc", want: "abc"},
		{name: "missing", header: "", wantErr: true},
		{name: "basic", header: "Basic abc", wantErr: true},
		{name: "empty token", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("c1"))
	assert.True(t, rl.Allow("c1"))
	assert.False(t, rl.Allow("c1"))
	assert.True(t, rl.Allow("c2"), "keys are limited independently")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("c1"), "window refills")

	now = now.Add(3 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.callers)
	rl.mu.Unlock()
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.2")
	assert.Equal(t, "1.2.3.4", GetClientIP(r))
}
