package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleName(t *testing.T) {
	tests := []struct {
		in      string
		want    RoleName
		wantErr bool
	}{
		{in: "USER", want: RoleUser},
		{in: "admin", want: RoleAdmin},
		{in: " ROLE_ADMIN ", want: RoleAdmin},
		{in: "role_user", want: RoleUser},
		{in: "MODERATOR", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRoleName(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestUser_Roles(t *testing.T) {
	u := &User{Roles: []Role{{Name: RoleUser}, {Name: RoleAdmin}}}

	assert.True(t, u.HasRole(RoleAdmin))
	assert.Equal(t, []RoleName{RoleUser, RoleAdmin}, u.RoleNames())
	assert.False(t, (&User{}).HasRole(RoleUser))
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&PasswordResetToken{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&PasswordResetToken{ExpiresAt: now}).Expired(now))
}
