package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mint(t *testing.T, c Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func claimsAt(now time.Time, exp time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"api://studycore"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
		TenantID: "tenant-a",
		Email:    "a@example.com",
	}
}

func TestValidateToken(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)

	tests := []struct {
		name   string
		token  func() string
		tenant string
		want   bool
	}{
		{"有效", func() string { return mint(t, claimsAt(now, time.Hour)) }, "tenant-a", true},
		{"不校验租户", func() string { return mint(t, claimsAt(now, time.Hour)) }, "", true},
		{"过期但在容差内", func() string { return mint(t, claimsAt(now.Add(-time.Hour), 57*time.Minute)) }, "", true},
		{"过期超出容差", func() string { return mint(t, claimsAt(now.Add(-time.Hour), 50*time.Minute)) }, "", false},
		{"签发时间在未来", func() string { return mint(t, claimsAt(now.Add(10*time.Minute), time.Hour)) }, "", false},
		{"租户不匹配", func() string { return mint(t, claimsAt(now, time.Hour)) }, "tenant-b", false},
		{"缺少 aud", func() string {
			c := claimsAt(now, time.Hour)
			c.Audience = nil
			return mint(t, c)
		}, "", false},
		{"缺少 exp", func() string {
			c := claimsAt(now, time.Hour)
			c.ExpiresAt = nil
			return mint(t, c)
		}, "", false},
		{"两段", func() string { return "a.b" }, "", false},
		{"乱码", func() string { return "x.y.z" }, "", false},
		{"空", func() string { return "" }, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, ok := validateAt(tt.token(), tt.tenant, now, DefaultClockSkew)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, "user-1", claims.UserID())
			}
		})
	}
}

func TestPKCE(t *testing.T) {
	verifier, err := NewVerifier()
	require.NoError(t, err)
	assert.Len(t, verifier, 43)

	challenge := ChallengeS256(verifier)
	assert.True(t, VerifyPKCE(verifier, challenge, MethodS256))

	flipped := []byte(verifier)
	if flipped[10] == 'a' {
		flipped[10] = 'b'
	} else {
		flipped[10] = 'a'
	}
	assert.False(t, VerifyPKCE(string(flipped), challenge, MethodS256))

	tests := []struct {
		name      string
		verifier  string
		challenge string
		method    string
		want      bool
	}{
		{"plain 相等", verifier, verifier, MethodPlain, true},
		{"plain 不等", verifier, string(flipped), MethodPlain, false},
		{"过短", "short", ChallengeS256("short"), MethodS256, false},
		{"过长", string(make([]byte, 129)), "x", MethodPlain, false},
		{"未知方法", verifier, challenge, "S512", false},
		{"空 challenge", verifier, "", MethodS256, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyPKCE(tt.verifier, tt.challenge, tt.method))
		})
	}
}

func TestChallengeS256KnownVector(t *testing.T) {
	// RFC 7636 appendix B
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}
