package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dentalreserve/internal/user"
)

var patient = user.User{Email: "patient@example.com", Name: "张三", Role: user.RolePatient}

func TestIssueAndParseRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)

	token, err := iss.Issue(patient)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "patient@example.com", claims.Email())
	assert.Equal(t, "patient", claims.Role)
	assert.Equal(t, "张三", claims.Name)
}

func TestTokensDifferPerUser(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)

	a, err := iss.Issue(patient)
	require.NoError(t, err)
	b, err := iss.Issue(user.User{Email: "admin@dentalreserve.ca", Role: user.RoleAdmin})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	good, err := iss.Issue(patient)
	require.NoError(t, err)

	expired, err := NewIssuer("secret", -time.Minute).Issue(patient)
	require.NoError(t, err)

	otherSecret, err := NewIssuer("other", time.Hour).Issue(patient)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:  issuerName,
		Subject: "patient@example.com",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"expired":      expired,
		"wrong secret": otherSecret,
		"alg none":     unsigned,
		"tampered":     good[:len(good)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
