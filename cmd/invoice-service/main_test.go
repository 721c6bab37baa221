package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/invoice-engine/internal/auth"
	"github.com/nurpe/invoice-engine/internal/model"
)

func runToken(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := tokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/unused")
	t.Setenv("JWT_ACCESS_SECRET", "cli-secret")

	user, org := uuid.New(), uuid.New()
	token, err := runToken(t, "--user", user.String(), "--org", org.String(), "--role", "accountant", "--ttl", "1h")
	require.NoError(t, err)

	principal, err := auth.NewParser("cli-secret").Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user, principal.UserID)
	assert.Equal(t, org, principal.OrgID)
	assert.Equal(t, model.UserRoleAccountant, principal.Role)

	_, err = auth.NewParser("other-secret").Parse(token)
	assert.Error(t, err)
}

func TestTokenCommandRejectsBadFlags(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/unused")
	t.Setenv("JWT_ACCESS_SECRET", "cli-secret")
	org := uuid.NewString()

	for name, args := range map[string][]string{
		"missing org": {"--role", "admin"},
		"bad org":     {"--org", "acme"},
		"bad role":    {"--org", org, "--role", "owner"},
		"bad ttl":     {"--org", org, "--ttl", "-1h"},
	} {
		_, err := runToken(t, args...)
		assert.Error(t, err, name)
	}
}
