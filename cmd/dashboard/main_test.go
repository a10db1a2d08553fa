package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/services"
	"cctvdash/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version, strings.TrimSpace(out))
}

func TestTokenCommand(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	out, err := execute(t, "token", "--config", missing, "--operator", "alice", "--role", "viewer")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	auth, err := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.Equal(t, domain.RoleViewer, claims.Role)
}

func TestTokenCommand_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := execute(t, "token", "--config", missing)
	assert.Error(t, err)

	_, err = execute(t, "token", "--config", missing, "--operator", "alice", "--role", "admin")
	assert.Error(t, err)
}
