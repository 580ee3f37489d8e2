package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/internal/permissions"
)

func TestParseAssignable(t *testing.T) {
	r, err := parseAssignable("moderator")
	require.NoError(t, err)
	assert.Equal(t, permissions.RoleModerator, r)

	for _, bad := range []string{"owner", "root", ""} {
		_, err := parseAssignable(bad)
		assert.Error(t, err, bad)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"migrate", "create-owner", "set-role", "recompute-levels", "jobs"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	c, _, err := root.Find([]string{"jobs", "requeue"})
	require.NoError(t, err)
	assert.Equal(t, "requeue", c.Name())
}

func TestSetRole_RejectsOwnerBeforeConnecting(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"set-role", "ada@example.com", "owner"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestCreateOwner_RequiresFlags(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-owner", "--email", "owner@example.com"})
	assert.Error(t, root.Execute())
}
