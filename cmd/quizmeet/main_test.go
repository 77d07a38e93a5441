package main

import (
	"bytes"
	"testing"

	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Commands(t *testing.T) {
	root := RootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")

	migrate, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.NotNil(t, migrate.Flags().Lookup("status"))
	assert.NotNil(t, migrate.Flags().Lookup("verify"))
}

func TestMigrate_MissingURL(t *testing.T) {
	t.Setenv("QUIZMEET_DB_URL_VAR", "QUIZMEET_TEST_ABSENT_URL")

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errs.IsConfigMissing(err))
	assert.Contains(t, err.Error(), "QUIZMEET_TEST_ABSENT_URL")
}

func TestServe_BadConfigFile(t *testing.T) {
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--config", "/nonexistent/quizmeet.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errs.IsConfigMissing(err))
}
