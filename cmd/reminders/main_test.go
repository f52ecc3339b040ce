package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/infra/config"
	"order_reminder_service/internal/infra/database"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.Bytes()
}

func TestCommandsAgainstSqlite(t *testing.T) {
	t.Setenv(config.KeyDatabaseDriver, "sqlite")
	t.Setenv(config.KeyDatabaseURL, "file:"+filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv(config.KeyMailDriver, "log")
	t.Setenv(config.KeyLogLevel, "error")

	var seeded database.SeedResult
	require.NoError(t, json.Unmarshal(run(t, "seed", "--json"), &seeded))
	assert.Positive(t, seeded.OrderTypes)
	assert.Positive(t, seeded.Rules)
	assert.Positive(t, seeded.Templates)

	var res app.SweepResult
	require.NoError(t, json.Unmarshal(run(t, "sweep", "--json"), &res))
	assert.Equal(t, app.SweepResult{}, res)

	var st app.Status
	require.NoError(t, json.Unmarshal(run(t, "status", "--json"), &st))
	assert.Zero(t, st.Due)
	assert.Positive(t, st.ActiveRules)

	assert.Contains(t, string(run(t, "intervals", "list")), "pre")
}
