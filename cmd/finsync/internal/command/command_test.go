package command

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	root := newRootCmd(e)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SYNC_ENABLED", "false")
	t.Setenv("REMOTE_DRIVER", "postgres")
	t.Setenv("SESSION_TOKEN", "")
	t.Setenv("JWT_SECRET", "")

	e := &env{}
	t.Cleanup(e.close)

	return e
}

func TestAddAndStatus(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, e, "add", "expense", "12.5", "food", "lunch", "with", "ana", "--date", "2024-06-01")
	require.NoError(t, err, out)
	assert.Contains(t, out, "expense 12.50 food on 2024-06-01")

	txs := e.app.Finance.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "lunch with ana", txs[0].Description)

	out, err = run(t, e, "status", "-o", "json")
	require.NoError(t, err, out)

	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 1, view.Transactions)
	assert.Equal(t, "postgres", view.Remote)
	assert.False(t, view.SyncEnabled)
	assert.Empty(t, view.UserID)
}

func TestAdd_InvalidArgs(t *testing.T) {
	type testCase struct {
		name    string
		args    []string
		wantErr string
	}

	tests := []testCase{
		{name: "BadType", args: []string{"add", "gift", "1", "misc"}, wantErr: "type must be income or expense"},
		{name: "BadAmount", args: []string{"add", "expense", "ten", "misc"}, wantErr: "invalid amount"},
		{name: "BadDate", args: []string{"add", "expense", "1", "misc", "--date", "qwerty"}, wantErr: "unrecognized date"},
		{name: "TooFewArgs", args: []string{"add", "expense", "1"}, wantErr: "requires at least 3 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupEnv(t)

			_, err := run(t, e, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPush_SyncDisabled(t *testing.T) {
	e := setupEnv(t)

	_, err := run(t, e, "push")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloud sync is disabled")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	e := setupEnv(t)
	t.Setenv("REMOTE_DRIVER", "rest")
	t.Setenv("REMOTE_URL", "https://example.invalid")

	_, err := run(t, e, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMOTE_DRIVER=postgres")
	assert.Nil(t, e.app, "migrate must not open local data")
}

func TestWriteStatus(t *testing.T) {
	view := statusView{Remote: "rest", SyncEnabled: true, UserID: "u1", InitialLoadDone: true, Transactions: 3, Goals: 1}

	type testCase struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}

	tests := []testCase{
		{
			name:   "Text",
			format: "text",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "u1")
				assert.Contains(t, out, "initial load done")
				assert.Contains(t, out, "3 transactions, 0 budgets, 1 goals")
			},
		},
		{
			name:   "YAML",
			format: "yaml",
			check: func(t *testing.T, out string) {
				var got statusView
				require.NoError(t, yaml.Unmarshal([]byte(out), &got))
				assert.Equal(t, view, got)
				assert.True(t, strings.HasPrefix(out, "remote: rest\n"))
			},
		},
		{
			name:   "JSON",
			format: "json",
			check: func(t *testing.T, out string) {
				var got statusView
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, view, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeStatus(&buf, tt.format, view))
			tt.check(t, buf.String())
		})
	}

	require.Error(t, writeStatus(&bytes.Buffer{}, "xml", view))
}
