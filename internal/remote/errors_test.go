package remote_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

func TestClassify(t *testing.T) {
	type args struct {
		code    string
		status  int
		message string
	}

	type testCase struct {
		name string
		args args
		want remote.ErrorKind
	}

	tests := []testCase{
		{
			name: "SQLStateInsufficientPrivilege",
			args: args{code: "42501", message: "new row violates row-level security policy"},
			want: remote.KindPermission,
		},
		{
			name: "SQLStateUndefinedTable",
			args: args{code: "42P01", message: `relation "goals" does not exist`},
			want: remote.KindSchemaMissing,
		},
		{
			name: "PostgRESTSchemaCache",
			args: args{code: "PGRST205", status: http.StatusNotFound, message: "Could not find the table 'public.goals' in the schema cache"},
			want: remote.KindSchemaMissing,
		},
		{
			name: "HTTPForbiddenWithoutCode",
			args: args{status: http.StatusForbidden, message: "forbidden"},
			want: remote.KindPermission,
		},
		{
			name: "CodeWinsOverMessage",
			args: args{code: "23505", message: "permission denied for sequence, duplicate key"},
			want: remote.KindBackend,
		},
		{
			name: "MessageFallbackSchema",
			args: args{message: `relation "budgets" does not exist`},
			want: remote.KindSchemaMissing,
		},
		{
			name: "Backend",
			args: args{code: "57014", message: "canceling statement due to statement timeout"},
			want: remote.KindBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remote.Classify(tt.args.code, tt.args.status, tt.args.message))
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("pulling goals: %w", remote.NewError("goals", "42P01", 0, "missing"))

	assert.Equal(t, remote.KindSchemaMissing, remote.KindOf(wrapped))
	assert.Equal(t, remote.KindPermission, remote.KindOf(errors.New("permission denied for table budgets")))
	assert.Equal(t, remote.KindBackend, remote.KindOf(errors.New("connection reset")))
	assert.Equal(t, "missing", errors.Unwrap(wrapped).Error())
}

func TestTable_Columns(t *testing.T) {
	names := remote.Budgets.ColumnNames()
	assert.Equal(t, []string{"id", "user_id", "category", "limit_amount", "period"}, names)

	c, ok := remote.Goals.Column("is_completed")
	assert.True(t, ok)
	assert.Equal(t, remote.TypeBool, c.Type)

	_, ok = remote.Goals.Column("limit_amount")
	assert.False(t, ok)

	assert.Equal(t, "user_id", remote.UserSettings.ConflictKey)
}
