package remote

import (
	"errors"
	"net/http"
	"strings"
)

type ErrorKind int

const (
	// KindBackend is any failure not recognised below; its message is shown as is.
	KindBackend ErrorKind = iota
	KindPermission
	KindSchemaMissing
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindSchemaMissing:
		return "schema-missing"
	default:
		return "backend"
	}
}

// Error is a failure reported by the remote store.
type Error struct {
	Kind    ErrorKind
	Code    string // SQLSTATE or PostgREST code
	Status  int    // HTTP status, zero for direct connections
	Table   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds an Error and classifies it.
func NewError(table, code string, status int, message string) *Error {
	return &Error{
		Kind:    Classify(code, status, message),
		Code:    code,
		Status:  status,
		Table:   table,
		Message: message,
	}
}

var (
	permissionCodes = map[string]bool{
		"42501":    true, // insufficient_privilege, includes RLS violations
		"28000":    true, // invalid_authorization_specification
		"PGRST301": true, // JWT invalid
		"PGRST302": true, // anonymous access disabled
	}

	schemaMissingCodes = map[string]bool{
		"42P01":    true, // undefined_table
		"3F000":    true, // invalid_schema_name
		"PGRST205": true, // table not in schema cache
		"PGRST106": true, // schema not exposed
	}
)

// Classify maps structured codes to a kind. Message text is only consulted
// when the backend sent no code at all.
func Classify(code string, status int, message string) ErrorKind {
	switch {
	case permissionCodes[code]:
		return KindPermission
	case schemaMissingCodes[code]:
		return KindSchemaMissing
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindPermission
	case code != "":
		return KindBackend
	}

	msg := strings.ToLower(message)

	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "row-level security"),
		strings.Contains(msg, "not authorized"):
		return KindPermission
	case strings.Contains(msg, "schema cache"),
		strings.Contains(msg, "could not find the table"),
		strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return KindSchemaMissing
	}

	return KindBackend
}

// KindOf classifies any error, preferring a wrapped *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindBackend
	}

	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}

	return Classify("", 0, err.Error())
}
