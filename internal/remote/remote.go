// Package remote describes the hosted table store: its tables, the row shape
// exchanged with it and the errors it reports.
package remote

// Row is one record keyed by column name. Values are strings, bools,
// decimal.Decimal / json.Number / float64 for numerics and time.Time or
// RFC 3339 strings for timestamps, depending on the gateway.
type Row map[string]any

type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumeric
	TypeBool
	TypeTimestamp
)

type Column struct {
	Name string
	Type ColumnType
}

type Order struct {
	Column string
	Desc   bool
}

type Table struct {
	Name        string
	ConflictKey string
	Columns     []Column
	OrderBy     []Order
}

func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

const UserIDColumn = "user_id"

var (
	Transactions = Table{
		Name:        "transactions",
		ConflictKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "user_id", Type: TypeText},
			{Name: "type", Type: TypeText},
			{Name: "amount", Type: TypeNumeric},
			{Name: "category", Type: TypeText},
			{Name: "description", Type: TypeText},
			{Name: "date", Type: TypeTimestamp},
			{Name: "created_at", Type: TypeTimestamp},
		},
		OrderBy: []Order{{Column: "date", Desc: true}, {Column: "created_at", Desc: true}},
	}

	Budgets = Table{
		Name:        "budgets",
		ConflictKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "user_id", Type: TypeText},
			{Name: "category", Type: TypeText},
			{Name: "limit_amount", Type: TypeNumeric},
			{Name: "period", Type: TypeText},
		},
		OrderBy: []Order{{Column: "category"}, {Column: "id"}},
	}

	Goals = Table{
		Name:        "goals",
		ConflictKey: "id",
		Columns: []Column{
			{Name: "id", Type: TypeText},
			{Name: "user_id", Type: TypeText},
			{Name: "name", Type: TypeText},
			{Name: "description", Type: TypeText},
			{Name: "target_amount", Type: TypeNumeric},
			{Name: "current_amount", Type: TypeNumeric},
			{Name: "deadline", Type: TypeTimestamp},
			{Name: "icon", Type: TypeText},
			{Name: "is_completed", Type: TypeBool},
			{Name: "created_at", Type: TypeTimestamp},
		},
		OrderBy: []Order{{Column: "created_at"}, {Column: "id"}},
	}

	UserSettings = Table{
		Name:        "user_settings",
		ConflictKey: "user_id",
		Columns: []Column{
			{Name: "user_id", Type: TypeText},
			{Name: "avatar", Type: TypeText},
			{Name: "nickname", Type: TypeText},
			{Name: "notification_time", Type: TypeText},
			{Name: "daily_reminder_enabled", Type: TypeBool},
			{Name: "notifications_enabled", Type: TypeBool},
		},
	}
)
