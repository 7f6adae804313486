package cloudsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
	"github.com/MrJamesThe3rd/finsync/internal/remote"
	"github.com/MrJamesThe3rd/finsync/internal/settings"
)

var errMissingID = errors.New("row has no id")

// timeLayout is RFC 3339 in UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.UTC().Format(timeLayout)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case string:
		if x == "" {
			return time.Time{}, nil
		}

		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC(), nil
			}
		}

		return time.Time{}, fmt.Errorf("unrecognised time %q", x)
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected numeric value %T", v)
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

func encodeTransaction(t finance.Transaction, userID string) remote.Row {
	return remote.Row{
		"id":          t.ID,
		"user_id":     userID,
		"type":        string(t.Type),
		"amount":      t.Amount,
		"category":    t.Category,
		"description": t.Description,
		"date":        formatTime(t.Date),
		"created_at":  formatTime(t.CreatedAt),
	}
}

func decodeTransaction(r remote.Row) (finance.Transaction, error) {
	t := finance.Transaction{
		ID:          asString(r["id"]),
		Type:        finance.Type(asString(r["type"])),
		Category:    asString(r["category"]),
		Description: asString(r["description"]),
	}

	if t.ID == "" {
		return t, errMissingID
	}

	var err error

	if t.Amount, err = asDecimal(r["amount"]); err != nil {
		return t, fmt.Errorf("transaction %s amount: %w", t.ID, err)
	}

	if t.Date, err = asTime(r["date"]); err != nil {
		return t, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}

	if t.CreatedAt, err = asTime(r["created_at"]); err != nil {
		return t, fmt.Errorf("transaction %s created_at: %w", t.ID, err)
	}

	return t, nil
}

// encodeBudget writes Limit to limit_amount, falling back to LimitAmount when
// Limit is zero.
func encodeBudget(b finance.Budget, userID string) remote.Row {
	return remote.Row{
		"id":           b.ID,
		"user_id":      userID,
		"category":     b.Category,
		"limit_amount": b.EffectiveLimit(),
		"period":       string(b.Period),
	}
}

// decodeBudget sets both Limit and LimitAmount from limit_amount.
func decodeBudget(r remote.Row) (finance.Budget, error) {
	b := finance.Budget{
		ID:       asString(r["id"]),
		Category: asString(r["category"]),
		Period:   finance.Period(asString(r["period"])),
	}

	if b.ID == "" {
		return b, errMissingID
	}

	limit, err := asDecimal(r["limit_amount"])
	if err != nil {
		return b, fmt.Errorf("budget %s limit_amount: %w", b.ID, err)
	}

	b.Limit = limit
	b.LimitAmount = limit

	if b.Period == "" {
		b.Period = finance.PeriodMonthly
	}

	return b, nil
}

func encodeGoal(g goal.Goal, userID string) remote.Row {
	var deadline any
	if g.TargetDate != nil {
		deadline = formatTime(*g.TargetDate)
	}

	return remote.Row{
		"id":             g.ID,
		"user_id":        userID,
		"name":           g.Name,
		"description":    g.Description,
		"target_amount":  g.TargetAmount,
		"current_amount": g.CurrentAmount,
		"deadline":       deadline,
		"icon":           g.Icon,
		"is_completed":   g.IsCompleted,
		"created_at":     formatTime(g.CreatedAt),
	}
}

func decodeGoal(r remote.Row) (goal.Goal, error) {
	g := goal.Goal{
		ID:          asString(r["id"]),
		Name:        asString(r["name"]),
		Description: asString(r["description"]),
		Icon:        goal.MigrateIcon(asString(r["icon"])),
		IsCompleted: asBool(r["is_completed"]),
	}

	if g.ID == "" {
		return g, errMissingID
	}

	var err error

	if g.TargetAmount, err = asDecimal(r["target_amount"]); err != nil {
		return g, fmt.Errorf("goal %s target_amount: %w", g.ID, err)
	}

	if g.CurrentAmount, err = asDecimal(r["current_amount"]); err != nil {
		return g, fmt.Errorf("goal %s current_amount: %w", g.ID, err)
	}

	deadline, err := asTime(r["deadline"])
	if err != nil {
		return g, fmt.Errorf("goal %s deadline: %w", g.ID, err)
	}

	if !deadline.IsZero() {
		g.TargetDate = &deadline
	}

	if g.CreatedAt, err = asTime(r["created_at"]); err != nil {
		return g, fmt.Errorf("goal %s created_at: %w", g.ID, err)
	}

	return g, nil
}

func encodeSettings(s settings.Settings, userID string) remote.Row {
	return remote.Row{
		"user_id":                userID,
		"avatar":                 s.Avatar,
		"nickname":               s.Nickname,
		"notification_time":      s.NotificationTime,
		"daily_reminder_enabled": s.DailyReminderEnabled,
		"notifications_enabled":  s.NotificationsEnabled,
	}
}

// decodeRows decodes every row, returning the good ones and the failures.
func decodeRows[T any](rows []remote.Row, decode func(remote.Row) (T, error)) ([]T, []error) {
	out := make([]T, 0, len(rows))

	var errs []error

	for _, r := range rows {
		v, err := decode(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		out = append(out, v)
	}

	return out, errs
}
