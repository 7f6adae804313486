package goal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("goal not found")
	ErrInvalid  = errors.New("invalid goal")
)

type Goal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	IsCompleted   bool            `json:"is_completed"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
	Icon          string          `json:"icon"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Progress is CurrentAmount/TargetAmount clamped to [0, 1].
func (g Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}

	p := g.CurrentAmount.Div(g.TargetAmount)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}

	if p.IsNegative() {
		return decimal.Zero
	}

	return p
}

func (g Goal) reached() bool {
	return g.TargetAmount.IsPositive() && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

type CreateParams struct {
	Name          string
	Description   string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	TargetDate    *time.Time
	Icon          string
}

func (p CreateParams) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	if !p.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target amount must be positive", ErrInvalid)
	}

	if p.CurrentAmount.IsNegative() {
		return fmt.Errorf("%w: current amount must not be negative", ErrInvalid)
	}

	return nil
}

// legacyIcons maps the emoji glyphs older clients stored to icon identifiers.
var legacyIcons = map[string]string{
	"🎯": "target",
	"🏠": "home",
	"🏡": "home",
	"🚗": "car",
	"✈": "plane",
	"🏖": "palmtree",
	"🎓": "graduation-cap",
	"💍": "gem",
	"💎": "gem",
	"💻": "laptop",
	"📱": "smartphone",
	"💰": "piggy-bank",
	"🐷": "piggy-bank",
	"🏦": "landmark",
	"🎁": "gift",
	"👶": "baby",
	"🐶": "dog",
	"📚": "book",
	"🎮": "gamepad",
	"🏥": "heart-pulse",
	"💪": "dumbbell",
	"🚲": "bike",
	"🎸": "music",
	"📷": "camera",
	"⛑": "shield",
	"🛡": "shield",
	"💼": "briefcase",
	"🌍": "globe",
}

// MigrateIcon converts a legacy emoji icon to its identifier. Identifiers and
// unknown values are returned unchanged, so applying it twice is a no-op.
func MigrateIcon(icon string) string {
	key := strings.TrimSpace(strings.ReplaceAll(icon, "\uFE0F", ""))
	if id, ok := legacyIcons[key]; ok {
		return id
	}

	return icon
}
