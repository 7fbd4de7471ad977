package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator checks a discount code against an order subtotal and returns the
// capped discount. Validate is read-only and idempotent so checkouts can
// retry it freely; Redeem performs the one usage increment per created order.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Applied, error)
	Redeem(ctx context.Context, code string) error
}

// RepoValidator implements Validator backed by a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate normalizes the code (trimmed, case-insensitive), looks it up, and
// checks in order: existence, time window, minimum order value, usage limit.
// The discount amount is subtotal * percent / 100 capped at MaxDiscountAmount.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Applied, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, ErrInvalidCode
	}

	rule, err := v.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup discount code")
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.MinOrderValue != nil && subtotal.LessThan(*rule.MinOrderValue) {
		return nil, ErrBelowMinimum
	}

	if rule.UsageLimit > 0 && rule.UsageCount >= rule.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	amount := subtotal.Mul(rule.PercentOff).Div(hundred)
	if rule.MaxDiscountAmount != nil && amount.GreaterThan(*rule.MaxDiscountAmount) {
		amount = *rule.MaxDiscountAmount
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return &Applied{
		Code:       rule.Code,
		PercentOff: rule.PercentOff,
		Amount:     amount.Round(2),
	}, nil
}

// Redeem increments the usage counter for a code. Callers invoke it exactly
// once after the order using the code is durably persisted.
func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	if err := v.repo.IncrementUsage(ctx, Normalize(code)); err != nil {
		return errors.Wrap(err, "increment discount usage")
	}
	return nil
}

// Normalize trims whitespace and upper-cases a discount code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
