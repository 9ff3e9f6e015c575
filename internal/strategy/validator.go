package strategy

import "fmt"

// ValidationError rejects a proposed configuration before any order is placed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Validate checks a proposed configuration and the worst-case capital
// commitment. It is the only gate preventing unbounded capital commitment, so
// it must run strictly before any execution call.
func Validate(c Config) error {
	switch c.Kind {
	case KindScaleIn, KindLaddered:
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", c.Kind)}
	}
	if c.TokenID == "" {
		return &ValidationError{Field: "token_id", Reason: "must not be empty"}
	}
	if c.InitialAmount <= 0 {
		return &ValidationError{Field: "initial_amount", Reason: "must be positive"}
	}
	if c.DropPct <= 0 || c.DropPct > 50 {
		return &ValidationError{Field: "drop_pct", Reason: "must be in (0, 50]"}
	}
	if c.Multiplier <= 0 {
		return &ValidationError{Field: "multiplier", Reason: "must be positive"}
	}
	if c.MaxLevels < 1 || c.MaxLevels > 20 {
		return &ValidationError{Field: "max_levels", Reason: "must be in [1, 20]"}
	}
	if c.ProfitTargetPct <= 0 {
		return &ValidationError{Field: "profit_target_pct", Reason: "must be positive"}
	}
	if c.StopLossEnabled && c.StopLossPct <= 0 {
		return &ValidationError{Field: "stop_loss_pct", Reason: "must be positive when enabled"}
	}
	if c.MaxSlippagePct < 0 {
		return &ValidationError{Field: "max_slippage_pct", Reason: "must not be negative"}
	}
	if c.MaxInvestment < c.InitialAmount {
		return &ValidationError{Field: "max_investment", Reason: "must cover at least the initial amount"}
	}
	if worst := c.WorstCaseCapital(); worst > c.MaxInvestment {
		return &ValidationError{
			Field:  "max_investment",
			Reason: fmt.Sprintf("worst-case capital %.6f exceeds cap %.6f", worst, c.MaxInvestment),
		}
	}
	return nil
}
