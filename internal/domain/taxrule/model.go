package taxrule

import (
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
)

// Target carries the line item attributes a rule condition is evaluated
// against. The product catalog resolves these before rate filtering.
type Target struct {
	ProductID   string
	CategoryIDs []string
	BrandID     string
}

// TaxRule narrows when its tax rate applies. A rate with no active rules
// applies unconditionally; with one or more, the rate applies to a line only
// if at least one rule matches (OR semantics across rules of the same rate).
type TaxRule struct {
	ID        string `json:"id"`
	TaxRateID string `json:"tax_rate_id"`

	// ConditionType selects which line attribute ConditionValues is matched
	// against: product, category, or brand
	ConditionType types.TaxRuleConditionType `json:"condition_type"`
	// ConditionValues is the set of ids the rule matches on
	ConditionValues []string `json:"condition_values"`

	SortOrder int `json:"sort_order"`

	types.BaseModel
}

// Matches evaluates the rule condition against the target. Unknown condition
// types and empty condition sets are treated as non-matching, not as errors.
func (r *TaxRule) Matches(target Target) bool {
	if len(r.ConditionValues) == 0 {
		return false
	}

	switch r.ConditionType {
	case types.TaxRuleConditionTypeProduct:
		return target.ProductID != "" && lo.Contains(r.ConditionValues, target.ProductID)
	case types.TaxRuleConditionTypeCategory:
		return len(lo.Intersect(r.ConditionValues, target.CategoryIDs)) > 0
	case types.TaxRuleConditionTypeBrand:
		return target.BrandID != "" && lo.Contains(r.ConditionValues, target.BrandID)
	default:
		return false
	}
}
