package taxrule

import (
	"testing"

	"github.com/ledgerline/taxengine/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestTaxRuleMatches(t *testing.T) {
	target := Target{
		ProductID:   "prod_1",
		CategoryIDs: []string{"cat_food", "cat_bakery"},
		BrandID:     "brand_acme",
	}

	tests := []struct {
		name     string
		rule     TaxRule
		target   Target
		expected bool
	}{
		{
			name: "product rule matches listed product",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeProduct,
				ConditionValues: []string{"prod_1", "prod_2"},
			},
			target:   target,
			expected: true,
		},
		{
			name: "product rule rejects unlisted product",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeProduct,
				ConditionValues: []string{"prod_9"},
			},
			target:   target,
			expected: false,
		},
		{
			name: "product rule rejects empty product id",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeProduct,
				ConditionValues: []string{""},
			},
			target:   Target{},
			expected: false,
		},
		{
			name: "category rule matches any shared category",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeCategory,
				ConditionValues: []string{"cat_bakery", "cat_dairy"},
			},
			target:   target,
			expected: true,
		},
		{
			name: "category rule with no overlap",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeCategory,
				ConditionValues: []string{"cat_dairy"},
			},
			target:   target,
			expected: false,
		},
		{
			name: "brand rule matches",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeBrand,
				ConditionValues: []string{"brand_acme"},
			},
			target:   target,
			expected: true,
		},
		{
			name: "empty condition values never match",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionTypeProduct,
				ConditionValues: []string{},
			},
			target:   target,
			expected: false,
		},
		{
			name: "unknown condition type never matches",
			rule: TaxRule{
				ConditionType:   types.TaxRuleConditionType("weight"),
				ConditionValues: []string{"anything"},
			},
			target:   target,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.Matches(tt.target))
		})
	}
}
