package service

import (
	"testing"

	"github.com/ledgerline/taxengine/internal/domain/taxrate"
	"github.com/ledgerline/taxengine/internal/domain/taxrule"
	"github.com/ledgerline/taxengine/internal/testutil"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/stretchr/testify/suite"
)

type RuleFilterServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RuleFilterService
	rate    *taxrate.TaxRate
}

func TestRuleFilterService(t *testing.T) {
	suite.Run(t, new(RuleFilterServiceSuite))
}

func (s *RuleFilterServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRuleFilterService(ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		TaxRuleRepo: s.GetStores().TaxRuleRepo,
	})
	s.rate = &taxrate.TaxRate{
		ID:        "taxrate_test",
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
}

func (s *RuleFilterServiceSuite) createRule(rule *taxrule.TaxRule) {
	rule.TaxRateID = s.rate.ID
	rule.BaseModel = types.GetDefaultBaseModel(s.GetContext())
	s.NoError(s.GetStores().TaxRuleRepo.Create(s.GetContext(), rule))
}

func (s *RuleFilterServiceSuite) TestRateWithoutRulesAlwaysApplies() {
	applies, err := s.service.Applies(s.GetContext(), s.rate, taxrule.Target{ProductID: "prod_1"})
	s.NoError(err)
	s.True(applies)
}

func (s *RuleFilterServiceSuite) TestAnyMatchingRuleSuffices() {
	s.createRule(&taxrule.TaxRule{
		ID:              "taxrule_products",
		ConditionType:   types.TaxRuleConditionTypeProduct,
		ConditionValues: []string{"prod_other"},
	})
	s.createRule(&taxrule.TaxRule{
		ID:              "taxrule_brands",
		ConditionType:   types.TaxRuleConditionTypeBrand,
		ConditionValues: []string{"brand_acme"},
	})

	applies, err := s.service.Applies(s.GetContext(), s.rate, taxrule.Target{
		ProductID: "prod_1",
		BrandID:   "brand_acme",
	})
	s.NoError(err)
	s.True(applies)
}

func (s *RuleFilterServiceSuite) TestNoMatchingRuleExcludesRate() {
	s.createRule(&taxrule.TaxRule{
		ID:              "taxrule_categories",
		ConditionType:   types.TaxRuleConditionTypeCategory,
		ConditionValues: []string{"cat_food"},
	})

	applies, err := s.service.Applies(s.GetContext(), s.rate, taxrule.Target{
		ProductID:   "prod_1",
		CategoryIDs: []string{"cat_electronics"},
	})
	s.NoError(err)
	s.False(applies)
}
