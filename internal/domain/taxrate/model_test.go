package taxrate

import (
	"testing"
	"time"

	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func publishedRate() *TaxRate {
	return &TaxRate{
		ID:       "taxrate_test",
		RateType: types.TaxRateTypePercentage,
		Rate:     decimal.NewFromFloat(10),
		BaseModel: types.BaseModel{
			Status: types.StatusPublished,
		},
	}
}

func TestTaxRateIsApplicableAt(t *testing.T) {
	now := time.Now().UTC()

	t.Run("published rate with no window applies", func(t *testing.T) {
		rate := publishedRate()
		assert.True(t, rate.IsApplicableAt(now))
	})

	t.Run("archived rate never applies", func(t *testing.T) {
		rate := publishedRate()
		rate.Status = types.StatusArchived
		assert.False(t, rate.IsApplicableAt(now))
	})

	t.Run("rate before its window does not apply", func(t *testing.T) {
		rate := publishedRate()
		rate.ValidFrom = lo.ToPtr(now.Add(time.Hour))
		assert.False(t, rate.IsApplicableAt(now))
	})

	t.Run("rate after its window does not apply", func(t *testing.T) {
		rate := publishedRate()
		rate.ValidTo = lo.ToPtr(now.Add(-time.Hour))
		assert.False(t, rate.IsApplicableAt(now))
	})

	t.Run("rate inside its window applies", func(t *testing.T) {
		rate := publishedRate()
		rate.ValidFrom = lo.ToPtr(now.Add(-time.Hour))
		rate.ValidTo = lo.ToPtr(now.Add(time.Hour))
		assert.True(t, rate.IsApplicableAt(now))
	})
}

func TestTaxRateValidateConfig(t *testing.T) {
	t.Run("valid percentage rate", func(t *testing.T) {
		rate := publishedRate()
		assert.NoError(t, rate.ValidateConfig())
	})

	t.Run("negative percentage is rejected", func(t *testing.T) {
		rate := publishedRate()
		rate.Rate = decimal.NewFromFloat(-5)
		err := rate.ValidateConfig()
		assert.Error(t, err)
		assert.True(t, ierr.IsInvalidRateConfig(err))
	})

	t.Run("fixed rate needs an amount", func(t *testing.T) {
		rate := publishedRate()
		rate.RateType = types.TaxRateTypeFixed
		rate.Rate = decimal.Zero
		err := rate.ValidateConfig()
		assert.Error(t, err)
		assert.True(t, ierr.IsInvalidRateConfig(err))
	})

	t.Run("fixed rate with fixed amount is valid", func(t *testing.T) {
		rate := publishedRate()
		rate.RateType = types.TaxRateTypeFixed
		rate.Rate = decimal.Zero
		rate.FixedAmount = lo.ToPtr(decimal.NewFromFloat(2.50))
		assert.NoError(t, rate.ValidateConfig())
	})

	t.Run("negative fixed amount is rejected", func(t *testing.T) {
		rate := publishedRate()
		rate.RateType = types.TaxRateTypeFixed
		rate.FixedAmount = lo.ToPtr(decimal.NewFromFloat(-1))
		err := rate.ValidateConfig()
		assert.Error(t, err)
		assert.True(t, ierr.IsInvalidRateConfig(err))
	})

	t.Run("inverted clamp range is rejected", func(t *testing.T) {
		rate := publishedRate()
		rate.MinimumAmount = lo.ToPtr(decimal.NewFromFloat(10))
		rate.MaximumAmount = lo.ToPtr(decimal.NewFromFloat(5))
		err := rate.ValidateConfig()
		assert.Error(t, err)
		assert.True(t, ierr.IsInvalidRateConfig(err))
	})
}
