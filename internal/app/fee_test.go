package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foerderscout/internal/model"
)

func TestCalculateSuccessFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		tier    model.SubscriptionTier
		wantFee float64
		wantMin bool
		wantMax bool
	}{
		{name: "basic tier", amount: 100000, tier: model.TierBasic, wantFee: 25000},
		{name: "hybrid tier", amount: 100000, tier: model.TierHybrid, wantFee: 20000},
		{name: "enterprise tier", amount: 100000, tier: model.TierEnterprise, wantFee: 15000},
		{name: "minimum applies", amount: 1000, tier: model.TierBasic, wantFee: 500, wantMin: true},
		{name: "maximum applies", amount: 1000000, tier: model.TierBasic, wantFee: 50000, wantMax: true},
		{name: "unknown tier pays basic", amount: 10000, tier: "tier_9", wantFee: 2500},
		{name: "empty tier pays basic", amount: 10000, tier: "", wantFee: 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSuccessFee(tt.amount, tt.tier)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantFee, got.FeeAmount, 0.001)
			assert.Equal(t, tt.wantMin, got.MinApplied)
			assert.Equal(t, tt.wantMax, got.MaxApplied)
			assert.Equal(t, "EUR", got.Currency)
		})
	}
}

func TestCalculateSuccessFee_RejectsNonPositive(t *testing.T) {
	_, err := CalculateSuccessFee(0, model.TierBasic)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFeeTiers(t *testing.T) {
	tiers := FeeTiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, "Basic / Success-Fee", tiers[0].Name)
	assert.Equal(t, 199, tiers[1].MonthlyFee)
	assert.Equal(t, 15, tiers[2].FeePercentage)
}
