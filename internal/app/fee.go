package app

import (
	"fmt"
	"math"

	"foerderscout/internal/model"
)

const (
	MinSuccessFee = 500.0
	MaxSuccessFee = 50000.0
)

type FeeTier struct {
	Tier          model.SubscriptionTier `json:"tier"`
	Name          string                 `json:"name"`
	FeePercentage int                    `json:"fee_percentage"`
	MonthlyFee    int                    `json:"monthly_fee"`
	Description   string                 `json:"description"`
}

var feeTiers = []FeeTier{
	{
		Tier:          model.TierBasic,
		Name:          "Basic / Success-Fee",
		FeePercentage: 25,
		MonthlyFee:    0,
		Description:   "Keine monatlichen Kosten. 25% Success-Fee bei Bewilligung.",
	},
	{
		Tier:          model.TierHybrid,
		Name:          "Hybrid",
		FeePercentage: 20,
		MonthlyFee:    199,
		Description:   "199€/Monat + reduzierte 20% Success-Fee.",
	},
	{
		Tier:          model.TierEnterprise,
		Name:          "Enterprise",
		FeePercentage: 15,
		MonthlyFee:    499,
		Description:   "499€/Monat + nur 15% Success-Fee. Priority Support.",
	},
}

type FeeCalculation struct {
	ApprovedAmount       float64                `json:"approved_amount"`
	Tier                 model.SubscriptionTier `json:"subscription_tier"`
	FeePercentage        float64                `json:"fee_percentage"`
	FeePercentageDisplay string                 `json:"fee_percentage_display"`
	RawFee               float64                `json:"raw_fee"`
	FeeAmount            float64                `json:"fee_amount"`
	MinApplied           bool                   `json:"min_applied"`
	MaxApplied           bool                   `json:"max_applied"`
	Currency             string                 `json:"currency"`
}

func FeeTiers() []FeeTier {
	out := make([]FeeTier, len(feeTiers))
	copy(out, feeTiers)
	return out
}

// FeePercentage returns the success fee share for tier. Unknown tiers pay the basic rate.
func FeePercentage(tier model.SubscriptionTier) float64 {
	for _, t := range feeTiers {
		if t.Tier == tier {
			return float64(t.FeePercentage) / 100
		}
	}
	return 0.25
}

// CalculateSuccessFee applies the tier percentage and clamps to [MinSuccessFee, MaxSuccessFee].
func CalculateSuccessFee(approvedAmount float64, tier model.SubscriptionTier) (*FeeCalculation, error) {
	if approvedAmount <= 0 || math.IsNaN(approvedAmount) || math.IsInf(approvedAmount, 0) {
		return nil, ErrInvalidInput
	}
	if tier == "" {
		tier = model.TierBasic
	}
	pct := FeePercentage(tier)
	raw := approvedAmount * pct
	fee := math.Max(MinSuccessFee, math.Min(raw, MaxSuccessFee))

	return &FeeCalculation{
		ApprovedAmount:       approvedAmount,
		Tier:                 tier,
		FeePercentage:        pct,
		FeePercentageDisplay: fmt.Sprintf("%.0f%%", pct*100),
		RawFee:               raw,
		FeeAmount:            roundCents(fee),
		MinApplied:           raw < MinSuccessFee,
		MaxApplied:           raw > MaxSuccessFee,
		Currency:             "EUR",
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
