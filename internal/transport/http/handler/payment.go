package handler

import (
	"github.com/gin-gonic/gin"

	"foerderscout/internal/app"
	"foerderscout/internal/model"
	"foerderscout/internal/transport/http/response"
)

type PaymentHandler struct {
	authService *app.AuthService
}

type CalculateFeeRequest struct {
	ApprovedAmount   float64 `json:"approved_amount" binding:"required,gt=0"`
	SubscriptionTier string  `json:"subscription_tier" binding:"omitempty,oneof=tier_1 tier_2 tier_3"`
}

func NewPaymentHandler(authService *app.AuthService) *PaymentHandler {
	return &PaymentHandler{authService: authService}
}

func (h *PaymentHandler) FeeTiers(c *gin.Context) {
	response.OK(c, gin.H{"tiers": app.FeeTiers()})
}

// CalculateFee uses the requested tier, or the caller's own subscription tier when none is given.
func (h *PaymentHandler) CalculateFee(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req CalculateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}

	tier := model.SubscriptionTier(req.SubscriptionTier)
	if tier == "" {
		user, err := h.authService.GetUserByID(userID)
		if err != nil {
			writeError(c, err, "fetch current user failed")
			return
		}
		if user != nil {
			tier = user.SubscriptionTier
		}
	}

	calc, err := app.CalculateSuccessFee(req.ApprovedAmount, tier)
	if err != nil {
		writeError(c, err, "calculate fee failed")
		return
	}

	response.OK(c, calc)
}
