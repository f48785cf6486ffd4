package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qrdine/events"
	"github.com/yeremiapane/qrdine/services"
	"github.com/yeremiapane/qrdine/utils"
)

type CheckoutController struct {
	Checkout *services.CheckoutService
}

func NewCheckoutController(checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{Checkout: checkout}
}

type checkoutItemReq struct {
	MenuItemID     string `json:"menuItemId" binding:"required"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity" binding:"required"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Notes          string `json:"notes"`
}

type checkoutReq struct {
	TenantID  string  `json:"tenantId" binding:"required"`
	SessionID string  `json:"sessionId" binding:"required"`
	Mode      string  `json:"mode" binding:"required"`
	TableID   *string `json:"tableId"`
	// Pointer supaya field yang hilang bisa dibedakan dari 0
	CartVersion *int64            `json:"cartVersion" binding:"required"`
	TotalCents  int64             `json:"totalCents"`
	Items       []checkoutItemReq `json:"items"`
}

// PlaceOrder -> checkout idempotent: satu order per intent client, satu
// order aktif per meja. Header Idempotency-Key wajib.
func (cc *CheckoutController) PlaceOrder(c *gin.Context) {
	// Absennya header adalah error tersendiri, terpisah dari validasi body
	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		utils.RespondErrorCode(c, http.StatusBadRequest, "idempotency_key_required", nil)
		return
	}

	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "malformed_body", nil)
		return
	}

	input := services.CheckoutInput{
		TenantID:       req.TenantID,
		SessionID:      req.SessionID,
		Mode:           req.Mode,
		TableID:        req.TableID,
		CartVersion:    *req.CartVersion,
		TotalCents:     req.TotalCents,
		IdempotencyKey: idempotencyKey,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.CheckoutItem{
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Notes:          item.Notes,
		})
	}

	res, err := cc.Checkout.Checkout(input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIdempotencyKeyRequired):
			utils.RespondErrorCode(c, http.StatusBadRequest, "idempotency_key_required", nil)
		case errors.Is(err, services.ErrInvalidMode):
			utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_mode", nil)
		case errors.Is(err, services.ErrTableRequired):
			utils.RespondErrorCode(c, http.StatusBadRequest, "table_required_for_dine_in", nil)
		case errors.Is(err, services.ErrInvalidCartVersion):
			utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_cart_version", nil)
		case errors.Is(err, services.ErrStaleCart):
			// Outcome normal dari pemakaian paralel yang sah; client
			// diharapkan refresh cart lalu coba lagi
			utils.RespondErrorCode(c, http.StatusConflict, "stale_cart", nil)
		case errors.Is(err, services.ErrActiveOrderExists):
			utils.RespondErrorCode(c, http.StatusConflict, "active_order_exists", nil)
		case errors.Is(err, services.ErrCheckoutSession):
			utils.RespondErrorCode(c, http.StatusForbidden, "forbidden", nil)
		default:
			utils.ErrorLogger.Printf("checkout failed: %v", err)
			utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
		}
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		// Replay bukan error: kembalikan hasil asli dengan 200
		status = http.StatusOK
	} else {
		events.BroadcastOrderCreated(*res.Order)
	}

	c.JSON(status, gin.H{
		"order":     gin.H{"id": res.Order.ID},
		"duplicate": res.Duplicate,
	})
}
