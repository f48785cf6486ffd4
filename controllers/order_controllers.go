package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/events"
	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/services"
	"github.com/yeremiapane/qrdine/utils"
)

type OrderController struct {
	DB       *gorm.DB
	Checkout *services.CheckoutService
}

func NewOrderController(db *gorm.DB, checkout *services.CheckoutService) *OrderController {
	return &OrderController{DB: db, Checkout: checkout}
}

var validOrderStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusPreparing: true,
	models.OrderStatusReady:     true,
	models.OrderStatusCompleted: true,
	models.OrderStatusCancelled: true,
}

// GetAllOrders -> list orders tenant beserta items
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var orders []models.Order
	query := oc.DB.Preload("OrderItems").Where("tenant_id = ?", c.GetString("tenant_id"))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetOrderByID -> detail 1 order
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID := c.Param("order_id")

	var order models.Order
	if err := oc.DB.Preload("OrderItems").
		First(&order, "id = ? AND tenant_id = ?", orderID, c.GetString("tenant_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus -> staff memindahkan order di lifecycle-nya. Status
// terminal (completed/cancelled) melepas klaim meja sehingga meja bisa
// checkout lagi.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	tenantID := c.GetString("tenant_id")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if !validOrderStatuses[req.Status] {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown order status %q", req.Status))
		return
	}

	var order models.Order
	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ? AND tenant_id = ?", orderID, tenantID).Error; err != nil {
			return err
		}

		if err := tx.Model(&order).Update("status", req.Status).Error; err != nil {
			return err
		}
		order.Status = req.Status

		if models.IsTerminalOrderStatus(req.Status) {
			return oc.Checkout.ReleaseTable(tx, &order)
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	events.BroadcastOrderUpdate(order)
	events.BroadcastStaffNotification(fmt.Sprintf("Order %s moved to %s", order.ID, order.Status))

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}
