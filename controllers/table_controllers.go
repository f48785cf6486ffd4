package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/events"
	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/qrtoken"
	"github.com/yeremiapane/qrdine/utils"
)

const defaultQRValidity = 12 * time.Hour

type TableController struct {
	DB    *gorm.DB
	Codec *qrtoken.Codec
}

func NewTableController(db *gorm.DB, codec *qrtoken.Codec) *TableController {
	return &TableController{DB: db, Codec: codec}
}

// CreateTable -> menambahkan meja baru untuk tenant staff yang login
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Label  string `json:"label" binding:"required"`
		Status string `json:"status"` // optional, default "available"
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		TenantID: c.GetString("tenant_id"),
		Label:    req.Label,
		Status:   "available",
	}
	if req.Status != "" {
		table.Status = req.Status
	}

	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	events.BroadcastTableEvent(events.EventTableCreate, table)

	utils.InfoLogger.Printf("New table created: %s (status=%s)", table.Label, table.Status)
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> menampilkan seluruh meja tenant
func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	if err := tc.DB.Where("tenant_id = ?", c.GetString("tenant_id")).Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateTableStatus -> update status meja
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	tableID := c.Param("table_id")
	var body struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND tenant_id = ?", tableID, c.GetString("tenant_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	table.Status = body.Status
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	events.BroadcastTableEvent(events.EventTableUpdate, table)

	utils.InfoLogger.Printf("Table %s status changed to %s", table.ID, table.Status)
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// DeleteTable -> menghapus meja
func (tc *TableController) DeleteTable(c *gin.Context) {
	tableID := c.Param("table_id")
	var table models.Table

	if err := tc.DB.First(&table, "id = ? AND tenant_id = ?", tableID, c.GetString("tenant_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if err := tc.DB.Delete(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	events.BroadcastTableEvent(events.EventTableDelete, table)

	utils.InfoLogger.Printf("Table %s deleted", table.ID)
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{
		"id": table.ID,
	})
}

// GetTableByID -> detail satu meja
func (tc *TableController) GetTableByID(c *gin.Context) {
	tableID := c.Param("table_id")
	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND tenant_id = ?", tableID, c.GetString("tenant_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// MintTableQR -> membuat token QR bertanda tangan untuk dicetak di meja.
// Hanya jalan di sisi server: secret penandatangan tidak pernah keluar.
func (tc *TableController) MintTableQR(c *gin.Context) {
	tableID := c.Param("table_id")
	tenantID := c.GetString("tenant_id")

	var req struct {
		ValidMinutes int `json:"valid_minutes"`
	}
	// Body opsional
	_ = c.ShouldBindJSON(&req)

	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND tenant_id = ?", tableID, tenantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	validity := defaultQRValidity
	if req.ValidMinutes > 0 {
		validity = time.Duration(req.ValidMinutes) * time.Minute
	}
	exp := time.Now().Add(validity)

	token, err := tc.Codec.Sign(qrtoken.Payload{
		TenantID: tenantID,
		TableID:  table.ID,
		Exp:      exp.Unix(),
	})
	if err != nil {
		utils.ErrorLogger.Printf("mint QR failed for table %s: %v", table.ID, err)
		utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	utils.InfoLogger.Printf("QR minted for table %s (exp=%s)", table.ID, exp.Format(time.RFC3339))
	utils.RespondJSON(c, http.StatusCreated, "QR token minted", gin.H{
		"table_id":   table.ID,
		"token":      token,
		"expires_at": exp,
	})
}
