package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qrdine/events"
	"github.com/yeremiapane/qrdine/qrtoken"
	"github.com/yeremiapane/qrdine/services"
	"github.com/yeremiapane/qrdine/utils"
)

type TableSessionController struct {
	Lock *services.TableLockService
}

func NewTableSessionController(lock *services.TableLockService) *TableSessionController {
	return &TableSessionController{Lock: lock}
}

// OpenSession -> device pertama scan QR: buat sesi + kembalikan PIN satu kali
func (tsc *TableSessionController) OpenSession(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "malformed_body", nil)
		return
	}

	res, err := tsc.Lock.Open(req.Token)
	if err != nil {
		if respondTokenError(c, err) {
			return
		}
		if errors.Is(err, services.ErrTableLocked) {
			// Tidak ada informasi apa pun tentang PIN yang bocor di sini
			c.JSON(http.StatusConflict, gin.H{
				"requires_pin": true,
				"reason":       "table_locked",
			})
			return
		}
		utils.ErrorLogger.Printf("open session failed: %v", err)
		utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	events.BroadcastSessionOpened(*res.Session)

	// Satu-satunya response yang pernah membawa PIN dalam bentuk jelas
	c.JSON(http.StatusCreated, gin.H{
		"session_id":   res.Session.ID,
		"requires_pin": false,
		"pin":          res.Pin,
	})
}

// JoinSession -> device berikutnya ikut sesi yang sama dengan PIN
func (tsc *TableSessionController) JoinSession(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
		Pin   string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "malformed_body", nil)
		return
	}

	session, err := tsc.Lock.Join(req.Token, req.Pin)
	if err != nil {
		if respondTokenError(c, err) {
			return
		}
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			utils.RespondErrorCode(c, http.StatusNotFound, "no_active_session", nil)
		case errors.Is(err, services.ErrSessionExpired):
			utils.RespondErrorCode(c, http.StatusGone, "session_expired", nil)
		case errors.Is(err, services.ErrInvalidPin):
			utils.RespondErrorCode(c, http.StatusUnauthorized, "bad_pin", nil)
		default:
			utils.ErrorLogger.Printf("join session failed: %v", err)
			utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"joined":     true,
	})
}

// CloseSession -> tutup sesi meja; idempotent
func (tsc *TableSessionController) CloseSession(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "malformed_body", nil)
		return
	}

	session, err := tsc.Lock.Close(req.Token)
	if err != nil {
		if respondTokenError(c, err) {
			return
		}
		utils.ErrorLogger.Printf("close session failed: %v", err)
		utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	if session != nil {
		events.BroadcastSessionClosed(*session)
	}

	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// respondTokenError menerjemahkan kegagalan verifikasi token QR ke 401
// dengan kode yang bisa dibedakan client. Error database tidak pernah
// sampai ke sini.
func respondTokenError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, qrtoken.ErrExpiredToken):
		utils.RespondErrorCode(c, http.StatusUnauthorized, "token_expired", nil)
	case errors.Is(err, qrtoken.ErrMalformedToken),
		errors.Is(err, qrtoken.ErrInvalidSignature),
		errors.Is(err, qrtoken.ErrMalformedPayload):
		utils.RespondErrorCode(c, http.StatusUnauthorized, "invalid_token", nil)
	case errors.Is(err, qrtoken.ErrNoSecret):
		utils.ErrorLogger.Printf("qr token secret is not configured")
		utils.RespondErrorCode(c, http.StatusInternalServerError, "internal_error", nil)
	default:
		return false
	}
	return true
}
