package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/models"
)

// seedSession menanam sesi aktif langsung ke storage, melewati lock manager.
func seedSession(t *testing.T, db *gorm.DB, tenantID, tableID string) *models.TableSession {
	t.Helper()
	key := models.ActiveSessionKey(tenantID, tableID)
	session := &models.TableSession{
		TenantID:  tenantID,
		TableID:   tableID,
		PinHash:   "x",
		Status:    models.SessionStatusActive,
		ActiveKey: &key,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	assert.NoError(t, db.Create(session).Error)
	return session
}

func dineInInput(tenantID, sessionID, tableID, key string, cartVersion int64) CheckoutInput {
	return CheckoutInput{
		TenantID:       tenantID,
		SessionID:      sessionID,
		Mode:           models.OrderModeTable,
		TableID:        &tableID,
		CartVersion:    cartVersion,
		TotalCents:     12500,
		IdempotencyKey: key,
		Items: []CheckoutItem{
			{MenuItemID: uuid.NewString(), Name: "Nasi Goreng", Quantity: 1, UnitPriceCents: 12500},
		},
	}
}

func TestCheckoutValidation(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tableID := uuid.NewString()

	cases := []struct {
		name string
		in   CheckoutInput
		want error
	}{
		{
			name: "missing idempotency key",
			in:   CheckoutInput{TenantID: "t", SessionID: "s", Mode: models.OrderModeTable, TableID: &tableID},
			want: ErrIdempotencyKeyRequired,
		},
		{
			name: "unknown mode",
			in:   CheckoutInput{TenantID: "t", SessionID: "s", Mode: "delivery", IdempotencyKey: "k"},
			want: ErrInvalidMode,
		},
		{
			name: "dine-in without table",
			in:   CheckoutInput{TenantID: "t", SessionID: "s", Mode: models.OrderModeTable, IdempotencyKey: "k"},
			want: ErrTableRequired,
		},
		{
			name: "negative cart version",
			in:   CheckoutInput{TenantID: "t", SessionID: "s", Mode: models.OrderModeTakeaway, IdempotencyKey: "k", CartVersion: -1},
			want: ErrInvalidCartVersion,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Checkout(tc.in)
			assert.ErrorIs(t, err, tc.want)

			var count int64
			db.Model(&models.Order{}).Count(&count)
			assert.Zero(t, count, "validation failure must not create orders")
		})
	}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	res, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "key-1", 0))
	assert.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, models.OrderStatusPending, res.Order.Status)
	assert.Equal(t, int64(12500), res.Order.TotalCents)

	// Versi cart di sesi ikut naik dalam transaksi yang sama
	var stored models.TableSession
	assert.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	assert.Equal(t, int64(1), stored.CartVersion)

	var items []models.OrderItem
	assert.NoError(t, db.Where("order_id = ?", res.Order.ID).Find(&items).Error)
	assert.Len(t, items, 1)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	first, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "double-click", 0))
	assert.NoError(t, err)

	// Replay berkali-kali: selalu order yang sama, tidak pernah baris baru
	for i := 0; i < 3; i++ {
		again, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "double-click", 0))
		assert.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.Order.ID, again.Order.ID)
	}

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCheckoutStaleCart(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	// Naikkan versi otoritatif; request masih membawa versi 0
	assert.NoError(t, db.Model(session).Update("cart_version", 3).Error)

	_, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "stale-key", 0))
	assert.ErrorIs(t, err, ErrStaleCart)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestCheckoutActiveOrderExists(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	_, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "key-a", 0))
	assert.NoError(t, err)

	// Key berbeda, meja sama, versi cart terbaru -> tertolak
	_, err = svc.Checkout(dineInInput(tenantID, session.ID, tableID, "key-b", 1))
	assert.ErrorIs(t, err, ErrActiveOrderExists)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCheckoutTakeawayExemptFromTableExclusivity(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	_, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "dine-key", 0))
	assert.NoError(t, err)

	// Takeaway tanpa meja tidak pernah terblokir aturan per meja
	takeaway := CheckoutInput{
		TenantID:       tenantID,
		SessionID:      session.ID,
		Mode:           models.OrderModeTakeaway,
		CartVersion:    1,
		TotalCents:     5000,
		IdempotencyKey: "takeaway-key",
	}
	res, err := svc.Checkout(takeaway)
	assert.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Nil(t, res.Order.TableID)
	assert.Nil(t, res.Order.ActiveTableKey)
}

func TestCheckoutAfterReleaseTable(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	first, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "round-1", 0))
	assert.NoError(t, err)

	// Order selesai -> klaim meja dilepas -> meja bisa memesan lagi
	assert.NoError(t, db.Model(first.Order).Update("status", models.OrderStatusCompleted).Error)
	assert.NoError(t, svc.ReleaseTable(db, first.Order))

	second, err := svc.Checkout(dineInInput(tenantID, session.ID, tableID, "round-2", 1))
	assert.NoError(t, err)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
}

func TestCheckoutUnknownSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)

	_, err := svc.Checkout(dineInInput(tenantID, uuid.NewString(), tableID, "key", 0))
	assert.ErrorIs(t, err, ErrCheckoutSession)
}

func TestCheckoutManySequentialKeys(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewCheckoutService(db)
	tenantID, tableID := seedTable(t, db)
	session := seedSession(t, db, tenantID, tableID)

	// Versi cart harus mengikuti bump tiap order takeaway yang sukses
	for i := 0; i < 5; i++ {
		in := CheckoutInput{
			TenantID:       tenantID,
			SessionID:      session.ID,
			Mode:           models.OrderModeTakeaway,
			CartVersion:    int64(i),
			TotalCents:     1000,
			IdempotencyKey: fmt.Sprintf("seq-%d", i),
		}
		res, err := svc.Checkout(in)
		assert.NoError(t, err)
		assert.False(t, res.Duplicate)
	}

	var stored models.TableSession
	assert.NoError(t, db.First(&stored, "id = ?", session.ID).Error)
	assert.Equal(t, int64(5), stored.CartVersion)
}
