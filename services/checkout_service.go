package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/utils"
)

var (
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrInvalidMode            = errors.New("mode must be table or takeaway")
	ErrTableRequired          = errors.New("tableId is required for dine-in orders")
	ErrInvalidCartVersion     = errors.New("cartVersion must be a non-negative integer")
	ErrStaleCart              = errors.New("cart version is stale")
	ErrActiveOrderExists      = errors.New("table already has an active order")
	ErrCheckoutSession        = errors.New("checkout session not found")

	// errIdempotentReplayRace menandai create yang kalah balapan dengan
	// request lain ber-idempotency-key sama; hasil pemenang diambil ulang
	// setelah rollback.
	errIdempotentReplayRace = errors.New("idempotency key raced")
)

// CheckoutService menjalankan pembuatan order yang idempotent: satu order
// per idempotency key, satu order non-terminal per meja, dan penolakan
// checkout yang dibangun di atas versi cart yang sudah basi. Seluruh urutan
// check-then-act berjalan dalam satu transaksi.
type CheckoutService struct {
	DB *gorm.DB
}

func NewCheckoutService(db *gorm.DB) *CheckoutService {
	return &CheckoutService{DB: db}
}

type CheckoutItem struct {
	MenuItemID     string
	Name           string
	Quantity       int
	UnitPriceCents int64
	Notes          string
}

type CheckoutInput struct {
	TenantID       string
	SessionID      string
	Mode           string
	TableID        *string
	CartVersion    int64
	TotalCents     int64
	IdempotencyKey string
	Items          []CheckoutItem
}

type CheckoutResult struct {
	Order     *models.Order
	Duplicate bool
}

// Validate memeriksa prasyarat request sebelum menyentuh database, dengan
// urutan error yang tetap: key, mode, tableId, cartVersion.
func (in *CheckoutInput) Validate() error {
	if in.IdempotencyKey == "" {
		return ErrIdempotencyKeyRequired
	}
	if in.Mode != models.OrderModeTable && in.Mode != models.OrderModeTakeaway {
		return ErrInvalidMode
	}
	if in.Mode == models.OrderModeTable && (in.TableID == nil || *in.TableID == "") {
		return ErrTableRequired
	}
	if in.CartVersion < 0 {
		return ErrInvalidCartVersion
	}
	return nil
}

// Checkout membuat (atau memutar ulang) satu order untuk satu intent client.
// Kontrak konkurensi: N request dengan key sama menghasilkan tepat satu
// baris order; dua request beda key untuk meja yang sama menghasilkan tepat
// satu sukses dan satu ErrActiveOrderExists.
func (s *CheckoutService) Checkout(in CheckoutInput) (*CheckoutResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result := &CheckoutResult{}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 1. Replay: key yang sudah dipakai mengembalikan order asli,
		//    bukan membuat baris kedua
		var existing models.Order
		err := tx.
			Where("tenant_id = ? AND idempotency_key = ?", in.TenantID, in.IdempotencyKey).
			First(&existing).Error
		if err == nil {
			result.Order = &existing
			result.Duplicate = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 2. Optimistic concurrency terhadap versi otoritatif di sesi
		var session models.TableSession
		err = tx.
			Where("id = ? AND tenant_id = ?", in.SessionID, in.TenantID).
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCheckoutSession
		}
		if err != nil {
			return err
		}
		if session.CartVersion != in.CartVersion {
			return ErrStaleCart
		}

		// 3. Eksklusivitas per meja, hanya untuk dine-in; takeaway tidak
		//    punya meja yang diperebutkan
		var activeKey *string
		if in.Mode == models.OrderModeTable {
			key := models.ActiveSessionKey(in.TenantID, *in.TableID)
			var blocking models.Order
			err = tx.Where("active_table_key = ?", key).First(&blocking).Error
			if err == nil {
				return ErrActiveOrderExists
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			activeKey = &key
		}

		// 4. Create + bump versi cart; unique index menjadi backstop untuk
		//    kedua pre-check di atas saat ada request yang balapan
		order := &models.Order{
			TenantID:              in.TenantID,
			IdempotencyKey:        in.IdempotencyKey,
			SessionID:             in.SessionID,
			TableID:               in.TableID,
			Mode:                  in.Mode,
			ActiveTableKey:        activeKey,
			CartVersionAtCreation: in.CartVersion,
			TotalCents:            in.TotalCents,
			Status:                models.OrderStatusPending,
		}
		for _, item := range in.Items {
			order.OrderItems = append(order.OrderItems, models.OrderItem{
				MenuItemID:     item.MenuItemID,
				Name:           item.Name,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
				Notes:          item.Notes,
			})
		}

		if err := tx.Create(order).Error; err != nil {
			if isDuplicateKeyError(err, "idem") {
				return errIdempotentReplayRace
			}
			if isDuplicateKeyError(err, "active_table") {
				return ErrActiveOrderExists
			}
			return err
		}

		// Guarded update: cek versi dan bump dalam satu statement supaya
		// tidak butuh row lock eksplisit
		bump := tx.Model(&models.TableSession{}).
			Where("id = ? AND cart_version = ?", in.SessionID, in.CartVersion).
			Update("cart_version", in.CartVersion+1)
		if bump.Error != nil {
			return bump.Error
		}
		if bump.RowsAffected == 0 {
			return ErrStaleCart
		}

		result.Order = order
		return nil
	})

	if errors.Is(err, errIdempotentReplayRace) {
		// Transaksi sudah rollback; ambil order milik pemenang
		var winner models.Order
		if err := s.DB.
			Where("tenant_id = ? AND idempotency_key = ?", in.TenantID, in.IdempotencyKey).
			First(&winner).Error; err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: &winner, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		utils.InfoLogger.Printf("Order %s created (tenant=%s mode=%s total=%s)",
			result.Order.ID, in.TenantID, in.Mode, utils.FormatCents(in.TotalCents))
	}

	return result, nil
}

// ReleaseTable melepas klaim meja sebuah order saat statusnya menjadi
// terminal, supaya meja bisa memesan lagi.
func (s *CheckoutService) ReleaseTable(tx *gorm.DB, order *models.Order) error {
	if order.ActiveTableKey == nil {
		return nil
	}
	order.ActiveTableKey = nil
	return tx.Model(order).Update("active_table_key", nil).Error
}
