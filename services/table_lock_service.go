package services

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/qrtoken"
	"github.com/yeremiapane/qrdine/utils"
)

var (
	ErrTableLocked     = errors.New("table already has an active session")
	ErrSessionNotFound = errors.New("no active session for this table")
	ErrSessionExpired  = errors.New("table session has expired")
	ErrInvalidPin      = errors.New("pin does not match")
)

// TableLockService menjaga invariant "maksimal satu sesi aktif per meja".
// Device pertama yang membuka meja menerima PIN sekali pakai; device
// berikutnya harus join dengan PIN yang sama.
type TableLockService struct {
	DB         *gorm.DB
	Codec      *qrtoken.Codec
	PinLength  int
	SessionTTL time.Duration
	now        func() time.Time
}

func NewTableLockService(db *gorm.DB, codec *qrtoken.Codec, pinLength int, sessionTTL time.Duration) *TableLockService {
	return &TableLockService{
		DB:         db,
		Codec:      codec,
		PinLength:  pinLength,
		SessionTTL: sessionTTL,
		now:        time.Now,
	}
}

type OpenResult struct {
	Session *models.TableSession
	// Pin hanya terisi pada pembukaan sesi baru dan tidak pernah bisa
	// diambil lagi setelah response ini.
	Pin string
}

// Open membuat sesi baru untuk meja pada token, atau mengembalikan
// ErrTableLocked bila sudah ada sesi aktif yang belum kedaluwarsa.
func (s *TableLockService) Open(token string) (*OpenResult, error) {
	payload, err := s.Codec.Verify(token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pin, err := generatePin(s.PinLength)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// TTL sesi tidak boleh melewati masa berlaku token QR
	expiresAt := now.Add(s.SessionTTL)
	if tokenExp := time.Unix(payload.Exp, 0); tokenExp.Before(expiresAt) {
		expiresAt = tokenExp
	}

	session := &models.TableSession{
		TenantID:  payload.TenantID,
		TableID:   payload.TableID,
		PinHash:   string(hash),
		Status:    models.SessionStatusActive,
		ExpiresAt: expiresAt,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.TableSession
		lookupErr := tx.
			Where("tenant_id = ? AND table_id = ? AND status = ?",
				payload.TenantID, payload.TableID, models.SessionStatusActive).
			Where("active_key IS NOT NULL").
			First(&existing).Error

		switch {
		case lookupErr == nil:
			if !existing.Expired(now) {
				return ErrTableLocked
			}
			// Sesi aktif yang sudah kedaluwarsa dianggap tidak ada untuk
			// keperluan locking: lepaskan kuncinya supaya insert di bawah
			// tidak tertahan unique index. Barisnya sendiri dibiarkan.
			if err := tx.Model(&existing).Update("active_key", nil).Error; err != nil {
				return err
			}
		case errors.Is(lookupErr, gorm.ErrRecordNotFound):
			// meja bebas
		default:
			return lookupErr
		}

		key := models.ActiveSessionKey(payload.TenantID, payload.TableID)
		session.ActiveKey = &key
		if err := tx.Create(session).Error; err != nil {
			// Dua scan balapan: yang kalah menabrak unique index, bukan
			// error internal
			if isDuplicateKeyError(err, "active_key") {
				return ErrTableLocked
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Table session %s opened (tenant=%s table=%s)",
		session.ID, payload.TenantID, payload.TableID)

	return &OpenResult{Session: session, Pin: pin}, nil
}

// Join mengotorisasi device tambahan memakai sesi yang sudah ada. Tidak ada
// state per device yang disimpan; join hanyalah otorisasi stateless.
func (s *TableLockService) Join(token, pin string) (*models.TableSession, error) {
	payload, err := s.Codec.Verify(token)
	if err != nil {
		return nil, err
	}

	// Filter active_key memastikan baris kedaluwarsa yang sudah dilepas
	// kuncinya oleh Open tidak ikut terambil
	var session models.TableSession
	err = s.DB.
		Where("tenant_id = ? AND table_id = ? AND status = ?",
			payload.TenantID, payload.TableID, models.SessionStatusActive).
		Where("active_key IS NOT NULL").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	// Expiry dicek saat baca meski kolom status masih 'active'
	if session.Expired(s.now()) {
		return nil, ErrSessionExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(session.PinHash), []byte(pin)) != nil {
		return nil, ErrInvalidPin
	}

	return &session, nil
}

// Close menutup sesi aktif meja. Idempotent: menutup sesi yang sudah
// tertutup atau tidak pernah ada bukan error.
func (s *TableLockService) Close(token string) (*models.TableSession, error) {
	payload, err := s.Codec.Verify(token)
	if err != nil {
		return nil, err
	}

	var session models.TableSession
	err = s.DB.
		Where("tenant_id = ? AND table_id = ? AND status = ?",
			payload.TenantID, payload.TableID, models.SessionStatusActive).
		Where("active_key IS NOT NULL").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":     models.SessionStatusClosed,
		"active_key": nil,
	}
	if err := s.DB.Model(&session).Updates(updates).Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Table session %s closed (tenant=%s table=%s)",
		session.ID, payload.TenantID, payload.TableID)

	return &session, nil
}

// generatePin menghasilkan PIN numerik acak, leading zero diperbolehkan.
func generatePin(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
