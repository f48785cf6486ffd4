package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

// TableSession adalah klaim eksklusif satu rombongan atas satu meja fisik.
// PIN hanya dikembalikan sekali saat sesi dibuat; setelah itu hanya hash-nya
// yang tersimpan.
type TableSession struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	TenantID string `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	Tenant   Tenant `gorm:"foreignKey:TenantID" json:"-"`
	TableID  string `gorm:"type:varchar(36);not null;index" json:"table_id"`
	Table    Table  `gorm:"foreignKey:TableID" json:"-"`
	PinHash  string `gorm:"type:varchar(255);not null" json:"-"`
	Status   string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`

	// ActiveKey bernilai "tenant_id:table_id" selama sesi aktif dan NULL
	// setelah ditutup. Unique index di kolom ini menutup race check-then-insert
	// pada dua scan bersamaan; NULL tidak pernah bertabrakan. MySQL tidak punya
	// partial unique index, jadi constraint "unik selama aktif" dinyatakan
	// lewat kolom nullable ini.
	ActiveKey *string `gorm:"type:varchar(100);uniqueIndex:idx_sessions_active_key" json:"-"`

	// CartVersion adalah counter otoritatif untuk optimistic concurrency
	// checkout; client harus meng-echo nilai terakhir yang dilihatnya.
	CartVersion int64 `gorm:"not null;default:0" json:"cart_version"`

	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (s *TableSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Expired -> expiry dicek saat baca, bukan lewat sweeper.
func (s *TableSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ActiveSessionKey membentuk nilai ActiveKey untuk pasangan tenant/meja.
func ActiveSessionKey(tenantID, tableID string) string {
	return tenantID + ":" + tableID
}
