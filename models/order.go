package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderModeTable    = "table"
	OrderModeTakeaway = "takeaway"

	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	TenantID string `gorm:"type:varchar(36);not null;index:idx_orders_tenant_idem,unique" json:"tenant_id"`
	Tenant   Tenant `gorm:"foreignKey:TenantID" json:"-"`

	// IdempotencyKey unik per tenant; replay dengan key yang sama selalu
	// mengembalikan order yang sama, tidak pernah membuat baris kedua.
	IdempotencyKey string `gorm:"type:varchar(128);not null;index:idx_orders_tenant_idem,unique" json:"-"`

	SessionID string       `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Session   TableSession `gorm:"foreignKey:SessionID" json:"-"`

	// TableID NULL untuk takeaway.
	TableID *string `gorm:"type:varchar(36);index" json:"table_id,omitempty"`
	Mode    string  `gorm:"type:varchar(20);not null" json:"mode"`

	// ActiveTableKey bernilai "tenant_id:table_id" selama order dine-in masih
	// non-terminal, NULL untuk takeaway dan untuk order yang sudah selesai
	// atau dibatalkan. Unique index di sini yang menjamin maksimal satu order
	// aktif per meja meski dua checkout balapan.
	ActiveTableKey *string `gorm:"type:varchar(100);uniqueIndex:idx_orders_active_table" json:"-"`

	CartVersionAtCreation int64  `gorm:"not null" json:"cart_version_at_creation"`
	TotalCents            int64  `gorm:"not null;default:0" json:"total_cents"`
	Status                string `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Terminal -> order yang sudah tidak "menduduki" meja lagi.
func (o *Order) Terminal() bool {
	return IsTerminalOrderStatus(o.Status)
}

func IsTerminalOrderStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}
