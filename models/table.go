package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Table struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TenantID  string    `gorm:"type:varchar(36);not null;index:idx_tables_tenant_label,unique" json:"tenant_id"`
	Tenant    Tenant    `gorm:"foreignKey:TenantID" json:"-"`
	Label     string    `gorm:"type:varchar(50);not null;index:idx_tables_tenant_label,unique" json:"label"`
	Status    string    `gorm:"type:varchar(50);not null;default:'available'" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (t *Table) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
