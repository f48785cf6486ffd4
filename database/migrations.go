package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/utils"
)

// Migrate menjalankan AutoMigrate lalu memastikan unique index yang menjadi
// backstop invariant konkurensi benar-benar ada. Check-then-insert di
// application layer punya race window; hanya constraint di database yang
// menutupnya dengan andal, jadi boot gagal bila index tidak terpasang.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Tenant{},
		&models.Table{},
		&models.User{},
		&models.TableSession{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		return err
	}

	required := []struct {
		model interface{}
		index string
	}{
		// satu sesi aktif per (tenant, meja)
		{&models.TableSession{}, "idx_sessions_active_key"},
		// satu order per (tenant, idempotency key)
		{&models.Order{}, "idx_orders_tenant_idem"},
		// satu order dine-in non-terminal per (tenant, meja)
		{&models.Order{}, "idx_orders_active_table"},
	}
	for _, req := range required {
		if !db.Migrator().HasIndex(req.model, req.index) {
			return fmt.Errorf("required unique index %s is missing", req.index)
		}
	}

	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
