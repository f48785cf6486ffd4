package services

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/qrdine/models"
	"github.com/yeremiapane/qrdine/qrtoken"
	"github.com/yeremiapane/qrdine/utils"
)

var lockTestSecret = []byte("service-test-secret")

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Tenant{},
		&models.Table{},
		&models.TableSession{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedTable(t *testing.T, db *gorm.DB) (string, string) {
	t.Helper()
	tenant := models.Tenant{Name: "Warung Tes", Slug: "warung-" + uuid.NewString()[:8]}
	assert.NoError(t, db.Create(&tenant).Error)
	table := models.Table{TenantID: tenant.ID, Label: "A1"}
	assert.NoError(t, db.Create(&table).Error)
	return tenant.ID, table.ID
}

func newLockService(db *gorm.DB) *TableLockService {
	codec := qrtoken.New(lockTestSecret)
	return NewTableLockService(db, codec, 4, 15*time.Minute)
}

func mintToken(t *testing.T, tenantID, tableID string, exp time.Time) string {
	t.Helper()
	token, err := qrtoken.New(lockTestSecret).Sign(qrtoken.Payload{
		TenantID: tenantID,
		TableID:  tableID,
		Exp:      exp.Unix(),
	})
	assert.NoError(t, err)
	return token
}

func TestOpenCreatesSessionWithPin(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)

	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))
	res, err := svc.Open(token)
	assert.NoError(t, err)
	assert.Len(t, res.Pin, 4)
	assert.Equal(t, models.SessionStatusActive, res.Session.Status)

	// PIN tidak pernah disimpan plaintext
	var stored models.TableSession
	assert.NoError(t, db.First(&stored, "id = ?", res.Session.ID).Error)
	assert.NotEqual(t, res.Pin, stored.PinHash)
	assert.NotEmpty(t, stored.PinHash)
}

func TestOpenSecondDeviceGetsConflict(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	_, err := svc.Open(token)
	assert.NoError(t, err)

	_, err = svc.Open(token)
	assert.ErrorIs(t, err, ErrTableLocked)

	// Tetap tepat satu baris aktif di storage
	var count int64
	db.Model(&models.TableSession{}).
		Where("tenant_id = ? AND table_id = ? AND status = ?", tenantID, tableID, models.SessionStatusActive).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestOpenRejectsInvalidToken(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)

	_, err := svc.Open("not-a-token")
	assert.ErrorIs(t, err, qrtoken.ErrMalformedToken)
}

func TestOpenSessionTTLCappedByTokenExp(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)

	// Token habis dalam 2 menit, TTL sesi 15 menit -> expiry ikut token
	exp := time.Now().Add(2 * time.Minute)
	token := mintToken(t, tenantID, tableID, exp)
	res, err := svc.Open(token)
	assert.NoError(t, err)
	assert.WithinDuration(t, exp, res.Session.ExpiresAt, 2*time.Second)
}

func TestOpenReclaimsExpiredSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	first, err := svc.Open(token)
	assert.NoError(t, err)

	// Mundurkan expires_at: baris masih active tapi sudah lewat
	assert.NoError(t, db.Model(&models.TableSession{}).
		Where("id = ?", first.Session.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	second, err := svc.Open(token)
	assert.NoError(t, err)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
}

func TestJoinWithCorrectPin(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	opened, err := svc.Open(token)
	assert.NoError(t, err)

	joined, err := svc.Join(token, opened.Pin)
	assert.NoError(t, err)
	assert.Equal(t, opened.Session.ID, joined.ID)
}

func TestJoinWithWrongPin(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	opened, err := svc.Open(token)
	assert.NoError(t, err)

	wrong := "0000"
	if opened.Pin == wrong {
		wrong = "1111"
	}
	_, err = svc.Join(token, wrong)
	assert.ErrorIs(t, err, ErrInvalidPin)
}

func TestJoinNoActiveSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	_, err := svc.Join(token, "1234")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinExpiredSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	opened, err := svc.Open(token)
	assert.NoError(t, err)

	assert.NoError(t, db.Model(&models.TableSession{}).
		Where("id = ?", opened.Session.ID).
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	// Status masih 'active' tapi expiry dicek saat baca
	_, err = svc.Join(token, opened.Pin)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCloseIsIdempotent(t *testing.T) {
	db := setupServiceDB(t)
	svc := newLockService(db)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	opened, err := svc.Open(token)
	assert.NoError(t, err)

	closed, err := svc.Close(token)
	assert.NoError(t, err)
	assert.Equal(t, opened.Session.ID, closed.ID)

	// Menutup lagi: no-op, bukan error
	again, err := svc.Close(token)
	assert.NoError(t, err)
	assert.Nil(t, again)

	// Meja bisa dibuka kembali setelah close
	reopened, err := svc.Open(token)
	assert.NoError(t, err)
	assert.NotEqual(t, opened.Session.ID, reopened.Session.ID)
}

func TestPinLengthConfigurable(t *testing.T) {
	db := setupServiceDB(t)
	codec := qrtoken.New(lockTestSecret)
	svc := NewTableLockService(db, codec, 6, 15*time.Minute)
	tenantID, tableID := seedTable(t, db)
	token := mintToken(t, tenantID, tableID, time.Now().Add(time.Hour))

	res, err := svc.Open(token)
	assert.NoError(t, err)
	assert.Len(t, res.Pin, 6)
	assert.Regexp(t, `^[0-9]{6}$`, res.Pin)
}
