package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKeyError memeriksa apakah err adalah pelanggaran unique
// constraint pada index/kolom tertentu. gorm menerjemahkan error dialect ke
// ErrDuplicatedKey tapi tidak menyebut constraint mana yang kena; pesan
// aslinya menyebut nama index (MySQL) atau daftar kolom (SQLite), jadi
// klasifikasi dilakukan lewat substring.
func isDuplicateKeyError(err error, indexHint string) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) &&
		!strings.Contains(strings.ToLower(err.Error()), "unique") &&
		!strings.Contains(strings.ToLower(err.Error()), "duplicate") {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), indexHint)
}
