package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DefaultPinLength      = 4
	MinPinLength          = 4
	MaxPinLength          = 6
	DefaultSessionTTLMins = 15
)

// Config menampung seluruh konfigurasi runtime yang dibaca dari environment.
type Config struct {
	DBDriver      string
	DBDSN         string
	QRTokenSecret string
	PinLength     int
	SessionTTL    time.Duration
	Port          string
}

// Load membaca konfigurasi dari environment (setelah godotenv.Load di main).
func Load() Config {
	cfg := Config{
		DBDriver:      getEnv("DB_DRIVER", "mysql"),
		DBDSN:         os.Getenv("DB_DSN"),
		QRTokenSecret: os.Getenv("QR_TOKEN_SECRET"),
		PinLength:     getEnvInt("SESSION_PIN_LENGTH", DefaultPinLength),
		SessionTTL:    time.Duration(getEnvInt("TABLE_SESSION_TTL_MINUTES", DefaultSessionTTLMins)) * time.Minute,
		Port:          getEnv("PORT", "8080"),
	}

	// PIN length dibatasi 4-6 digit
	if cfg.PinLength < MinPinLength {
		log.Printf("Warning: SESSION_PIN_LENGTH %d below minimum, using %d", cfg.PinLength, MinPinLength)
		cfg.PinLength = MinPinLength
	}
	if cfg.PinLength > MaxPinLength {
		log.Printf("Warning: SESSION_PIN_LENGTH %d above maximum, using %d", cfg.PinLength, MaxPinLength)
		cfg.PinLength = MaxPinLength
	}

	return cfg
}

// InitDB membuka koneksi database sesuai DB_DRIVER (mysql untuk produksi,
// sqlite untuk pengembangan lokal dan test).
func InitDB() (*gorm.DB, error) {
	driver := getEnv("DB_DRIVER", "mysql")

	switch driver {
	case "mysql":
		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				getEnv("DB_USER", "root"),
				os.Getenv("DB_PASSWORD"),
				getEnv("DB_HOST", "127.0.0.1"),
				getEnv("DB_PORT", "3306"),
				getEnv("DB_NAME", "qrdine"),
			)
		}
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		path := getEnv("DB_DSN", "qrdine.db")
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	default:
		return nil, errors.New("unsupported DB_DRIVER: " + driver)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %d", key, v, fallback)
		return fallback
	}
	return n
}
