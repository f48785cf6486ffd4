// Package qrtoken berisi codec token QR meja: payload JSON yang ditandatangani
// HMAC-SHA256, dipisah dari auth staff (JWT) supaya secret penandatangan hanya
// perlu ada di proses yang mencetak QR.
package qrtoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoSecret         = errors.New("qrtoken: signing secret is not configured")
	ErrMalformedToken   = errors.New("qrtoken: malformed token")
	ErrInvalidSignature = errors.New("qrtoken: invalid signature")
	ErrMalformedPayload = errors.New("qrtoken: malformed payload")
	ErrExpiredToken     = errors.New("qrtoken: token expired")
)

const nonceBytes = 8

// Payload adalah isi token QR. Exp dalam unix seconds, Nonce selalu terisi
// pada token hasil Sign.
type Payload struct {
	TenantID string `json:"tenant_id"`
	TableID  string `json:"table_id"`
	Exp      int64  `json:"exp"`
	Nonce    string `json:"n,omitempty"`
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

func New(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// NewWithClock dipakai test untuk mengontrol waktu verifikasi.
func NewWithClock(secret []byte, now func() time.Time) *Codec {
	return &Codec{secret: secret, now: now}
}

// Sign menandatangani payload dan mengembalikan token dua segmen
// base64url tanpa padding: encoded_payload "." encoded_signature.
// Hanya boleh dipanggil dari konteks server (pencetakan QR) — secret tidak
// boleh pernah sampai ke client.
func (c *Codec) Sign(p Payload) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrNoSecret
	}
	if err := validatePayload(p); err != nil {
		return "", err
	}

	if p.Nonce == "" {
		buf := make([]byte, nonceBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		p.Nonce = base64.RawURLEncoding.EncodeToString(buf)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	sig := c.sign(encoded)
	return encoded + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify memeriksa signature (constant time), skema payload, dan expiry.
// Mengembalikan payload hanya bila seluruh pemeriksaan lolos.
func (c *Codec) Verify(token string) (*Payload, error) {
	if len(c.secret) == 0 {
		return nil, ErrNoSecret
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrMalformedToken
	}

	// Strict: tolak encoding non-kanonik supaya satu signature hanya punya
	// satu representasi wire
	suppliedSig, err := base64.RawURLEncoding.Strict().DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}

	// hmac.Equal sudah constant-time dan aman terhadap beda panjang
	if !hmac.Equal(suppliedSig, c.sign(parts[0])) {
		return nil, ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformedPayload
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformedPayload
	}
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	if p.Exp <= c.now().Unix() {
		return nil, ErrExpiredToken
	}

	return &p, nil
}

func (c *Codec) sign(encodedPayload string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return mac.Sum(nil)
}

func validatePayload(p Payload) error {
	if _, err := uuid.Parse(p.TenantID); err != nil {
		return ErrMalformedPayload
	}
	if _, err := uuid.Parse(p.TableID); err != nil {
		return ErrMalformedPayload
	}
	if p.Exp <= 0 {
		return ErrMalformedPayload
	}
	return nil
}
