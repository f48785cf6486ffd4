// Package cart adalah state machine keranjang sisi client, di-scope per
// (tenant, session, mode). Mutasi ditolak sampai context dan mode ditetapkan;
// tiap scope punya penyimpanan durable sendiri dan tidak pernah digabung.
package cart

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const (
	ModeTable    = "table"
	ModeTakeaway = "takeaway"
)

var (
	ErrContextRequired = errors.New("cart: context (tenant/session) is not set")
	ErrModeRequired    = errors.New("cart: ordering mode is not set")
	ErrInvalidMode     = errors.New("cart: mode must be table or takeaway")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
)

type Item struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Store menampung keranjang aktif satu device. Semua operasi thread-safe.
type Store struct {
	mu        sync.Mutex
	storage   Storage
	tenantID  string
	sessionID string
	mode      string
	scopeKey  string
	items     map[string]Item

	subs   map[int]func([]Item)
	nextID int
}

func NewStore(storage Storage) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Store{
		storage: storage,
		items:   make(map[string]Item),
		subs:    make(map[int]func([]Item)),
	}
}

// SetContext menetapkan tenant dan session. Session kosong (takeaway tanpa
// sesi meja) diganti identifier ephemeral lokal. Mengganti context membuang
// item in-memory; item scope lama tetap utuh di storage.
func (s *Store) SetContext(tenantID, sessionID string) error {
	if tenantID == "" {
		return ErrContextRequired
	}
	if sessionID == "" {
		sessionID = "local-" + uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantID == tenantID && s.sessionID == sessionID {
		return nil
	}

	s.tenantID = tenantID
	s.sessionID = sessionID
	s.items = make(map[string]Item)
	s.scopeKey = ""

	// Mode yang sudah dipilih tetap berlaku untuk context baru; scope key
	// diturunkan ulang dan isi scope baru dimuat dari storage.
	if s.mode != "" {
		return s.switchScopeLocked()
	}
	return nil
}

// SetMode memilih mode pemesanan. Context harus sudah ada. Mode yang sama
// dengan scope berjalan adalah no-op; mode berbeda memuat keranjang
// tersendiri dari storage tanpa menyentuh keranjang mode sebelumnya.
func (s *Store) SetMode(mode string) error {
	if mode != ModeTable && mode != ModeTakeaway {
		return ErrInvalidMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantID == "" {
		return ErrContextRequired
	}

	if key := scopeKey(s.tenantID, s.sessionID, mode); key == s.scopeKey {
		return nil
	}

	s.mode = mode
	return s.switchScopeLocked()
}

// Add menambah qty untuk item; item dengan id sama digabung kuantitasnya.
func (s *Store) Add(item Item, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireScopeLocked(); err != nil {
		return err
	}

	existing, ok := s.items[item.ID]
	if ok {
		existing.Quantity += qty
		s.items[item.ID] = existing
	} else {
		item.Quantity = qty
		s.items[item.ID] = item
	}

	return s.persistAndNotifyLocked()
}

// Remove mengurangi qty; item dihapus saat kuantitasnya mencapai nol.
func (s *Store) Remove(itemID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireScopeLocked(); err != nil {
		return err
	}

	existing, ok := s.items[itemID]
	if !ok {
		return nil
	}

	existing.Quantity -= qty
	if existing.Quantity <= 0 {
		delete(s.items, itemID)
	} else {
		s.items[itemID] = existing
	}

	return s.persistAndNotifyLocked()
}

// Items mengembalikan snapshot item terurut berdasar id.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// TotalCents menjumlahkan seluruh item dalam minor unit.
func (s *Store) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, item := range s.items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// Subscribe mendaftarkan callback yang dipanggil setiap mutasi sukses.
// Mengembalikan fungsi unsubscribe.
func (s *Store) Subscribe(fn func([]Item)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) requireScopeLocked() error {
	if s.tenantID == "" {
		return ErrContextRequired
	}
	if s.mode == "" {
		return ErrModeRequired
	}
	return nil
}

func (s *Store) switchScopeLocked() error {
	s.scopeKey = scopeKey(s.tenantID, s.sessionID, s.mode)

	stored, err := s.storage.Load(s.scopeKey)
	if err != nil {
		return err
	}

	s.items = make(map[string]Item, len(stored))
	for _, item := range stored {
		s.items[item.ID] = item
	}
	return nil
}

// persistAndNotifyLocked menulis seluruh isi scope secara sinkron sebelum
// memberi tahu subscriber; tidak ada mutasi yang terpersist sebagian.
func (s *Store) persistAndNotifyLocked() error {
	snapshot := s.snapshotLocked()
	if err := s.storage.Save(s.scopeKey, snapshot); err != nil {
		return err
	}
	for _, fn := range s.subs {
		fn(snapshot)
	}
	return nil
}

func (s *Store) snapshotLocked() []Item {
	snapshot := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		snapshot = append(snapshot, item)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return snapshot
}

func scopeKey(tenantID, sessionID, mode string) string {
	return tenantID + "|" + sessionID + "|" + mode
}
