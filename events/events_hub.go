package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/qrdine/models"
)

// Event types
const (
	EventSessionOpened = "session_opened"
	EventSessionClosed = "session_closed"
	EventOrderCreated  = "order_created"
	EventOrderUpdated  = "order_updated"
	EventTableCreate   = "table_create"
	EventTableUpdate   = "table_update"
	EventTableDelete   = "table_delete"
	EventStaffNotif    = "staff_notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub menampung koneksi dashboard staff (kasir, dapur, admin) dan
// menyiarkan perubahan sesi meja & order ke semuanya.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]string),
}

// RegisterClient -> menambahkan connection ke set dengan role
func RegisterClient(conn *websocket.Conn, role string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = role
}

// UnregisterClient -> melepaskan connection
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastSessionOpened -> sesi meja baru dibuka lewat scan QR
func BroadcastSessionOpened(session models.TableSession) {
	broadcast(Message{
		Event: EventSessionOpened,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"tenant_id":  session.TenantID,
			"table_id":   session.TableID,
			"expires_at": session.ExpiresAt,
		},
	})
}

// BroadcastSessionClosed -> sesi meja ditutup
func BroadcastSessionClosed(session models.TableSession) {
	broadcast(Message{
		Event: EventSessionClosed,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"tenant_id":  session.TenantID,
			"table_id":   session.TableID,
		},
	})
}

// BroadcastOrderCreated -> order baru dari checkout
func BroadcastOrderCreated(order models.Order) {
	broadcast(Message{
		Event: EventOrderCreated,
		Data:  order,
	})
}

// BroadcastOrderUpdate -> perubahan status order oleh staff
func BroadcastOrderUpdate(order models.Order) {
	broadcast(Message{
		Event: EventOrderUpdated,
		Data:  order,
	})
}

// BroadcastTableEvent -> perubahan daftar meja
func BroadcastTableEvent(event string, table models.Table) {
	broadcast(Message{
		Event: event,
		Data:  table,
	})
}

// BroadcastStaffNotification -> notifikasi untuk staff
func BroadcastStaffNotification(message string) {
	broadcast(Message{
		Event: EventStaffNotif,
		Data:  message,
	})
}

func broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for conn := range hub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(hub.clients, conn)
			conn.Close()
		}
	}
}
