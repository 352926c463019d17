// Package outbox реализует Transactional Outbox Pattern поверх сессий.
//
// Transactional Outbox Pattern:
// 1. В той же транзакции, что и бизнес-операция, сохраняем событие в outbox
// 2. Отдельный процесс (Relay) читает события и публикует в NATS
// 3. После публикации помечает событие как PUBLISHED
//
// Ключевое отличие от ctx-подхода: Stage не достаёт транзакцию из context,
// а пишет через соединение открытой unit-of-work сессии, переданное явно.
// Пока сессия не закоммичена, событие невидимо для Relay.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status - состояние события в таблице outbox.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// Event - запись в таблице outbox.
type Event struct {
	ID        uuid.UUID
	Topic     string // суффикс NATS subject, например "transfers.completed"
	Key       string // ключ упорядочивания (обычно ID агрегата)
	Payload   []byte // JSON
	Status    Status
	Attempts  int
	CreatedAt time.Time
}

// NewEvent создаёт PENDING событие, сериализуя payload в JSON.
func NewEvent(topic, key string, payload any) (Event, error) {
	if topic == "" {
		return Event{}, fmt.Errorf("outbox: event topic must not be empty")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to serialize event payload: %w", err)
	}

	return Event{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   data,
		Status:    StatusPending,
		Attempts:  0,
		CreatedAt: time.Now().UTC(),
	}, nil
}
