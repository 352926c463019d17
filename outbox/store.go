package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer - минимальный контракт для записи в outbox. Его реализует
// *postgres.Conn, поэтому Stage пишет в открытую транзакцию сессии.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier расширяет Execer чтением. Нужен Relay для выборки PENDING событий.
type Querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultMaxAttempts - сколько раз событие возвращается в PENDING после
// неудачной публикации, прежде чем застрять в FAILED.
const DefaultMaxAttempts = 5

// Store инкапсулирует SQL работы с таблицей outbox. Хранилище не держит
// соединение: каждый метод получает его параметром и потому участвует в той
// транзакции, в которой живёт переданное соединение.
type Store struct {
	maxAttempts int
}

// NewStore создаёт Store. При maxAttempts <= 0 берётся DefaultMaxAttempts.
func NewStore(maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{maxAttempts: maxAttempts}
}

// Stage сохраняет событие в outbox таблицу.
// Должно выполняться в той же транзакции, что и бизнес-операция!
func (s *Store) Stage(ctx context.Context, db Execer, event Event) error {
	if event.ID == uuid.Nil {
		return fmt.Errorf("outbox: event ID must not be zero")
	}
	if event.Topic == "" {
		return fmt.Errorf("outbox: event topic must not be empty")
	}

	query := `
		INSERT INTO outbox (id, topic, key, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.Exec(ctx, query,
		event.ID,
		event.Topic,
		event.Key,
		event.Payload,
		string(StatusPending),
		event.Attempts,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to stage event: %w", err)
	}
	return nil
}

// FindPending возвращает события, которые ещё не опубликованы.
// Вызывается внутри транзакции: FOR UPDATE SKIP LOCKED блокирует выбранные
// строки до commit, поэтому несколько Relay не публикуют одно событие дважды.
func (s *Store) FindPending(ctx context.Context, db Querier, limit int) ([]Event, error) {
	query := `
		SELECT id, topic, key, payload, attempts, created_at
		FROM outbox
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev := Event{Status: StatusPending}
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.Key, &ev.Payload, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}
	return events, nil
}

// MarkPublished помечает событие как опубликованное.
func (s *Store) MarkPublished(ctx context.Context, db Execer, eventID uuid.UUID) error {
	query := `
		UPDATE outbox
		SET status = 'PUBLISHED', published_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := db.Exec(ctx, query, eventID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("event not found or already published")
	}
	return nil
}

// MarkFailed фиксирует неудачную попытку публикации. Пока попытки не
// исчерпаны, событие возвращается в PENDING и будет переопубликовано;
// после maxAttempts остаётся в FAILED до ручного MarkForRetry.
func (s *Store) MarkFailed(ctx context.Context, db Execer, eventID uuid.UUID, reason string) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
			last_error = $2,
			failed_at = $3,
			status = CASE WHEN attempts + 1 >= $4 THEN 'FAILED' ELSE 'PENDING' END
		WHERE id = $1
	`

	_, err := db.Exec(ctx, query, eventID, reason, time.Now().UTC(), s.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

// MarkForRetry возвращает FAILED событие в PENDING для повторной обработки.
func (s *Store) MarkForRetry(ctx context.Context, db Execer, eventID uuid.UUID) error {
	query := `
		UPDATE outbox
		SET status = 'PENDING',
			failed_at = NULL,
			last_error = NULL
		WHERE id = $1 AND status = 'FAILED'
	`

	result, err := db.Exec(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event for retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("event not found or not failed")
	}
	return nil
}

// CleanupPublished удаляет опубликованные события старше указанного времени.
// Используется для maintenance.
func (s *Store) CleanupPublished(ctx context.Context, db Execer, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM outbox
		WHERE status = 'PUBLISHED' AND published_at < $1
	`

	result, err := db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup published events: %w", err)
	}
	return result.RowsAffected(), nil
}
