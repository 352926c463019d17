package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Haleralex/sessionkit/session"
)

// Publisher - контракт доставки событий во внешнюю систему.
//
// Реализации:
// - NATSPublisher (production)
// - In-memory fake (тесты)
//
// Relay вызывает Publish, удерживая блокировку строки события, поэтому
// доставка получается at-least-once: упавший после публикации commit вернёт
// событие в PENDING, и оно будет опубликовано повторно. Consumers должны
// быть идемпотентными.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RelayConfig - настройки поллера.
type RelayConfig struct {
	// PollInterval - пауза между выборками, когда PENDING событий мало.
	PollInterval time.Duration
	// BatchSize - сколько событий забирается за одну транзакцию.
	BatchSize int
	// Logger по умолчанию slog.Default().
	Logger *slog.Logger
}

// Relay - поллер outbox таблицы. Каждая итерация открывает транзакционную
// сессию, выбирает PENDING события с FOR UPDATE SKIP LOCKED, публикует их и
// помечает результат в той же транзакции.
type Relay struct {
	factory  session.Factory[*session.TransactionalSession]
	store    *Store
	pub      Publisher
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// NewRelay создаёт Relay. factory, store и pub обязательны.
func NewRelay(
	factory session.Factory[*session.TransactionalSession],
	store *Store,
	pub Publisher,
	cfg RelayConfig,
) (*Relay, error) {
	if factory == nil {
		return nil, fmt.Errorf("outbox: relay requires a session factory")
	}
	if store == nil {
		return nil, fmt.Errorf("outbox: relay requires a store")
	}
	if pub == nil {
		return nil, fmt.Errorf("outbox: relay requires a publisher")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Relay{
		factory:  factory,
		store:    store,
		pub:      pub,
		interval: interval,
		batch:    batch,
		log:      log,
	}, nil
}

// Run крутит поллер до отмены контекста. Ошибки итераций логируются, цикл
// продолжается. После полного батча следующая выборка идёт без паузы,
// чтобы быстрее разгребать накопившийся хвост.
func (r *Relay) Run(ctx context.Context) error {
	r.log.InfoContext(ctx, "outbox relay started",
		"poll_interval", r.interval.String(),
		"batch_size", r.batch,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoContext(ctx, "outbox relay stopped")
			return ctx.Err()
		case <-timer.C:
		}

		processed, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.InfoContext(ctx, "outbox relay stopped")
				return ctx.Err()
			}
			r.log.ErrorContext(ctx, "outbox batch failed", "error", err)
		}

		if processed == r.batch {
			timer.Reset(0)
		} else {
			timer.Reset(r.interval)
		}
	}
}

// RunOnce обрабатывает один батч и возвращает число обработанных событий.
// Подходит для cron-style запуска без фонового цикла.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	sess, err := r.factory.OpenSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open relay session: %w", err)
	}
	defer sess.Close(ctx)

	conn, err := sess.Conn()
	if err != nil {
		return 0, err
	}
	db, ok := querierFrom(conn)
	if !ok {
		return 0, fmt.Errorf("outbox: session connection %T does not support queries", conn)
	}

	handle, err := sess.BeginTx(ctx, session.LevelReadCommitted)
	if err != nil {
		return 0, err
	}
	defer handle.Close(ctx)

	events, err := r.store.FindPending(ctx, db, r.batch)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, handle.Commit(ctx)
	}

	for _, ev := range events {
		if err := r.publishOne(ctx, db, ev); err != nil {
			return 0, err
		}
	}

	if err := handle.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit relay batch: %w", err)
	}

	r.log.DebugContext(ctx, "outbox batch processed", "events", len(events))
	return len(events), nil
}

// querierFrom снимает слои инструментации (metrics, tracing) с соединения,
// пока не доберётся до провайдера, умеющего выполнять запросы. Statements
// при этом идут по тому же wire-соединению, что и транзакция сессии.
func querierFrom(conn session.Conn) (Querier, bool) {
	for conn != nil {
		if q, ok := conn.(Querier); ok {
			return q, true
		}
		w, ok := conn.(interface{ Unwrap() session.Conn })
		if !ok {
			return nil, false
		}
		conn = w.Unwrap()
	}
	return nil, false
}

// publishOne публикует событие и фиксирует исход в outbox таблице.
func (r *Relay) publishOne(ctx context.Context, db Execer, ev Event) error {
	if err := r.pub.Publish(ctx, ev); err != nil {
		r.log.WarnContext(ctx, "failed to publish outbox event",
			"event_id", ev.ID.String(),
			"topic", ev.Topic,
			"attempts", ev.Attempts+1,
			"error", err,
		)
		return r.store.MarkFailed(ctx, db, ev.ID, err.Error())
	}
	return r.store.MarkPublished(ctx, db, ev.ID)
}
