package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"docflow/internal/core/id"
	"docflow/internal/domain/events"
	"docflow/pkg/logger"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed attempts after which a message
// stops being retried and becomes eligible for the dead letter queue.
const MaxOutboxRetries = 5

// ErrNoTransaction is returned when the outbox is written outside a transaction.
var ErrNoTransaction = errors.New("outbox publish requires a transaction")

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// OutboxPublisher writes domain events to sys_outbox in the business transaction.
type OutboxPublisher struct{}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates an outbox publisher.
func NewOutboxPublisher() *OutboxPublisher {
	return &OutboxPublisher{}
}

const insertOutbox = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Publish implements events.Publisher.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := t.Exec(ctx, insertOutbox, id.New(), event.AggregateType, event.AggregateID,
		event.Type, payload, OutboxStatusPending, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch writes several events with one round trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, evts []events.Event) error {
	t := txFrom(ctx)
	if t == nil {
		return ErrNoTransaction
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, e := range evts {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(insertOutbox, id.New(), e.AggregateType, e.AggregateID, e.Type, payload, OutboxStatusPending, now)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()
	for range evts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler delivers one message downstream.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// LogHandler writes each message to the structured log. It is the default
// sink until a broker is attached.
func LogHandler() OutboxHandler {
	return OutboxHandlerFunc(func(ctx context.Context, msg *OutboxMessage) error {
		logger.Info(ctx, "outbox event",
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", string(msg.Payload))
		return nil
	})
}

// OutboxRelay drains sys_outbox for the background worker.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a relay delivering batches of batchSize messages.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{txManager: txManager, batchSize: batchSize, handler: handler}
}

// ProcessBatch delivers one batch of due messages and returns how many
// were published. Rows stay locked for the whole batch so concurrent
// relays skip them.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		rows, err := q.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}
		messages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxMessage])
		if err != nil {
			return fmt.Errorf("scan outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, q, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType,
					"retry", msg.RetryCount+1, "error", err)
				continue
			}
			published++
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	if err := r.handler.Handle(ctx, msg); err != nil {
		// linear backoff, one more minute per attempt
		next := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		if _, uerr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5`,
			err.Error(), next, MaxOutboxRetries, OutboxStatusFailed, msg.ID); uerr != nil {
			return fmt.Errorf("record delivery failure: %w", uerr)
		}
		return err
	}

	_, err := q.Exec(ctx, `UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3`,
		OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// MoveToDLQ moves exhausted messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1 AND retry_count >= $2
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW()
		FROM moved`, OutboxStatusFailed, MaxOutboxRetries)
	if err != nil {
		return 0, fmt.Errorf("move to dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`,
		OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge published outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
