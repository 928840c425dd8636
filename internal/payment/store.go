package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/asheth-dev/backend-daan/internal/events"
)

// InsertIntentParams carries the fields required to persist a new intent.
type InsertIntentParams struct {
	OrderID        uuid.NullUUID
	GatewayOrderID string
	Amount         decimal.Decimal
	Currency       string
	Method         string
	IdempotencyKey string
}

// Store defines the persistence operations for payment intents.
type Store interface {
	InsertIntent(ctx context.Context, params InsertIntentParams) (Intent, error)
	GetIntent(ctx context.Context, id uuid.UUID) (Intent, error)
	GetIntentByGatewayOrder(ctx context.Context, gatewayOrderID string) (Intent, error)
	GetIntentByIdempotencyKey(ctx context.Context, key string) (Intent, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int32) ([]Intent, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, payload []byte) (Intent, error)
	Settle(ctx context.Context, id uuid.UUID, gatewayPaymentID string, response []byte) (Intent, error)
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error)
}

// NewStore returns a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const intentColumns = `id, order_id, gateway_order_id, COALESCE(gateway_payment_id, ''),
	amount, currency, status, payment_method, COALESCE(idempotency_key, ''),
	created_at, updated_at`

func scanIntent(row pgx.Row) (Intent, error) {
	var it Intent
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.GatewayOrderID,
		&it.GatewayPaymentID,
		&it.Amount,
		&it.Currency,
		&it.Status,
		&it.Method,
		&it.IdempotencyKey,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return Intent{}, err
	}
	return it, nil
}

func (s *pgStore) InsertIntent(ctx context.Context, params InsertIntentParams) (Intent, error) {
	query := `INSERT INTO payments (order_id, gateway_order_id, amount, currency, payment_method, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING ` + intentColumns
	it, err := scanIntent(s.pool.QueryRow(ctx, query,
		params.OrderID, params.GatewayOrderID, params.Amount, params.Currency,
		params.Method, params.IdempotencyKey))
	if err != nil {
		return Intent{}, fmt.Errorf("insert intent: %w", err)
	}
	return it, nil
}

func (s *pgStore) GetIntent(ctx context.Context, id uuid.UUID) (Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payments WHERE id = $1`
	it, err := scanIntent(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrIntentNotFound
	}
	if err != nil {
		return Intent{}, fmt.Errorf("get intent: %w", err)
	}
	return it, nil
}

func (s *pgStore) GetIntentByGatewayOrder(ctx context.Context, gatewayOrderID string) (Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payments WHERE gateway_order_id = $1
		ORDER BY created_at DESC LIMIT 1`
	it, err := scanIntent(s.pool.QueryRow(ctx, query, gatewayOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrIntentNotFound
	}
	if err != nil {
		return Intent{}, fmt.Errorf("get intent by gateway order: %w", err)
	}
	return it, nil
}

func (s *pgStore) GetIntentByIdempotencyKey(ctx context.Context, key string) (Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payments WHERE idempotency_key = $1`
	it, err := scanIntent(s.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrIntentNotFound
	}
	if err != nil {
		return Intent{}, fmt.Errorf("get intent by idempotency key: %w", err)
	}
	return it, nil
}

func (s *pgStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int32) ([]Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		it, scanErr := scanIntent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan pending intent: %w", scanErr)
		}
		intents = append(intents, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending intents: %w", err)
	}
	return intents, nil
}

// MarkFailed transitions an intent to failed, keeping the callback payload
// for audit. Completed intents are never downgraded; repeating the call for
// an already failed intent is a no-op that returns the current row, which
// keeps failure marking idempotent.
func (s *pgStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, payload []byte) (Intent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Intent{}, fmt.Errorf("begin mark failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `UPDATE payments
		SET status = 'failed',
		    gateway_response = COALESCE($2, gateway_response),
		    updated_at = now()
		WHERE id = $1 AND status <> 'completed'
		RETURNING ` + intentColumns
	it, err := scanIntent(tx.QueryRow(ctx, query, id, nullableJSON(payload)))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or already completed; distinguish for the caller.
		existing, getErr := s.GetIntent(ctx, id)
		if getErr != nil {
			return Intent{}, getErr
		}
		return existing, ErrAlreadySettled
	}
	if err != nil {
		return Intent{}, fmt.Errorf("mark intent failed: %w", err)
	}

	if err := insertPaymentEvent(ctx, tx, it.ID, string(StatusFailed), map[string]string{"reason": reason}); err != nil {
		return Intent{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Intent{}, fmt.Errorf("commit mark failed: %w", err)
	}
	return it, nil
}

// Settle completes an intent and flips its parent order to paid inside a
// single transaction, so the payment row and the order row can never disagree.
func (s *pgStore) Settle(ctx context.Context, id uuid.UUID, gatewayPaymentID string, response []byte) (Intent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Intent{}, fmt.Errorf("begin settle: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `UPDATE payments
		SET status = 'completed',
		    gateway_payment_id = $2,
		    gateway_response = COALESCE($3, gateway_response),
		    updated_at = now()
		WHERE id = $1 AND status <> 'completed'
		RETURNING ` + intentColumns
	it, err := scanIntent(tx.QueryRow(ctx, query, id, gatewayPaymentID, nullableJSON(response)))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.GetIntent(ctx, id)
		if getErr != nil {
			return Intent{}, getErr
		}
		return existing, ErrAlreadySettled
	}
	if err != nil {
		return Intent{}, fmt.Errorf("settle intent: %w", err)
	}

	if it.OrderID.Valid {
		orderQuery := `UPDATE orders
			SET payment_status = 'paid', status = 'processing', updated_at = now()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, orderQuery, it.OrderID.UUID); err != nil {
			return Intent{}, fmt.Errorf("mark order paid: %w", err)
		}
	}

	if err := insertPaymentEvent(ctx, tx, it.ID, string(StatusCompleted), map[string]string{
		"gateway_payment_id": gatewayPaymentID,
	}); err != nil {
		return Intent{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Intent{}, fmt.Errorf("commit settle: %w", err)
	}
	return it, nil
}

func (s *pgStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	query := `INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, COALESCE($3, '{}'::jsonb))
		RETURNING id, topic, aggregate_id, payload, occurred_at`
	var ev events.Event
	err := s.pool.QueryRow(ctx, query, topic, aggregateID, nullableJSON(payload)).Scan(
		&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

func insertPaymentEvent(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, status string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO payment_events (payment_id, status, payload) VALUES ($1, $2, $3)`,
		paymentID, status, encoded)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}

// IsUniqueViolation reports whether the error is a Postgres unique constraint
// violation, used to detect idempotency-key races on insert.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
