package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-generator/internal/domain"
)

// ErrTokenInUse is returned when a verification token already belongs to a
// different email address.
var ErrTokenInUse = domain.ErrTokenInUse

const (
	uniqueViolation = "23505"
	tokenIndexName  = "subscribers_verification_token_key"
)

// SubscriberRepo stores subscriber records in Postgres. Lead magnet
// timestamps live in the lead_magnet_generated JSONB column.
type SubscriberRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepo(pool *pgxpool.Pool) *SubscriberRepo {
	return &SubscriberRepo{pool: pool}
}

func (r *SubscriberRepo) FindByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	var (
		sub domain.Subscriber
		raw string
	)
	err := r.pool.QueryRow(ctx, `SELECT email, verification_token, COALESCE(lead_magnet_generated, '{}'::jsonb)::text
		FROM subscribers WHERE verification_token = $1`, token).Scan(&sub.Email, &sub.VerificationToken, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying subscriber: %w", err)
	}

	sub.LeadMagnets, err = decodeLeadMagnets([]byte(raw))
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CompareAndSwapGenerated runs the swap as one conditional UPDATE, so two
// requests racing on the same token cannot both win.
func (r *SubscriberRepo) CompareAndSwapGenerated(ctx context.Context, token, magnet string, expected, next *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE subscribers SET
			lead_magnet_generated = CASE
				WHEN $4::text IS NULL THEN COALESCE(lead_magnet_generated, '{}'::jsonb) - $2::text
				ELSE COALESCE(lead_magnet_generated, '{}'::jsonb) || jsonb_build_object($2::text, $4::text)
			END,
			updated_at = now()
		WHERE verification_token = $1
			AND (lead_magnet_generated ->> $2::text) IS NOT DISTINCT FROM $3::text`,
		token, magnet, expected, next)
	if err != nil {
		return false, fmt.Errorf("error updating subscriber: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubscriberRepo) UpsertGenerated(ctx context.Context, email, token, magnet string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO subscribers (id, email, verification_token, lead_magnet_generated, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), jsonb_build_object($4::text, $5::text), now(), now())
		ON CONFLICT (email) DO UPDATE SET
			lead_magnet_generated = COALESCE(subscribers.lead_magnet_generated, '{}'::jsonb) || EXCLUDED.lead_magnet_generated,
			verification_token = COALESCE(subscribers.verification_token, EXCLUDED.verification_token),
			updated_at = now()`,
		uuid.New(), email, token, magnet, domain.FormatTimestamp(at))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == tokenIndexName {
		return fmt.Errorf("error upserting subscriber: %w", ErrTokenInUse)
	}
	if err != nil {
		return fmt.Errorf("error upserting subscriber: %w", err)
	}
	return nil
}

// decodeLeadMagnets tolerates non-string values written by other tools.
func decodeLeadMagnets(raw []byte) (map[string]string, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("error decoding lead_magnet_generated: %w", err)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, nil
}
