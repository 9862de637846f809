package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// DeliveryFilter narrows a report query. Zero values are ignored.
type DeliveryFilter struct {
	ServiceID string
	JobID     string
	Status    model.DeliveryStatus
	Type      string
	Since     time.Time
	Limit     int
	Offset    int
}

// CHDeliveriesRepository lists journaled deliveries from ClickHouse (final view).
type CHDeliveriesRepository interface {
	List(ctx context.Context, f DeliveryFilter) ([]model.Delivery, error)
	CountByStatus(ctx context.Context, serviceID string, since time.Time) (map[model.DeliveryStatus]uint64, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) CHDeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

func (r *chDeliveriesRepository) List(ctx context.Context, f DeliveryFilter) ([]model.Delivery, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, queue, message_id, notification_id, service_id, template_id, job_id,
		       type, variant, recipient, status, provider_ref, failure_kind, error, deleted, created_at
		FROM delivery.deliveries_latest
		WHERE service_id = ?
	`
	args := []any{f.ServiceID}

	if f.JobID != "" {
		q += " AND job_id = ?"
		args = append(args, f.JobID)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Type != "" {
		q += " AND type = ?"
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, f.Since)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Delivery
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *chDeliveriesRepository) CountByStatus(ctx context.Context, serviceID string, since time.Time) (map[model.DeliveryStatus]uint64, error) {
	const q = `
		SELECT status, count() AS total
		FROM delivery.deliveries_latest
		WHERE service_id = ? AND created_at >= ?
		GROUP BY status
	`
	var rows []struct {
		Status string `db:"status"`
		Total  uint64 `db:"total"`
	}
	if err := r.ch.SelectContext(ctx, &rows, q, serviceID, since); err != nil {
		return nil, err
	}

	out := make(map[model.DeliveryStatus]uint64, len(rows))
	for _, row := range rows {
		out[model.DeliveryStatus(row.Status)] = row.Total
	}
	return out, nil
}
