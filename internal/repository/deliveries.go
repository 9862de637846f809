package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// DeliveriesRepository persists the delivery journal (one row per processing attempt).
type DeliveriesRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, d model.Delivery) error
	ListByNotification(ctx context.Context, notificationID string, limit int) ([]model.Delivery, error)
}

type DeliveriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDeliveriesRepository(db *sqlx.DB) *DeliveriesRepositoryImpl {
	return &DeliveriesRepositoryImpl{db: db}
}

var _ DeliveriesRepository = (*DeliveriesRepositoryImpl)(nil)

func (r *DeliveriesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Insert writes one attempt. Re-inserting the same id is a no-op.
func (r *DeliveriesRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, d model.Delivery) error {
	const q = `
		INSERT INTO deliveries
		    (id, queue, message_id, notification_id, service_id, template_id, job_id,
		     type, variant, recipient, status, provider_ref, failure_kind, error, deleted, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			d.ID, d.Queue, d.MessageID, d.NotificationID, d.ServiceID, d.TemplateID, d.JobID,
			d.Type, d.Variant, d.Recipient, d.Status.String(), d.ProviderRef, d.FailureKind, d.Error, d.Deleted, d.CreatedAt,
		)
		return err
	})
}

// Record makes the repository usable as a delivery journal.
func (r *DeliveriesRepositoryImpl) Record(ctx context.Context, d model.Delivery) error {
	return r.Insert(ctx, nil, d)
}

// ListByNotification returns the attempts for one notification, newest first.
func (r *DeliveriesRepositoryImpl) ListByNotification(ctx context.Context, notificationID string, limit int) ([]model.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `
		SELECT id, queue, message_id, notification_id, service_id, template_id, job_id,
		       type, variant, recipient, status, provider_ref, failure_kind, error, deleted, created_at
		  FROM deliveries
		 WHERE notification_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?
	`
	var rows []model.Delivery
	if err := r.db.SelectContext(ctx, &rows, q, notificationID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
