package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/http/middleware"
	"github.com/jmehdipour/notifications-delivery/internal/model"
	"github.com/jmehdipour/notifications-delivery/internal/service/producer"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, n producer.Notification) (producer.Receipt, error)
}

type DeliveryLister interface {
	ListByNotification(ctx context.Context, notificationID string, limit int) ([]model.Delivery, error)
}

type enqueueReq struct {
	Type           string `json:"type"` // "email" | "sms"
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	NotificationID string `json:"notification_id"`
	To             string `json:"to"`
	Job            string `json:"job"`
	Content        string `json:"content"`
	FromAddress    string `json:"from_address"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

func enqueueHandler(svc Enqueuer, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req enqueueReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		rcpt, err := svc.Enqueue(c.Request().Context(), producer.Notification{
			Type:           strings.TrimSpace(req.Type),
			ServiceID:      strings.TrimSpace(req.ServiceID),
			TemplateID:     strings.TrimSpace(req.TemplateID),
			NotificationID: strings.TrimSpace(req.NotificationID),
			To:             req.To,
			JobID:          strings.TrimSpace(req.Job),
			Content:        req.Content,
			FromAddress:    strings.TrimSpace(req.FromAddress),
			Subject:        req.Subject,
			Body:           req.Body,
		})
		if err != nil {
			switch {
			case errors.Is(err, producer.ErrInvalidType),
				errors.Is(err, producer.ErrMissingField),
				errors.Is(err, producer.ErrMissingRecipient),
				errors.Is(err, producer.ErrContentTooLong):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			clientID, _ := middleware.ClientIDFromCtx(c)
			log.Error("enqueue failed", zap.String("client", clientID), zap.Error(err))

			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
		}

		return c.JSON(http.StatusAccepted, map[string]any{
			"enqueued":        true,
			"notification_id": rcpt.NotificationID,
			"message_id":      rcpt.MessageID,
			"type":            req.Type,
		})
	}
}

func notificationDeliveriesHandler(repo DeliveryLister, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		limit := 20
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		rows, err := repo.ListByNotification(c.Request().Context(), id, limit)
		if err != nil {
			log.Error("journal lookup failed", zap.String("notification_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if len(rows) == 0 {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"notification_id": id,
			"count":           len(rows),
			"results":         rows,
		})
	}
}
