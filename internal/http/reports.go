package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/model"
	"github.com/jmehdipour/notifications-delivery/internal/repository"
)

func listDeliveriesHandler(chRepo repository.CHDeliveriesRepository, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		serviceID := strings.TrimSpace(c.QueryParam("service_id"))
		if serviceID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "service_id is required"})
		}

		f := repository.DeliveryFilter{
			ServiceID: serviceID,
			JobID:     strings.TrimSpace(c.QueryParam("job_id")),
			Type:      strings.TrimSpace(c.QueryParam("type")),
			Limit:     50,
		}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if st := model.DeliveryStatus(raw); st.Valid() {
				f.Status = st
			}
		}
		if raw := c.QueryParam("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			}
			f.Since = since
		}

		rows, err := chRepo.List(c.Request().Context(), f)
		if err != nil {
			log.Error("clickhouse list failed", zap.String("service_id", serviceID), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}

func summaryHandler(chRepo repository.CHDeliveriesRepository, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		serviceID := strings.TrimSpace(c.QueryParam("service_id"))
		if serviceID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "service_id is required"})
		}

		since := time.Now().Add(-24 * time.Hour)
		if raw := c.QueryParam("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			}
			since = t
		}

		counts, err := chRepo.CountByStatus(c.Request().Context(), serviceID, since)
		if err != nil {
			log.Error("clickhouse summary failed", zap.String("service_id", serviceID), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"service_id": serviceID,
			"since":      since.UTC().Format(time.RFC3339),
			"sent":       counts[model.StatusSent],
			"failed":     counts[model.StatusFailed],
		})
	}
}
