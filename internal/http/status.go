package http

import (
	"net/http"
	"net/url"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
)

// statusHandler asks the channel that delivered ref what happened to it.
func statusHandler(checkers map[string]channel.StatusChecker, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		typ := c.Param("type")
		checker, ok := checkers[typ]
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown type"})
		}

		ref, err := url.PathUnescape(c.Param("ref"))
		if err != nil || ref == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad reference"})
		}

		state, err := checker.Status(c.Request().Context(), ref)
		if err != nil {
			log.Warn("status lookup failed", zap.String("type", typ), zap.String("ref", ref), zap.Error(err))

			return c.JSON(http.StatusBadGateway, map[string]string{"error": "status unavailable"})
		}

		return c.JSON(http.StatusOK, map[string]string{
			"type":   typ,
			"ref":    ref,
			"status": state.String(),
		})
	}
}
