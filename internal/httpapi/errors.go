package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/park285/padel-scoreboard/internal/matchstore"
	"github.com/park285/padel-scoreboard/internal/matchsvc"
	"github.com/park285/padel-scoreboard/internal/msgcat"
	"github.com/park285/padel-scoreboard/internal/obslog"
	"github.com/park285/padel-scoreboard/internal/scoring"
	"github.com/park285/padel-scoreboard/pkg/padeldto"
)

// errorStatus maps domain errors to an HTTP status and a message catalog key.
// ErrEmptyHistory is checked before ErrInvalidState because it wraps it.
func errorStatus(err error) (int, msgcat.Key) {
	switch {
	case errors.Is(err, matchstore.ErrNotFound):
		return fiber.StatusNotFound, msgcat.ErrMatchNotFound
	case errors.Is(err, scoring.ErrEmptyHistory):
		return fiber.StatusNotFound, msgcat.ErrNoHistory
	case errors.Is(err, scoring.ErrInvalidState):
		return fiber.StatusConflict, msgcat.ErrMatchCompleted
	case errors.Is(err, matchstore.ErrConflict):
		return fiber.StatusConflict, msgcat.ErrConflict
	case errors.Is(err, matchsvc.ErrBusy):
		return fiber.StatusConflict, msgcat.ErrBusy
	case errors.Is(err, scoring.ErrInvalidSide):
		return fiber.StatusUnprocessableEntity, msgcat.ErrInvalidSide
	case errors.Is(err, scoring.ErrInvalidPlayers), errors.Is(err, scoring.ErrInvalidID):
		return fiber.StatusUnprocessableEntity, msgcat.ErrInvalidPlayers
	case errors.Is(err, matchsvc.ErrExportFailed):
		return fiber.StatusInternalServerError, msgcat.ErrExportFailed
	default:
		return fiber.StatusInternalServerError, msgcat.ErrInternal
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, key := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		obslog.L().Error("http_request_failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return s.detail(c, status, key, nil)
}

func (s *Server) detail(c *fiber.Ctx, status int, key msgcat.Key, data any) error {
	return c.Status(status).JSON(padeldto.ErrorResponse{Detail: s.msgs.Text(key, data)})
}

func (s *Server) badBody(c *fiber.Ctx, reason string) error {
	return s.detail(c, fiber.StatusUnprocessableEntity, msgcat.ErrInvalidBody, map[string]any{"Reason": reason})
}
