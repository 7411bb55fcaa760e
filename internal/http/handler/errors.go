package handler

import (
	"backend-loket/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// statusFor maps queue errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, queue.ErrEntryNotFound), errors.Is(err, queue.ErrCounterNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrAlreadyTerminal),
		errors.Is(err, queue.ErrCounterUnavailable),
		errors.Is(err, queue.ErrNotWaiting):
		return fiber.StatusConflict
	case errors.Is(err, queue.ErrConcurrencyConflict):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// queueError writes the error envelope. 5xx details stay in the log.
func queueError(c *fiber.Ctx, logger *log.Entry, err error) error {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case status == fiber.StatusServiceUnavailable:
		logger.WithField("path", c.Path()).WithError(err).Warn("request hit a lock conflict")
		c.Set(fiber.HeaderRetryAfter, "1")
		msg = "Antrian sedang sibuk, coba lagi"
	case status >= fiber.StatusInternalServerError:
		logger.WithField("path", c.Path()).WithError(err).Error("request failed")
		msg = "Terjadi kesalahan server"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
