package handler

import (
	"time"

	"backend-loket/internal/helper"
	"backend-loket/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetConfig - jam layanan dan status buka saat ini
func GetConfig(hours models.ServiceHours, loc *time.Location, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"data":    hours,
			"is_open": helper.IsQueueOpen(now().In(loc), hours.JamBuka, hours.JamTutup),
		})
	}
}
