package handler

import (
	"time"

	"backend-loket/internal/queue"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type ResetRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, kosong = hari ini
}

type AdminHandler struct {
	svc *queue.Service
	log *log.Entry
}

func NewAdminHandler(svc *queue.Service, logger *log.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: logger.WithField("component", "http")}
}

// Reset - tutup hari: serving jadi completed, waiting jadi cancelled
func (h *AdminHandler) Reset(c *fiber.Ctx) error {
	var req ResetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if req.Date == "" {
		req.Date = h.svc.Today()
	}

	report, err := h.svc.ResetDay(c.UserContext(), req.Date)
	if err != nil && report.EffectiveDate == "" {
		return queueError(c, h.log, err)
	}

	resp := fiber.Map{
		"success": true,
		"message": "Reset harian selesai",
		"data":    report,
	}
	if err != nil {
		// reset sudah commit, yang gagal hanya langkah sesudahnya
		h.log.WithField("effective_date", req.Date).WithError(err).Error("reset committed with follow-up failure")
		resp["warning"] = err.Error()
	}
	return c.JSON(resp)
}

func (h *AdminHandler) BackfillServedAt(c *fiber.Ctx) error {
	started := time.Now()
	n, err := h.svc.BackfillServedAt(c.UserContext())
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"updated":     n,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
}
