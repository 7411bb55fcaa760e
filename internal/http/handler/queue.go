package handler

import (
	"context"
	"time"

	"backend-loket/internal/helper"
	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CreateEntryRequest - body ambil antrian
type CreateEntryRequest struct {
	CustomerID string `json:"customer_id"`
	IsPriority bool   `json:"is_priority"`
}

type QueueHandler struct {
	svc   *queue.Service
	hours models.ServiceHours
	now   func() time.Time
	log   *log.Entry
}

func NewQueueHandler(svc *queue.Service, hours models.ServiceHours, logger *log.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, hours: hours, now: time.Now, log: logger.WithField("component", "http")}
}

// CreateEntry - customer ambil nomor antrian, hanya di jam layanan
func (h *QueueHandler) CreateEntry(c *fiber.Ctx) error {
	var req CreateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if !helper.IsQueueOpen(h.now().In(h.svc.Location()), h.hours.JamBuka, h.hours.JamTutup) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Antrian sudah tutup, jam layanan " + h.hours.JamBuka + " - " + h.hours.JamTutup,
		})
	}

	entry, err := h.svc.CreateEntry(c.UserContext(), req.CustomerID, req.IsPriority)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Nomor antrian anda " + entry.Token(),
		"data":    entry,
	})
}

func (h *QueueHandler) GetEntry(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID antrian tidak valid")
	}

	entry, err := h.svc.GetEntry(c.UserContext(), id)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

// GetPosition - posisi dihitung ulang setiap request
func (h *QueueHandler) GetPosition(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID antrian tidak valid")
	}

	pos, err := h.svc.GetQueuePosition(c.UserContext(), id)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"entry_id": id,
			"position": pos,
		},
	})
}

func (h *QueueHandler) Complete(c *fiber.Ctx) error {
	return h.finish(c, h.svc.CompleteService, "Layanan selesai")
}

func (h *QueueHandler) Cancel(c *fiber.Ctx) error {
	return h.finish(c, h.svc.CancelService, "Antrian dibatalkan")
}

func (h *QueueHandler) finish(c *fiber.Ctx, op func(ctx context.Context, id uuid.UUID) (models.QueueEntry, error), message string) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "ID antrian tidak valid")
	}

	entry, err := op(c.UserContext(), id)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    entry,
	})
}

// ListWaiting - daftar tunggu lengkap dengan posisi
func (h *QueueHandler) ListWaiting(c *fiber.Ctx) error {
	waiting, err := h.svc.ListWaiting(c.UserContext())
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    waiting,
		"total":   len(waiting),
	})
}
