package handler

import (
	"backend-loket/internal/helper"
	"backend-loket/internal/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type RegisterCounterRequest struct {
	Name string `json:"name"`
}

type SetCounterActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type CounterHandler struct {
	svc *queue.Service
	log *log.Entry
}

func NewCounterHandler(svc *queue.Service, logger *log.Logger) *CounterHandler {
	return &CounterHandler{svc: svc, log: logger.WithField("component", "http")}
}

func (h *CounterHandler) List(c *fiber.Ctx) error {
	counters, err := h.svc.ListCounters(c.UserContext())
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    counters,
	})
}

// Register - tambah loket baru (super_user)
func (h *CounterHandler) Register(c *fiber.Ctx) error {
	var req RegisterCounterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	counter, err := h.svc.RegisterCounter(c.UserContext(), req.Name)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Loket berhasil dibuat",
		"data":    counter,
	})
}

// SetActive - buka/tutup loket. Customer yang sedang dilayani tetap sampai selesai.
func (h *CounterHandler) SetActive(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "ID loket tidak valid")
	}

	var req SetCounterActiveRequest
	if err := c.BodyParser(&req); err != nil || req.IsActive == nil {
		return badRequest(c, "is_active wajib diisi")
	}

	counter, err := h.svc.SetCounterActive(c.UserContext(), int64(id), *req.IsActive)
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    counter,
	})
}

// CallNext - panggil antrian berikutnya ke loket ini
func (h *CounterHandler) CallNext(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "ID loket tidak valid")
	}
	counterID := int64(id)

	// petugas counter hanya boleh memanggil ke loketnya sendiri
	role, _ := c.Locals("role").(string)
	var own *int64
	if v, ok := c.Locals("counter_id").(int64); ok {
		own = &v
	}
	if err := helper.CheckCounterAccess(role, own, counterID); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Anda tidak memiliki akses ke loket ini",
		})
	}

	entry, err := h.svc.AssignNext(c.UserContext(), counterID)
	if errors.Is(err, queue.ErrNoWaitingCustomers) {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Tidak ada antrian yang menunggu",
			"data":    nil,
		})
	}
	if err != nil {
		return queueError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Memanggil " + entry.Token(),
		"data":    entry,
	})
}
